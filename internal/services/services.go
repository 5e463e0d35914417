// package services defines the Spotify catalog client used by exports
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Service defines the lifecycle shared by remote music services.
type Service interface {
	// Authenticate performs OAuth or token authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// Close releases the session. The service must be authenticated again before further use.
	Close() error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends [Service] for providers that use the OAuth2 authorization code flow.
type OAuthService interface {
	Service

	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate authenticates with a token obtained from the authorization code flow.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error

	// Token returns the current token, or nil when not authenticated.
	Token() *oauth2.Token
}

// Catalog is the read-only view of a user's library that exports page through.
//
// Listing methods take the page size and zero-based offset verbatim. Implementations
// must not clamp or round them, since callers advance the offset by the requested size.
type Catalog interface {
	SavedAlbums(ctx context.Context, limit, offset int) (*Page[SpotifySavedAlbum], error)
	UserPlaylists(ctx context.Context, limit, offset int) (*Page[SpotifySimplePlaylist], error)
	PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*Page[SpotifyPlaylistTrack], error)

	// Playlist returns playlist metadata including the total track count.
	Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error)
}

// Page is one window of a paginated listing.
//
// Total and Next are informational. An empty Items is the only end-of-data signal.
type Page[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// Len returns the number of raw items in the page, including ones that will be skipped when mapped.
func (p *Page[T]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}
