// Spotify API implementation of [Catalog] and [OAuthService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/spotexport/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	spotifyBaseURL      = "https://api.spotify.com/v1"
	defaultRedirectURI  = "http://127.0.0.1:3000/callback"
	maxErrorBodyBytes   = 4 << 10
	playlistCountFields = "id,name,tracks.total"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Popularity  int             `json:"popularity"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// SpotifySavedAlbum is an album saved in the user's library.
type SpotifySavedAlbum struct {
	AddedAt string       `json:"added_at"`
	Album   SpotifyAlbum `json:"album"`
}

// SpotifyTrack represents a Spotify track.
//
// Local files have an empty ID.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	IsLocal    bool            `json:"is_local"`
	URI        string          `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil when the track was removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type tracksRef struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Owner         Owner          `json:"owner"`
	Public        bool           `json:"public"`
	Collaborative bool           `json:"collaborative"`
	Tracks        tracksRef      `json:"tracks"`
	Images        []SpotifyImage `json:"images"`
	URI           string         `json:"uri"`
}

// SpotifyPlaylist holds the playlist fields requested for counting.
type SpotifyPlaylist struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Tracks tracksRef `json:"tracks"`
}

// APIError is a non-2xx response from the Spotify Web API.
//
// It matches [shared.ErrAPIRequest] and, depending on the status, one of
// [shared.ErrTokenExpired], [shared.ErrAuthFailed], [shared.ErrPlaylistNotFound],
// [shared.ErrInvalidArgument] or [shared.ErrServiceUnavailable].
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() []error {
	errs := []error{shared.ErrAPIRequest}
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		errs = append(errs, shared.ErrTokenExpired)
	case e.StatusCode == http.StatusForbidden:
		errs = append(errs, shared.ErrAuthFailed)
	case e.StatusCode == http.StatusNotFound:
		errs = append(errs, shared.ErrPlaylistNotFound)
	case e.StatusCode == http.StatusBadRequest:
		errs = append(errs, shared.ErrInvalidArgument)
	case e.StatusCode >= 500:
		errs = append(errs, shared.ErrServiceUnavailable)
	}
	return errs
}

// SpotifyService implements [Catalog] and [OAuthService] for the Spotify Web API.
// Uses [oauth2] for authentication with automatic token refresh.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	baseURL        string
	baseClient     *http.Client
	httpClient     *http.Client
	onTokenRefresh func(*oauth2.Token)
}

// SpotifyOpt configures a [SpotifyService].
type SpotifyOpt func(*SpotifyService)

// WithBaseURL points the service at a different API root, e.g. an [httptest.Server].
func WithBaseURL(u string) SpotifyOpt {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for API and token requests.
func WithHTTPClient(c *http.Client) SpotifyOpt {
	return func(s *SpotifyService) { s.baseClient = c }
}

// WithTokenURL overrides the token endpoint used for code exchange and refresh.
func WithTokenURL(u string) SpotifyOpt {
	return func(s *SpotifyService) { s.config.Endpoint.TokenURL = u }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOpt) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				spotifyauth.ScopeUserReadPrivate,
				spotifyauth.ScopeUserLibraryRead,
				spotifyauth.ScopePlaylistReadPrivate,
				spotifyauth.ScopePlaylistReadCollaborative,
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		baseURL:    spotifyBaseURL,
		baseClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(s)
	}
	s.httpClient = s.baseClient

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration used for the authorization code flow.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Token returns the token the service is currently using.
func (s *SpotifyService) Token() *oauth2.Token {
	return s.token
}

// SetTokenRefreshCallback registers fn to receive every newly issued token so it can be persisted.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
//
// A stored "refresh_token" (and optional RFC3339 "expiry") lets the client refresh an expired access token.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    credentials["token_type"],
		}
		if v := credentials["expiry"]; v != "" {
			if expiry, err := time.Parse(time.RFC3339, v); err == nil {
				token.Expiry = expiry
			}
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(s.clientContext(ctx), authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// OAuthenticate authenticates the service with an existing token.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	ctx = s.clientContext(ctx)
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}

	s.token = token
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// Close invalidates the token and drops idle connections.
func (s *SpotifyService) Close() error {
	if s.httpClient != nil {
		s.httpClient.CloseIdleConnections()
	}
	s.token = nil
	s.httpClient = s.baseClient
	return nil
}

func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	if s.baseClient == nil || s.baseClient == http.DefaultClient {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
}

// doRequest performs an authenticated GET request to the Spotify API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", shared.ErrUnexpected, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: token refresh failed: %w", shared.ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: truncated response from %s: %w", shared.ErrAPIRequest, endpoint, err)
			}
			return fmt.Errorf("%w: failed to decode response from %s: %w", shared.ErrUnexpected, endpoint, err)
		}
	}

	return nil
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	var body struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)); err == nil {
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error.Message
		}
	}

	return apiErr
}

func pageQuery(limit, offset int) (url.Values, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", shared.ErrInvalidArgument, limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative, got %d", shared.ErrInvalidArgument, offset)
	}
	return url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}, nil
}

func getPage[T any](ctx context.Context, s *SpotifyService, endpoint string, limit, offset int) (*Page[T], error) {
	query, err := pageQuery(limit, offset)
	if err != nil {
		return nil, err
	}

	var page Page[T]
	if err := s.doRequest(ctx, endpoint, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedAlbums retrieves one page of the user's saved albums.
func (s *SpotifyService) SavedAlbums(ctx context.Context, limit, offset int) (*Page[SpotifySavedAlbum], error) {
	return getPage[SpotifySavedAlbum](ctx, s, "/me/albums", limit, offset)
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*Page[SpotifySimplePlaylist], error) {
	return getPage[SpotifySimplePlaylist](ctx, s, "/me/playlists", limit, offset)
}

// PlaylistTracks retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*Page[SpotifyPlaylistTrack], error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: empty playlist ID", shared.ErrInvalidArgument)
	}
	return getPage[SpotifyPlaylistTrack](ctx, s, "/playlists/"+url.PathEscape(playlistID)+"/tracks", limit, offset)
}

// Playlist retrieves a playlist's ID, name and track total.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: empty playlist ID", shared.ErrInvalidArgument)
	}

	var playlist SpotifyPlaylist
	query := url.Values{"fields": {playlistCountFields}}
	if err := s.doRequest(ctx, "/playlists/"+url.PathEscape(playlistID), query, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports each new access token to callback.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
