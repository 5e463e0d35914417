package testing

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/spotexport/internal/services"
)

// Catalog method names used by [FakeCatalog.FailOn] and [FakeCatalog.Calls].
const (
	MethodSavedAlbums    = "SavedAlbums"
	MethodUserPlaylists  = "UserPlaylists"
	MethodPlaylistTracks = "PlaylistTracks"
	MethodPlaylist       = "Playlist"
	MethodUserProfile    = "UserProfile"
)

// Call records one request made to a [FakeCatalog].
type Call struct {
	Method     string
	PlaylistID string
	Limit      int
	Offset     int
}

type failure struct {
	method string
	limit  int
	offset int
	err    error
}

// FakeCatalog is an in-memory [services.Catalog] with scripted failures.
//
// Listings are served by slicing the configured items, so page boundaries behave like the real API.
type FakeCatalog struct {
	Albums    []services.SpotifySavedAlbum
	Playlists []services.SpotifySimplePlaylist
	Tracks    map[string][]services.SpotifyPlaylistTrack
	User      *services.SpotifyUser

	mu       sync.Mutex
	calls    []Call
	failures []failure
	closed   bool
}

// FailOn queues errs for calls to method at offset, consumed one per matching call in order.
// A limit of 0 matches any page size.
func (f *FakeCatalog) FailOn(method string, limit, offset int, errs ...error) *FakeCatalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, err := range errs {
		f.failures = append(f.failures, failure{method: method, limit: limit, offset: offset, err: err})
	}
	return f
}

// Calls returns the requests made for method, or every request when method is empty.
func (f *FakeCatalog) Calls(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []Call
	for _, c := range f.calls {
		if method == "" || c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

// Offsets returns the offsets requested for method with the given page size.
func (f *FakeCatalog) Offsets(method string, limit int) []int {
	var offsets []int
	for _, c := range f.Calls(method) {
		if c.Limit == limit {
			offsets = append(offsets, c.Offset)
		}
	}
	return offsets
}

// Closed reports whether Close was called.
func (f *FakeCatalog) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCatalog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeCatalog) record(ctx context.Context, call Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, fail := range f.failures {
		if fail.method == call.Method && fail.offset == call.Offset && (fail.limit == 0 || fail.limit == call.Limit) {
			f.failures = append(f.failures[:i], f.failures[i+1:]...)
			return fail.err
		}
	}
	return nil
}

func (f *FakeCatalog) SavedAlbums(ctx context.Context, limit, offset int) (*services.Page[services.SpotifySavedAlbum], error) {
	if err := f.record(ctx, Call{Method: MethodSavedAlbums, Limit: limit, Offset: offset}); err != nil {
		return nil, err
	}
	return page(f.Albums, limit, offset), nil
}

func (f *FakeCatalog) UserPlaylists(ctx context.Context, limit, offset int) (*services.Page[services.SpotifySimplePlaylist], error) {
	if err := f.record(ctx, Call{Method: MethodUserPlaylists, Limit: limit, Offset: offset}); err != nil {
		return nil, err
	}
	return page(f.Playlists, limit, offset), nil
}

func (f *FakeCatalog) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*services.Page[services.SpotifyPlaylistTrack], error) {
	if err := f.record(ctx, Call{Method: MethodPlaylistTracks, PlaylistID: playlistID, Limit: limit, Offset: offset}); err != nil {
		return nil, err
	}
	tracks, ok := f.Tracks[playlistID]
	if !ok {
		return nil, notFound(playlistID)
	}
	return page(tracks, limit, offset), nil
}

func (f *FakeCatalog) Playlist(ctx context.Context, playlistID string) (*services.SpotifyPlaylist, error) {
	if err := f.record(ctx, Call{Method: MethodPlaylist, PlaylistID: playlistID}); err != nil {
		return nil, err
	}
	tracks, ok := f.Tracks[playlistID]
	if !ok {
		return nil, notFound(playlistID)
	}
	playlist := &services.SpotifyPlaylist{ID: playlistID, Name: "Playlist " + playlistID}
	playlist.Tracks.Total = len(tracks)
	return playlist, nil
}

// UserProfile returns User, or a 401 when it is nil.
func (f *FakeCatalog) UserProfile(ctx context.Context) (*services.SpotifyUser, error) {
	if err := f.record(ctx, Call{Method: MethodUserProfile}); err != nil {
		return nil, err
	}
	if f.User == nil {
		return nil, &services.APIError{StatusCode: http.StatusUnauthorized, Message: "The access token expired"}
	}
	return f.User, nil
}

func notFound(playlistID string) error {
	return &services.APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("playlist %s not found", playlistID)}
}

func page[T any](items []T, limit, offset int) *services.Page[T] {
	p := &services.Page[T]{Total: len(items), Limit: limit, Offset: offset, Items: []T{}}
	if offset >= len(items) || limit <= 0 {
		return p
	}

	end := min(offset+limit, len(items))
	p.Items = append(p.Items, items[offset:end]...)
	if end < len(items) {
		next := fmt.Sprintf("offset=%d", end)
		p.Next = &next
	}
	return p
}

// Album returns a saved album with one image and the given artists.
func Album(name string, artists ...string) services.SpotifySavedAlbum {
	album := services.SpotifyAlbum{
		ID:          "album-" + name,
		Name:        name,
		ReleaseDate: "2020-01-01",
		Popularity:  50,
		Images:      []services.SpotifyImage{{URL: "https://i.scdn.co/image/" + name, Height: 640, Width: 640}},
	}
	for _, a := range artists {
		album.Artists = append(album.Artists, services.SpotifyArtist{Name: a})
	}
	return services.SpotifySavedAlbum{AddedAt: "2024-01-01T00:00:00Z", Album: album}
}

// Albums returns n distinct saved albums.
func Albums(n int) []services.SpotifySavedAlbum {
	albums := make([]services.SpotifySavedAlbum, n)
	for i := range n {
		albums[i] = Album(fmt.Sprintf("Album %03d", i), fmt.Sprintf("Artist %d", i))
	}
	return albums
}

// Playlists returns n distinct playlist summaries.
func Playlists(n int) []services.SpotifySimplePlaylist {
	playlists := make([]services.SpotifySimplePlaylist, n)
	for i := range n {
		playlists[i] = services.SpotifySimplePlaylist{ID: fmt.Sprintf("pl%03d", i), Name: fmt.Sprintf("Playlist %d", i)}
	}
	return playlists
}

// Track returns a playlist entry for a catalog track.
func Track(id, name string, artists ...string) services.SpotifyPlaylistTrack {
	track := &services.SpotifyTrack{
		ID:         id,
		Name:       name,
		Popularity: 40,
		DurationMS: 180000,
		Album:      services.SpotifyAlbum{Name: "Album of " + name},
	}
	for _, a := range artists {
		track.Artists = append(track.Artists, services.SpotifyArtist{Name: a})
	}
	return services.SpotifyPlaylistTrack{AddedAt: "2024-01-01T00:00:00Z", Track: track}
}

// NullTrack returns a playlist entry whose track was removed from the catalog.
func NullTrack() services.SpotifyPlaylistTrack {
	return services.SpotifyPlaylistTrack{AddedAt: "2024-01-01T00:00:00Z"}
}

// TransientError returns an error the retry policy treats as retryable.
func TransientError(status int) error {
	return &services.APIError{StatusCode: status, Message: "try again"}
}
