package formatter

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spotexport/internal/models"
	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
)

const artistSeparator = ", "

// MapAlbum flattens a saved album. The album must have a name and at least one image.
func MapAlbum(item services.SpotifySavedAlbum) (models.AlbumRecord, error) {
	album := item.Album
	if album.Name == "" {
		return models.AlbumRecord{}, fmt.Errorf("%w: album %q has no name", shared.ErrMapping, album.ID)
	}
	if len(album.Images) == 0 {
		return models.AlbumRecord{}, fmt.Errorf("%w: album %q has no images", shared.ErrMapping, album.Name)
	}

	return models.AlbumRecord{
		Name:        album.Name,
		Artists:     joinArtists(album.Artists),
		ReleaseDate: album.ReleaseDate,
		Popularity:  album.Popularity,
		ImageURL:    album.Images[0].URL,
	}, nil
}

// MapPlaylist flattens a playlist summary. The playlist must have an ID.
func MapPlaylist(item services.SpotifySimplePlaylist) (models.PlaylistRecord, error) {
	if item.ID == "" {
		return models.PlaylistRecord{}, fmt.Errorf("%w: playlist %q has no ID", shared.ErrMapping, item.Name)
	}
	return models.PlaylistRecord{Name: item.Name, ID: item.ID}, nil
}

// MapTrackEntry flattens a playlist entry.
//
// ok is false when the entry's track is gone from the catalog; the entry is skipped, not failed.
// A present track must have a name. Local files are exported with an empty Track ID.
func MapTrackEntry(item services.SpotifyPlaylistTrack) (record models.TrackRecord, ok bool, err error) {
	track := item.Track
	if track == nil {
		return models.TrackRecord{}, false, nil
	}
	if track.Name == "" {
		return models.TrackRecord{}, false, fmt.Errorf("%w: track %q has no name", shared.ErrMapping, track.ID)
	}

	return models.TrackRecord{
		ID:         track.ID,
		Name:       track.Name,
		Popularity: track.Popularity,
		DurationMS: track.DurationMS,
		AlbumName:  track.Album.Name,
		Artists:    joinArtists(track.Artists),
	}, true, nil
}

func joinArtists(artists []services.SpotifyArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, artistSeparator)
}
