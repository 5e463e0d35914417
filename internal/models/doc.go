// Package models defines the export kinds and the records they produce.
//
// Each [Kind] fixes a column set and a default output file:
//   - [KindAlbums] : Album Name, Artists, Release Date, Popularity, Image URL → all_albums.csv
//   - [KindPlaylists] : Playlist Name, Playlist ID → all_playlists.csv
//   - [KindPlaylistTracks] : Track ID, Track Name, Track Popularity, Track Duration,
//     Track Album Name, Track Artists → playlist_tracks_<id>.csv
//
// Records are immutable values. Column names come from the `csv` struct tags, so the header
// and the [Record.Values] order are defined in one place per type.
package models
