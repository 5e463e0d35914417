// package models defines the export kinds and the flat records written to CSV
package models

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies what an export job lists.
type Kind int

const (
	KindAlbums Kind = iota
	KindPlaylists
	KindPlaylistTracks
)

func (k Kind) String() string {
	switch k {
	case KindAlbums:
		return "albums"
	case KindPlaylists:
		return "playlists"
	case KindPlaylistTracks:
		return "tracks"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindAlbums && k <= KindPlaylistTracks
}

// Columns returns the CSV header for the kind, in output order.
func (k Kind) Columns() []string {
	switch k {
	case KindAlbums:
		return header(reflect.TypeFor[AlbumRecord]())
	case KindPlaylists:
		return header(reflect.TypeFor[PlaylistRecord]())
	case KindPlaylistTracks:
		return header(reflect.TypeFor[TrackRecord]())
	default:
		return nil
	}
}

// DefaultFilename returns the output file name used when none is given.
// playlistID is only used for [KindPlaylistTracks].
func (k Kind) DefaultFilename(playlistID string) string {
	switch k {
	case KindAlbums:
		return "all_albums.csv"
	case KindPlaylists:
		return "all_playlists.csv"
	case KindPlaylistTracks:
		return "playlist_tracks_" + sanitizeFilename(playlistID) + ".csv"
	default:
		return ""
	}
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Record is one CSV row. Values are returned in [Kind.Columns] order.
type Record interface {
	Kind() Kind
	Values() []string
}

// AlbumRecord is a saved album flattened for export.
type AlbumRecord struct {
	Name        string `csv:"Album Name"`
	Artists     string `csv:"Artists"`
	ReleaseDate string `csv:"Release Date"`
	Popularity  int    `csv:"Popularity"`
	ImageURL    string `csv:"Image URL"`
}

func (AlbumRecord) Kind() Kind { return KindAlbums }

func (r AlbumRecord) Values() []string {
	return []string{r.Name, r.Artists, r.ReleaseDate, strconv.Itoa(r.Popularity), r.ImageURL}
}

// PlaylistRecord is a user playlist flattened for export.
type PlaylistRecord struct {
	Name string `csv:"Playlist Name"`
	ID   string `csv:"Playlist ID"`
}

func (PlaylistRecord) Kind() Kind { return KindPlaylists }

func (r PlaylistRecord) Values() []string {
	return []string{r.Name, r.ID}
}

// TrackRecord is a playlist entry flattened for export. ID is empty for local files.
type TrackRecord struct {
	ID         string `csv:"Track ID"`
	Name       string `csv:"Track Name"`
	Popularity int    `csv:"Track Popularity"`
	DurationMS int    `csv:"Track Duration"`
	AlbumName  string `csv:"Track Album Name"`
	Artists    string `csv:"Track Artists"`
}

func (TrackRecord) Kind() Kind { return KindPlaylistTracks }

func (r TrackRecord) Values() []string {
	return []string{r.ID, r.Name, strconv.Itoa(r.Popularity), strconv.Itoa(r.DurationMS), r.AlbumName, r.Artists}
}

// header reads the csv tags of a record struct, falling back to the field name.
func header(t reflect.Type) []string {
	headers := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		name := field.Name
		if tag := field.Tag.Get("csv"); tag != "" {
			name = tag
		}
		headers = append(headers, name)
	}
	return headers
}
