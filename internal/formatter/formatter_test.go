package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/spotexport/internal/models"
	"github.com/desertthunder/spotexport/internal/shared"
	th "github.com/desertthunder/spotexport/internal/testing"
)

// encode renders records to an in-memory CSV document.
func encode[R models.Record](kind models.Kind, records []R) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, kind, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestEncodeCSV(t *testing.T) {
	t.Run("track records", func(t *testing.T) {
		records := []models.TrackRecord{
			{ID: "t1", Name: "Song One", Popularity: 10, DurationMS: 180000, AlbumName: "Album One", Artists: "A, B"},
			{ID: "", Name: "Local Demo", AlbumName: "", Artists: ""},
		}

		data, err := encode(models.KindPlaylistTracks, records)
		if err != nil {
			t.Fatalf("EncodeCSV failed: %v", err)
		}

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}

		want := [][]string{
			{"Track ID", "Track Name", "Track Popularity", "Track Duration", "Track Album Name", "Track Artists"},
			{"t1", "Song One", "10", "180000", "Album One", "A, B"},
			{"", "Local Demo", "0", "0", "", ""},
		}
		if !reflect.DeepEqual(rows, want) {
			t.Errorf("rows = %v, want %v", rows, want)
		}
	})

	t.Run("quotes fields with commas and quotes", func(t *testing.T) {
		records := []models.AlbumRecord{
			{Name: `Say "Hi"`, Artists: "Simon, Garfunkel", ReleaseDate: "1970", Popularity: 1, ImageURL: "u"},
		}

		data, err := encode(models.KindAlbums, records)
		if err != nil {
			t.Fatalf("EncodeCSV failed: %v", err)
		}

		if !strings.Contains(string(data), `"Say ""Hi""","Simon, Garfunkel"`) {
			t.Errorf("expected quoted fields, got %s", data)
		}
	})

	t.Run("header only when no records", func(t *testing.T) {
		data, err := encode(models.KindPlaylists, []models.PlaylistRecord{})
		if err != nil {
			t.Fatalf("EncodeCSV failed: %v", err)
		}
		if string(data) != "Playlist Name,Playlist ID\n" {
			t.Errorf("expected header only, got %q", data)
		}
	})

	t.Run("rejects mismatched kind", func(t *testing.T) {
		_, err := encode(models.KindAlbums, []models.PlaylistRecord{{Name: "x", ID: "y"}})
		if !errors.Is(err, shared.ErrUnexpected) {
			t.Errorf("expected ErrUnexpected, got %v", err)
		}
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := encode(models.Kind(9), []models.PlaylistRecord{})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("propagates writer errors", func(t *testing.T) {
		err := EncodeCSV(&th.FWriter{}, models.KindPlaylists, []models.PlaylistRecord{{Name: "x", ID: "y"}})
		if err == nil {
			t.Error("expected error from failing writer")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "all_playlists.csv")
		records := []models.PlaylistRecord{{Name: "Focus", ID: "pl1"}, {Name: "Run", ID: "pl2"}}

		if err := WriteCSVFile(path, models.KindPlaylists, records); err != nil {
			t.Fatalf("WriteCSVFile failed: %v", err)
		}

		content := th.MustReadFile(t, path)
		if content != "Playlist Name,Playlist ID\nFocus,pl1\nRun,pl2\n" {
			t.Errorf("unexpected content %q", content)
		}
	})

	t.Run("WriteCSVFile leaves previous file on failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "all_albums.csv")
		th.MustWriteFile(t, path, "previous\n")

		err := WriteCSVFile(path, models.KindAlbums, []models.PlaylistRecord{{Name: "x", ID: "y"}})
		if !errors.Is(err, shared.ErrFileWrite) {
			t.Errorf("expected ErrFileWrite, got %v", err)
		}
		if content := th.MustReadFile(t, path); content != "previous\n" {
			t.Errorf("previous file changed to %q", content)
		}
	})
}
