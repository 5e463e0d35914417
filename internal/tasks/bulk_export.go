package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/spotexport/internal/models"
	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
)

// BulkExportOpts contains configuration for exporting the tracks of many playlists.
type BulkExportOpts struct {
	OutputDir   string     // Directory for the per-playlist CSV files (default: spotify_export_{epoch})
	PlaylistIDs []string   // Playlists to export; empty exports every playlist of the user
	Export      ExportOpts // Page size, pause and retry policy applied to every job
}

// PlaylistExportResult is the outcome of one playlist in a bulk export.
type PlaylistExportResult struct {
	PlaylistID   string
	PlaylistName string
	Result       *ExportResult
	Error        error
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	TotalPlaylists    int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	Results           []PlaylistExportResult
}

// BulkExportTracks exports the tracks of each playlist to its own CSV file, one job after another.
//
// A failed playlist is recorded and the run continues. Authentication failures and
// cancellation stop the run and return the partial result with the error.
func (e *Exporter) BulkExportTracks(ctx context.Context, progress chan<- ProgressUpdate, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if err := opts.Export.checkPacing(); err != nil {
		return nil, err
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", time.Now().Unix())
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create output directory %s: %v", shared.ErrFileWrite, opts.OutputDir, err)
	}

	targets, err := e.bulkTargets(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(targets),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(targets)),
	}

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		e.sendProgress(progress, bulkExportingUpdate(i+1, len(targets), target.PlaylistName))

		jobOpts := opts.Export
		jobOpts.OutputPath = filepath.Join(opts.OutputDir, models.KindPlaylistTracks.DefaultFilename(target.PlaylistID))

		// Per-job updates would fight with the bulk counter, so jobs run without a progress channel.
		res, err := e.ExportPlaylistTracks(ctx, nil, target.PlaylistID, jobOpts)
		target.Result = res
		target.Error = err
		result.Results = append(result.Results, target)

		if err != nil {
			result.FailedExports++
			e.sendProgress(progress, bulkFailedUpdate(i+1, len(targets), target.PlaylistName, err))
			if shared.IsAuthError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			continue
		}

		result.SuccessfulExports++
		e.sendProgress(progress, bulkCompletedUpdate(i+1, len(targets), target.PlaylistName, res.Records))
	}

	return result, nil
}

// bulkTargets returns the playlists to export, listing the user's playlists when none were given.
func (e *Exporter) bulkTargets(ctx context.Context, opts BulkExportOpts) ([]PlaylistExportResult, error) {
	if len(opts.PlaylistIDs) > 0 {
		targets := make([]PlaylistExportResult, len(opts.PlaylistIDs))
		for i, id := range opts.PlaylistIDs {
			targets[i] = PlaylistExportResult{PlaylistID: id, PlaylistName: id}
		}
		return targets, nil
	}

	limit := opts.Export.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}

	fetch := paced(withRetry[services.SpotifySimplePlaylist](e.catalog.UserPlaylists, opts.Export.Retry, e.sleep, nil), opts.Export.PagePause)
	pager, err := NewPaginator[services.SpotifySimplePlaylist](fetch, limit)
	if err != nil {
		return nil, err
	}

	var targets []PlaylistExportResult
	for playlist, err := range pager.Items(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		if playlist.ID == "" {
			continue
		}
		targets = append(targets, PlaylistExportResult{PlaylistID: playlist.ID, PlaylistName: playlist.Name})
	}
	return targets, nil
}
