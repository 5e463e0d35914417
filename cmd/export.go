package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/desertthunder/spotexport/internal/models"
	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
	"github.com/desertthunder/spotexport/internal/tasks"
	"github.com/desertthunder/spotexport/internal/ui"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 64

// ExportAlbums writes the user's saved albums to CSV.
func (r *Runner) ExportAlbums(ctx context.Context, cmd *cli.Command) error {
	return r.runExport(ctx, r.exportOpts(cmd, models.KindAlbums, ""))
}

// ExportPlaylists writes the user's playlists to CSV.
func (r *Runner) ExportPlaylists(ctx context.Context, cmd *cli.Command) error {
	return r.runExport(ctx, r.exportOpts(cmd, models.KindPlaylists, ""))
}

// ExportTracks writes the tracks of one playlist to CSV, or of every playlist with --all.
func (r *Runner) ExportTracks(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("playlist-id")
	all := cmd.Bool("all")

	switch {
	case all && playlistID != "":
		return fmt.Errorf("%w: pass either a playlist ID or --all", shared.ErrInvalidArgument)
	case all:
		return r.runBulkExport(ctx, tasks.BulkExportOpts{
			OutputDir: cmd.String("dir"),
			Export:    r.exportOpts(cmd, models.KindPlaylistTracks, ""),
		})
	case playlistID == "":
		return fmt.Errorf("%w: playlist ID is required (or use --all)", shared.ErrMissingArgument)
	}

	return r.runExport(ctx, r.exportOpts(cmd, models.KindPlaylistTracks, playlistID))
}

// exportOpts merges the [export] config section with command flags.
func (r *Runner) exportOpts(cmd *cli.Command, kind models.Kind, playlistID string) tasks.ExportOpts {
	cfg := r.config.Export
	opts := tasks.ExportOpts{
		Kind:       kind,
		PlaylistID: playlistID,
		OutputPath: cmd.String("output"),
		Limit:      cfg.PageSize,
		PagePause:  cfg.PagePause(),
		Retry: tasks.RetryPolicy{
			Backoff:    cfg.RetryBackoff(),
			MaxRetries: cfg.MaxRetries,
		},
	}

	if cmd.IsSet("limit") {
		opts.Limit = cmd.Int("limit")
	}
	if cmd.IsSet("pause") {
		opts.PagePause = cmd.Duration("pause")
	}
	if cmd.IsSet("backoff") {
		opts.Retry.Backoff = cmd.Duration("backoff")
	}
	if cmd.IsSet("max-retries") {
		opts.Retry.MaxRetries = cmd.Int("max-retries")
	}

	if opts.OutputPath == "" {
		switch kind {
		case models.KindAlbums:
			opts.OutputPath = cfg.AlbumsFile
		case models.KindPlaylists:
			opts.OutputPath = cfg.PlaylistsFile
		case models.KindPlaylistTracks:
			if cfg.TracksDir != "" && playlistID != "" {
				opts.OutputPath = filepath.Join(cfg.TracksDir, kind.DefaultFilename(playlistID))
			}
		}
	}
	return opts
}

func (r *Runner) runExport(ctx context.Context, opts tasks.ExportOpts) error {
	var result *tasks.ExportResult
	err := r.withCatalog(ctx, func(catalog services.Catalog) error {
		var err error
		r.withProgress(func(progress chan<- tasks.ProgressUpdate) {
			result, err = tasks.NewExporter(catalog, r.exporterOpts...).Export(ctx, progress, opts)
		})
		return err
	})
	if err != nil {
		return err
	}

	return r.writePlain("%s", ui.Summary(result))
}

func (r *Runner) runBulkExport(ctx context.Context, opts tasks.BulkExportOpts) error {
	var result *tasks.BulkExportResult
	err := r.withCatalog(ctx, func(catalog services.Catalog) error {
		var err error
		r.withProgress(func(progress chan<- tasks.ProgressUpdate) {
			result, err = tasks.NewExporter(catalog, r.exporterOpts...).BulkExportTracks(ctx, progress, opts)
		})
		return err
	})
	if result != nil {
		if werr := r.writePlain("%s", ui.BulkSummary(result)); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// withProgress runs fn with a progress channel drained by a [ui.Renderer] and waits for the renderer to finish.
func (r *Runner) withProgress(fn func(progress chan<- tasks.ProgressUpdate)) {
	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	renderer := ui.NewRenderer(r.output, r.interactive)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renderer.Run(progress)
	}()

	fn(progress)
	close(progress)
	wg.Wait()
}

// withCatalog opens a session, runs fn and closes the session.
//
// An expired token in an interactive session triggers one reauthorization, after which fn runs again.
func (r *Runner) withCatalog(ctx context.Context, fn func(services.Catalog) error) error {
	reauthed, err := r.handleAuthError(ctx, r.useCatalog(ctx, fn))
	if reauthed && err == nil {
		return r.useCatalog(ctx, fn)
	}
	return err
}

func (r *Runner) useCatalog(ctx context.Context, fn func(services.Catalog) error) error {
	session, err := r.openCatalog(ctx, r.config)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("failed to close session", "error", err)
		}
	}()

	return fn(session)
}
