package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotexport/internal/formatter"
	"github.com/desertthunder/spotexport/internal/models"
	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
)

// ExportOpts configures a single export job.
type ExportOpts struct {
	Kind       models.Kind
	PlaylistID string        // Required for [models.KindPlaylistTracks]
	OutputPath string        // Defaults to [models.Kind.DefaultFilename] in the working directory
	Limit      int           // Page size; 0 uses [DefaultPageSize]
	PagePause  time.Duration // Pause between successful page fetches; 0 disables
	Retry      RetryPolicy
}

// DefaultExportOpts returns options with the default page size, pause and retry policy.
func DefaultExportOpts(kind models.Kind) ExportOpts {
	return ExportOpts{
		Kind:      kind,
		Limit:     DefaultPageSize,
		PagePause: DefaultPagePause,
		Retry:     DefaultRetryPolicy(),
	}
}

// ExportResult summarizes a completed export.
type ExportResult struct {
	JobID      string
	Kind       models.Kind
	OutputPath string
	Records    int           // Data rows written
	RawItems   int           // Items returned by the catalog, including skipped ones
	Skipped    int           // Items that produced no record (removed tracks)
	Expected   int           // Total reported while counting, or -1 when unknown
	Pages      int           // Non-empty pages fetched
	Retries    int           // Transient failures retried
	Duration   time.Duration // Wall time of the job
}

// ExportError is returned when a job ends in [StateFailed].
type ExportError struct {
	State State       // State the job was in when it failed
	Kind  models.Kind // Export kind
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export failed while %s: %v", e.Kind, e.State, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// exportJob is the mutable state of one Export call.
type exportJob struct {
	id       string
	kind     models.Kind
	state    State
	expected int
	raw      int
	records  int
	skipped  int
	pages    int
	retries  int
}

// Exporter runs export jobs against a [services.Catalog].
type Exporter struct {
	catalog services.Catalog
	logger  *log.Logger
	sleep   Sleeper
}

// ExporterOpt configures an [Exporter].
type ExporterOpt func(*Exporter)

// WithLogger sets the logger used for job events.
func WithLogger(l *log.Logger) ExporterOpt {
	return func(e *Exporter) { e.logger = l }
}

// WithSleeper replaces the backoff wait, e.g. with a recording no-op in tests.
func WithSleeper(s Sleeper) ExporterOpt {
	return func(e *Exporter) { e.sleep = s }
}

// NewExporter creates an Exporter reading from catalog.
func NewExporter(catalog services.Catalog, opts ...ExporterOpt) *Exporter {
	e := &Exporter{catalog: catalog, sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ExportAlbums exports the user's saved albums.
func (e *Exporter) ExportAlbums(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	opts.Kind = models.KindAlbums
	return e.Export(ctx, progress, opts)
}

// ExportPlaylists exports the user's playlists.
func (e *Exporter) ExportPlaylists(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	opts.Kind = models.KindPlaylists
	return e.Export(ctx, progress, opts)
}

// ExportPlaylistTracks exports the tracks of one playlist.
func (e *Exporter) ExportPlaylistTracks(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, opts ExportOpts) (*ExportResult, error) {
	opts.Kind = models.KindPlaylistTracks
	opts.PlaylistID = playlistID
	return e.Export(ctx, progress, opts)
}

// Export runs one job to completion.
//
// The CSV is written once, atomically, after every page has been fetched; a failed job
// leaves any existing output file untouched. Errors are returned as [*ExportError].
func (e *Exporter) Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	start := time.Now()
	job := &exportJob{
		id:       shared.GenerateID(),
		kind:     opts.Kind,
		state:    StateInitializing,
		expected: -1,
	}
	logger := shared.WithLogger(e.logger, "job", job.id[:8], "kind", opts.Kind)

	if err := e.initialize(&opts); err != nil {
		return nil, e.fail(job, progress, logger, err)
	}
	logger.Debug("starting export", "output", opts.OutputPath, "limit", opts.Limit)

	job.state = StateCounting
	e.sendProgress(progress, countingUpdate(job.kind))
	expected, err := e.count(ctx, opts)
	if err != nil {
		if shared.IsAuthError(err) || errors.Is(err, shared.ErrPlaylistNotFound) || ctx.Err() != nil {
			return nil, e.fail(job, progress, logger, err)
		}
		logger.Warn("could not count items, continuing without a total", "error", err)
		expected = -1
	}
	job.expected = expected
	e.sendProgress(progress, countedUpdate(job.kind, expected))

	job.state = StateFetching
	switch opts.Kind {
	case models.KindAlbums:
		err = run[services.SpotifySavedAlbum, models.AlbumRecord](ctx, e, job, opts, progress, logger, e.catalog.SavedAlbums, keep(formatter.MapAlbum))
	case models.KindPlaylists:
		err = run[services.SpotifySimplePlaylist, models.PlaylistRecord](ctx, e, job, opts, progress, logger, e.catalog.UserPlaylists, keep(formatter.MapPlaylist))
	case models.KindPlaylistTracks:
		fetch := func(ctx context.Context, limit, offset int) (*services.Page[services.SpotifyPlaylistTrack], error) {
			return e.catalog.PlaylistTracks(ctx, opts.PlaylistID, limit, offset)
		}
		err = run[services.SpotifyPlaylistTrack, models.TrackRecord](ctx, e, job, opts, progress, logger, fetch, formatter.MapTrackEntry)
	}
	if err != nil {
		return nil, e.fail(job, progress, logger, err)
	}

	job.state = StateDone
	result := &ExportResult{
		JobID:      job.id,
		Kind:       job.kind,
		OutputPath: opts.OutputPath,
		Records:    job.records,
		RawItems:   job.raw,
		Skipped:    job.skipped,
		Expected:   job.expected,
		Pages:      job.pages,
		Retries:    job.retries,
		Duration:   time.Since(start),
	}

	logger.Info("export complete",
		"records", result.Records,
		"skipped", result.Skipped,
		"pages", result.Pages,
		"retries", result.Retries,
		"output", result.OutputPath,
	)
	e.sendProgress(progress, doneUpdate(job, result))
	return result, nil
}

// initialize validates opts and fills in defaults.
func (e *Exporter) initialize(opts *ExportOpts) error {
	if e.catalog == nil {
		return fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if !opts.Kind.Valid() {
		return fmt.Errorf("%w: unknown export kind %v", shared.ErrInvalidArgument, opts.Kind)
	}
	if opts.Kind == models.KindPlaylistTracks && opts.PlaylistID == "" {
		return fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultPageSize
	}
	if opts.Limit < 0 {
		return fmt.Errorf("%w: page size must be positive, got %d", shared.ErrInvalidArgument, opts.Limit)
	}
	if err := opts.checkPacing(); err != nil {
		return err
	}
	if opts.OutputPath == "" {
		opts.OutputPath = opts.Kind.DefaultFilename(opts.PlaylistID)
	}
	return shared.CheckOutputPath(opts.OutputPath)
}

// checkPacing rejects a negative page pause or retry policy.
func (o ExportOpts) checkPacing() error {
	if o.PagePause < 0 {
		return fmt.Errorf("%w: page pause cannot be negative, got %v", shared.ErrInvalidArgument, o.PagePause)
	}
	return o.Retry.Validate()
}

// count reads the advisory total shown in progress updates.
func (e *Exporter) count(ctx context.Context, opts ExportOpts) (int, error) {
	switch opts.Kind {
	case models.KindAlbums:
		page, err := e.catalog.SavedAlbums(ctx, 1, 0)
		if err != nil {
			return -1, err
		}
		return page.Total, nil
	case models.KindPlaylists:
		page, err := e.catalog.UserPlaylists(ctx, 1, 0)
		if err != nil {
			return -1, err
		}
		return page.Total, nil
	case models.KindPlaylistTracks:
		playlist, err := e.catalog.Playlist(ctx, opts.PlaylistID)
		if err != nil {
			return -1, err
		}
		return playlist.Tracks.Total, nil
	}
	return -1, nil
}

// fail moves the job to [StateFailed] and wraps err with the state it failed in.
func (e *Exporter) fail(job *exportJob, progress chan<- ProgressUpdate, logger *log.Logger, err error) error {
	if !shared.IsKnown(err) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", shared.ErrUnexpected, err)
	}

	exportErr := &ExportError{State: job.state, Kind: job.kind, Err: err}
	job.state = StateFailed

	logger.Error("export failed", "state", exportErr.State, "fetched", job.raw, "error", err)
	e.sendProgress(progress, failedUpdate(job, exportErr))
	return exportErr
}

// run drives the Fetching and Writing states for one kind of item and record.
func run[T any, R models.Record](
	ctx context.Context,
	e *Exporter,
	job *exportJob,
	opts ExportOpts,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
	fetch PageFunc[T],
	mapItem func(T) (R, bool, error),
) error {
	onRetry := func(offset, attempt int, wait time.Duration, err error) {
		job.retries++
		logger.Warn("page request failed, retrying", "offset", offset, "attempt", attempt, "wait", wait, "error", err)
		e.sendProgress(progress, retryUpdate(job, offset, attempt, err))
	}

	pager, err := NewPaginator[T](paced(withRetry(fetch, opts.Retry, e.sleep, onRetry), opts.PagePause), opts.Limit)
	if err != nil {
		return err
	}

	var records []R
	for page, err := range pager.Pages(ctx) {
		if err != nil {
			return err
		}

		for _, item := range page.Items {
			record, ok, err := mapItem(item)
			if err != nil {
				return err
			}
			if !ok {
				job.skipped++
				continue
			}
			records = append(records, record)
		}

		job.pages++
		job.raw += len(page.Items)
		job.records = len(records)
		logger.Debug("fetched page", "page", job.pages, "offset", page.Offset, "items", len(page.Items), "fetched", job.raw)
		e.sendProgress(progress, pageFetchedUpdate(job))
	}

	job.state = StateWriting
	e.sendProgress(progress, writingUpdate(job, opts.OutputPath))
	if err := formatter.WriteCSVFile(opts.OutputPath, job.kind, records); err != nil {
		return err
	}
	return nil
}

// keep adapts a mapper that never skips items.
func keep[T, R any](fn func(T) (R, error)) func(T) (R, bool, error) {
	return func(item T) (R, bool, error) {
		record, err := fn(item)
		return record, err == nil, err
	}
}
