package tasks

import (
	"fmt"

	"github.com/desertthunder/spotexport/internal/models"
)

// ProgressUpdate represents a progress event during an export.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	State   State       // Exporter state when the update was sent
	Kind    models.Kind // Export kind
	Step    int         // Raw items fetched so far
	Total   int         // Expected raw items, or -1 when unknown
	Page    int         // Pages fetched so far
	Attempt int         // Retry attempt for the page being fetched, 0 otherwise
	Message string      // Human-readable message for display
	Data    any         // Optional state-specific data (e.g. *ExportResult when done)
}

// Known reports whether the update carries a usable total.
func (u ProgressUpdate) Known() bool {
	return u.Total >= 0
}

// Percent returns Step/Total clamped to [0, 1], or 0 when the total is unknown.
//
// The total is advisory, so Step may exceed it.
func (u ProgressUpdate) Percent() float64 {
	if u.Total <= 0 {
		if u.Total == 0 && u.State == StateDone {
			return 1
		}
		return 0
	}
	return min(float64(u.Step)/float64(u.Total), 1)
}

// State of an export job.
type State int

const (
	StateInitializing State = iota
	StateCounting
	StateFetching
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateCounting:
		return "counting"
	case StateFetching:
		return "fetching"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func countingUpdate(kind models.Kind) ProgressUpdate {
	return ProgressUpdate{
		State:   StateCounting,
		Kind:    kind,
		Total:   -1,
		Message: fmt.Sprintf("Counting %s...", kind),
	}
}

func countedUpdate(kind models.Kind, total int) ProgressUpdate {
	msg := fmt.Sprintf("Found %d %s", total, kind)
	if total < 0 {
		msg = fmt.Sprintf("Total %s unknown, fetching anyway", kind)
	}
	return ProgressUpdate{
		State:   StateCounting,
		Kind:    kind,
		Total:   total,
		Message: msg,
	}
}

func pageFetchedUpdate(job *exportJob) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetching,
		Kind:    job.kind,
		Step:    job.raw,
		Total:   job.expected,
		Page:    job.pages,
		Message: fmt.Sprintf("Fetched page %d (%d %s)", job.pages, job.raw, job.kind),
	}
}

func retryUpdate(job *exportJob, offset, attempt int, err error) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetching,
		Kind:    job.kind,
		Step:    job.raw,
		Total:   job.expected,
		Page:    job.pages,
		Attempt: attempt,
		Message: fmt.Sprintf("Retrying offset %d (attempt %d): %v", offset, attempt, err),
	}
}

func writingUpdate(job *exportJob, path string) ProgressUpdate {
	return ProgressUpdate{
		State:   StateWriting,
		Kind:    job.kind,
		Step:    job.raw,
		Total:   job.expected,
		Page:    job.pages,
		Message: fmt.Sprintf("Writing %d records to %s", job.records, path),
	}
}

func doneUpdate(job *exportJob, result *ExportResult) ProgressUpdate {
	return ProgressUpdate{
		State:   StateDone,
		Kind:    job.kind,
		Step:    job.raw,
		Total:   job.expected,
		Page:    job.pages,
		Message: fmt.Sprintf("✓ Exported %d %s to %s", result.Records, job.kind, result.OutputPath),
		Data:    result,
	}
}

func failedUpdate(job *exportJob, err error) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFailed,
		Kind:    job.kind,
		Step:    job.raw,
		Total:   job.expected,
		Page:    job.pages,
		Message: fmt.Sprintf("✗ %s export failed: %v", job.kind, err),
		Data:    err,
	}
}

func bulkExportingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetching,
		Kind:    models.KindPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func bulkCompletedUpdate(step, total int, name string, records int) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetching,
		Kind:    models.KindPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, name, records),
	}
}

func bulkFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetching,
		Kind:    models.KindPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
