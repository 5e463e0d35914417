package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/desertthunder/spotexport/internal/tasks"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const barWidth = 40

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Renderer draws export progress.
//
// On a terminal the fetch progress is redrawn in place as a progress bar. Otherwise every
// update is written as its own line.
type Renderer struct {
	out         io.Writer
	interactive bool
	bar         progress.Model
	palette     *Palette
	drawn       bool
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer, interactive bool) *Renderer {
	return &Renderer{
		out:         out,
		interactive: interactive,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		palette:     styles,
	}
}

// Run renders updates until the channel is closed.
func (r *Renderer) Run(updates <-chan tasks.ProgressUpdate) {
	for u := range updates {
		r.Render(u)
	}
	r.clearLine()
}

// Render draws a single update.
func (r *Renderer) Render(u tasks.ProgressUpdate) {
	switch {
	case u.State == tasks.StateFailed:
		r.clearLine()
		fmt.Fprintln(r.out, r.palette.Err(u.Message))
	case u.State == tasks.StateDone:
		r.clearLine()
	case u.Attempt > 0:
		r.clearLine()
		fmt.Fprintln(r.out, r.palette.Warn("⚠ "+u.Message))
	case u.State == tasks.StateFetching && r.interactive:
		r.draw(u)
	default:
		r.clearLine()
		fmt.Fprintln(r.out, u.Message)
	}
}

func (r *Renderer) draw(u tasks.ProgressUpdate) {
	var line string
	if u.Known() {
		line = fmt.Sprintf("%s %s/%s %s", r.bar.ViewAs(u.Percent()), humanize.Comma(int64(u.Step)), humanize.Comma(int64(u.Total)), u.Kind)
	} else {
		line = fmt.Sprintf("%s %s %s (page %d)", r.palette.Help("fetching"), humanize.Comma(int64(u.Step)), u.Kind, u.Page)
	}
	fmt.Fprint(r.out, "\r\033[K"+line)
	r.drawn = true
}

func (r *Renderer) clearLine() {
	if r.drawn {
		fmt.Fprint(r.out, "\r\033[K")
		r.drawn = false
	}
}

// Summary describes a finished export.
func Summary(result *tasks.ExportResult) string {
	var b strings.Builder

	size := ""
	if info, err := os.Stat(result.OutputPath); err == nil {
		size = fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Size())))
	}

	fmt.Fprintf(&b, "%s\n", styles.OK(fmt.Sprintf("✓ Exported %s %s to %s%s",
		humanize.Comma(int64(result.Records)), result.Kind, result.OutputPath, size)))
	fmt.Fprintf(&b, "  Pages: %d  Duration: %s\n", result.Pages, result.Duration.Round(time.Millisecond))
	if result.Skipped > 0 {
		fmt.Fprintf(&b, "  %s\n", styles.Warn(fmt.Sprintf("Skipped %d removed tracks", result.Skipped)))
	}
	if result.Retries > 0 {
		fmt.Fprintf(&b, "  %s\n", styles.Warn(fmt.Sprintf("Recovered from %d failed requests", result.Retries)))
	}
	if result.Expected >= 0 && result.RawItems != result.Expected {
		fmt.Fprintf(&b, "  %s\n", styles.Help(fmt.Sprintf("Listing changed during export: expected %d, fetched %d", result.Expected, result.RawItems)))
	}
	return b.String()
}

// BulkSummary describes a finished bulk export, listing failed playlists.
func BulkSummary(result *tasks.BulkExportResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", styles.Title(fmt.Sprintf("Exported %d of %d playlists to %s",
		result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)))

	var tracks int
	for _, r := range result.Results {
		if r.Result != nil {
			tracks += r.Result.Records
		}
	}
	fmt.Fprintf(&b, "  Tracks: %s\n", humanize.Comma(int64(tracks)))

	if result.FailedExports > 0 {
		fmt.Fprintf(&b, "%s\n", styles.Err(fmt.Sprintf("✗ %d failed:", result.FailedExports)))
		for _, r := range result.Results {
			if r.Error != nil {
				fmt.Fprintf(&b, "  %s: %v\n", r.PlaylistName, r.Error)
			}
		}
	}
	return b.String()
}
