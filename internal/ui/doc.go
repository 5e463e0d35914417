// Package ui renders export progress and summaries for the command line.
//
// [Renderer] consumes [tasks.ProgressUpdate] values from the exporter's channel. On a terminal
// it redraws a single line with a bubbles progress bar (or a running count when the total is
// unknown); elsewhere it prints one plain line per update. Colors come from a small lipgloss [Palette].
package ui
