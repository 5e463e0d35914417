// Package tasks runs export jobs against the Spotify catalog with real-time progress reporting.
//
// # Pagination
//
// [Paginator] requests pages at offsets 0, limit, 2*limit, … and stops at the first empty page.
// The reported total is never used to stop, since it can lag the actual listing.
// [Paginator.Pages] and [Paginator.Items] are lazy [iter.Seq2] sequences and can be ranged once.
//
// # Retries
//
// A [RetryPolicy] wraps each page request. Transient failures (network errors, HTTP 429 and 5xx)
// are retried at the same offset after a fixed backoff, so no page is skipped or fetched twice
// into the result. Authentication, not-found and bad-request errors fail immediately. When the
// per-page budget runs out the job fails with [shared.ErrRetriesExhausted].
//
// # Export Jobs
//
// [Exporter.Export] moves through these states:
//
//  1. Initializing : validate options, resolve the output path, check its directory
//  2. Counting : read the advisory total (limit=1 listing, or the playlist's track total)
//  3. Fetching : page through the listing, map items to records, skip removed tracks
//  4. Writing : write the CSV once, atomically
//  5. Done, or Failed from any earlier state with an [*ExportError]
//
// A failed job never leaves a partial CSV behind. Counting failures other than
// authentication and not-found errors are logged and the job continues with an unknown total.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// [ProgressUpdate] carries the state, raw items fetched, the expected total and a message.
// Updates use select with default, so a slow consumer drops updates instead of stalling the job.
// The fetched count advances by raw items, including skipped ones, to stay comparable with the total.
//
// # Bulk Export
//
// [Exporter.BulkExportTracks] exports every playlist's tracks to its own file, one job at a time.
package tasks
