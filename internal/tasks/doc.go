// Package tasks resolves a reader's shelf against library catalogs with real-time progress reporting.
//
// # Core Operations
//
//  1. [Engine.ResolveShelf] : check every book at every library target
//     - Schedules one lookup per (book, library) pair under a global concurrency bound
//     - Applies the run deadline; unfinished pairs are reported as timeouts
//     - Returns a [models.ShelfReport] in book and target input order
//
//  2. [LibraryWorker.Resolve] : check one book at one library
//     - Waits for the library's rate limiter, bounded by the target timeout
//     - Searches the catalog, retrying network and rate limit failures per [RetryPolicy]
//     - Hands candidates to the matcher and maps its verdict into a result
//
//  3. [Aggregate] : combine one book's per-library results
//     - Available > Holdable > Unavailable > Unknown
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for the TUI.
// [ResolveUnit] updates carry the [models.AvailabilityResult], [ResolveBook] updates the finished
// [models.ShelfReportEntry] and [ResolveDone] the report.
//
// # Failure Model
//
// A lookup never fails its caller. Errors end up on [models.AvailabilityResult].Err wrapping
// one of shared.ErrNetwork, shared.ErrRateLimited, shared.ErrParse or shared.ErrTimeout, and
// the result's status is Unknown. ResolveShelf itself only fails on invalid input.
package tasks
