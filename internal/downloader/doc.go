// Package downloader fetches hash-verified files with mirror failover.
//
// An [Item] names one destination file and an ordered list of candidate
// URLs. A [Task] fetches one Item; a [Batch] runs many Tasks on a bounded
// worker pool.
//
// # Task
//
// A Task never performs network access when the destination already holds
// the expected content. Otherwise it walks the candidate URLs in order,
// retrying each up to MaxRetries times with a fixed delay. Bytes stream into
// a part file next to the destination, are verified, and only then renamed
// into place, so the destination never holds a corrupt file.
//
// # Batch
//
// Workers receive tasks from a channel and run each to completion before
// taking the next one. Every task reaches its own terminal state; Run then
// returns a [BatchError] if any task failed. Files already completed stay on
// disk so a retried run skips them.
//
// # Abort
//
// Abort drops queued tasks and cancels in-flight ones. Their part files are
// removed. Calling Abort after Run has finished does nothing.
package downloader
