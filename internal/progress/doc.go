// Package progress owns progress and speed state for fetch batches and
// processor chains.
//
// A Tracker is the only writer of progress state. Work units send Updates
// keyed by phase and unit; the Tracker folds them in on its own goroutine
// and publishes immutable Snapshots to subscribers at a fixed interval.
// Subscribers are pure consumers and never affect completion.
//
// # Usage
//
//	tracker := progress.NewTracker(progress.Options{})
//	defer tracker.Close()
//
//	reporter := progress.NewReporter(progress.ReporterOptions{Output: os.Stderr})
//	reporter.Attach(tracker)
//
//	tracker.Report(progress.Update{Phase: "libraries", Key: dest, Progress: 0.5, Speed: 1 << 20})
//
// # Output Format
//
//	[mio] libraries: 45.2% | 12/30 | Speed: 1.20 MB/s
//	[mio] assets: 100.0% | 3120/3120 | Speed: 0 B/s
package progress
