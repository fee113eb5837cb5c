package progress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// ReporterOptions configures the text reporter.
type ReporterOptions struct {
	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// Prefix is printed at the start of every line.
	// Default: "[mio]"
	Prefix string
}

// Reporter prints human-readable progress for the snapshots it receives.
// It is a pure consumer of a Tracker subscription.
type Reporter struct {
	opts ReporterOptions

	mu        sync.Mutex
	startTime time.Time
	last      map[string]Snapshot
	done      chan struct{}
}

// NewReporter creates a new progress reporter.
func NewReporter(opts ReporterOptions) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Prefix == "" {
		opts.Prefix = "[mio]"
	}
	return &Reporter{
		opts: opts,
		last: make(map[string]Snapshot),
		done: make(chan struct{}),
	}
}

// Attach subscribes to t and prints until the subscription ends.
func (r *Reporter) Attach(t *Tracker) {
	ch, _ := t.Subscribe(64)
	r.startTime = time.Now()
	go func() {
		defer close(r.done)
		for s := range ch {
			r.print(s)
		}
	}()
}

// Wait blocks until the tracker closes, then prints a summary per phase.
func (r *Reporter) Wait() {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sortedSnapshots(r.last) {
		fmt.Fprintf(r.opts.Output, "%s %s: %d/%d files | %s | %d failed\n",
			r.opts.Prefix, s.Phase, s.Completed, s.Total, formatBytes(s.Bytes), s.Failed)
	}
	fmt.Fprintf(r.opts.Output, "%s Total time: %s\n", r.opts.Prefix, formatDuration(time.Since(r.startTime)))
}

func (r *Reporter) print(s Snapshot) {
	r.mu.Lock()
	r.last[s.Phase] = s
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "%s %s: %.1f%% | %d/%d | Speed: %s/s\n",
		r.opts.Prefix, s.Phase, s.Progress*100, s.Completed, s.Total, formatBytes(int64(s.Speed)))
}

func sortedSnapshots(m map[string]Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phase < out[j].Phase })
	return out
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}
