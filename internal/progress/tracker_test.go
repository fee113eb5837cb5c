package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{256 * 1024 * 1024, "256.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
	}

	for _, tt := range tests {
		result := FormatBytes(tt.input)
		if result != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.input); got != tt.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestTrackerAggregates(t *testing.T) {
	tr := NewTracker(Options{Interval: time.Hour})
	defer tr.Close()

	tr.Report(Update{Phase: "libraries", Key: "a"})
	tr.Report(Update{Phase: "libraries", Key: "b"})
	tr.Report(Update{Phase: "libraries", Key: "a", Progress: 0.5, Speed: 100, Bytes: 50})
	tr.Report(Update{Phase: "libraries", Key: "b", Progress: 1, Bytes: 80, Done: true})

	s := tr.Snapshot("libraries")
	if s.Total != 2 {
		t.Fatalf("expected 2 units, got %d", s.Total)
	}
	if s.Progress != 0.75 {
		t.Errorf("expected mean progress 0.75, got %v", s.Progress)
	}
	if s.Speed != 100 {
		t.Errorf("expected speed of transferring units only, got %v", s.Speed)
	}
	if s.Completed != 1 {
		t.Errorf("expected 1 completed, got %d", s.Completed)
	}
	if s.Bytes != 130 {
		t.Errorf("expected 130 bytes, got %d", s.Bytes)
	}
}

func TestTrackerProgressIsMonotonic(t *testing.T) {
	tr := NewTracker(Options{Interval: time.Hour})
	defer tr.Close()

	tr.Report(Update{Phase: "p", Key: "a", Progress: 0.6})
	tr.Report(Update{Phase: "p", Key: "a", Progress: 0.2})

	if got := tr.Snapshot("p").Progress; got != 0.6 {
		t.Errorf("progress moved backwards: %v", got)
	}
}

func TestTrackerTerminalStateIsFinal(t *testing.T) {
	tr := NewTracker(Options{Interval: time.Hour})
	defer tr.Close()

	tr.Report(Update{Phase: "p", Key: "a", Progress: 0.3, Speed: 10})
	tr.Report(Update{Phase: "p", Key: "a", Done: true})
	tr.Report(Update{Phase: "p", Key: "a", Progress: 0.1, Speed: 99})

	s := tr.Snapshot("p")
	if s.Progress != 1 {
		t.Errorf("expected progress 1 on success, got %v", s.Progress)
	}
	if s.Speed != 0 {
		t.Errorf("expected speed 0 after completion, got %v", s.Speed)
	}
}

func TestTrackerFailedUnit(t *testing.T) {
	tr := NewTracker(Options{Interval: time.Hour})
	defer tr.Close()

	tr.Report(Update{Phase: "p", Key: "a", Progress: 0.4})
	tr.Report(Update{Phase: "p", Key: "a", Done: true, Failed: true})

	s := tr.Snapshot("p")
	if s.Failed != 1 || s.Completed != 0 {
		t.Errorf("unexpected counts: %+v", s)
	}
}

func TestTrackerPublishesToSubscribers(t *testing.T) {
	tr := NewTracker(Options{Interval: 10 * time.Millisecond})

	ch, cancel := tr.Subscribe(16)
	defer cancel()

	tr.Report(Update{Phase: "assets", Key: "x", Progress: 1, Done: true})

	select {
	case s := <-ch:
		if s.Phase != "assets" || s.Progress != 1 {
			t.Errorf("unexpected snapshot: %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
	}

	tr.Close()
	for range ch {
	}
}

func TestTrackerSnapshotAfterClose(t *testing.T) {
	tr := NewTracker(Options{Interval: time.Hour})
	tr.Report(Update{Phase: "p", Key: "a", Progress: 1, Done: true})
	tr.Close()

	if got := tr.Snapshot("p").Completed; got != 1 {
		t.Errorf("expected final state after close, got %d completed", got)
	}
	tr.Report(Update{Phase: "p", Key: "b"})
	tr.Close()
}

func TestTrackerSubscribeAfterClose(t *testing.T) {
	tr := NewTracker(Options{Interval: time.Hour})
	tr.Close()

	for i := 0; i < 100; i++ {
		ch, cancel := tr.Subscribe(1)
		select {
		case _, ok := <-ch:
			if ok {
				t.Fatal("unexpected snapshot on closed tracker")
			}
		case <-time.After(time.Second):
			t.Fatalf("subscription %d after close never ended", i)
		}
		cancel()
	}
}

func TestTrackerSubscribeRacingClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		tr := NewTracker(Options{Interval: time.Hour})
		subs := make(chan (<-chan Snapshot), 8)
		var wg sync.WaitGroup
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ch, _ := tr.Subscribe(1)
				subs <- ch
			}()
		}
		tr.Close()
		wg.Wait()
		close(subs)

		deadline := time.After(2 * time.Second)
		for ch := range subs {
		drain:
			for {
				select {
				case _, ok := <-ch:
					if !ok {
						break drain
					}
				case <-deadline:
					t.Fatal("subscription left open after Close")
				}
			}
		}
	}
}

func TestReporterAttachedAfterClose(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(Options{Interval: time.Hour})
	tr.Close()

	r := NewReporter(ReporterOptions{Output: &buf})
	r.Attach(tr)
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reporter.Wait blocked on a closed tracker")
	}
}

func TestTrackerConcurrentReports(t *testing.T) {
	tr := NewTracker(Options{Interval: time.Millisecond})
	defer tr.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			for p := 1; p <= 10; p++ {
				tr.Report(Update{Phase: "p", Key: key, Progress: float64(p) / 10})
			}
			tr.Report(Update{Phase: "p", Key: key, Done: true})
		}(i)
	}
	wg.Wait()

	s := tr.Snapshot("p")
	if s.Completed != 8 || s.Progress != 1 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

func TestNilTrackerReport(t *testing.T) {
	var tr *Tracker
	tr.Report(Update{Phase: "p"})
}

func TestReporterPrintsSummary(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(Options{Interval: 5 * time.Millisecond})
	r := NewReporter(ReporterOptions{Output: &buf})
	r.Attach(tr)

	tr.Report(Update{Phase: "libraries", Key: "a", Progress: 1, Bytes: 2048, Done: true})
	tr.Close()
	r.Wait()

	out := buf.String()
	if !strings.Contains(out, "[mio] libraries: 100.0%") {
		t.Errorf("expected progress line, got: %s", out)
	}
	if !strings.Contains(out, "libraries: 1/1 files | 2.00 KB | 0 failed") {
		t.Errorf("expected summary line, got: %s", out)
	}
	if !strings.Contains(out, "Total time:") {
		t.Errorf("expected total time, got: %s", out)
	}
}
