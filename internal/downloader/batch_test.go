package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchRunsAllItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	dir := t.TempDir()
	b := NewBatch(testOpts())
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("obj-%02d", i)
		b.Add(Item{
			URLs: []string{server.URL + "/" + name},
			Dest: filepath.Join(dir, name),
			Hash: sha1Hex([]byte("/" + name)),
		})
	}

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, task := range b.Tasks() {
		if task.Status() != StatusComplete {
			t.Errorf("%s: status %v", task.Item().Dest, task.Status())
		}
	}
	p, s := b.Progress()
	if p != 1 || s != 0 {
		t.Errorf("aggregate progress = %v, speed = %v", p, s)
	}
}

func TestBatchDeduplicatesByDest(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a")
	b := NewBatch(testOpts())
	b.Add(Item{URLs: []string{"http://a"}, Dest: dest}, Item{URLs: []string{"http://b"}, Dest: dest})
	if b.Len() != 1 {
		t.Errorf("expected 1 task, got %d", b.Len())
	}
}

func TestBatchRespectsWorkerBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte("x"))
	}))
	defer server.Close()

	opts := testOpts()
	opts.Workers = 2
	dir := t.TempDir()
	b := NewBatch(opts)
	for i := 0; i < 10; i++ {
		b.Add(Item{URLs: []string{server.URL}, Dest: filepath.Join(dir, fmt.Sprint(i))})
	}
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds 2 workers", peak.Load())
	}
}

func TestBatchPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	dir := t.TempDir()
	good := filepath.Join(dir, "good")
	bad := filepath.Join(dir, "bad")

	b := NewBatch(testOpts())
	b.Add(
		Item{URLs: []string{server.URL + "/good"}, Dest: good},
		Item{URLs: []string{server.URL + "/missing"}, Dest: bad},
	)
	err := b.Run(context.Background())

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if len(batchErr.Errs) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(batchErr.Errs))
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) || netErr.Dest != bad {
		t.Errorf("expected NetworkError for %s, got %v", bad, err)
	}

	// The successful file stays so a retry can skip it.
	if _, err := os.Stat(good); err != nil {
		t.Errorf("completed file removed: %v", err)
	}
	if _, err := os.Stat(bad); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed dest must not exist: %v", err)
	}
}

func TestBatchRunAgainReturnsFirstResult(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	b := NewBatch(testOpts())
	b.Add(Item{URLs: []string{server.URL + "/missing"}, Dest: filepath.Join(t.TempDir(), "bad")})

	first := b.Run(context.Background())
	var batchErr *BatchError
	if !errors.As(first, &batchErr) {
		t.Fatalf("expected BatchError, got %v", first)
	}
	requests := hits.Load()

	second := b.Run(context.Background())
	if second != first {
		t.Errorf("second Run = %v, want the first result %v", second, first)
	}
	if hits.Load() != requests {
		t.Errorf("second Run made %d requests", hits.Load()-requests)
	}
}

func TestBatchRunAgainAfterAbort(t *testing.T) {
	b := NewBatch(testOpts())
	b.Add(Item{URLs: []string{"http://127.0.0.1:1"}, Dest: filepath.Join(t.TempDir(), "x")})
	b.Abort()
	b.Run(context.Background())
	if err := b.Run(context.Background()); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted on second Run, got %v", err)
	}
}

func TestBatchAbortAfterCompletionIsNoOp(t *testing.T) {
	server, _ := countingServer(t, []byte("done"))
	dir := t.TempDir()

	b := NewBatch(testOpts())
	var dests []string
	for i := 0; i < 3; i++ {
		dest := filepath.Join(dir, fmt.Sprint(i))
		dests = append(dests, dest)
		b.Add(Item{URLs: []string{server.URL}, Dest: dest})
	}
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	b.Abort()
	b.Abort()

	for _, dest := range dests {
		if _, err := os.Stat(dest); err != nil {
			t.Errorf("abort removed completed file %s: %v", dest, err)
		}
	}
	for _, task := range b.Tasks() {
		if task.Status() != StatusComplete {
			t.Errorf("abort changed status to %v", task.Status())
		}
	}
}

func TestBatchAbortBeforeRun(t *testing.T) {
	b := NewBatch(testOpts())
	b.Add(Item{URLs: []string{"http://127.0.0.1:1"}, Dest: filepath.Join(t.TempDir(), "x")})
	b.Abort()
	if err := b.Run(context.Background()); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestBatchAbortDuringRun(t *testing.T) {
	started := make(chan struct{}, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		started <- struct{}{}
		<-r.Context().Done()
	}))
	defer server.Close()

	opts := testOpts()
	opts.Workers = 2
	dir := t.TempDir()
	b := NewBatch(opts)
	for i := 0; i < 6; i++ {
		b.Add(Item{URLs: []string{server.URL}, Dest: filepath.Join(dir, fmt.Sprint(i))})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()

	<-started
	b.Abort()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrAborted) {
			t.Errorf("expected ErrAborted, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not stop after abort")
	}

	assertNoPartFiles(t, dir)
	for _, task := range b.Tasks() {
		if task.Status() == StatusComplete {
			t.Errorf("%s completed despite abort", task.Item().Dest)
		}
	}
}

func TestFetchEmpty(t *testing.T) {
	if err := Fetch(context.Background(), nil, testOpts()); err != nil {
		t.Fatalf("Fetch(nil): %v", err)
	}
}
