package downloader

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	mhttp "github.com/kiyonya/miocore/internal/http"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/progress"
	"github.com/kiyonya/miocore/pkg/casstore"
)

var log = logging.L("downloader")

// Item is one file to fetch. Dest is its identity.
type Item struct {
	URLs      []string
	Dest      string
	Hash      string // optional hex SHA-1 or SHA-256
	Size      int64  // optional, used for progress when the server sends no length
	Overwrite bool
}

// Status is the lifecycle state of a Task.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures tasks and batches.
type Options struct {
	// Workers is the number of parallel fetch workers in a Batch.
	// Default: 8
	Workers int

	// MaxRetries is the number of attempts per candidate URL.
	// Default: 3
	MaxRetries int

	// RetryDelay is the fixed delay between attempts.
	// Default: 500ms
	RetryDelay time.Duration

	// Client performs the transfers. Default: a client with DefaultOptions.
	Client *mhttp.Client

	// Cache is an optional content-addressed cache consulted before the
	// network for items with a hash, and filled after verified downloads.
	Cache *casstore.Store

	// Tracker receives progress updates. Optional.
	Tracker *progress.Tracker

	// Phase is the progress phase name, e.g. "libraries".
	Phase string
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.Client == nil {
		o.Client = mhttp.NewClient(mhttp.DefaultOptions())
	}
	if o.Phase == "" {
		o.Phase = "fetch"
	}
	return o
}

// Task fetches a single Item.
type Task struct {
	item Item
	opts Options

	status atomic.Int32

	mu       sync.Mutex
	progress float64
	speed    float64
}

// NewTask creates a task for item.
func NewTask(item Item, opts Options) *Task {
	item.Hash = casstore.Normalize(item.Hash)
	return &Task{item: item, opts: opts.withDefaults()}
}

// Item returns the task's item.
func (t *Task) Item() Item { return t.item }

// Status returns the current status.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// Progress returns the completed fraction and the current speed in bytes/s.
func (t *Task) Progress() (float64, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress, t.speed
}

// Run fetches the item and returns its destination path.
func (t *Task) Run(ctx context.Context) (string, error) {
	t.status.Store(int32(StatusRunning))

	dest, err := t.run(ctx)
	if err != nil {
		t.status.Store(int32(StatusFailed))
		t.setProgress(-1, 0)
		t.report(0, true, true)
		return "", err
	}

	t.status.Store(int32(StatusComplete))
	t.mu.Lock()
	t.progress, t.speed = 1, 0
	t.mu.Unlock()
	t.report(0, true, false)
	return dest, nil
}

func (t *Task) run(ctx context.Context) (string, error) {
	item := t.item

	if !item.Overwrite {
		ok, err := t.existingValid()
		if err != nil {
			return "", &NetworkError{Dest: item.Dest, Err: err}
		}
		if ok {
			log.Debug("already present", logging.KeyDest, item.Dest)
			return item.Dest, nil
		}
	}

	if err := os.Remove(item.Dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", &NetworkError{Dest: item.Dest, Err: fmt.Errorf("remove stale file: %w", err)}
	}
	if err := os.MkdirAll(filepath.Dir(item.Dest), 0o755); err != nil {
		return "", &NetworkError{Dest: item.Dest, Err: err}
	}

	if t.restoreFromCache(ctx) {
		return item.Dest, nil
	}

	if len(item.URLs) == 0 {
		return "", &NetworkError{Dest: item.Dest, Err: errors.New("no candidate URLs")}
	}

	var lastErr error
	for _, url := range item.URLs {
		for attempt := 1; attempt <= t.opts.MaxRetries; attempt++ {
			if attempt > 1 {
				if err := sleep(ctx, t.opts.RetryDelay); err != nil {
					return "", &NetworkError{Dest: item.Dest, URL: url, Err: err}
				}
			}

			err := t.attempt(ctx, url)
			if err == nil {
				t.storeInCache(ctx)
				return item.Dest, nil
			}
			if ctx.Err() != nil {
				return "", &NetworkError{Dest: item.Dest, URL: url, Err: ctx.Err()}
			}

			log.Debug("attempt failed",
				logging.KeyDest, item.Dest,
				logging.KeyURL, url,
				logging.KeyAttempt, attempt,
				logging.KeyError, err)
			lastErr = err

			if errors.Is(err, mhttp.ErrNotFound) {
				break // try the next URL
			}
		}
	}

	var integrity *IntegrityError
	if errors.As(lastErr, &integrity) {
		return "", integrity
	}
	return "", &NetworkError{Dest: item.Dest, URL: item.URLs[len(item.URLs)-1], Err: lastErr}
}

// existingValid reports whether Dest already holds acceptable content.
func (t *Task) existingValid() (bool, error) {
	info, err := os.Stat(t.item.Dest)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if t.item.Hash == "" {
		return t.item.Size <= 0 || info.Size() == t.item.Size, nil
	}
	return casstore.FileMatches(t.item.Dest, t.item.Hash)
}

// attempt performs one download from url into Dest.
func (t *Task) attempt(ctx context.Context, url string) error {
	resp, err := t.opts.Client.Open(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	if total <= 0 {
		total = t.item.Size
	}

	var h hash.Hash
	if t.item.Hash != "" {
		h, err = casstore.NewHash(t.item.Hash)
		if err != nil {
			return err
		}
	}

	return t.writeVerified(resp.Body, url, total, h)
}

// writeVerified streams r into a part file, checks the digest and renames
// the part file onto Dest. The part file is removed on every failure.
func (t *Task) writeVerified(r io.Reader, url string, total int64, h hash.Hash) (err error) {
	dir, base := filepath.Split(t.item.Dest)
	part, err := os.CreateTemp(dir, base+".*.part")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			part.Close()
			os.Remove(part.Name())
		}
	}()

	pw := &progressWriter{task: t, total: total, start: time.Now()}
	writers := []io.Writer{part, pw}
	if h != nil {
		writers = append(writers, h)
	}

	if _, err = io.Copy(io.MultiWriter(writers...), r); err != nil {
		return err
	}
	if err = part.Close(); err != nil {
		return err
	}

	if h != nil {
		if got := casstore.Sum(h); got != t.item.Hash {
			return &IntegrityError{Dest: t.item.Dest, URL: url, Want: t.item.Hash, Got: got}
		}
	} else if t.item.Size > 0 && pw.written != t.item.Size {
		return &IntegrityError{
			Dest: t.item.Dest,
			URL:  url,
			Want: fmt.Sprintf("%d bytes", t.item.Size),
			Got:  fmt.Sprintf("%d bytes", pw.written),
		}
	}

	return os.Rename(part.Name(), t.item.Dest)
}

func (t *Task) restoreFromCache(ctx context.Context) bool {
	if t.opts.Cache == nil || t.item.Hash == "" {
		return false
	}
	ok, err := t.opts.Cache.Has(ctx, t.item.Hash)
	if err != nil || !ok {
		return false
	}

	dir, base := filepath.Split(t.item.Dest)
	part, err := os.CreateTemp(dir, base+".*.part")
	if err != nil {
		return false
	}
	_, err = t.opts.Cache.CopyTo(ctx, t.item.Hash, part)
	if cerr := part.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(part.Name(), t.item.Dest)
	}
	if err != nil {
		os.Remove(part.Name())
		log.Warn("cache restore failed", logging.KeyDest, t.item.Dest, logging.KeyError, err)
		return false
	}

	log.Debug("restored from cache", logging.KeyDest, t.item.Dest)
	return true
}

func (t *Task) storeInCache(ctx context.Context) {
	if t.opts.Cache == nil || t.item.Hash == "" {
		return
	}
	if err := t.opts.Cache.PutFile(ctx, t.item.Hash, t.item.Dest); err != nil {
		log.Warn("cache store failed", logging.KeyDest, t.item.Dest, logging.KeyError, err)
	}
}

// setProgress records progress without ever moving it backwards. A
// negative fraction only updates the speed.
func (t *Task) setProgress(fraction, speed float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fraction > t.progress {
		t.progress = math.Min(fraction, 1)
	}
	t.speed = speed
}

func (t *Task) report(bytes int64, done, failed bool) {
	if t.opts.Tracker == nil {
		return
	}
	p, s := t.Progress()
	t.opts.Tracker.Report(progress.Update{
		Phase:    t.opts.Phase,
		Key:      t.item.Dest,
		Progress: p,
		Speed:    s,
		Bytes:    bytes,
		Done:     done,
		Failed:   failed,
	})
}

const reportInterval = 100 * time.Millisecond

// progressWriter feeds transfer progress to its task.
type progressWriter struct {
	task    *Task
	total   int64
	written int64

	start      time.Time
	lastReport time.Time
	lastBytes  int64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))

	now := time.Now()
	if now.Sub(w.lastReport) < reportInterval && w.written != w.total {
		return len(p), nil
	}

	since := w.lastReport
	if since.IsZero() {
		since = w.start
	}
	elapsed := now.Sub(since).Seconds()
	if elapsed <= 0 {
		elapsed = reportInterval.Seconds()
	}
	speed := float64(w.written-w.lastBytes) / elapsed
	w.lastReport, w.lastBytes = now, w.written

	fraction := -1.0
	if w.total > 0 {
		// Full completion is only reported once the file is verified.
		fraction = math.Min(float64(w.written)/float64(w.total), 0.99)
	}
	w.task.setProgress(fraction, speed)
	w.task.report(w.written, false, false)
	return len(p), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
