package downloader

import (
	"context"
	"errors"
	"sync"

	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/progress"
)

type batchState int

const (
	batchIdle batchState = iota
	batchRunning
	batchFinished
)

// Batch runs many tasks under a bounded worker pool.
type Batch struct {
	opts Options

	mu      sync.Mutex
	tasks   []*Task
	seen    map[string]struct{}
	state   batchState
	aborted bool
	cancel  context.CancelFunc
	result  error
}

// NewBatch creates an empty batch.
func NewBatch(opts Options) *Batch {
	return &Batch{
		opts: opts.withDefaults(),
		seen: make(map[string]struct{}),
	}
}

// Add queues items. Items whose Dest is already queued are ignored.
func (b *Batch) Add(items ...Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range items {
		if _, ok := b.seen[item.Dest]; ok {
			continue
		}
		b.seen[item.Dest] = struct{}{}
		b.tasks = append(b.tasks, NewTask(item, b.opts))
	}
}

// Len returns the number of queued tasks.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks)
}

// Tasks returns the batch's tasks in insertion order.
func (b *Batch) Tasks() []*Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Task, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Progress returns the mean task progress and the summed speed of tasks
// currently transferring.
func (b *Batch) Progress() (float64, float64) {
	tasks := b.Tasks()
	if len(tasks) == 0 {
		return 0, 0
	}
	var sum, speed float64
	for _, t := range tasks {
		p, s := t.Progress()
		sum += p
		if t.Status() == StatusRunning {
			speed += s
		}
	}
	return sum / float64(len(tasks)), speed
}

// Run executes every task and waits for all of them. It returns a
// *BatchError listing each failed task, ErrAborted after Abort, or the
// context's error if ctx ended first. A batch runs once: later calls
// return the first result, or ErrBatchRunning while it is in progress.
func (b *Batch) Run(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case batchRunning:
		b.mu.Unlock()
		return ErrBatchRunning
	case batchFinished:
		err := b.result
		b.mu.Unlock()
		return err
	}
	if b.aborted {
		b.state = batchFinished
		b.result = ErrAborted
		b.mu.Unlock()
		return ErrAborted
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.cancel = cancel
	b.state = batchRunning
	tasks := make([]*Task, len(b.tasks))
	copy(tasks, b.tasks)
	b.mu.Unlock()

	for _, t := range tasks {
		b.opts.Tracker.Report(progress.Update{Phase: b.opts.Phase, Key: t.item.Dest})
	}

	log.Info("batch started", "phase", b.opts.Phase, "tasks", len(tasks), "workers", b.opts.Workers)

	var (
		errMu sync.Mutex
		errs  []error
	)

	jobs := make(chan *Task, b.opts.Workers)
	var wg sync.WaitGroup

	for i := 0; i < b.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				if ctx.Err() != nil {
					continue // drop queued work after abort
				}
				if _, err := t.Run(ctx); err != nil {
					if ctx.Err() == nil {
						log.Warn("fetch failed", logging.KeyDest, t.item.Dest, logging.KeyError, err)
					}
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range tasks {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	b.mu.Lock()
	var err error
	switch {
	case b.aborted:
		err = ErrAborted
	case ctx.Err() != nil:
		err = ctx.Err()
	case len(errs) > 0:
		err = &BatchError{Errs: errs}
	}
	b.state = batchFinished
	b.cancel = nil
	b.result = err
	b.mu.Unlock()

	switch {
	case errors.Is(err, ErrAborted):
		log.Info("batch aborted", "phase", b.opts.Phase)
	case err == nil:
		log.Info("batch complete", "phase", b.opts.Phase, "tasks", len(tasks))
	}
	return err
}

// Abort stops a running batch: queued tasks are dropped and in-flight
// tasks are cancelled. It is a no-op once Run has returned.
func (b *Batch) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == batchFinished || b.aborted {
		return
	}
	b.aborted = true
	if b.cancel != nil {
		b.cancel()
	}
}

// Fetch runs items as a single batch.
func Fetch(ctx context.Context, items []Item, opts Options) error {
	b := NewBatch(opts)
	b.Add(items...)
	return b.Run(ctx)
}
