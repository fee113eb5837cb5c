package progress

import (
	"sort"
	"sync"
	"time"
)

// Update is a message from a running unit of work to the Tracker.
// Phase groups units into one aggregate (e.g. "libraries", "assets").
// Key identifies the unit inside the phase, typically a destination path.
type Update struct {
	Phase    string
	Key      string
	Progress float64 // fraction in [0,1]
	Speed    float64 // bytes per second, 0 when idle
	Bytes    int64   // bytes transferred so far
	Done     bool    // terminal; speed is ignored afterwards
	Failed   bool
}

// Snapshot is an immutable view of one phase.
type Snapshot struct {
	Phase     string
	Progress  float64 // mean of unit progress
	Speed     float64 // sum of speeds of units still transferring
	Bytes     int64
	Total     int
	Completed int
	Failed    int
}

// Options configures a Tracker.
type Options struct {
	// Interval is how often snapshots are pushed to subscribers.
	// Default: 250ms
	Interval time.Duration

	// Inbox is the update buffer size.
	// Default: 1024
	Inbox int
}

type unit struct {
	progress float64
	speed    float64
	bytes    int64
	done     bool
	failed   bool
}

type phase struct {
	units map[string]*unit
	dirty bool
}

type query struct {
	phase string
	reply chan Snapshot
}

type subscribe struct {
	ch chan Snapshot
}

type unsubscribe struct {
	ch chan Snapshot
}

// Tracker is the single owner of progress state. Units send Updates; the
// Tracker folds them in on its own goroutine and periodically pushes
// Snapshots of every changed phase to subscribers.
type Tracker struct {
	opts  Options
	inbox chan any
	done  chan struct{}
	exit  chan struct{}
	once  sync.Once

	// closeMu orders subscriptions against Close so no subscribe message
	// is queued after the loop has drained the inbox.
	closeMu sync.Mutex
	closed  bool

	mu    sync.Mutex
	final map[string]Snapshot
}

// NewTracker starts a Tracker. Call Close to stop it.
func NewTracker(opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.Inbox <= 0 {
		opts.Inbox = 1024
	}

	t := &Tracker{
		opts:  opts,
		inbox: make(chan any, opts.Inbox),
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}
	go t.loop()
	return t
}

// Report sends an update. It is safe to call on a nil or closed Tracker.
func (t *Tracker) Report(u Update) {
	if t == nil {
		return
	}
	select {
	case t.inbox <- u:
	case <-t.done:
	}
}

// Subscribe returns a channel of snapshots and a function that ends the
// subscription. Slow subscribers miss intermediate snapshots. The channel
// is closed when the Tracker closes.
func (t *Tracker) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Snapshot, buffer)
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	// The loop keeps draining the inbox until done is closed, which
	// cannot happen while closeMu is held.
	t.inbox <- subscribe{ch: ch}
	t.closeMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			select {
			case t.inbox <- unsubscribe{ch: ch}:
			case <-t.done:
			}
		})
	}
	return ch, cancel
}

// Snapshot returns the current state of a phase. Updates reported earlier
// by the same goroutine are always reflected.
func (t *Tracker) Snapshot(name string) Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case <-t.done:
		return t.finalSnapshot(name)
	case t.inbox <- query{phase: name, reply: reply}:
	}
	select {
	case s := <-reply:
		return s
	case <-t.exit:
		select {
		case s := <-reply:
			return s
		default:
			return t.finalSnapshot(name)
		}
	}
}

func (t *Tracker) finalSnapshot(name string) Snapshot {
	<-t.exit
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.final[name]; ok {
		return s
	}
	return Snapshot{Phase: name}
}

// Close flushes pending updates, sends a last snapshot of every changed
// phase and closes all subscriptions.
func (t *Tracker) Close() {
	t.once.Do(func() {
		t.closeMu.Lock()
		t.closed = true
		t.closeMu.Unlock()
		close(t.done)
	})
	<-t.exit
}

func (t *Tracker) loop() {
	defer close(t.exit)

	phases := make(map[string]*phase)
	subs := make(map[chan Snapshot]struct{})

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	handle := func(msg any) {
		switch m := msg.(type) {
		case Update:
			apply(phases, m)
		case query:
			m.reply <- snapshotOf(m.phase, phases[m.phase])
		case subscribe:
			subs[m.ch] = struct{}{}
		case unsubscribe:
			if _, ok := subs[m.ch]; ok {
				delete(subs, m.ch)
				close(m.ch)
			}
		}
	}

	for {
		select {
		case msg := <-t.inbox:
			handle(msg)
		case <-ticker.C:
			publish(phases, subs)
		case <-t.done:
			for {
				select {
				case msg := <-t.inbox:
					handle(msg)
					continue
				default:
				}
				break
			}
			publish(phases, subs)

			final := make(map[string]Snapshot, len(phases))
			for name, p := range phases {
				final[name] = snapshotOf(name, p)
			}
			t.mu.Lock()
			t.final = final
			t.mu.Unlock()

			for ch := range subs {
				close(ch)
			}
			return
		}
	}
}

func apply(phases map[string]*phase, u Update) {
	p, ok := phases[u.Phase]
	if !ok {
		p = &phase{units: make(map[string]*unit)}
		phases[u.Phase] = p
	}
	p.dirty = true

	cur, ok := p.units[u.Key]
	if !ok {
		cur = &unit{}
		p.units[u.Key] = cur
	}
	if cur.done {
		return
	}

	// Progress never moves backwards before a unit is terminal.
	if u.Progress > cur.progress {
		cur.progress = min(u.Progress, 1)
	}
	if u.Bytes > cur.bytes {
		cur.bytes = u.Bytes
	}
	cur.speed = u.Speed

	if u.Done {
		cur.done = true
		cur.failed = u.Failed
		cur.speed = 0
		if !u.Failed {
			cur.progress = 1
		}
	}
}

func publish(phases map[string]*phase, subs map[chan Snapshot]struct{}) {
	names := make([]string, 0, len(phases))
	for name, p := range phases {
		if p.dirty {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		p := phases[name]
		p.dirty = false
		s := snapshotOf(name, p)
		for ch := range subs {
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func snapshotOf(name string, p *phase) Snapshot {
	s := Snapshot{Phase: name}
	if p == nil || len(p.units) == 0 {
		return s
	}

	var sum float64
	for _, u := range p.units {
		sum += u.progress
		s.Bytes += u.bytes
		if !u.done {
			s.Speed += u.speed
		}
		if u.done && !u.failed {
			s.Completed++
		}
		if u.failed {
			s.Failed++
		}
	}
	s.Total = len(p.units)
	s.Progress = sum / float64(s.Total)
	return s
}
