package relay

import (
	"strings"
	"sync"
	"time"
)

// DefaultFlushInterval is how long reasoning text may be staged before an
// incoming thinking delta forces it into the reasoning buffer.
const DefaultFlushInterval = 500 * time.Millisecond

// Accumulator owns the mutable state of one in-progress message and applies
// Events to it. Visible text is applied immediately; reasoning text is staged
// and flushed in batches.
//
// Apply and Flush are meant to be called from a single consumer goroutine.
// The mutex guards against concurrent Snapshot readers and timer-driven
// flushes delivered from elsewhere.
type Accumulator struct {
	mu        sync.Mutex
	text      strings.Builder
	thinking  strings.Builder
	pending   strings.Builder
	refs      []Reference
	seen      map[int]struct{}
	err       *EventError
	lastFlush time.Time

	interval time.Duration
	now      func() time.Time
	onChange func(Snapshot)
}

// AccumulatorOption configures an [Accumulator].
type AccumulatorOption func(*Accumulator)

// WithFlushInterval overrides [DefaultFlushInterval].
func WithFlushInterval(d time.Duration) AccumulatorOption {
	return func(a *Accumulator) { a.interval = d }
}

// WithNow sets the clock. Useful for testing batching boundaries.
func WithNow(now func() time.Time) AccumulatorOption {
	return func(a *Accumulator) { a.now = now }
}

// WithChangeHandler sets a callback invoked with a fresh Snapshot after every
// observable change. It is called without the lock held.
func WithChangeHandler(fn func(Snapshot)) AccumulatorOption {
	return func(a *Accumulator) { a.onChange = fn }
}

// NewAccumulator creates an empty Accumulator. The flush timestamp starts at
// creation time.
func NewAccumulator(opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		seen:     make(map[int]struct{}),
		interval: DefaultFlushInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	a.lastFlush = a.now()
	return a
}

// Apply applies one event. It returns true when the event terminates the
// stream (EventError or EventDone).
func (a *Accumulator) Apply(e Event) bool {
	a.mu.Lock()
	changed, terminal := a.apply(e)
	var snap Snapshot
	if changed {
		snap = a.snapshot()
	}
	a.mu.Unlock()

	if changed {
		a.notify(snap)
	}
	return terminal
}

func (a *Accumulator) apply(e Event) (changed, terminal bool) {
	switch e := e.(type) {
	case EventTextDelta:
		if e.Delta == "" {
			return false, false
		}
		a.text.WriteString(e.Delta)
		return true, false
	case EventThinkingDelta:
		a.pending.WriteString(e.Delta)
		if a.now().Sub(a.lastFlush) > a.interval {
			return a.flush(), false
		}
		return false, false
	case EventReference:
		if _, ok := a.seen[e.Reference.Index]; ok {
			return false, false
		}
		a.seen[e.Reference.Index] = struct{}{}
		a.refs = append(a.refs, e.Reference)
		return true, false
	case EventError:
		if a.err != nil {
			return false, true
		}
		err := e
		a.err = &err
		return true, true
	case EventDone:
		return false, true
	default:
		return false, false
	}
}

// Flush moves staged reasoning text into the reasoning buffer and resets the
// flush timestamp. It reports whether any text was moved.
func (a *Accumulator) Flush() bool {
	a.mu.Lock()
	changed := a.flush()
	var snap Snapshot
	if changed {
		snap = a.snapshot()
	}
	a.mu.Unlock()

	if changed {
		a.notify(snap)
	}
	return changed
}

func (a *Accumulator) flush() bool {
	a.lastFlush = a.now()
	if a.pending.Len() == 0 {
		return false
	}
	a.thinking.WriteString(a.pending.String())
	a.pending.Reset()
	return true
}

// NextFlush reports how long until staged reasoning text is due, and whether
// there is any staged text at all.
func (a *Accumulator) NextFlush() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending.Len() == 0 {
		return 0, false
	}
	wait := a.interval - a.now().Sub(a.lastFlush)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// Snapshot returns a copy of the current state. Staged reasoning text that
// has not been flushed is not included.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Accumulator) snapshot() Snapshot {
	s := Snapshot{
		Text:     a.text.String(),
		Thinking: a.thinking.String(),
	}
	if len(a.refs) > 0 {
		s.References = make([]Reference, len(a.refs))
		copy(s.References, a.refs)
	}
	if a.err != nil {
		err := *a.err
		s.Err = &err
	}
	return s
}

func (a *Accumulator) notify(s Snapshot) {
	if a.onChange != nil {
		a.onChange(s)
	}
}
