// Package engine maintains the bounded, time-decaying visible key set.
//
// The engine is a single-owner state machine: exactly one goroutine (Run)
// mutates the set, consuming device events and sweep ticks through the
// same select loop. Readers only ever see immutable snapshots published at
// notification time.
//
// Per-key lifecycle: Up → Down → (Down|RepeatHeld) → Up → Expiring →
// Removed. Modifiers are removed immediately on release; non-modifiers
// linger until the decay timeout evicts them.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"keyosd/internal/input"
	"keyosd/internal/keymap"
	"keyosd/internal/logging"
	"keyosd/internal/metrics"
)

// HeldKey is one entry of the visible key set.
type HeldKey struct {
	// Key is the canonical key identity.
	Key keymap.Key

	// LastActive is refreshed on press and repeat, and marks the start of
	// the decay window once the key is released.
	LastActive time.Time

	// Down reports whether the key is physically held.
	Down bool
}

// Snapshot is an immutable, insertion-ordered copy of the visible key set.
type Snapshot []HeldKey

// Options configures an Engine.
type Options struct {
	// MaxKeys is the capacity bound of the visible set. Defaults to 5.
	MaxKeys int

	// Timeout is how long a released non-modifier stays visible.
	// Defaults to 2 s.
	Timeout time.Duration

	// SweepInterval drives the periodic eviction pass. Clamped to
	// Timeout; defaults to 100 ms.
	SweepInterval time.Duration

	// Metrics, when set, receives event and eviction counters.
	Metrics *metrics.Keyosd
}

// Engine consumes the merged device event stream and publishes visible key
// set snapshots.
type Engine struct {
	events <-chan input.RawEvent
	sweep  time.Duration
	m      *metrics.Keyosd
	log    *logging.Logger

	// Hot-reloadable settings, read by the Run goroutine each use.
	maxKeys atomic.Int64
	timeout atomic.Int64 // nanoseconds

	paused atomic.Bool

	// keys is owned exclusively by the Run goroutine.
	keys []HeldKey

	now func() time.Time

	mu   sync.Mutex
	subs []chan Snapshot
	last Snapshot
	done chan struct{}
}

// New creates an Engine consuming events. Call Run to start it.
func New(events <-chan input.RawEvent, opts Options) *Engine {
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 100 * time.Millisecond
	}
	if opts.SweepInterval > opts.Timeout {
		opts.SweepInterval = opts.Timeout
	}

	e := &Engine{
		events: events,
		sweep:  opts.SweepInterval,
		m:      opts.Metrics,
		log:    logging.Default().WithComponent("engine"),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	e.maxKeys.Store(int64(opts.MaxKeys))
	e.timeout.Store(int64(opts.Timeout))
	return e
}

// Configure updates the capacity bound and decay timeout at runtime, e.g.
// after a configuration hot reload. Takes effect from the next event or
// sweep.
func (e *Engine) Configure(maxKeys int, timeout time.Duration) {
	if maxKeys > 0 {
		e.maxKeys.Store(int64(maxKeys))
	}
	if timeout > 0 {
		e.timeout.Store(int64(timeout))
	}
}

// SetPaused freezes or resumes the visible set. While paused, incoming
// events are drained and discarded and no notifications are emitted.
func (e *Engine) SetPaused(paused bool) {
	e.paused.Store(paused)
}

// Paused reports the pause state.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// Subscribe registers a snapshot subscriber. Delivery is latest-wins: a
// slow subscriber sees the newest state, never a backlog, and never a lock
// on live state. The channel closes when the engine terminates.
func (e *Engine) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// Snapshot returns the most recently published snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Done is closed once Run has drained and exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Run consumes events and sweep ticks until ctx is canceled and the event
// channel is drained, or the channel is closed by the producer. Buffered
// events are always applied before exit so the final keystroke is not
// lost.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	defer e.closeSubs()

	ticker := time.NewTicker(e.sweep)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-e.events:
			if !ok {
				return
			}
			if e.handleEvent(ev) {
				e.publish()
			}
		case <-ticker.C:
			if e.paused.Load() {
				continue
			}
			if e.sweepExpired(e.now()) {
				e.publish()
			}
		case <-ctx.Done():
			e.drain()
			return
		}
	}
}

// drain applies whatever the producers already buffered, without waiting
// for more.
func (e *Engine) drain() {
	for {
		select {
		case ev, ok := <-e.events:
			if !ok {
				return
			}
			if e.handleEvent(ev) {
				e.publish()
			}
		default:
			return
		}
	}
}

// handleEvent applies one raw event and reports whether the visible set
// changed in a way subscribers should see. Timestamp-only refreshes do not
// count.
func (e *Engine) handleEvent(ev input.RawEvent) bool {
	if e.paused.Load() {
		return false
	}

	key := keymap.Translate(ev.Code)
	now := ev.Time
	if now.IsZero() {
		now = e.now()
	}

	switch ev.Action {
	case input.ActionDown:
		if e.m != nil {
			e.m.EventsDown.Inc()
		}
		return e.press(key, now)
	case input.ActionRepeat:
		if e.m != nil {
			e.m.EventsRepeat.Inc()
		}
		e.refresh(key.Code, now)
		return false
	case input.ActionUp:
		if e.m != nil {
			e.m.EventsUp.Inc()
		}
		return e.release(key, now)
	}
	return false
}

// press records a key going down: refresh on fast re-press, insert at the
// tail otherwise, evicting per the capacity policy.
func (e *Engine) press(key keymap.Key, now time.Time) bool {
	for i := range e.keys {
		if e.keys[i].Key.Code == key.Code {
			changed := !e.keys[i].Down
			e.keys[i].Down = true
			e.keys[i].LastActive = now
			return changed
		}
	}

	// Expired entries go first so they never block a fresh key.
	e.sweepExpired(now)

	max := int(e.maxKeys.Load())
	if len(e.keys) >= max {
		e.evictOldestReleased(max)
	}

	e.keys = append(e.keys, HeldKey{Key: key, LastActive: now, Down: true})
	e.updateVisibleGauge()
	return true
}

// evictOldestReleased removes oldest-insertion-first entries that are not
// physically held until the set is below max. If every entry is held the
// set is left alone: capacity is soft for held keys, since a held key
// vanishing from the display would show false information.
func (e *Engine) evictOldestReleased(max int) {
	for i := 0; i < len(e.keys) && len(e.keys) >= max; {
		if e.keys[i].Down {
			i++
			continue
		}
		e.keys = append(e.keys[:i], e.keys[i+1:]...)
		if e.m != nil {
			e.m.EvictionsCapacity.Inc()
		}
	}
}

// refresh updates the activity timestamp of an existing entry. Repeats for
// keys not in the set are ignored: no new entry, no capacity change.
func (e *Engine) refresh(code evdev.EvCode, now time.Time) {
	for i := range e.keys {
		if e.keys[i].Key.Code == code {
			e.keys[i].LastActive = now
			return
		}
	}
}

// release marks a key up. Modifiers leave immediately; non-modifiers stay
// and start their decay window.
func (e *Engine) release(key keymap.Key, now time.Time) bool {
	for i := range e.keys {
		if e.keys[i].Key.Code != key.Code {
			continue
		}
		if e.keys[i].Key.Modifier {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			e.updateVisibleGauge()
			return true
		}
		changed := e.keys[i].Down
		e.keys[i].Down = false
		e.keys[i].LastActive = now
		return changed
	}
	return false
}

// sweepExpired evicts released entries older than the decay timeout and
// reports whether anything was removed.
func (e *Engine) sweepExpired(now time.Time) bool {
	timeout := time.Duration(e.timeout.Load())
	removed := false
	for i := 0; i < len(e.keys); {
		k := e.keys[i]
		if !k.Down && now.Sub(k.LastActive) > timeout {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			removed = true
			if e.m != nil {
				e.m.EvictionsTimeout.Inc()
			}
			continue
		}
		i++
	}
	if removed {
		e.updateVisibleGauge()
	}
	return removed
}

func (e *Engine) updateVisibleGauge() {
	if e.m != nil {
		e.m.KeysVisible.Set(int64(len(e.keys)))
	}
}

// publish hands an immutable copy of the set to every subscriber,
// latest-wins.
func (e *Engine) publish() {
	snap := make(Snapshot, len(e.keys))
	copy(snap, e.keys)

	e.mu.Lock()
	e.last = snap
	subs := e.subs
	e.mu.Unlock()

	if e.m != nil {
		e.m.Notifications.Inc()
	}

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale pending snapshot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (e *Engine) closeSubs() {
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}
