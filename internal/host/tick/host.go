// Package tick implements a goroutine-backed host for the scheduler. Fast
// callbacks run as soon as the host goroutine is free; slow callbacks run on a
// later tick of a [TickClock], after any fast work queued in the meantime.
package tick

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrStopped        = errors.New("tick: host stopped")
	ErrAlreadyRunning = errors.New("tick: host already running")
)

type slowCall struct {
	due int64 // tick count at which fn becomes runnable
	fn  func()
}

// Host runs every callback on the goroutine calling [Host.Run].
type Host struct {
	interval time.Duration
	clock    *TickClock

	mu      sync.Mutex
	fast    []func()
	slow    []slowCall
	stopped bool

	notify  chan struct{}
	done    chan struct{}
	stop    sync.Once
	running atomic.Bool
}

// New creates a host ticking at the given interval. Non-positive intervals
// default to 5ms.
func New(interval time.Duration) *Host {
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	return &Host{
		interval: interval,
		clock:    NewTickClock(1),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// ScheduleFast queues fn ahead of any slow callback.
func (h *Host) ScheduleFast(fn func()) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrStopped
	}
	h.fast = append(h.fast, fn)
	h.mu.Unlock()
	h.wake()
	return nil
}

// ScheduleSlow queues fn to run no earlier than the next tick, or after delay
// rounded up to whole ticks.
func (h *Host) ScheduleSlow(delay time.Duration, fn func()) error {
	ticks := int64((delay + h.interval - 1) / h.interval)
	if ticks < 1 {
		ticks = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrStopped
	}
	h.slow = append(h.slow, slowCall{due: h.clock.Count() + ticks, fn: fn})
	return nil
}

// Ticks returns the number of ticks elapsed since Run started.
func (h *Host) Ticks() int64 { return h.clock.Count() }

// Run processes callbacks until ctx is done or Stop is called. Callbacks still
// queued when it returns are dropped, and later requests fail with
// [ErrStopped].
func (h *Host) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	h.clock.Start(h.interval)
	defer func() {
		h.markStopped()
		h.clock.Stop()
	}()

	for {
		h.runFast()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case <-h.notify:
		case <-h.clock.Ch:
			h.runDue(h.clock.Count())
		}
	}
}

// Stop makes Run return after the callback currently executing, if any.
func (h *Host) Stop() {
	h.stop.Do(func() {
		h.markStopped()
		close(h.done)
	})
}

func (h *Host) markStopped() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

func (h *Host) wake() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// runFast drains the fast queue, including callbacks queued while it runs.
func (h *Host) runFast() {
	for {
		h.mu.Lock()
		batch := h.fast
		h.fast = nil
		h.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// runDue runs the slow callbacks due at tick now, in registration order,
// draining fast work after each one.
func (h *Host) runDue(now int64) {
	for {
		fn, ok := h.popDue(now)
		if !ok {
			return
		}
		fn()
		h.runFast()
	}
}

func (h *Host) popDue(now int64) (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, c := range h.slow {
		if c.due <= now {
			h.slow = append(h.slow[:i], h.slow[i+1:]...)
			return c.fn, true
		}
	}
	return nil, false
}
