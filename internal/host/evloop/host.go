// Package evloop adapts a [eventloop.Loop] to the scheduler's host
// interface: the fast path is a microtask, the slow path a zero-or-more
// millisecond timeout, so cooperative batches interleave with the loop's other
// timers and I/O callbacks.
package evloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-eventloop"
)

// Host schedules drain cycles on an event loop. All callbacks run on the
// loop goroutine.
type Host struct {
	loop *eventloop.Loop
	js   *eventloop.JS
}

// New binds a Host to loop. The loop may or may not be running yet.
func New(loop *eventloop.Loop) (*Host, error) {
	js, err := eventloop.NewJS(loop)
	if err != nil {
		return nil, fmt.Errorf("evloop: create js adapter: %w", err)
	}
	return &Host{loop: loop, js: js}, nil
}

// Loop returns the underlying event loop.
func (h *Host) Loop() *eventloop.Loop { return h.loop }

// ScheduleFast queues fn as a microtask.
func (h *Host) ScheduleFast(fn func()) error {
	if err := h.js.QueueMicrotask(fn); err != nil {
		return fmt.Errorf("evloop: queue microtask: %w", err)
	}
	// The microtask ring does not wake a sleeping loop, an empty task does.
	if err := h.loop.Submit(func() {}); err != nil {
		return fmt.Errorf("evloop: wake loop: %w", err)
	}
	return nil
}

// ScheduleSlow queues fn as a timeout, truncated to whole milliseconds.
func (h *Host) ScheduleSlow(delay time.Duration, fn func()) error {
	if _, err := h.js.SetTimeout(fn, int(delay/time.Millisecond)); err != nil {
		return fmt.Errorf("evloop: set timeout: %w", err)
	}
	return nil
}

// Submit runs fn on the loop goroutine as an ordinary task.
func (h *Host) Submit(fn func()) error {
	if err := h.loop.Submit(fn); err != nil {
		return fmt.Errorf("evloop: submit: %w", err)
	}
	return nil
}
