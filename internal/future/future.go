// Package future drives cooperative futures on a scheduler.
//
// A [Future] is polled from a drain cycle. When it is not ready it keeps the
// [Waker] it was handed and calls Wake once it can make progress, which puts
// its task back on the scheduler. A task is queued at most once no matter how
// many times it is woken before its next poll.
package future

import (
	"sync/atomic"

	"coopq/internal/sched"
)

// Future is a unit of work that completes over several polls. Poll reports
// true once the future is finished; it is never polled again after that.
type Future interface {
	Poll(w *Waker) bool
}

// Func adapts a function to a Future.
type Func func(w *Waker) bool

func (f Func) Poll(w *Waker) bool { return f(w) }

// Enqueuer is the subset of [sched.Scheduler] tasks are queued through.
type Enqueuer interface {
	EnqueueNormal(t sched.Task)
	EnqueueHighPriority(t sched.Task)
}

// Handle is the task wrapping a spawned future.
type Handle struct {
	future Future
	q      Enqueuer
	lane   sched.Lane
	waker  Waker
	queued atomic.Bool
	done   atomic.Bool
	polls  atomic.Uint64
}

// Waker re-queues the task it belongs to.
type Waker struct {
	h *Handle
}

// Spawn queues f on the normal lane and returns its handle.
func Spawn(q Enqueuer, f Future) *Handle {
	return spawn(q, f, sched.LaneNormal)
}

// SpawnUrgent queues f on the high-priority lane. Every wake-up of the future
// goes to the high-priority lane as well.
func SpawnUrgent(q Enqueuer, f Future) *Handle {
	return spawn(q, f, sched.LaneHigh)
}

func spawn(q Enqueuer, f Future, lane sched.Lane) *Handle {
	h := &Handle{future: f, q: q, lane: lane}
	h.waker.h = h
	h.waker.Wake()
	return h
}

// Run polls the future once. It implements [sched.Task].
func (h *Handle) Run() {
	// Cleared before polling so a wake from inside Poll re-queues the task.
	h.queued.Store(false)
	if h.done.Load() {
		return
	}
	h.polls.Add(1)
	if h.future.Poll(&h.waker) {
		h.done.Store(true)
		h.future = nil
	}
}

// Done reports whether the future has finished.
func (h *Handle) Done() bool { return h.done.Load() }

// Polls returns how many times the future has been polled.
func (h *Handle) Polls() uint64 { return h.polls.Load() }

// Wake queues the task unless it is already queued or finished. It is safe
// to call from any goroutine.
func (w *Waker) Wake() {
	h := w.h
	if h.done.Load() || !h.queued.CompareAndSwap(false, true) {
		return
	}
	if h.lane == sched.LaneHigh {
		h.q.EnqueueHighPriority(h)
	} else {
		h.q.EnqueueNormal(h)
	}
}
