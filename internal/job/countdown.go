// Package job provides demo workloads for the scheduler.
package job

import (
	"coopq/internal/future"
	"coopq/internal/sched"
)

// Countdown returns a future that yields back to the scheduler steps times
// before finishing, calling onStep with the remaining count on every poll.
// Each yield re-queues the task behind everything already queued.
func Countdown(steps int, onStep func(remaining int)) future.Future {
	remaining := steps
	return future.Func(func(w *future.Waker) bool {
		if onStep != nil {
			onStep(remaining)
		}
		if remaining <= 0 {
			return true
		}
		remaining--
		w.Wake()
		return false
	})
}

// Burst enqueues n normal tasks, each calling fn with its index.
func Burst(q future.Enqueuer, n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		q.EnqueueNormal(sched.TaskFunc(func() { fn(i) }))
	}
}

// Urgent enqueues n high-priority tasks, each calling fn with its index.
func Urgent(q future.Enqueuer, n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		q.EnqueueHighPriority(sched.TaskFunc(func() { fn(i) }))
	}
}
