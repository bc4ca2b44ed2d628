package job

import (
	"sync/atomic"
	"time"

	"coopq/internal/future"
)

// Sleep returns a future that becomes ready once d has elapsed since its
// first poll. The timer wakes the task from its own goroutine.
func Sleep(d time.Duration) future.Future {
	var (
		started bool
		fired   atomic.Bool
	)
	return future.Func(func(w *future.Waker) bool {
		if fired.Load() {
			return true
		}
		if !started {
			started = true
			time.AfterFunc(d, func() {
				fired.Store(true)
				w.Wake()
			})
		}
		return false
	})
}
