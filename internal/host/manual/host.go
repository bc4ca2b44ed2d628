// Package manual provides a deterministic host that records scheduling
// requests and only runs callbacks when told to. It exists for tests.
package manual

import (
	"sync"
	"time"
)

// Host records fast and slow requests. The zero value is ready to use.
//
// FailFast and FailSlow, when set, are returned from the matching Schedule
// method and the callback is dropped.
type Host struct {
	FailFast error
	FailSlow error

	mu     sync.Mutex
	fast   []func()
	slow   []func()
	delays []time.Duration

	fastRequests int
	slowRequests int
}

func (h *Host) ScheduleFast(fn func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fastRequests++
	if h.FailFast != nil {
		return h.FailFast
	}
	h.fast = append(h.fast, fn)
	return nil
}

func (h *Host) ScheduleSlow(delay time.Duration, fn func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slowRequests++
	h.delays = append(h.delays, delay)
	if h.FailSlow != nil {
		return h.FailSlow
	}
	h.slow = append(h.slow, fn)
	return nil
}

// FastRequests returns how many times ScheduleFast was called.
func (h *Host) FastRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fastRequests
}

// SlowRequests returns how many times ScheduleSlow was called.
func (h *Host) SlowRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slowRequests
}

// SlowDelays returns the delays passed to ScheduleSlow, in call order.
func (h *Host) SlowDelays() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.delays...)
}

// Queued returns the number of fast and slow callbacks waiting to be fired.
func (h *Host) Queued() (fast, slow int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.fast), len(h.slow)
}

// FireFast runs the oldest queued fast callback. It reports false if none
// was queued.
func (h *Host) FireFast() bool {
	return h.fire(&h.fast)
}

// FireSlow runs the oldest queued slow callback. It reports false if none
// was queued.
func (h *Host) FireSlow() bool {
	return h.fire(&h.slow)
}

// RunUntilIdle fires callbacks, fast before slow, until both queues are
// empty or limit callbacks have run. It returns the number fired.
func (h *Host) RunUntilIdle(limit int) int {
	var n int
	for n < limit {
		if h.FireFast() || h.FireSlow() {
			n++
			continue
		}
		break
	}
	return n
}

func (h *Host) fire(q *[]func()) bool {
	h.mu.Lock()
	if len(*q) == 0 {
		h.mu.Unlock()
		return false
	}
	fn := (*q)[0]
	*q = (*q)[1:]
	h.mu.Unlock()

	fn()
	return true
}
