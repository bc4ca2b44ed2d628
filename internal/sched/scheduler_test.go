package sched_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopq/internal/host/manual"
	"coopq/internal/sched"
)

// recorder collects task names in run order.
type recorder struct {
	order []string
}

func (r *recorder) task(name string) sched.Task {
	return sched.TaskFunc(func() { r.order = append(r.order, name) })
}

func newScheduler(t *testing.T, opts ...sched.Option) (*sched.Scheduler, *manual.Host) {
	t.Helper()
	h := &manual.Host{}
	return sched.New(h, opts...), h
}

func TestScheduler_LaneOrder(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		high   []string
		normal []string
		want   []string
	}{
		"high priority runs before normal": {
			high:   []string{"h1", "h2"},
			normal: []string{"n1", "n2"},
			want:   []string{"h1", "h2", "n1", "n2"},
		},
		"normal only keeps fifo order": {
			normal: []string{"a", "b", "c"},
			want:   []string{"a", "b", "c"},
		},
		"high only keeps fifo order": {
			high: []string{"x", "y", "z"},
			want: []string{"x", "y", "z"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, h := newScheduler(t)
			var r recorder
			// interleave the lanes to show enqueue order across lanes is irrelevant
			for i := 0; i < max(len(tt.high), len(tt.normal)); i++ {
				if i < len(tt.normal) {
					s.EnqueueNormal(r.task(tt.normal[i]))
				}
				if i < len(tt.high) {
					s.EnqueueHighPriority(r.task(tt.high[i]))
				}
			}

			require.True(t, h.FireFast())
			assert.Equal(t, tt.want, r.order)
			assert.False(t, s.Pending())
			assert.Equal(t, 0, h.SlowRequests())
		})
	}
}

func TestScheduler_BudgetRunsBudgetPlusOne(t *testing.T) {
	t.Parallel()

	for _, budget := range []uint32{0, 1, 2, 5, 17} {
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			t.Parallel()

			s, h := newScheduler(t, sched.WithBudget(budget))
			n := int(budget) + 4
			var ran int
			for i := 0; i < n; i++ {
				s.EnqueueNormal(sched.TaskFunc(func() { ran++ }))
			}

			require.True(t, h.FireFast())

			assert.Equal(t, int(budget)+1, ran)
			_, normal := s.Len()
			assert.Equal(t, n-(int(budget)+1), normal)
			assert.Equal(t, 1, h.SlowRequests())
			assert.True(t, s.Pending())
		})
	}
}

func TestScheduler_SingleFastRequest(t *testing.T) {
	t.Parallel()

	s, h := newScheduler(t)
	var r recorder
	s.EnqueueNormal(r.task("a"))
	s.EnqueueHighPriority(r.task("b"))
	s.EnqueueNormal(r.task("c"))

	assert.Equal(t, 1, h.FastRequests())
	assert.True(t, s.Pending())

	require.True(t, h.FireFast())
	assert.False(t, s.Pending())

	// the next enqueue after a completed cycle schedules again
	s.EnqueueNormal(r.task("d"))
	assert.Equal(t, 2, h.FastRequests())
}

func TestScheduler_NilTaskIgnored(t *testing.T) {
	t.Parallel()

	s, h := newScheduler(t)
	s.EnqueueNormal(nil)
	s.EnqueueHighPriority(nil)

	assert.Equal(t, 0, h.FastRequests())
	assert.False(t, s.Pending())
}

func TestScheduler_Reentrancy(t *testing.T) {
	t.Parallel()

	t.Run("high enqueued during phase 1 runs in the same cycle", func(t *testing.T) {
		t.Parallel()

		s, h := newScheduler(t)
		var r recorder
		s.EnqueueHighPriority(sched.TaskFunc(func() {
			r.order = append(r.order, "h1")
			s.EnqueueHighPriority(r.task("h2"))
		}))
		s.EnqueueNormal(r.task("n1"))

		require.True(t, h.FireFast())
		assert.Equal(t, []string{"h1", "h2", "n1"}, r.order)
		assert.Equal(t, uint64(1), s.Stats().Cycles)
		assert.Equal(t, 1, h.FastRequests())
	})

	t.Run("normal enqueued during phase 2 uses the current budget", func(t *testing.T) {
		t.Parallel()

		s, h := newScheduler(t, sched.WithBudget(5))
		var r recorder
		s.EnqueueNormal(sched.TaskFunc(func() {
			r.order = append(r.order, "n1")
			s.EnqueueNormal(r.task("n2"))
		}))

		require.True(t, h.FireFast())
		assert.Equal(t, []string{"n1", "n2"}, r.order)
		assert.False(t, s.Pending())
		assert.Equal(t, 0, h.SlowRequests())
	})

	t.Run("high enqueued during phase 2 waits for the batch", func(t *testing.T) {
		t.Parallel()

		s, h := newScheduler(t)
		var r recorder
		s.EnqueueNormal(sched.TaskFunc(func() {
			r.order = append(r.order, "n1")
			s.EnqueueHighPriority(r.task("h1"))
		}))
		s.EnqueueNormal(r.task("n2"))

		require.True(t, h.FireFast())
		assert.Equal(t, []string{"n1", "n2"}, r.order)

		// not lost: a fresh fast request picks it up
		assert.True(t, s.Pending())
		assert.Equal(t, 2, h.FastRequests())
		assert.Equal(t, 0, h.SlowRequests())

		require.True(t, h.FireFast())
		assert.Equal(t, []string{"n1", "n2", "h1"}, r.order)
		assert.False(t, s.Pending())
	})

	t.Run("high enqueued during an exhausted phase 2 rides the slow path", func(t *testing.T) {
		t.Parallel()

		s, h := newScheduler(t, sched.WithBudget(0))
		var r recorder
		s.EnqueueNormal(sched.TaskFunc(func() {
			r.order = append(r.order, "n1")
			s.EnqueueHighPriority(r.task("h1"))
		}))
		s.EnqueueNormal(r.task("n2"))

		require.True(t, h.FireFast())
		assert.Equal(t, []string{"n1"}, r.order)
		assert.Equal(t, 1, h.FastRequests())
		assert.Equal(t, 1, h.SlowRequests())

		require.True(t, h.FireSlow())
		assert.Equal(t, []string{"n1", "h1", "n2"}, r.order)
		assert.False(t, s.Pending())
	})
}

func TestScheduler_CrossLaneBounceStillYields(t *testing.T) {
	t.Parallel()

	s, h := newScheduler(t, sched.WithBudget(4))
	var normalRuns int
	var bounce sched.Task
	bounce = sched.TaskFunc(func() {
		normalRuns++
		s.EnqueueHighPriority(sched.TaskFunc(func() { s.EnqueueNormal(bounce) }))
	})
	s.EnqueueNormal(bounce)

	for i := 0; h.SlowRequests() == 0; i++ {
		require.Less(t, i, 100, "fast cycles never yielded")
		require.True(t, h.FireFast())
	}
	assert.Equal(t, 5, normalRuns)
	assert.Equal(t, 5, h.FastRequests())
	assert.Equal(t, uint64(1), s.Stats().Escalations)

	// after the yield the next chain gets a full budget again
	require.True(t, h.FireSlow())
	for i := 0; h.SlowRequests() == 1; i++ {
		require.Less(t, i, 100, "fast cycles never yielded")
		require.True(t, h.FireFast())
	}
	assert.Equal(t, 10, normalRuns)
}

func TestScheduler_EndToEnd(t *testing.T) {
	t.Parallel()

	t.Run("budget 2 over four normal tasks", func(t *testing.T) {
		t.Parallel()

		s, h := newScheduler(t, sched.WithBudget(2))
		var r recorder
		for _, name := range []string{"A", "B", "C", "D"} {
			s.EnqueueNormal(r.task(name))
		}

		require.True(t, h.FireFast())
		assert.Equal(t, []string{"A", "B", "C"}, r.order)
		assert.True(t, s.Pending())
		assert.Equal(t, 1, h.SlowRequests())

		require.True(t, h.FireSlow())
		assert.Equal(t, []string{"A", "B", "C", "D"}, r.order)
		assert.False(t, s.Pending())

		fast, slow := h.Queued()
		assert.Zero(t, fast)
		assert.Zero(t, slow)
		assert.Equal(t, 1, h.FastRequests())
		assert.Equal(t, 1, h.SlowRequests())
	})

	t.Run("one high and one normal within budget", func(t *testing.T) {
		t.Parallel()

		s, h := newScheduler(t, sched.WithBudget(100))
		var r recorder
		s.EnqueueHighPriority(r.task("X"))
		s.EnqueueNormal(r.task("Y"))

		require.True(t, h.FireFast())
		assert.Equal(t, []string{"X", "Y"}, r.order)
		assert.False(t, s.Pending())
		assert.Equal(t, 0, h.SlowRequests())
	})
}

func TestScheduler_BudgetChangeMidCycle(t *testing.T) {
	t.Parallel()

	s, h := newScheduler(t, sched.WithBudget(1))
	var ran int
	s.EnqueueNormal(sched.TaskFunc(func() {
		ran++
		s.SetBudget(10)
	}))
	for i := 0; i < 5; i++ {
		s.EnqueueNormal(sched.TaskFunc(func() { ran++ }))
	}

	require.True(t, h.FireFast())
	assert.Equal(t, 2, ran, "current cycle keeps the budget it read")
	assert.Equal(t, uint32(10), s.Budget())

	require.True(t, h.FireSlow())
	assert.Equal(t, 6, ran)
	assert.False(t, s.Pending())
}

func TestScheduler_BudgetSetInPhaseOneApplies(t *testing.T) {
	t.Parallel()

	s, h := newScheduler(t)
	var ran int
	s.EnqueueHighPriority(sched.TaskFunc(func() { s.SetBudget(0) }))
	for i := 0; i < 3; i++ {
		s.EnqueueNormal(sched.TaskFunc(func() { ran++ }))
	}

	require.True(t, h.FireFast())
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, h.SlowRequests())
}

func TestScheduler_SlowDelay(t *testing.T) {
	t.Parallel()

	s, h := newScheduler(t, sched.WithBudget(0), sched.WithSlowDelay(3*time.Millisecond))
	for i := 0; i < 3; i++ {
		s.EnqueueNormal(sched.TaskFunc(func() {}))
	}

	assert.Equal(t, 3, h.RunUntilIdle(10))
	assert.Equal(t, []time.Duration{3 * time.Millisecond, 3 * time.Millisecond}, h.SlowDelays())

	st := s.Stats()
	assert.Equal(t, uint64(3), st.Cycles)
	assert.Equal(t, uint64(2), st.Escalations)
	assert.Equal(t, uint64(3), st.RanNormal)
}

func TestScheduler_HostFailureIsFatal(t *testing.T) {
	t.Parallel()

	t.Run("fast path", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("no microtasks")
		var got error
		h := &manual.Host{FailFast: boom}
		s := sched.New(h, sched.WithFatalHandler(func(err error) { got = err }))

		s.EnqueueNormal(sched.TaskFunc(func() {}))

		var hostErr *sched.HostError
		require.ErrorAs(t, got, &hostErr)
		assert.Equal(t, sched.PathFast, hostErr.Path)
		assert.ErrorIs(t, got, boom)
	})

	t.Run("slow path", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("no timers")
		var got error
		h := &manual.Host{FailSlow: boom}
		s := sched.New(h,
			sched.WithBudget(0),
			sched.WithFatalHandler(func(err error) { got = err }),
		)
		s.EnqueueNormal(sched.TaskFunc(func() {}))
		s.EnqueueNormal(sched.TaskFunc(func() {}))

		require.True(t, h.FireFast())
		var hostErr *sched.HostError
		require.ErrorAs(t, got, &hostErr)
		assert.Equal(t, sched.PathSlow, hostErr.Path)
		assert.ErrorIs(t, got, boom)
	})

	t.Run("default handler panics", func(t *testing.T) {
		t.Parallel()

		h := &manual.Host{FailFast: errors.New("gone")}
		s := sched.New(h)
		assert.Panics(t, func() { s.EnqueueNormal(sched.TaskFunc(func() {})) })
	})
}

func TestScheduler_PanickingTaskDoesNotStrandQueue(t *testing.T) {
	t.Parallel()

	s, h := newScheduler(t)
	var r recorder
	s.EnqueueNormal(sched.TaskFunc(func() { panic("task failed") }))
	s.EnqueueNormal(r.task("after"))

	assert.Panics(t, func() { h.FireFast() })
	assert.Empty(t, r.order)
	assert.True(t, s.Pending())
	assert.Equal(t, 1, h.SlowRequests())

	// the panicking task was consumed, not retried
	require.True(t, h.FireSlow())
	assert.Equal(t, []string{"after"}, r.order)
	assert.False(t, s.Pending())
}

func TestScheduler_Observer(t *testing.T) {
	t.Parallel()

	var kinds []sched.StatusKind
	s, h := newScheduler(t,
		sched.WithBudget(0),
		sched.WithObserver(func(ev sched.StatusEvent) {
			assert.False(t, ev.Time.IsZero())
			kinds = append(kinds, ev.Kind)
		}),
	)
	s.EnqueueNormal(sched.TaskFunc(func() {}))
	s.EnqueueNormal(sched.TaskFunc(func() {}))
	h.RunUntilIdle(10)

	assert.Equal(t, []sched.StatusKind{
		sched.StatusEnqueue,
		sched.StatusFastSchedule,
		sched.StatusEnqueue,
		sched.StatusCycleStart,
		sched.StatusEscalate,
		sched.StatusCycleStart,
		sched.StatusCycleDone,
	}, kinds)
}
