// internal/sched/scheduler.go

package sched

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Scheduler multiplexes tasks onto a [Host]. It guarantees at most one drain
// cycle is requested or running at any time.
//
// The first enqueue after an idle period requests a cycle through the host's
// fast path. A cycle that exhausts its budget with normal work left asks for
// a continuation through the slow path, yielding the host to other work in
// between.
type Scheduler struct {
	state     *State
	host      Host
	slowDelay time.Duration
	logger    *logiface.Logger[logiface.Event]
	observer  func(StatusEvent)
	fatal     func(error)
	stats     counters
}

type counters struct {
	cycles       atomic.Uint64
	escalations  atomic.Uint64
	fastRequests atomic.Uint64
	slowRequests atomic.Uint64
	ranHigh      atomic.Uint64
	ranNormal    atomic.Uint64
}

// Stats is a snapshot of cumulative scheduler counters.
type Stats struct {
	Cycles       uint64
	Escalations  uint64
	FastRequests uint64
	SlowRequests uint64
	RanHigh      uint64
	RanNormal    uint64
}

// New creates a new Scheduler bound to host.
func New(host Host, opts ...Option) *Scheduler {
	o := &Options{Budget: Unbounded}
	for _, opt := range opts {
		opt(o)
	}

	s := &Scheduler{
		state:     NewState(),
		host:      host,
		slowDelay: o.SlowDelay,
		logger:    o.Logger,
		observer:  o.Observer,
		fatal:     o.Fatal,
	}
	s.state.SetBudget(o.Budget)
	if s.fatal == nil {
		s.fatal = s.defaultFatal
	}
	return s
}

// EnqueueHighPriority appends t to the high-priority lane. Nil tasks are
// ignored.
func (s *Scheduler) EnqueueHighPriority(t Task) {
	s.enqueue(LaneHigh, t)
}

// EnqueueNormal appends t to the normal lane. Nil tasks are ignored.
func (s *Scheduler) EnqueueNormal(t Task) {
	s.enqueue(LaneNormal, t)
}

func (s *Scheduler) enqueue(l Lane, t Task) {
	if t == nil {
		return
	}

	schedule := s.state.push(l, t)
	s.emit(StatusEvent{Kind: StatusEnqueue, Lane: l})

	// An already requested or running cycle will observe the new entry.
	if !schedule {
		return
	}

	s.stats.fastRequests.Add(1)
	s.emit(StatusEvent{Kind: StatusFastSchedule, Lane: l})
	if err := s.host.ScheduleFast(s.runCycle); err != nil {
		s.fatal(&HostError{Path: PathFast, Err: err})
	}
}

// SetBudget replaces the cooperative budget, the maximum number of normal
// tasks (plus one) a cycle runs before yielding. It takes effect from the next
// cycle's phase 2; [Unbounded] disables the cap.
func (s *Scheduler) SetBudget(budget uint32) {
	s.state.SetBudget(budget)
	s.emit(StatusEvent{Kind: StatusBudgetUpdate, Budget: budget})
}

// Budget returns the current cooperative budget.
func (s *Scheduler) Budget() uint32 { return s.state.Budget() }

// Pending reports whether a drain cycle is requested or running.
func (s *Scheduler) Pending() bool { return s.state.Pending() }

// Len returns the number of queued tasks per lane.
func (s *Scheduler) Len() (high, normal int) { return s.state.Len() }

// Stats returns a snapshot of the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:       s.stats.cycles.Load(),
		Escalations:  s.stats.escalations.Load(),
		FastRequests: s.stats.fastRequests.Load(),
		SlowRequests: s.stats.slowRequests.Load(),
		RanHigh:      s.stats.ranHigh.Load(),
		RanNormal:    s.stats.ranNormal.Load(),
	}
}

// runCycle is the callback handed to the host. Tasks cannot call it directly.
func (s *Scheduler) runCycle() {
	cycle := s.stats.cycles.Add(1)
	s.emit(StatusEvent{Kind: StatusCycleStart, Cycle: cycle})

	// A panicking task unwinds through Drain with the pending flag still set.
	// Request a continuation so the rest of the queue is not stranded.
	var done bool
	defer func() {
		if !done {
			s.logger.Err().
				Uint64("cycle", cycle).
				Log("task panicked during drain cycle, requesting continuation")
			s.escalate()
		}
	}()

	out := s.state.Drain()
	done = true

	s.stats.ranHigh.Add(out.RanHigh)
	s.stats.ranNormal.Add(out.RanNormal)

	ev := StatusEvent{
		Cycle:     cycle,
		RanHigh:   out.RanHigh,
		RanNormal: out.RanNormal,
		Budget:    out.Budget,
		Remaining: out.Remaining,
	}

	switch out.Continue {
	case ContinueNone:
		ev.Kind = StatusCycleDone
		s.emit(ev)

	case ContinueFast:
		ev.Kind = StatusCycleDone
		s.emit(ev)
		s.stats.fastRequests.Add(1)
		s.emit(StatusEvent{Kind: StatusFastSchedule, Lane: LaneHigh, Cycle: cycle})
		if err := s.host.ScheduleFast(s.runCycle); err != nil {
			s.fatal(&HostError{Path: PathFast, Err: err})
		}

	case ContinueSlow:
		s.stats.escalations.Add(1)
		ev.Kind = StatusEscalate
		s.emit(ev)
		s.logger.Debug().
			Uint64("cycle", cycle).
			Uint64("ran", out.RanNormal).
			Uint64("carried", out.Carried).
			Int64("budget", int64(out.Budget)).
			Int("remaining", out.Remaining).
			Log("budget exhausted, yielding to host")
		s.escalate()
	}
}

func (s *Scheduler) escalate() {
	s.stats.slowRequests.Add(1)
	if err := s.host.ScheduleSlow(s.slowDelay, s.runCycle); err != nil {
		s.fatal(&HostError{Path: PathSlow, Err: err})
	}
}

func (s *Scheduler) emit(ev StatusEvent) {
	if s.observer == nil {
		return
	}
	ev.Time = time.Now()
	s.observer(ev)
}

func (s *Scheduler) defaultFatal(err error) {
	s.logger.Emerg().
		Err(err).
		Log("host refused to schedule drain cycle")
	panic(err)
}
