package sched

import (
	"math"
	"sync"
)

// Unbounded is the default cooperative budget: phase 2 never yields early.
const Unbounded uint32 = math.MaxUint32

// Continuation says what a finished drain cycle still needs from the host.
type Continuation int

const (
	// ContinueNone: both lanes were empty, the pending flag is cleared.
	ContinueNone Continuation = iota
	// ContinueSlow: the budget ran out with normal work queued.
	ContinueSlow
	// ContinueFast: high-priority work arrived during phase 2 and the budget
	// was not exhausted.
	ContinueFast
)

// Outcome summarises one drain cycle. Unless Continue is ContinueNone the
// pending flag is left set and the caller must request another cycle.
type Outcome struct {
	Continue  Continuation
	RanHigh   uint64
	RanNormal uint64
	Carried   uint64 // phase-2 runs inherited from fast-chained cycles
	Budget    uint32 // budget observed by phase 2
	Remaining int    // normal tasks left queued when the cycle ended
}

// State owns the two lanes, the cooperative budget and the pending flag.
//
// mu is never held while a task runs, so tasks may enqueue into either lane
// from inside Run.
type State struct {
	mu      sync.Mutex
	high    lane
	normal  lane
	budget  uint32
	pending bool   // a drain cycle is requested or running
	chained uint64 // phase-2 runs since the last yield or idle point
}

// NewState returns an idle State with an unbounded budget.
func NewState() *State {
	return &State{
		high:   newLane(),
		normal: newLane(),
		budget: Unbounded,
	}
}

// push appends t to the given lane and reports whether the caller must
// request a new drain cycle, i.e. whether the pending flag went false->true.
func (s *State) push(l Lane, t Task) (schedule bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l == LaneHigh {
		s.high.push(t)
	} else {
		s.normal.push(t)
	}

	if s.pending {
		return false
	}
	s.pending = true
	return true
}

func (s *State) pop(l Lane) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == LaneHigh {
		return s.high.pop()
	}
	return s.normal.pop()
}

// SetBudget replaces the budget. A cycle already in phase 2 keeps the value
// it read.
func (s *State) SetBudget(budget uint32) {
	s.mu.Lock()
	s.budget = budget
	s.mu.Unlock()
}

// Budget returns the current budget.
func (s *State) Budget() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// Pending reports whether a drain cycle is requested or running.
func (s *State) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Len returns the number of queued tasks per lane.
func (s *State) Len() (high, normal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.high.len(), s.normal.len()
}

// Drain runs one drain cycle. It must only be called while the pending flag
// is set, and never concurrently with itself.
//
// Phase 1 runs every high-priority task, including ones enqueued while it
// runs, with no budget. A producer that keeps re-enqueueing high-priority work
// starves the scheduler indefinitely; this is accepted, latency-sensitive work
// wins over fairness.
//
// Phase 2 reads the budget once and runs normal tasks while the count of
// tasks run is <= budget, so a budget of B runs at most B+1 tasks. High
// priority tasks enqueued during phase 2 wait for the next cycle. If the
// budget is not exhausted that cycle is requested through the fast path, and
// it inherits the phase-2 count so far: a chain of fast cycles shares one
// budget, and work bouncing between the lanes still ends in a slow yield.
func (s *State) Drain() Outcome {
	var out Outcome

	for {
		t, ok := s.pop(LaneHigh)
		if !ok {
			break
		}
		t.Run()
		out.RanHigh++
	}

	// Taking the carry here means a panicking task resets the chain.
	s.mu.Lock()
	out.Budget = s.budget
	out.Carried = s.chained
	s.chained = 0
	s.mu.Unlock()
	budget := uint64(out.Budget)

	for out.Carried+out.RanNormal <= budget {
		t, ok := s.pop(LaneNormal)
		if !ok {
			break
		}
		t.Run()
		out.RanNormal++
	}

	s.mu.Lock()
	out.Remaining = s.normal.len()
	exhausted := out.Carried+out.RanNormal > budget
	switch {
	case exhausted && (out.Remaining > 0 || s.high.len() > 0):
		out.Continue = ContinueSlow
	case s.high.len() > 0:
		// Enqueued during phase 2 while pending was set, so nobody else
		// will request a cycle for it.
		out.Continue = ContinueFast
		s.chained = out.Carried + out.RanNormal
	default:
		s.pending = false
		out.Continue = ContinueNone
	}
	s.mu.Unlock()

	return out
}

// Complete reports whether the cycle drained everything and cleared the
// pending flag.
func (o Outcome) Complete() bool {
	return o.Continue == ContinueNone
}
