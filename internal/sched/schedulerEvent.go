// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusEnqueue StatusKind = iota
	StatusFastSchedule
	StatusCycleStart
	StatusEscalate
	StatusCycleDone
	StatusBudgetUpdate
)

// StatusEvent is emitted on enqueue, on every host request and around each
// drain cycle. Fields not meaningful for a kind are left zero.
type StatusEvent struct {
	Time      time.Time
	Kind      StatusKind
	Lane      Lane
	Cycle     uint64 // 1-based drain cycle number
	RanHigh   uint64
	RanNormal uint64
	Budget    uint32
	Remaining int
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusEnqueue:
		return "Enqueue"
	case StatusFastSchedule:
		return "FastSchedule"
	case StatusCycleStart:
		return "CycleStart"
	case StatusEscalate:
		return "Escalate"
	case StatusCycleDone:
		return "CycleDone"
	case StatusBudgetUpdate:
		return "BudgetUpdate"
	default:
		return "Unknown"
	}
}
