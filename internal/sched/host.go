package sched

import (
	"fmt"
	"time"
)

// Host is the environment a Scheduler runs drain cycles on.
//
// ScheduleFast runs fn once, as soon as the current synchronous work unwinds
// and before slower host work. ScheduleSlow runs fn once, after yielding to
// other pending host work at least once. Every call schedules exactly one
// new invocation.
type Host interface {
	ScheduleFast(fn func()) error
	ScheduleSlow(delay time.Duration, fn func()) error
}

// HostPath names which host primitive a request went through.
type HostPath string

const (
	PathFast HostPath = "fast"
	PathSlow HostPath = "slow"
)

// HostError reports that the host refused a scheduling request. The scheduler
// cannot make progress after one, see [WithFatalHandler].
type HostError struct {
	Path HostPath
	Err  error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("sched: %s path registration failed: %v", e.Path, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}
