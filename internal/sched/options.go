package sched

import (
	"time"

	"github.com/joeycumines/logiface"
)

// Options holds configuration options for the [Scheduler].
type Options struct {
	Budget    uint32
	SlowDelay time.Duration
	Logger    *logiface.Logger[logiface.Event]
	Observer  func(StatusEvent)
	Fatal     func(error)
}

// Option is a function that configures [Options].
type Option func(*Options)

// WithBudget sets the initial cooperative budget. The default is [Unbounded].
func WithBudget(budget uint32) Option {
	return func(o *Options) {
		o.Budget = budget
	}
}

// WithSlowDelay sets the delay passed to [Host.ScheduleSlow] when a cycle
// exceeds its budget.
func WithSlowDelay(d time.Duration) Option {
	return func(o *Options) {
		o.SlowDelay = d
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithObserver registers a callback receiving every [StatusEvent]. It is
// called synchronously, on whichever goroutine produced the event.
func WithObserver(fn func(StatusEvent)) Option {
	return func(o *Options) {
		o.Observer = fn
	}
}

// WithFatalHandler replaces the handler invoked when the host refuses a
// scheduling request. The error is always a *[HostError]. The default logs at
// emergency level and panics.
func WithFatalHandler(fn func(error)) Option {
	return func(o *Options) {
		o.Fatal = fn
	}
}
