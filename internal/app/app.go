// Package app wires a scheduler to its host for the lifetime of the process.
//
// An [App] is created once at startup and handed to whatever builds tasks;
// nothing in the module reaches the scheduler through a global.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"

	"coopq/internal/config"
	"coopq/internal/future"
	"coopq/internal/host/evloop"
	"coopq/internal/host/tick"
	"coopq/internal/job"
	"coopq/internal/sched"
	"coopq/internal/trace"
)

// App owns the scheduler, its host and the event recorder.
type App struct {
	Config    config.Config
	Logger    *logiface.Logger[logiface.Event]
	Scheduler *sched.Scheduler
	Recorder  *trace.Recorder

	run    func(ctx context.Context) error
	stop   func(ctx context.Context) error
	submit func(fn func()) error
	exit   func(code int)
}

// New builds an App from cfg. The host does not run until [App.Run].
func New(cfg config.Config, logger *logiface.Logger[logiface.Event]) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Recorder: trace.NewRecorder(logger),
		exit:     os.Exit,
	}

	if cfg.CSVPath != "" {
		if err := a.Recorder.EnableCSVFile(cfg.CSVPath); err != nil {
			return nil, fmt.Errorf("app: enable csv trace: %w", err)
		}
	}

	var host sched.Host
	switch cfg.Host {
	case config.HostTick:
		h := tick.New(cfg.TickInterval())
		host = h
		a.run = h.Run
		a.stop = func(context.Context) error {
			h.Stop()
			return nil
		}
		a.submit = h.ScheduleFast

	default:
		loop, err := eventloop.New()
		if err != nil {
			_ = a.Recorder.Close()
			return nil, fmt.Errorf("app: create event loop: %w", err)
		}
		h, err := evloop.New(loop)
		if err != nil {
			_ = loop.Close()
			_ = a.Recorder.Close()
			return nil, err
		}
		host = h
		a.run = h.Loop().Run
		a.stop = h.Loop().Shutdown
		a.submit = h.Submit
	}

	a.Scheduler = sched.New(host,
		sched.WithBudget(cfg.BudgetValue()),
		sched.WithSlowDelay(cfg.SlowDelay()),
		sched.WithLogger(logger),
		sched.WithObserver(a.Recorder.Observe),
		sched.WithFatalHandler(a.fatal),
	)

	logger.Info().
		Str("host", cfg.Host).
		Int64("budget", int64(cfg.BudgetValue())).
		Dur("slow_delay", cfg.SlowDelay()).
		Log("scheduler initialised")

	return a, nil
}

// Run drives the host until ctx is done or Close is called. It blocks.
func (a *App) Run(ctx context.Context) error {
	err := a.run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, eventloop.ErrLoopTerminated) {
		return nil
	}
	return err
}

// Submit runs fn on the host goroutine.
func (a *App) Submit(fn func()) error {
	return a.submit(fn)
}

// Close stops the host and flushes the recorder.
func (a *App) Close(ctx context.Context) error {
	err := a.stop(ctx)
	if errors.Is(err, eventloop.ErrLoopTerminated) {
		err = nil
	}
	return errors.Join(err, a.Recorder.Close())
}

// fatal is the scheduler's fatal handler: without the host no queued work
// can ever run again.
func (a *App) fatal(err error) {
	a.Logger.Emerg().
		Err(err).
		Log("scheduler lost its host, exiting")
	_ = a.Recorder.Close()
	a.exit(1)
}

// RunDemo enqueues the configured demo workload from the host goroutine and
// waits for all of it to finish.
func (a *App) RunDemo(ctx context.Context) (sched.Stats, error) {
	d := a.Config.Demo

	var wg sync.WaitGroup
	wg.Add(d.Tasks + d.Urgent + d.Countdowns)

	err := a.Submit(func() {
		job.Burst(a.Scheduler, d.Tasks, func(int) { wg.Done() })
		job.Urgent(a.Scheduler, d.Urgent, func(int) { wg.Done() })
		for i := 0; i < d.Countdowns; i++ {
			future.Spawn(a.Scheduler, job.Countdown(d.Steps, func(remaining int) {
				if remaining == 0 {
					wg.Done()
				}
			}))
		}
	})
	if err != nil {
		return a.Scheduler.Stats(), fmt.Errorf("app: submit demo: %w", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return a.Scheduler.Stats(), nil
	case <-ctx.Done():
		return a.Scheduler.Stats(), ctx.Err()
	}
}
