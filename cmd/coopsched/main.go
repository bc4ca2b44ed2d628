package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"coopq/internal/app"
	"coopq/internal/config"
	"coopq/internal/logging"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the config, runs the demo workload on the configured host and
// prints the scheduler counters to outW.
func run(outW io.Writer, args []string) error {
	fs := flag.NewFlagSet("coopsched", flag.ContinueOnError)
	fs.SetOutput(outW)
	configPath := fs.String("config", "config.yml", "path to the YAML config")
	timeout := fs.Duration("timeout", time.Minute, "give up on the demo after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	demoCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	stats, demoErr := a.RunDemo(demoCtx)

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := a.Close(closeCtx); err != nil {
		logger.Err().Err(err).Log("shutdown failed")
	}
	if err := <-runErr; err != nil {
		logger.Err().Err(err).Log("host stopped with error")
	}

	fmt.Fprintf(outW, "cycles=%d escalations=%d fast=%d slow=%d ran_high=%d ran_normal=%d\n",
		stats.Cycles, stats.Escalations, stats.FastRequests, stats.SlowRequests, stats.RanHigh, stats.RanNormal)
	return demoErr
}
