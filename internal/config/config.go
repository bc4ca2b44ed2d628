package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"

	"coopq/internal/sched"
)

const (
	HostEventLoop = "eventloop"
	HostTick      = "tick"
)

// Config mirrors config.yml
type Config struct {
	Budget      *uint32 `yaml:"budget"`        // unbounded (by default)
	SlowDelayMS int     `yaml:"slow_delay_ms"` // 0 (by default)
	Host        string  `yaml:"host"`          // eventloop (by default)
	TickMS      int     `yaml:"tick_ms"`       // 5 (by default), tick host only
	LogLevel    string  `yaml:"log_level"`     // info (by default)
	CSVPath     string  `yaml:"csv_path"`      // no CSV trace (by default)
	Demo        Demo    `yaml:"demo"`
}

// Demo sizes the workload cmd/coopsched runs.
type Demo struct {
	Tasks      int `yaml:"tasks"`
	Urgent     int `yaml:"urgent"`
	Countdowns int `yaml:"countdowns"`
	Steps      int `yaml:"steps"`
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		Host:     HostEventLoop,
		TickMS:   5,
		LogLevel: "info",
		Demo: Demo{
			Tasks:      1000,
			Urgent:     10,
			Countdowns: 4,
			Steps:      25,
		},
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, nil
}

// sanity clamps
func (c *Config) clamp() {
	if c.SlowDelayMS < 0 {
		c.SlowDelayMS = 0
	}
	if c.TickMS <= 0 {
		c.TickMS = 5
	}
	if c.Host != HostEventLoop && c.Host != HostTick {
		c.Host = HostEventLoop
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Demo.Tasks < 0 {
		c.Demo.Tasks = 0
	}
	if c.Demo.Urgent < 0 {
		c.Demo.Urgent = 0
	}
	if c.Demo.Countdowns < 0 {
		c.Demo.Countdowns = 0
	}
	if c.Demo.Steps < 0 {
		c.Demo.Steps = 0
	}
}

// BudgetValue returns the configured budget, or [sched.Unbounded].
func (c Config) BudgetValue() uint32 {
	if c.Budget == nil {
		return sched.Unbounded
	}
	return *c.Budget
}

// SlowDelay returns the slow path delay.
func (c Config) SlowDelay() time.Duration {
	return time.Duration(c.SlowDelayMS) * time.Millisecond
}

// TickInterval returns the tick host interval.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}
