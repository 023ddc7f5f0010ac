package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	klog "github.com/birdayz/kpipe/pkg/log"
)

// Config is read from KPIPE_* environment variables. Flags override it.
type Config struct {
	LogFormat   string `envconfig:"LOG_FORMAT"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	Threads  int `envconfig:"THREADS"`
	MaxAsync int `envconfig:"MAX_ASYNC"`

	Lanes  int `envconfig:"LANES" default:"4"`
	Blocks int `envconfig:"BLOCKS" default:"100"`
	Rows   int `envconfig:"ROWS" default:"1024"`
	Limit  int `envconfig:"LIMIT"`

	StoreDir string `envconfig:"STORE_DIR"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("kpipe", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch klog.Format(c.LogFormat) {
	case klog.FormatAuto, klog.FormatConsole, klog.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q: must be one of console, json", c.LogFormat)
	}
	if c.Lanes <= 0 {
		return fmt.Errorf("lanes must be positive, got %d", c.Lanes)
	}
	if c.Rows <= 0 {
		return fmt.Errorf("rows must be positive, got %d", c.Rows)
	}
	return nil
}
