// Package config loads runtime configuration for the protohackers binary
// from environment variables, with an optional .env file for local
// development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable for every server this binary can run. Only
// the fields relevant to the selected -problem are consulted.
//
// Tags:
//
//	env: environment variable name
//	envDefault: default value if the variable is unset
type Config struct {
	Listen string `env:"PH_LISTEN" envDefault:":32767"`

	MetricsAddr string `env:"PH_METRICS_ADDR" envDefault:":9090"`

	LogLevel  string `env:"PH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PH_LOG_FORMAT" envDefault:"json"`

	MaxConnections   int `env:"PH_MAX_CONNECTIONS" envDefault:"10000"`
	ConnRatePerSec   int `env:"PH_CONN_RATE_PER_SEC" envDefault:"200"`
	ConnRateBurst    int `env:"PH_CONN_RATE_BURST" envDefault:"400"`

	// Speed Daemon
	DispatchInterval time.Duration `env:"SPEEDDAEMON_DISPATCH_INTERVAL" envDefault:"1s"`

	// Mob in the Middle
	UpstreamHost      string `env:"MITM_UPSTREAM_HOST" envDefault:"chat.protohackers.com"`
	UpstreamPort      int    `env:"MITM_UPSTREAM_PORT" envDefault:"16963"`
	BoguscoinAddress  string `env:"MITM_BOGUSCOIN_ADDRESS" envDefault:"7YWHMfk9JZe0LM0g1ZauHuiSxhI"`

	// Budget Chat
	ChatNickMinLen int `env:"BUDGETCHAT_NICK_MIN_LEN" envDefault:"1"`

	// Unusual Database Program
	UDBVersionString string `env:"UNUSUALDB_VERSION" envDefault:"Ken's Key-Value Store 1.0"`
}

// Load reads an optional .env file (ignored if absent) and then parses
// environment variables into a Config, applying defaults for anything
// unset. Real environment variables always take precedence over .env
// file contents, matching the precedence documented by the teacher's own
// config loader.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is a normal, silent case: we run fine on env vars
		// alone in production/container environments.
		_ = err
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks for nonsensical configuration before the server starts.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("PH_LISTEN is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("PH_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.ConnRatePerSec < 1 {
		return fmt.Errorf("PH_CONN_RATE_PER_SEC must be > 0, got %d", c.ConnRatePerSec)
	}
	if c.DispatchInterval <= 0 {
		return fmt.Errorf("SPEEDDAEMON_DISPATCH_INTERVAL must be > 0, got %s", c.DispatchInterval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("PH_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("PH_LOG_FORMAT must be one of json, console (got %q)", c.LogFormat)
	}

	return nil
}
