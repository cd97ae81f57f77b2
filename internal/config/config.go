// Package config loads ledgercore's process configuration from environment
// variables (optionally seeded from a .env file), grounded on
// finny/internal/config/config.go's envconfig.Process idiom.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full set of settings cmd/server needs to wire up the
// ledger, its journal, session store, dispatch pool, and HTTP transport.
type Config struct {
	App struct {
		Port int `envconfig:"PORT" default:"8080"`
	}

	Dispatch struct {
		Workers    int `envconfig:"DISPATCH_WORKERS" default:"8"`
		QueueDepth int `envconfig:"DISPATCH_QUEUE_DEPTH" default:"256"`
	}

	DB struct {
		URL string `envconfig:"DATABASE_URL" default:""`
	}

	Redis struct {
		URL        string        `envconfig:"REDIS_URL" default:""`
		SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	}

	Server struct {
		ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
		WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
		IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
		ShutdownGrace time.Duration `envconfig:"SERVER_SHUTDOWN_GRACE" default:"5s"`
	}
}

// Addr returns the listen address derived from App.Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// Load reads Config from the environment. Call godotenv.Load in main before
// this if a .env file should seed the process environment first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
