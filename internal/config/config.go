// Package config loads the command-line defaults from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the settings shared by the gtt23 commands. Flags override
// every value.
type Config struct {
	File             string        `env:"FILE"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"256"`
	StrictTimestamps bool          `env:"STRICT_TIMESTAMPS" envDefault:"false"`
	Compression      string        `env:"COMPRESSION" envDefault:"zstd"`
	ProgressInterval time.Duration `env:"PROGRESS_INTERVAL" envDefault:"2s"`
}

// Prefix is prepended to every variable name.
const Prefix = "GTT23_"

// Load reads configuration from GTT23_* environment variables, after
// loading a .env file from the working directory if there is one.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()
	return parse(env.Options{Prefix: Prefix})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("%sBATCH_SIZE must be positive, got %d", Prefix, cfg.BatchSize)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLevel parses a log level name: debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
