// Package config loads process configuration from the environment and the
// versioned balance document that supplies every tunable game constant.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from environment variables.
type Config struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	RedisURL     string        `env:"REDIS_URL"`
	BalancePath  string        `env:"BALANCE_PATH"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"10m"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	EventChannel string        `env:"EVENT_CHANNEL" envDefault:"realm:events"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
