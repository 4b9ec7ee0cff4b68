package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	RedisURL    string `env:"REDIS_URL,required" validate:"required"`
	DatabaseURL string `env:"DATABASE_URL"` // empty disables the search archive

	JobTTLMinutes   int `env:"JOB_TTL_MINUTES" envDefault:"60" validate:"min=1"`
	ClaimTimeoutSec int `env:"CLAIM_TIMEOUT_SEC" envDefault:"10" validate:"min=1,max=60"`

	// Destination worker pool. Keep small on deployments with tight
	// upstream rate limits.
	SearchConcurrency int `env:"SEARCH_CONCURRENCY" envDefault:"4" validate:"min=1,max=32"`

	RetryMaxAttempts int `env:"RETRY_MAX_ATTEMPTS" envDefault:"5" validate:"min=0,max=10"`
	RetryBaseMS      int `env:"RETRY_BASE_MS" envDefault:"1000" validate:"min=1"`

	DefaultOrigin     string `env:"DEFAULT_ORIGIN" envDefault:"WRO"`
	AmadeusAPIKey     string `env:"AMADEUS_API_KEY"`
	AmadeusAPISecret  string `env:"AMADEUS_API_SECRET"`
	ArchiveRetentionD int    `env:"ARCHIVE_RETENTION_DAYS" envDefault:"7" validate:"min=1"`
	JanitorCron       string `env:"JANITOR_CRON" envDefault:"17 * * * *"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
