package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Variable names used in validation errors; they match the struct tags.
const (
	envDeadline      = "FAULTLINE_MESSAGE_DEADLINE"
	envMaxConcurrent = "FAULTLINE_MAX_CONCURRENT_RUNS"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr        string        `env:"FAULTLINE_LISTEN_ADDR" envDefault:":8080"`
	DBPath            string        `env:"FAULTLINE_DB_PATH" envDefault:"faultline.db"`
	RawLogLevel       string        `env:"FAULTLINE_LOG_LEVEL" envDefault:"info"`
	MessageDeadline   time.Duration `env:"FAULTLINE_MESSAGE_DEADLINE" envDefault:"3s"`
	MaxConcurrentRuns int           `env:"FAULTLINE_MAX_CONCURRENT_RUNS" envDefault:"4"`

	// LogLevel is RawLogLevel parsed; unknown values fall back to info.
	LogLevel slog.Level
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MessageDeadline <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", envDeadline, cfg.MessageDeadline)
	}
	if cfg.MaxConcurrentRuns <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", envMaxConcurrent, cfg.MaxConcurrentRuns)
	}
	cfg.LogLevel = ParseLogLevel(cfg.RawLogLevel)
	return cfg, nil
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
