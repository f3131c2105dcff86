package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FAULTLINE_LISTEN_ADDR",
		"FAULTLINE_DB_PATH",
		"FAULTLINE_LOG_LEVEL",
		envDeadline,
		envMaxConcurrent,
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.DBPath != "faultline.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "faultline.db")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.MessageDeadline != 3*time.Second {
		t.Errorf("MessageDeadline = %v, want 3s", cfg.MessageDeadline)
	}
	if cfg.MaxConcurrentRuns != 4 {
		t.Errorf("MaxConcurrentRuns = %d, want 4", cfg.MaxConcurrentRuns)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FAULTLINE_LISTEN_ADDR", ":9090")
	t.Setenv("FAULTLINE_DB_PATH", "/tmp/test.db")
	t.Setenv("FAULTLINE_LOG_LEVEL", "debug")
	t.Setenv(envDeadline, "250ms")
	t.Setenv(envMaxConcurrent, "16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.MessageDeadline != 250*time.Millisecond {
		t.Errorf("MessageDeadline = %v, want 250ms", cfg.MessageDeadline)
	}
	if cfg.MaxConcurrentRuns != 16 {
		t.Errorf("MaxConcurrentRuns = %d, want 16", cfg.MaxConcurrentRuns)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{envDeadline, "soon", "parse env"},
		{envDeadline, "-1s", envDeadline},
		{envMaxConcurrent, "many", "parse env"},
		{envMaxConcurrent, "0", envMaxConcurrent},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestErrorNamesMatchEnvTags(t *testing.T) {
	typ := reflect.TypeFor[Config]()
	tests := []struct {
		field, want string
	}{
		{"MessageDeadline", envDeadline},
		{"MaxConcurrentRuns", envMaxConcurrent},
	}
	for _, tt := range tests {
		f, ok := typ.FieldByName(tt.field)
		if !ok {
			t.Fatalf("Config has no field %s", tt.field)
		}
		if got := f.Tag.Get("env"); got != tt.want {
			t.Errorf("%s env tag = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := ParseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
}
