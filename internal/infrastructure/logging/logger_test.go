package logging

import (
	"log/slog"
	"testing"

	"github.com/pulsegrid/pulse-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewReturnsUsableLogger(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	}, "test")

	if logger == nil || logger.Logger == nil {
		t.Fatal("New() returned unusable logger")
	}

	// With returns an independent logger carrying extra attributes.
	child := logger.With("component", "test")
	if child == logger {
		t.Error("With() returned the receiver")
	}
}

func TestDefaultLogger(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() = nil")
	}
}
