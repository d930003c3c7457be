package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"schedwatch/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown", "schedule", "gym")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "schedule=gym") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestSetup_File(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "logs", "schedwatch.log")
	closer, err := Setup(config.LoggingConfig{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	slog.Debug("written to file", "count", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") || !strings.Contains(string(data), "count=3") {
		t.Errorf("log file content = %q", data)
	}
}

func TestSetup_InvalidLevel(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("Setup() should reject unknown levels")
	}
}
