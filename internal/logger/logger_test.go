package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	defaultLogger = nil

	logger := Get()
	if logger == nil {
		t.Fatal("Get() should return a logger")
	}
	if logger != Get() {
		t.Error("Get() should return the same logger instance")
	}

	defaultLogger = nil
}

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")
	defer func() { defaultLogger = nil }()

	Debug("hello", "key", "value")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "text")
	defer func() { defaultLogger = nil }()

	Info("should not appear")
	Warn("should appear")
	if strings.Contains(buf.String(), "should not appear") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Error("warn message missing")
	}
}

func TestFromContextCarriesJob(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	defer func() { defaultLogger = nil }()

	ctx := ContextWithJob(context.Background(), "cache_maintenance")
	InfoContext(ctx, "job ran")
	if !strings.Contains(buf.String(), "job=cache_maintenance") {
		t.Errorf("expected job attribute, got %q", buf.String())
	}
	buf.Reset()

	ctx = context.WithValue(context.Background(), RequestIDKey, "req-1")
	WarnContext(ctx, "request")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("expected request id attribute, got %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(slog.NewTextHandler(&buf, nil))
	defer func() { defaultLogger = nil }()

	WithComponent("file_cache").Info("write failed")
	if !strings.Contains(buf.String(), "component=file_cache") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}
