package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		CacheTTL:         time.Hour,
		CacheMaxSize:     10,
		CacheDir:         t.TempDir(),
		CacheSharedMaxMB: 1,
	}
}

func TestRunRemovesExpiredEntries(t *testing.T) {
	cfg := testConfig(t)
	expired := `{"value":1,"timestamp":"2020-01-01T00:00:00Z","ttl_seconds":1,"hits":0}`
	if err := os.WriteFile(filepath.Join(cfg.CacheDir, "old.cache"), []byte(expired), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.CacheDir, "broken.cache"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(&out, cfg); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var report Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not a JSON report: %v\n%s", err, out.String())
	}
	if report.Removed.FileExpired != 2 {
		t.Errorf("file_expired = %d, want 2", report.Removed.FileExpired)
	}
	if report.Stats.File.FileCount != 0 {
		t.Errorf("file_count = %d, want 0", report.Stats.File.FileCount)
	}
}

func TestRunBadCacheDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheDir = "\x00bad"

	err := run(&bytes.Buffer{}, cfg)
	if err == nil || !strings.Contains(err.Error(), "initialize toolkit") {
		t.Fatalf("run() error = %v, want a toolkit initialization failure", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func TestRunWriteFailure(t *testing.T) {
	err := run(failingWriter{}, testConfig(t))
	if err == nil || !strings.Contains(err.Error(), "write results") {
		t.Fatalf("run() error = %v, want a write failure", err)
	}
}
