package main

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/cache"
	"github.com/onnwee/channel-insights/backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		CacheTTL:            time.Hour,
		CacheMaxSize:        10,
		CacheDir:            t.TempDir(),
		CacheSharedMaxMB:    1,
		CacheBoltPath:       filepath.Join(t.TempDir(), "server.db"),
		MaintenanceInterval: "@every 6h",
		AdminAddr:           "127.0.0.1:0",
		LogLevel:            "error",
	}
}

// assertBoltReleased fails unless the bolt database can be reopened, which
// bbolt's file lock only allows once the toolkit has been closed.
func assertBoltReleased(t *testing.T, path string) {
	t.Helper()
	c, err := cache.NewBoltCache(path, time.Minute)
	if err != nil {
		t.Fatalf("bolt cache still locked after run returned: %v", err)
	}
	c.Close()
}

func runWithTimeout(t *testing.T, ctx context.Context, cfg *config.Config) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, cfg) }()
	select {
	case err := <-errc:
		return err
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return")
		return nil
	}
}

func TestRunStopsWhenContextDone(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	if err := runWithTimeout(t, ctx, cfg); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	assertBoltReleased(t, cfg.CacheBoltPath)
}

func TestRunStartupFailureReleasesToolkit(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaintenanceInterval = "@never"

	err := runWithTimeout(t, context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "register cache maintenance") {
		t.Fatalf("run() error = %v, want a maintenance registration failure", err)
	}
	assertBoltReleased(t, cfg.CacheBoltPath)
}

func TestRunBadCacheDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheDir = "\x00bad"
	cfg.CacheBoltPath = ""

	err := runWithTimeout(t, context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "initialize toolkit") {
		t.Fatalf("run() error = %v, want a toolkit initialization failure", err)
	}
}

func TestRunReportsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := testConfig(t)
	cfg.AdminAddr = ln.Addr().String()

	err = runWithTimeout(t, context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "admin server") {
		t.Fatalf("run() error = %v, want an admin server failure", err)
	}
	assertBoltReleased(t, cfg.CacheBoltPath)
}
