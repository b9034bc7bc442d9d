package toolkit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/cache"
	"github.com/onnwee/channel-insights/backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		CacheTTL:         time.Hour,
		CacheMaxSize:     10,
		CacheDir:         t.TempDir(),
		CacheSharedMaxMB: 1,
		RateLimits: map[string]config.RateLimit{
			config.APIYouTubeData: {Requests: 2, Window: time.Hour},
			config.APIGemini:      {Requests: 60, Window: time.Minute},
		},
		MaintenanceInterval:     "@every 6h",
		SchedulerPollInterval:   10 * time.Millisecond,
		SchedulerStopTimeout:    time.Second,
		BreakerFailureThreshold: 1,
		BreakerTimeout:          time.Minute,
	}
}

func newTestToolkit(t *testing.T) *Toolkit {
	t.Helper()
	tk, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(tk.Close)
	return tk
}

func TestNew(t *testing.T) {
	tk := newTestToolkit(t)

	if tk.Memory == nil || tk.File == nil || tk.Shared == nil {
		t.Fatal("caches not initialized")
	}
	if got := tk.Memory.Stats().MaxSize; got != 10 {
		t.Errorf("memory max size = %d, want 10", got)
	}
	if _, ok := tk.Limiter(config.APIYouTubeData); !ok {
		t.Error("youtube_data limiter missing")
	}
	if _, ok := tk.Limiter("unknown"); ok {
		t.Error("unknown limiter should not exist")
	}
	if tk.Scheduler.Running() {
		t.Error("scheduler should not be running after New")
	}
}

func TestNewInvalidCacheDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheDir = "\x00bad"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unusable cache dir")
	}
}

func TestStore(t *testing.T) {
	tk := newTestToolkit(t)

	tests := []struct {
		kind string
		want cache.Store
	}{
		{cache.StoreMemory, tk.Memory},
		{cache.StoreFile, tk.File},
		{cache.StoreShared, tk.Shared},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, ok := tk.Store(tt.kind)
			if !ok || got != tt.want {
				t.Errorf("Store(%q) = %v, %v", tt.kind, got, ok)
			}
		})
	}

	if _, ok := tk.Store("redis"); ok {
		t.Error("unknown store kind should not resolve")
	}
	if len(tk.Stores()) != 3 {
		t.Errorf("Stores() returned %d stores, want 3", len(tk.Stores()))
	}
	if _, ok := tk.Store(cache.StoreBolt); ok {
		t.Error("bolt store should not resolve when not configured")
	}
}

func TestBoltStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheBoltPath = filepath.Join(t.TempDir(), "toolkit.db")
	tk, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(tk.Close)

	store, ok := tk.Store(cache.StoreBolt)
	if !ok || store != tk.Bolt {
		t.Fatalf("Store(bolt) = %v, %v", store, ok)
	}
	if len(tk.Stores()) != 4 {
		t.Errorf("Stores() returned %d stores, want 4", len(tk.Stores()))
	}

	now := time.Now()
	tk.Bolt.Set("stale", "v", time.Nanosecond)
	tk.Bolt.Set("fresh", "v", time.Hour)
	for time.Since(now) < time.Millisecond {
		time.Sleep(time.Millisecond)
	}

	if res := tk.CleanupCaches(); res.BoltExpired != 1 {
		t.Errorf("BoltExpired = %d, want 1", res.BoltExpired)
	}
	stats := tk.CacheStats()
	if stats.Bolt == nil || stats.Bolt.Keys != 1 {
		t.Errorf("bolt stats = %+v", stats.Bolt)
	}
	snap, err := tk.MetricsSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if g := snap.Caches[cache.StoreBolt]; g.Items != 1 {
		t.Errorf("bolt gauge items = %d, want 1", g.Items)
	}
}

func TestCloseIdempotent(t *testing.T) {
	tk, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	tk.Scheduler.Start()
	tk.Close()
	tk.Close()
	if tk.Scheduler.State().String() != "stopped" {
		t.Errorf("scheduler state = %s, want stopped", tk.Scheduler.State())
	}
}

func TestCleanupCaches(t *testing.T) {
	tk := newTestToolkit(t)

	tk.Memory.Set("short", 1, time.Millisecond)
	tk.Memory.Set("long", 2, time.Hour)
	tk.File.Set("short", "a", time.Millisecond)
	tk.File.Set("long", "b", time.Hour)

	time.Sleep(20 * time.Millisecond)

	res := tk.CleanupCaches()
	if res.MemoryExpired != 1 {
		t.Errorf("MemoryExpired = %d, want 1", res.MemoryExpired)
	}
	if res.FileExpired != 1 {
		t.Errorf("FileExpired = %d, want 1", res.FileExpired)
	}
	if _, ok := tk.Memory.Get("long"); !ok {
		t.Error("unexpired memory entry was removed")
	}
	if _, ok := tk.File.Get("long"); !ok {
		t.Error("unexpired file entry was removed")
	}
}

type panickyStore struct{ cache.Store }

func (panickyStore) CleanupExpired() int { panic("disk on fire") }

func TestSafeCleanupRecovers(t *testing.T) {
	if n := safeCleanup("broken", panickyStore{cache.NewMockCache()}); n != 0 {
		t.Errorf("safeCleanup() = %d, want 0", n)
	}
}

func TestCacheStats(t *testing.T) {
	tk := newTestToolkit(t)

	tk.Memory.Set("a", 1, 0)
	tk.Memory.Get("a")
	tk.Memory.Get("missing")
	tk.File.Set("f", map[string]int{"n": 1}, 0)

	stats := tk.CacheStats()
	if stats.Memory.Size != 1 || stats.Memory.TotalHits != 1 {
		t.Errorf("memory stats = %+v", stats.Memory)
	}
	if stats.Memory.Misses != 1 {
		t.Errorf("memory misses = %d, want 1", stats.Memory.Misses)
	}
	if stats.File.FileCount != 1 || stats.File.TotalSizeBytes <= 0 {
		t.Errorf("file stats = %+v", stats.File)
	}
}

func TestRegisterMaintenance(t *testing.T) {
	tk := newTestToolkit(t)

	if err := tk.RegisterMaintenance(); err != nil {
		t.Fatalf("RegisterMaintenance() error = %v", err)
	}
	jobs := tk.Scheduler.Jobs()
	if len(jobs) != 1 || jobs[0].Name != MaintenanceJob {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].Interval != 6*time.Hour {
		t.Errorf("interval = %v, want 6h", jobs[0].Interval)
	}

	if err := tk.RegisterMaintenance(); err == nil {
		t.Error("registering twice should fail")
	}
}

func TestRegisterMaintenanceBadInterval(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaintenanceInterval = "sometimes"
	tk, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer tk.Close()

	if err := tk.RegisterMaintenance(); err == nil {
		t.Error("expected error for unparseable interval")
	}
}

func TestMaintenanceJobRunsCleanup(t *testing.T) {
	tk := newTestToolkit(t)
	tk.Memory.Set("stale", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	// Run the sweep through the scheduler as an immediate job.
	err := tk.Scheduler.AddJob("sweep_now", func(ctx context.Context) error {
		tk.CleanupCaches()
		return nil
	}, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	tk.Scheduler.Start()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tk.Memory.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expired entry was not cleaned up by the scheduled job")
}

func TestMetricsSnapshot(t *testing.T) {
	tk := newTestToolkit(t)
	tk.Memory.Set("a", 1, 0)
	tk.File.Set("b", 2, 0)

	snap, err := tk.MetricsSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Caches[cache.StoreMemory].Items != 1 {
		t.Errorf("memory items = %d, want 1", snap.Caches[cache.StoreMemory].Items)
	}
	if snap.Caches[cache.StoreFile].Items != 1 {
		t.Errorf("file items = %d, want 1", snap.Caches[cache.StoreFile].Items)
	}
	if got := snap.LimiterTokens[config.APIYouTubeData]; got < 1.99 || got > 2 {
		t.Errorf("youtube_data tokens = %v, want 2", got)
	}
	if snap.SchedulerRunning {
		t.Error("scheduler should not be running")
	}
}
