package toolkit

import (
	"context"
	"fmt"

	"github.com/onnwee/channel-insights/backend/internal/cache"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/metrics"
	"github.com/onnwee/channel-insights/backend/internal/scheduler"
)

// MaintenanceJob is the scheduler name of the periodic cache sweep.
const MaintenanceJob = "cache_maintenance"

// CleanupResult counts entries removed by CleanupCaches.
type CleanupResult struct {
	MemoryExpired int `json:"memory_expired"`
	FileExpired   int `json:"file_expired"`
	BoltExpired   int `json:"bolt_expired,omitempty"`
}

// StatsReport aggregates every cache's statistics.
type StatsReport struct {
	Memory cache.Stats       `json:"memory"`
	File   cache.FileStats   `json:"file"`
	Shared cache.SharedStats `json:"shared"`
	Bolt   *cache.BoltStats  `json:"bolt,omitempty"`
}

// CleanupCaches removes expired entries from the memory, file and (when
// configured) bolt caches. A failure in one cache does not prevent cleanup of
// the others.
func (t *Toolkit) CleanupCaches() CleanupResult {
	var res CleanupResult
	res.MemoryExpired = safeCleanup(cache.StoreMemory, t.Memory)
	res.FileExpired = safeCleanup(cache.StoreFile, t.File)
	if t.Bolt != nil {
		res.BoltExpired = safeCleanup(cache.StoreBolt, t.Bolt)
	}
	logger.WithComponent("toolkit").Info("Cache cleanup completed",
		"memory_expired", res.MemoryExpired,
		"file_expired", res.FileExpired,
		"bolt_expired", res.BoltExpired)
	return res
}

func safeCleanup(name string, store cache.Store) (n int) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithComponent("toolkit").Error("Cache cleanup failed", "store", name, "panic", fmt.Sprint(r))
			n = 0
		}
	}()
	return store.CleanupExpired()
}

// CacheStats reports statistics for every cache.
func (t *Toolkit) CacheStats() StatsReport {
	report := StatsReport{
		Memory: t.Memory.Stats(),
		File:   t.File.Stats(),
		Shared: t.Shared.Stats(),
	}
	if t.Bolt != nil {
		bs := t.Bolt.Stats()
		report.Bolt = &bs
	}
	return report
}

// RegisterMaintenance adds the periodic cache sweep to the scheduler using
// the configured maintenance interval.
func (t *Toolkit) RegisterMaintenance() error {
	interval, err := scheduler.ParseInterval(t.cfg.MaintenanceInterval)
	if err != nil {
		return fmt.Errorf("maintenance interval: %w", err)
	}
	return t.Scheduler.AddJob(MaintenanceJob, func(ctx context.Context) error {
		t.CleanupCaches()
		return nil
	}, interval, false)
}

// MetricsSnapshot implements metrics.Source.
func (t *Toolkit) MetricsSnapshot() (metrics.Snapshot, error) {
	mem := t.Memory.Stats()
	file := t.File.Stats()
	shared := t.Shared.Stats()

	snap := metrics.Snapshot{
		Caches: map[string]metrics.CacheGauge{
			cache.StoreMemory: {Items: mem.Size},
			cache.StoreFile:   {Items: file.FileCount, SizeBytes: file.TotalSizeBytes},
			cache.StoreShared: {Items: int(shared.Items), SizeBytes: shared.Size},
		},
		LimiterTokens:    make(map[string]float64),
		SchedulerRunning: t.Scheduler.Running(),
	}
	if t.Bolt != nil {
		bs := t.Bolt.Stats()
		snap.Caches[cache.StoreBolt] = metrics.CacheGauge{Items: bs.Keys, SizeBytes: bs.SizeBytes}
	}
	for _, st := range t.Limiters.Snapshot() {
		snap.LimiterTokens[st.Name] = st.Tokens
	}
	return snap, nil
}
