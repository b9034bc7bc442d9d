// Package toolkit wires the caches, rate limiters, circuit breakers and
// scheduler into one object built at startup and passed to collaborators.
package toolkit

import (
	"fmt"
	"sync"

	"github.com/onnwee/channel-insights/backend/internal/cache"
	"github.com/onnwee/channel-insights/backend/internal/circuitbreaker"
	"github.com/onnwee/channel-insights/backend/internal/config"
	"github.com/onnwee/channel-insights/backend/internal/errorreporting"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/ratelimit"
	"github.com/onnwee/channel-insights/backend/internal/scheduler"
)

// Toolkit holds the process-wide performance primitives.
type Toolkit struct {
	Memory    *cache.MemoryCache
	File      *cache.FileCache
	Shared    *cache.SharedCache
	Bolt      *cache.BoltCache // nil unless CACHE_BOLT_PATH is set
	Limiters  *ratelimit.Registry
	Breakers  *circuitbreaker.Registry
	Scheduler *scheduler.Scheduler

	cfg       *config.Config
	closeOnce sync.Once
}

// New builds every primitive from cfg.
func New(cfg *config.Config) (*Toolkit, error) {
	file, err := cache.NewFileCache(cfg.CacheDir, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("file cache: %w", err)
	}

	shared, err := cache.NewSharedCache(cfg.CacheSharedMaxMB, int64(cfg.CacheMaxSize), cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("shared cache: %w", err)
	}

	budgets := make(map[string]ratelimit.Budget, len(cfg.RateLimits))
	for name, rl := range cfg.RateLimits {
		budgets[name] = ratelimit.Budget{Requests: rl.Requests, Window: rl.Window}
	}

	tk := &Toolkit{
		Memory:   cache.NewMemoryCache(cfg.CacheTTL, cfg.CacheMaxSize),
		File:     file,
		Shared:   shared,
		Limiters: ratelimit.NewRegistry(budgets),
		Breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Timeout:          cfg.BreakerTimeout,
		}),
		Scheduler: scheduler.New(scheduler.Config{
			PollInterval: cfg.SchedulerPollInterval,
			StopTimeout:  cfg.SchedulerStopTimeout,
			OnError:      errorreporting.CaptureJobFailure,
		}),
		cfg: cfg,
	}

	if cfg.CacheBoltPath != "" {
		bolt, err := cache.NewBoltCache(cfg.CacheBoltPath, cfg.CacheTTL)
		if err != nil {
			shared.Close()
			return nil, fmt.Errorf("bolt cache: %w", err)
		}
		tk.Bolt = bolt
	}

	logger.WithComponent("toolkit").Info("Toolkit initialized",
		"cache_dir", file.Dir(),
		"cache_ttl", cfg.CacheTTL.String(),
		"cache_max_size", cfg.CacheMaxSize,
		"limiters", tk.Limiters.Names())
	return tk, nil
}

// Store returns the cache named kind: memory, file, shared or bolt. The bolt
// store is only available when configured.
func (t *Toolkit) Store(kind string) (cache.Store, bool) {
	switch kind {
	case cache.StoreMemory:
		return t.Memory, true
	case cache.StoreFile:
		return t.File, true
	case cache.StoreShared:
		return t.Shared, true
	case cache.StoreBolt:
		if t.Bolt == nil {
			return nil, false
		}
		return t.Bolt, true
	default:
		return nil, false
	}
}

// Stores returns every configured cache keyed by its store name.
func (t *Toolkit) Stores() map[string]cache.Store {
	stores := map[string]cache.Store{
		cache.StoreMemory: t.Memory,
		cache.StoreFile:   t.File,
		cache.StoreShared: t.Shared,
	}
	if t.Bolt != nil {
		stores[cache.StoreBolt] = t.Bolt
	}
	return stores
}

// Limiter returns the named rate limiter.
func (t *Toolkit) Limiter(name string) (*ratelimit.Limiter, bool) {
	return t.Limiters.Get(name)
}

// Close stops the scheduler and releases the shared and bolt caches. Safe to
// call more than once.
func (t *Toolkit) Close() {
	t.closeOnce.Do(func() {
		if !t.Scheduler.Stop() {
			logger.WithComponent("toolkit").Warn("Scheduler did not stop within timeout")
		}
		t.Shared.Close()
		if t.Bolt != nil {
			if err := t.Bolt.Close(); err != nil {
				logger.WithComponent("toolkit").Warn("Failed to close bolt cache", "error", err)
			}
		}
	})
}
