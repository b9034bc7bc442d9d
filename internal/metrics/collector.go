package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/logger"
)

// CacheGauge is a point-in-time view of one cache store.
type CacheGauge struct {
	Items     int
	SizeBytes int64
}

// Snapshot is what a Source reports on each collection tick.
type Snapshot struct {
	Caches           map[string]CacheGauge
	LimiterTokens    map[string]float64
	SchedulerRunning bool
}

// Source produces snapshots for the collector.
type Source interface {
	MetricsSnapshot() (Snapshot, error)
}

// Collector periodically collects and updates Prometheus gauges
type Collector struct {
	source   Source
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	return &Collector{
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Collect initial metrics
	c.Collect()

	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	close(c.stop)
}

// Collect runs a single collection pass.
func (c *Collector) Collect() {
	snap, err := c.safeSnapshot()
	if err != nil {
		logger.WithComponent("metrics").Warn("Error collecting toolkit snapshot", "error", err)
		MetricsCollectionErrors.WithLabelValues("toolkit").Inc()
		return
	}

	for store, g := range snap.Caches {
		CacheItems.WithLabelValues(store).Set(float64(g.Items))
		CacheSizeBytes.WithLabelValues(store).Set(float64(g.SizeBytes))
	}
	for name, tokens := range snap.LimiterTokens {
		RateLimitTokens.WithLabelValues(name).Set(tokens)
	}
	if snap.SchedulerRunning {
		SchedulerRunning.Set(1)
	} else {
		SchedulerRunning.Set(0)
	}
}

func (c *Collector) safeSnapshot() (snap Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot panicked: %v", r)
		}
	}()
	return c.source.MetricsSnapshot()
}
