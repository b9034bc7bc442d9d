package handlers

import (
	"testing"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/config"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
)

func newTestToolkit(t *testing.T) *toolkit.Toolkit {
	t.Helper()
	tk, err := toolkit.New(&config.Config{
		CacheTTL:         time.Hour,
		CacheMaxSize:     100,
		CacheDir:         t.TempDir(),
		CacheSharedMaxMB: 1,
		RateLimits: map[string]config.RateLimit{
			config.APIGemini: {Requests: 3, Window: time.Hour},
		},
		MaintenanceInterval:   "@every 6h",
		SchedulerPollInterval: time.Second,
		SchedulerStopTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("toolkit.New: %v", err)
	}
	t.Cleanup(tk.Close)
	return tk
}
