package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics, labelled by store: memory, file, shared
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolkit_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"store"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolkit_cache_misses_total",
			Help: "Total number of cache misses (absent, expired or corrupted)",
		},
		[]string{"store"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolkit_cache_evictions_total",
			Help: "Total number of entries evicted to respect the size bound",
		},
		[]string{"store"},
	)

	CacheExpiredRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolkit_cache_expired_removed_total",
			Help: "Total number of expired or corrupted entries removed",
		},
		[]string{"store"},
	)

	CacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolkit_cache_items",
			Help: "Current number of items in the cache",
		},
		[]string{"store"},
	)

	CacheSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolkit_cache_size_bytes",
			Help: "Approximate size of the cache in bytes",
		},
		[]string{"store"},
	)

	FileCacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolkit_file_cache_errors_total",
			Help: "Total number of swallowed file cache I/O or decode errors",
		},
		[]string{"op"}, // op: read, write, delete
	)

	// Rate limiter metrics
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolkit_ratelimit_decisions_total",
			Help: "Total number of token acquisitions by outcome",
		},
		[]string{"limiter", "result"}, // result: allowed, denied
	)

	RateLimitWaits = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolkit_ratelimit_wait_seconds",
			Help:    "Time spent blocked waiting for tokens",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"limiter"},
	)

	RateLimitTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolkit_ratelimit_tokens",
			Help: "Tokens currently available in the bucket",
		},
		[]string{"limiter"},
	)

	// Scheduler metrics
	SchedulerJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolkit_scheduler_job_runs_total",
			Help: "Total number of scheduled job executions",
		},
		[]string{"job", "status"}, // status: success, failed
	)

	SchedulerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolkit_scheduler_job_duration_seconds",
			Help:    "Duration of scheduled job executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	SchedulerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toolkit_scheduler_running",
			Help: "1 while the scheduler worker is running",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	// Admin API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of admin API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active stats stream connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of stats snapshots pushed to stream clients",
		},
	)
)
