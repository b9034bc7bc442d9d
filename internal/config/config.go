package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/utils"
)

// Names of the external APIs that get their own rate limiter.
const (
	APIYouTubeData      = "youtube_data"
	APIYouTubeAnalytics = "youtube_analytics"
	APIGemini           = "gemini"
	// Inbound budget for the admin HTTP surface
	APIAdmin = "admin_api"
)

// RateLimit is a token bucket budget: Requests tokens per Window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Config holds toolkit configuration derived from environment variables.
type Config struct {
	// Caching
	CacheTTL         time.Duration // default TTL for memory and file caches
	CacheMaxSize     int           // max entries held by the memory cache
	CacheDir         string        // directory backing the file cache
	CacheSharedMaxMB int64         // cost budget of the shared (ristretto) cache
	CacheBoltPath    string        // bbolt database file; empty disables the store
	// Rate limits keyed by API name
	RateLimits map[string]RateLimit
	// Scheduling
	ScheduleEnabled       bool
	MaintenanceInterval   string // "@every 6h", "@daily", ...
	SchedulerPollInterval time.Duration
	SchedulerStopTimeout  time.Duration
	// Circuit breakers around external APIs
	BreakerFailureThreshold int
	BreakerTimeout          time.Duration
	// Admin HTTP surface
	AdminAddr      string
	StreamInterval time.Duration
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	LogFormat         string  // text or json
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		CacheTTL:         utils.GetEnvAsDuration("CACHE_TTL_SECONDS", time.Second, time.Hour),
		CacheMaxSize:     utils.GetEnvAsInt("CACHE_MAX_SIZE", 1000),
		CacheDir:         utils.GetEnvAsString("CACHE_DIR", ".cache"),
		CacheSharedMaxMB: int64(utils.GetEnvAsInt("CACHE_SHARED_MAX_MB", 64)),
		CacheBoltPath:    utils.GetEnvAsString("CACHE_BOLT_PATH", ""),
		RateLimits: map[string]RateLimit{
			// YouTube Data API: 10,000 quota units per day
			APIYouTubeData: {
				Requests: utils.GetEnvAsInt("YOUTUBE_API_QUOTA_LIMIT", 10000),
				Window:   utils.GetEnvAsDuration("YOUTUBE_API_QUOTA_WINDOW_SECONDS", time.Second, 24*time.Hour),
			},
			// Analytics allows far more, but stay conservative
			APIYouTubeAnalytics: {
				Requests: utils.GetEnvAsInt("YOUTUBE_ANALYTICS_RATE_LIMIT", 50),
				Window:   time.Hour,
			},
			APIGemini: {
				Requests: utils.GetEnvAsInt("GEMINI_API_RATE_LIMIT", 60),
				Window:   time.Minute,
			},
			APIAdmin: {
				Requests: utils.GetEnvAsInt("ADMIN_API_RATE_LIMIT", 600),
				Window:   time.Minute,
			},
		},
		ScheduleEnabled:         utils.GetEnvAsBool("SCHEDULE_ENABLED", false),
		MaintenanceInterval:     utils.GetEnvAsString("MAINTENANCE_INTERVAL", "@every 6h"),
		SchedulerPollInterval:   utils.GetEnvAsDuration("SCHEDULER_POLL_INTERVAL_MS", time.Millisecond, time.Minute),
		SchedulerStopTimeout:    utils.GetEnvAsDuration("SCHEDULER_STOP_TIMEOUT_MS", time.Millisecond, 5*time.Second),
		BreakerFailureThreshold: utils.GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerTimeout:          utils.GetEnvAsDuration("BREAKER_TIMEOUT_SECONDS", time.Second, time.Minute),
		AdminAddr:               utils.GetEnvAsString("ADMIN_ADDR", ":8090"),
		StreamInterval:          utils.GetEnvAsDuration("STREAM_INTERVAL_MS", time.Millisecond, 5*time.Second),
		// Observability settings
		LogLevel:          strings.ToLower(utils.GetEnvAsString("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(utils.GetEnvAsString("LOG_FORMAT", "")),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      utils.GetEnvAsString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         utils.GetEnvAsString("SENTRY_DSN", ""),
		SentryEnvironment: utils.GetEnvAsString("SENTRY_ENVIRONMENT", ""),
		SentryRelease:     utils.GetEnvAsString("SENTRY_RELEASE", ""),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.CacheMaxSize <= 0 {
		cached.CacheMaxSize = 1000
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}
	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
