package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/channel-insights/backend/internal/api"
	"github.com/onnwee/channel-insights/backend/internal/api/handlers"
	"github.com/onnwee/channel-insights/backend/internal/config"
	"github.com/onnwee/channel-insights/backend/internal/errorreporting"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/metrics"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
	"github.com/onnwee/channel-insights/backend/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, config.Load())
	stop()
	if err != nil {
		log.Fatalf("toolkit server: %v", err)
	}
}

// run serves the admin API until ctx is done. It owns every resource of the
// process, so toolkit close, error report flush and tracer shutdown also
// happen when startup fails.
func run(ctx context.Context, cfg *config.Config) error {
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Initializing toolkit server", "version", cfg.SentryRelease, "log_level", cfg.LogLevel)

	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.IsEnabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	shutdownTracing, err := tracing.Init(tracing.Options{
		ServiceName: "channel-insights-toolkit",
		Version:     cfg.SentryRelease,
		Enabled:     cfg.OTELEnabled,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			logger.Info("Shutting down tracer...")
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	tk, err := toolkit.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize toolkit", "error", err)
		errorreporting.CaptureError(err)
		return fmt.Errorf("initialize toolkit: %w", err)
	}
	defer tk.Close()

	if err := tk.RegisterMaintenance(); err != nil {
		logger.Error("Failed to register cache maintenance", "error", err)
		errorreporting.CaptureError(err)
		return fmt.Errorf("register cache maintenance: %w", err)
	}
	if cfg.ScheduleEnabled {
		tk.Scheduler.Start()
	} else {
		logger.Info("Scheduler disabled (SCHEDULE_ENABLED=false)")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector := metrics.NewCollector(tk, 30*time.Second)
	go collector.Start(ctx)
	defer collector.Stop()

	hub := handlers.NewHub(handlers.ToolkitSnapshot(tk), cfg.StreamInterval)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           api.NewRouter(tk, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Admin server listening", "addr", cfg.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Admin server failed", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Admin server shutdown failed", "error", err)
	}
	logger.Info("Shutting down toolkit server")

	select {
	case err := <-serveErr:
		return fmt.Errorf("admin server: %w", err)
	default:
		return nil
	}
}
