package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/onnwee/channel-insights/backend/internal/config"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
)

// Report is what cleanup prints.
type Report struct {
	Removed toolkit.CleanupResult `json:"removed"`
	Stats   toolkit.StatsReport   `json:"stats"`
}

// cleanup runs one cache maintenance pass and prints the results as JSON.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	// Logs go to stderr so stdout carries only the JSON report
	logger.InitWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if err := run(os.Stdout, cfg); err != nil {
		log.Fatalf("cleanup: %v", err)
	}
}

func run(w io.Writer, cfg *config.Config) error {
	tk, err := toolkit.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize toolkit: %w", err)
	}
	defer tk.Close()

	out := Report{
		Removed: tk.CleanupCaches(),
		Stats:   tk.CacheStats(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
