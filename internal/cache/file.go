package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/metrics"
)

const (
	fileSuffix = ".cache"
	tempSuffix = ".tmp"

	// Temp files older than this are leftovers from interrupted writes.
	staleTempAge = time.Hour
)

// fileEntry is the on-disk representation of an Entry.
type fileEntry struct {
	Value      json.RawMessage `json:"value"`
	Timestamp  time.Time       `json:"timestamp"`
	TTLSeconds float64         `json:"ttl_seconds"`
	Hits       uint64          `json:"hits"`
}

func (e *fileEntry) valid() bool {
	return len(e.Value) > 0 && !e.Timestamp.IsZero()
}

func (e *fileEntry) ttl() time.Duration {
	return time.Duration(e.TTLSeconds * float64(time.Second))
}

func (e *fileEntry) expiredAt(now time.Time) bool {
	return (&Entry{Timestamp: e.Timestamp, TTL: e.ttl()}).ExpiredAt(now)
}

// FileCache persists entries as one JSON file per key so they survive
// process restarts. Values must be JSON-serializable. All I/O failures are
// logged and degrade to a miss.
type FileCache struct {
	mu         sync.Mutex
	dir        string
	defaultTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
}

var (
	_ Store   = (*FileCache)(nil)
	_ Decoder = (*FileCache)(nil)
)

// NewFileCache creates a file cache rooted at dir, creating it if needed.
func NewFileCache(dir string, defaultTTL time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{
		dir:        dir,
		defaultTTL: defaultTTL,
		now:        time.Now,
		log:        logger.WithComponent("file_cache"),
	}, nil
}

// Dir returns the directory backing the cache.
func (c *FileCache) Dir() string {
	return c.dir
}

// Get returns the decoded value for key. JSON objects come back as
// map[string]any and numbers as float64; use GetInto for typed reads.
func (c *FileCache) Get(key string) (any, bool) {
	var v any
	if !c.GetInto(key, &v) {
		return nil, false
	}
	return v, true
}

// GetInto decodes the value for key into dst and reports whether it was a hit.
func (c *FileCache) GetInto(key string, dst any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.load(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues(StoreFile).Inc()
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("Cached value does not match destination type", "key", key, "error", err)
		metrics.FileCacheErrors.WithLabelValues("read").Inc()
		metrics.CacheMisses.WithLabelValues(StoreFile).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(StoreFile).Inc()
	return true
}

// load reads, validates and bumps the hit counter for key. Must hold c.mu.
func (c *FileCache) load(key string) (json.RawMessage, bool) {
	path, ok := c.path(key)
	if !ok {
		return nil, false
	}

	entry, err := readEntry(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("Error reading cache file", "path", path, "error", err)
			metrics.FileCacheErrors.WithLabelValues("read").Inc()
			c.remove(path)
		}
		return nil, false
	}

	if entry.expiredAt(c.now()) {
		c.remove(path)
		metrics.CacheExpiredRemoved.WithLabelValues(StoreFile).Inc()
		return nil, false
	}

	entry.Hits++
	if err := c.write(path, entry); err != nil {
		// The value is still good; only the hit counter is lost.
		c.log.Warn("Error updating cache hit count", "path", path, "error", err)
		metrics.FileCacheErrors.WithLabelValues("write").Inc()
	}
	return entry.Value, true
}

// Set serializes value and writes it atomically. Failures are logged and
// swallowed.
func (c *FileCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.path(key)
	if !ok {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Error("Error serializing cache value", "key", key, "error", err)
		metrics.FileCacheErrors.WithLabelValues("write").Inc()
		return
	}

	entry := &fileEntry{
		Value:      raw,
		Timestamp:  c.now(),
		TTLSeconds: ttl.Seconds(),
	}
	if err := c.write(path, entry); err != nil {
		c.log.Error("Error writing cache file", "path", path, "error", err)
		metrics.FileCacheErrors.WithLabelValues("write").Inc()
	}
}

// Delete removes the file for key and reports whether it existed.
func (c *FileCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.path(key)
	if !ok {
		return false
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("Error deleting cache file", "path", path, "error", err)
			metrics.FileCacheErrors.WithLabelValues("delete").Inc()
		}
		return false
	}
	return true
}

// Clear removes every cache file in the directory.
func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, path := range c.files(fileSuffix) {
		c.remove(path)
	}
}

// CleanupExpired removes expired and unreadable cache files and returns the
// number removed. Stale temp files from interrupted writes are swept too but
// not counted.
func (c *FileCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, path := range c.files(fileSuffix) {
		entry, err := readEntry(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			c.log.Debug("Removing unreadable cache file", "path", path, "error", err)
			c.remove(path)
			removed++
			continue
		}
		if entry.expiredAt(now) {
			c.remove(path)
			removed++
		}
	}

	for _, path := range c.files(tempSuffix) {
		if info, err := os.Stat(path); err == nil && now.Sub(info.ModTime()) > staleTempAge {
			c.remove(path)
		}
	}

	if removed > 0 {
		metrics.CacheExpiredRemoved.WithLabelValues(StoreFile).Add(float64(removed))
	}
	return removed
}

// Stats reports the number and total size of cache files.
func (c *FileCache) Stats() FileStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s FileStats
	for _, path := range c.files(fileSuffix) {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		s.FileCount++
		s.TotalSizeBytes += info.Size()
	}
	s.TotalSizeMB = float64(s.TotalSizeBytes) / (1024 * 1024)
	return s
}

// path maps key to its file. Keys must already be filesystem-safe.
func (c *FileCache) path(key string) (string, bool) {
	if !validKey(key) {
		c.log.Warn("Rejecting cache key that is not filesystem-safe", "key", key)
		return "", false
	}
	return filepath.Join(c.dir, key+fileSuffix), true
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, "/\\\x00")
}

// files lists regular files in the cache directory ending in suffix. The
// directory name is used literally, never as a pattern.
func (c *FileCache) files(suffix string) []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("Error listing cache directory", "dir", c.dir, "error", err)
		return nil
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		paths = append(paths, filepath.Join(c.dir, e.Name()))
	}
	return paths
}

func (c *FileCache) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.Warn("Error removing cache file", "path", path, "error", err)
		metrics.FileCacheErrors.WithLabelValues("delete").Inc()
	}
}

// write stores entry at path via a temp file and rename so readers never
// observe a partial file.
func (c *FileCache) write(path string, entry *fileEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func readEntry(path string) (*fileEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	if !entry.valid() {
		return nil, errors.New("cache entry is missing value or timestamp")
	}
	return &entry, nil
}
