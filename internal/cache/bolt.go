package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/metrics"
)

var boltBucket = []byte("entries")

// BoltStats summarizes the bbolt-backed cache.
type BoltStats struct {
	Keys      int    `json:"keys"`
	SizeBytes int64  `json:"size_bytes"`
	Path      string `json:"path"`
}

// BoltCache keeps entries in a single bbolt database file, using the same
// JSON entry encoding as FileCache. It suits many small entries where one
// file per key would be wasteful. Failures degrade to a miss.
type BoltCache struct {
	mu         sync.RWMutex
	db         *bbolt.DB
	path       string
	defaultTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
	closed     bool
}

var (
	_ Store   = (*BoltCache)(nil)
	_ Decoder = (*BoltCache)(nil)
)

// NewBoltCache opens (or creates) the database at path.
func NewBoltCache(path string, defaultTTL time.Duration) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(boltBucket)
		return createErr
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltCache{
		db:         db,
		path:       path,
		defaultTTL: defaultTTL,
		now:        time.Now,
		log:        logger.WithComponent("bolt_cache"),
	}, nil
}

// Get returns the decoded value for key.
func (c *BoltCache) Get(key string) (any, bool) {
	var v any
	if !c.GetInto(key, &v) {
		return nil, false
	}
	return v, true
}

// GetInto decodes the value for key into dst. Expired and corrupt entries
// are removed.
func (c *BoltCache) GetInto(key string, dst any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	var raw json.RawMessage
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		var entry fileEntry
		if err := json.Unmarshal(data, &entry); err != nil || !entry.valid() {
			c.log.Warn("Removing corrupt cache entry", "key", key)
			return b.Delete([]byte(key))
		}
		if entry.expiredAt(c.now()) {
			return b.Delete([]byte(key))
		}
		entry.Hits++
		updated, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		raw = entry.Value
		return b.Put([]byte(key), updated)
	})
	if err != nil {
		c.log.Error("Error reading cache entry", "key", key, "error", err)
		metrics.FileCacheErrors.WithLabelValues("read").Inc()
	}
	if raw == nil {
		metrics.CacheMisses.WithLabelValues(StoreBolt).Inc()
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(StoreBolt).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(StoreBolt).Inc()
	return true
}

// Set stores value under key. Serialization and write errors are logged and
// swallowed.
func (c *BoltCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Error("Error serializing cache value", "key", key, "error", err)
		metrics.FileCacheErrors.WithLabelValues("write").Inc()
		return
	}
	data, err := json.Marshal(&fileEntry{Value: raw, Timestamp: c.now(), TTLSeconds: ttl.Seconds()})
	if err != nil {
		return
	}
	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), data)
	})
	if err != nil {
		c.log.Error("Error writing cache entry", "key", key, "error", err)
		metrics.FileCacheErrors.WithLabelValues("write").Inc()
	}
}

// Delete removes key and reports whether it existed.
func (c *BoltCache) Delete(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	existed := false
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		existed = b.Get([]byte(key)) != nil
		return b.Delete([]byte(key))
	})
	if err != nil {
		c.log.Warn("Error deleting cache entry", "key", key, "error", err)
		return false
	}
	return existed
}

// Clear drops every entry.
func (c *BoltCache) Clear() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(boltBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(boltBucket)
		return err
	})
	if err != nil {
		c.log.Error("Error clearing bolt cache", "error", err)
	}
}

// CleanupExpired removes expired and corrupt entries and returns how many
// were removed.
func (c *BoltCache) CleanupExpired() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0
	}

	now := c.now()
	removed := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(boltBucket).Cursor()
		for k, v := cur.First(); k != nil; {
			var entry fileEntry
			if err := json.Unmarshal(v, &entry); err != nil || !entry.valid() || entry.expiredAt(now) {
				seek := append([]byte(nil), k...)
				if err := cur.Delete(); err != nil {
					return err
				}
				removed++
				k, v = cur.Seek(seek)
				continue
			}
			k, v = cur.Next()
		}
		return nil
	})
	if err != nil {
		c.log.Error("Error cleaning up bolt cache", "error", err)
	}
	if removed > 0 {
		metrics.CacheExpiredRemoved.WithLabelValues(StoreBolt).Add(float64(removed))
	}
	return removed
}

// Stats reports key count and database size.
func (c *BoltCache) Stats() BoltStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := BoltStats{Path: c.path}
	if c.closed {
		return s
	}
	_ = c.db.View(func(tx *bbolt.Tx) error {
		s.Keys = tx.Bucket(boltBucket).Stats().KeyN
		s.SizeBytes = tx.Size()
		return nil
	})
	return s
}

// Close closes the database. Safe to call more than once.
func (c *BoltCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
