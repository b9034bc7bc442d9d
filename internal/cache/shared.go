package cache

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/onnwee/channel-insights/backend/internal/metrics"
)

// SharedCache is a cost-bounded cache backed by ristretto, meant for large
// payloads (API response bodies, rendered reports) where a byte budget is a
// better bound than an entry count. Admission is probabilistic: a Set may be
// dropped under pressure, which callers observe as a later miss.
type SharedCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

// sharedItem wraps the data with expiration time.
type sharedItem struct {
	value     any
	expiresAt time.Time
}

var _ Store = (*SharedCache)(nil)

// NewSharedCache creates a shared cache.
// maxSizeMB is the maximum size of the cache in megabytes.
// maxEntries is the expected number of entries, used to size the admission counters.
func NewSharedCache(maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*SharedCache, error) {
	// NumCounters should be ~10x the number of entries for optimal performance
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 1
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB * 1024 * 1024,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &SharedCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}, nil
}

// Get retrieves a value from the cache by key.
func (c *SharedCache) Get(key string) (any, bool) {
	val, found := c.cache.Get(key)
	if !found {
		metrics.CacheMisses.WithLabelValues(StoreShared).Inc()
		return nil, false
	}

	item, ok := val.(*sharedItem)
	if !ok || time.Now().After(item.expiresAt) {
		c.cache.Del(key)
		metrics.CacheMisses.WithLabelValues(StoreShared).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(StoreShared).Inc()
	return item.value, true
}

// Set stores a value in the cache with the given key and TTL.
func (c *SharedCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl < 0 {
		return
	}

	item := &sharedItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}

	// ristretto may reject the item; that is just a future miss
	_ = c.cache.SetWithTTL(key, item, costOf(value), ttl)

	// Wait for value to pass through buffers so a following Get sees it
	c.cache.Wait()
}

// Delete removes a value from the cache.
func (c *SharedCache) Delete(key string) bool {
	_, found := c.cache.Get(key)
	c.cache.Del(key)
	return found
}

// Clear removes all values from the cache.
func (c *SharedCache) Clear() {
	c.cache.Clear()
}

// CleanupExpired is a no-op that returns 0: ristretto expires TTL'd items
// on its own cleanup ticker and exposes no iteration.
func (c *SharedCache) CleanupExpired() int {
	return 0
}

// Stats returns cache statistics.
func (c *SharedCache) Stats() SharedStats {
	m := c.cache.Metrics
	return SharedStats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()), // Approximate current size
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close closes the cache and releases resources.
func (c *SharedCache) Close() {
	c.cache.Close()
}

// costOf approximates the byte size of value.
func costOf(value any) int64 {
	switch v := value.(type) {
	case []byte:
		return int64(len(v)) + 1
	case string:
		return int64(len(v)) + 1
	case json.RawMessage:
		return int64(len(v)) + 1
	default:
		return 1
	}
}
