package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/metrics"
)

// DefaultMaxSize is used when a memory cache is created with a non-positive bound.
const DefaultMaxSize = 1000

// MemoryCache is a bounded in-process cache with TTL expiry and
// least-recently-used eviction.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front is least recently used
	defaultTTL time.Duration
	maxSize    int
	now        func() time.Time

	hits, misses, evictions uint64
}

// memoryItem is the payload of each recency list element.
type memoryItem struct {
	key   string
	entry *Entry
}

var _ Store = (*MemoryCache)(nil)

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(defaultTTL time.Duration, maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
		now:        time.Now,
	}
}

// Get returns the value for key and marks it most recently used.
// Expired entries are removed on sight.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.recordMiss()
		return nil, false
	}

	item := el.Value.(*memoryItem)
	if item.entry.ExpiredAt(c.now()) {
		c.removeElement(el)
		metrics.CacheExpiredRemoved.WithLabelValues(StoreMemory).Inc()
		c.recordMiss()
		return nil, false
	}

	item.entry.Hits++
	c.order.MoveToBack(el)
	c.hits++
	metrics.CacheHits.WithLabelValues(StoreMemory).Inc()
	return item.entry.Value, true
}

// Set inserts or replaces key. Inserting a new key into a full cache evicts
// the least recently used entry first.
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := NewEntry(value, ttl, c.now())

	if el, ok := c.entries[key]; ok {
		el.Value.(*memoryItem).entry = entry
		c.order.MoveToBack(el)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
		metrics.CacheEvictions.WithLabelValues(StoreMemory).Inc()
	}

	c.entries[key] = c.order.PushBack(&memoryItem{key: key, entry: entry})
}

// Delete removes key and reports whether it was present.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Clear empties the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// CleanupExpired removes every expired entry and returns the count removed.
func (c *MemoryCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*memoryItem).entry.ExpiredAt(now) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	if removed > 0 {
		metrics.CacheExpiredRemoved.WithLabelValues(StoreMemory).Add(float64(removed))
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{
		Size:      len(c.entries),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*memoryItem).entry
		s.TotalHits += e.Hits
		if e.ExpiredAt(now) {
			s.ExpiredCount++
		}
	}
	return s
}

func (c *MemoryCache) removeElement(el *list.Element) {
	item := c.order.Remove(el).(*memoryItem)
	delete(c.entries, item.key)
}

func (c *MemoryCache) recordMiss() {
	c.misses++
	metrics.CacheMisses.WithLabelValues(StoreMemory).Inc()
}
