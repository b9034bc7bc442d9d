package cache

import "time"

// Store names used for metrics labels and store selection.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreShared = "shared"
	StoreBolt   = "bolt"
)

// Store is the contract shared by every cache in the toolkit. Lookups never
// fail: an absent, expired or corrupted key is simply a miss.
type Store interface {
	// Get retrieves a value from the cache by key.
	// Returns the value and true if found and not expired, otherwise nil and false.
	Get(key string) (any, bool)

	// Set stores a value in the cache with the given key and TTL.
	// TTL of 0 means use the default cache TTL.
	Set(key string, value any, ttl time.Duration)

	// Delete removes a value from the cache and reports whether it existed.
	Delete(key string) bool

	// Clear removes all values from the cache.
	Clear()

	// CleanupExpired removes expired entries and returns how many were removed.
	CleanupExpired() int
}

// Decoder is implemented by stores that keep values in serialized form and
// can decode them straight into a typed destination.
type Decoder interface {
	GetInto(key string, dst any) bool
}

// Stats represents memory cache statistics.
type Stats struct {
	Size         int    `json:"size"`          // Current number of entries
	MaxSize      int    `json:"max_size"`      // Entry bound
	TotalHits    uint64 `json:"total_hits"`    // Sum of per-entry hit counters
	ExpiredCount int    `json:"expired_count"` // Entries expired but not yet removed
	Hits         uint64 `json:"hits"`          // Lifetime cache hits
	Misses       uint64 `json:"misses"`        // Lifetime cache misses
	Evictions    uint64 `json:"evictions"`     // Lifetime LRU evictions
}

// FileStats summarizes the on-disk cache directory.
type FileStats struct {
	FileCount      int     `json:"file_count"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
}

// SharedStats mirrors ristretto's counters for the shared cache.
type SharedStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	KeysAdded uint64 `json:"keys_added"`
	Evictions uint64 `json:"evictions"`
	Size      int64  `json:"size_bytes"` // Approximate size in bytes
	Items     int64  `json:"items"`
}
