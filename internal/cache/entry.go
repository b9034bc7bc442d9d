package cache

import "time"

// Entry is a cached value plus the metadata needed to expire it.
type Entry struct {
	Value     any
	Timestamp time.Time
	TTL       time.Duration
	Hits      uint64
}

// NewEntry creates an entry stamped at now.
func NewEntry(value any, ttl time.Duration, now time.Time) *Entry {
	return &Entry{Value: value, Timestamp: now, TTL: ttl}
}

// ExpiredAt reports whether the entry is stale at the given instant.
// A non-positive TTL is always expired.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return e.TTL <= 0 || now.Sub(e.Timestamp) > e.TTL
}

// IsExpired reports whether the entry is stale now.
func (e *Entry) IsExpired() bool {
	return e.ExpiredAt(time.Now())
}

// AgeAt returns how long ago the entry was created, relative to now.
func (e *Entry) AgeAt(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Age returns the entry's current age.
func (e *Entry) Age() time.Duration {
	return e.AgeAt(time.Now())
}
