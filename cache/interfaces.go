// Package cache provides an in-process TTL cache for fetched result sets,
// with lazy expiry on read and a read-through loader that collapses
// concurrent misses for the same key into one fetch.
package cache

import "time"

// Entry represents a cached value with the metadata needed to decide freshness
type Entry struct {
	Key      string
	Value    any
	StoredAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still valid at now
func (e *Entry) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Get returns the cached value if present and fresh. A stale entry is
	// removed and reported as a miss.
	Get(key string) (any, bool)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Set inserts or replaces the entry for key, stamping it with the current time
	Set(key string, value any, ttl time.Duration)
}

// Invalidator removes entries ahead of their expiry
type Invalidator interface {
	// Invalidate removes the entry for key. Removing an absent key is a no-op.
	Invalidate(key string)

	// Clear removes every entry
	Clear()
}

// Cache is the main interface that combines all cache operations
type Cache interface {
	Reader
	Writer
	Invalidator
}

// Stats is a point-in-time snapshot of cache activity
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Expired uint64 `json:"expired"`
	Sets    uint64 `json:"sets"`
}
