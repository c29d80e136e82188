package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache implements the Cache interface with a process-local map.
// Entries are never swept in the background; expiry is detected on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time

	hits    atomic.Uint64
	misses  atomic.Uint64
	expired atomic.Uint64
	sets    atomic.Uint64
}

// Option configures a MemoryCache
type Option func(*MemoryCache)

// WithClock overrides the time source used to stamp and check entries
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemory creates an empty in-memory cache
func NewMemory(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get implements Reader
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if entry.Fresh(c.now()) {
		c.hits.Add(1)
		return entry.Value, true
	}

	// Stale: purge, unless a writer replaced it between the two locks
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur == entry {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	c.expired.Add(1)
	c.misses.Add(1)
	return nil, false
}

// Set implements Writer
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	entry := &Entry{
		Key:      key,
		Value:    value,
		StoredAt: c.now(),
		TTL:      ttl,
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	c.sets.Add(1)
}

// Invalidate implements Invalidator
func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear implements Invalidator
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// Purge removes every stale entry and returns how many were dropped
func (c *MemoryCache) Purge() int {
	now := c.now()

	c.mu.Lock()
	n := 0
	for key, entry := range c.entries {
		if !entry.Fresh(now) {
			delete(c.entries, key)
			n++
		}
	}
	c.mu.Unlock()

	c.expired.Add(uint64(n))
	return n
}

// Len returns the number of stored entries, stale ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Entries: c.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Expired: c.expired.Load(),
		Sets:    c.sets.Load(),
	}
}

var _ Cache = (*MemoryCache)(nil)
