package storefront

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/storefront/cache"
)

// DefaultViewsIdle is how long an untouched visitor's views are kept
const DefaultViewsIdle = 30 * time.Minute

// Views is one visitor's set of live views. Each keeps its state between
// requests, so a failed refetch still serves the data loaded before it and
// order pages accumulate across LoadMore calls.
type Views struct {
	Products   *Collection[Product]
	Categories *Collection[Category]

	catalog  *Catalog
	pageSize int
	log      zerolog.Logger

	mu     sync.Mutex
	orders map[string]*Pager[Order]
}

// Orders returns the visitor's pager over userID's orders, creating it on
// first use
func (v *Views) Orders(userID string) *Pager[Order] {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.orders[userID]
	if !ok {
		p = NewOrders(v.catalog, userID, v.pageSize, v.log)
		v.orders[userID] = p
	}
	return p
}

// ViewStore keeps Views per visitor ID. A visitor's views expire after
// idle time without access.
type ViewStore struct {
	catalog  *Catalog
	pageSize int
	idle     time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	views *cache.MemoryCache
}

// NewViewStore creates an empty store. Non-positive idle uses DefaultViewsIdle.
func NewViewStore(c *Catalog, pageSize int, idle time.Duration, log zerolog.Logger, opts ...cache.Option) *ViewStore {
	if idle <= 0 {
		idle = DefaultViewsIdle
	}
	return &ViewStore{
		catalog:  c,
		pageSize: pageSize,
		idle:     idle,
		log:      log,
		views:    cache.NewMemory(opts...),
	}
}

// Get returns the views of visitor id, creating them on first use, and
// restarts their idle timer
func (s *ViewStore) Get(id string) *Views {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.views.Get(id); ok {
		views := v.(*Views)
		s.views.Set(id, views, s.idle)
		return views
	}

	log := s.log.With().Str("visitor", id).Logger()
	views := &Views{
		Products:   NewProducts(s.catalog, log),
		Categories: NewCategories(s.catalog, log),
		catalog:    s.catalog,
		pageSize:   s.pageSize,
		log:        log,
		orders:     make(map[string]*Pager[Order]),
	}
	s.views.Set(id, views, s.idle)
	s.views.Purge()
	return views
}

// Forget drops a visitor's views
func (s *ViewStore) Forget(id string) {
	s.views.Invalidate(id)
}

// Len returns the number of stored visitors, idle ones not yet purged included
func (s *ViewStore) Len() int {
	return s.views.Len()
}
