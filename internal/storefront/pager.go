package storefront

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// PageState is the state of a paginated view
type PageState[T any] struct {
	State[T]
	HasMore bool `json:"has_more"`
}

// PageFunc loads the page starting at offset; force bypasses a cache hit
type PageFunc[T any] func(ctx context.Context, offset, limit int, force bool) ([]T, error)

// Pager accumulates pages of an entity into one list.
//
// HasMore is a heuristic: a full page means more rows may exist, a short
// page means the source is exhausted. When the remaining row count is an
// exact multiple of the page size, one extra LoadMore returns an empty page
// before HasMore turns false.
type Pager[T any] struct {
	fetch    PageFunc[T]
	pageSize int
	log      zerolog.Logger

	mu    sync.Mutex
	state PageState[T]
	gen   uint64
	// fresh is set by a successful Refetch. Later pages were cached against
	// the old row set, so from then on LoadMore bypasses the cache too.
	fresh bool
}

// NewPager creates an idle pager. A nil fetch makes every operation a no-op.
func NewPager[T any](fetch PageFunc[T], pageSize int, log zerolog.Logger) *Pager[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager[T]{
		fetch:    fetch,
		pageSize: pageSize,
		log:      log,
		state: PageState[T]{
			State:   State[T]{Status: StatusIdle},
			HasMore: true,
		},
	}
}

// NewOrders creates a pager over one user's orders. With an empty userID
// nothing is ever fetched and the pager stays idle.
func NewOrders(c *Catalog, userID string, pageSize int, log zerolog.Logger) *Pager[Order] {
	log = log.With().Str("entity", EntityOrders).Str("user_id", userID).Logger()
	if userID == "" {
		return NewPager[Order](nil, pageSize, log)
	}
	fetch := func(ctx context.Context, offset, limit int, force bool) ([]Order, error) {
		return c.OrdersPage(ctx, userID, offset, limit, force)
	}
	return NewPager[Order](fetch, pageSize, log)
}

// LoadMore appends the next page. It does nothing while a fetch is in
// flight or once a short page has been seen.
func (p *Pager[T]) LoadMore(ctx context.Context) PageState[T] {
	p.mu.Lock()
	if p.fetch == nil || p.state.Loading || !p.state.HasMore {
		defer p.mu.Unlock()
		return p.snapshot()
	}
	gen := p.gen
	offset := len(p.state.Data)
	force := p.fresh
	p.state.Loading = true
	p.state.Status = StatusLoading
	p.mu.Unlock()

	items, err := p.fetch(ctx, offset, p.pageSize, force)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return p.snapshot()
	}
	p.finish(items, err, false)
	return p.snapshot()
}

// Refetch reloads the first page, bypassing the cache, and replaces the
// accumulated list with it. Results of fetches issued before the call are
// discarded. On failure the previous list is kept. After a successful
// Refetch every later page is fetched from the source as well.
func (p *Pager[T]) Refetch(ctx context.Context) PageState[T] {
	p.mu.Lock()
	if p.fetch == nil {
		defer p.mu.Unlock()
		return p.snapshot()
	}
	p.gen++
	gen := p.gen
	p.state.Loading = true
	p.state.Status = StatusLoading
	p.mu.Unlock()

	items, err := p.fetch(ctx, 0, p.pageSize, true)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return p.snapshot()
	}
	p.finish(items, err, true)
	if err == nil {
		p.fresh = true
	}
	return p.snapshot()
}

// State returns a snapshot of the current state
func (p *Pager[T]) State() PageState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// finish applies a fetch result; callers hold p.mu
func (p *Pager[T]) finish(items []T, err error, replace bool) {
	p.state.Loading = false
	if err != nil {
		p.log.Warn().Err(err).Msg("page fetch failed")
		p.state.Error = err.Error()
		p.state.Status = StatusError
		return
	}

	if replace {
		p.state.Data = slices.Clone(items)
	} else {
		p.state.Data = append(p.state.Data, items...)
	}
	p.state.HasMore = len(items) == p.pageSize
	p.state.Error = ""
	p.state.Status = StatusReady
}

func (p *Pager[T]) snapshot() PageState[T] {
	s := p.state
	s.Data = slices.Clone(p.state.Data)
	return s
}
