// Package storefront implements cached, de-duplicated views over the
// storefront's products, categories and per-user orders.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/storefront/cache"
	"github.com/briangreenhill/storefront/internal/source"
)

const (
	EntityProducts   = "products"
	EntityCategories = "categories"
	EntityOrders     = "orders"

	DefaultPageSize = 10
)

// TTLs holds the freshness window of each entity type
type TTLs struct {
	Products   time.Duration
	Categories time.Duration
	Orders     time.Duration
}

// DefaultTTLs returns the standard freshness windows
func DefaultTTLs() TTLs {
	return TTLs{
		Products:   5 * time.Minute,
		Categories: 10 * time.Minute,
		Orders:     2 * time.Minute,
	}
}

// Catalog issues the entity queries against a data source through the
// read-through cache. It holds no per-caller state.
type Catalog struct {
	src    source.Source
	loader *cache.Loader
	ttl    TTLs
	log    zerolog.Logger
}

// NewCatalog creates a catalog. Zero TTL fields fall back to DefaultTTLs.
func NewCatalog(src source.Source, loader *cache.Loader, ttl TTLs, log zerolog.Logger) *Catalog {
	def := DefaultTTLs()
	if ttl.Products <= 0 {
		ttl.Products = def.Products
	}
	if ttl.Categories <= 0 {
		ttl.Categories = def.Categories
	}
	if ttl.Orders <= 0 {
		ttl.Orders = def.Orders
	}
	return &Catalog{src: src, loader: loader, ttl: ttl, log: log}
}

// Products returns all products, newest first
func (c *Catalog) Products(ctx context.Context, force bool) ([]Product, error) {
	q := source.Query{
		Table: EntityProducts,
		Order: &source.Order{Column: "created_at", Desc: true},
	}
	return load[Product](ctx, c, cache.KeyFor(EntityProducts), c.ttl.Products, force, q)
}

// Categories returns all categories by name
func (c *Catalog) Categories(ctx context.Context, force bool) ([]Category, error) {
	q := source.Query{
		Table: EntityCategories,
		Order: &source.Order{Column: "name"},
	}
	return load[Category](ctx, c, cache.KeyFor(EntityCategories), c.ttl.Categories, force, q)
}

// OrdersPage returns one page of a user's orders, newest first, with line
// items embedded. Each (user, offset) page is cached independently.
func (c *Catalog) OrdersPage(ctx context.Context, userID string, offset, limit int, force bool) ([]Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("orders: user id required")
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q := source.Query{
		Table:   EntityOrders,
		Filters: []source.Filter{{Column: "user_id", Value: userID}},
		Order:   &source.Order{Column: "created_at", Desc: true},
		Embed:   []string{"order_items"},
		Offset:  offset,
		Limit:   limit,
	}
	return load[Order](ctx, c, cache.KeyFor(EntityOrders, userID, offset), c.ttl.Orders, force, q)
}

func load[T any](ctx context.Context, c *Catalog, key string, ttl time.Duration, force bool, q source.Query) ([]T, error) {
	fetch := func(ctx context.Context) (any, error) {
		c.log.Debug().Str("key", key).Bool("force", force).Msg("fetching from source")
		return fetchAll[T](ctx, c.src, q)
	}

	var (
		v   any
		err error
	)
	if force {
		v, err = c.loader.Refresh(ctx, key, ttl, fetch)
	} else {
		v, err = c.loader.Get(ctx, key, ttl, fetch)
	}
	if err != nil {
		return nil, err
	}

	items, ok := v.([]T)
	if !ok {
		return nil, fmt.Errorf("cache key %q holds %T, want %T", key, v, items)
	}
	return items, nil
}

func fetchAll[T any](ctx context.Context, src source.Source, q source.Query) ([]T, error) {
	records, err := src.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Table, err)
	}

	items := make([]T, 0, len(records))
	for _, r := range records {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.Table, err)
		}
		items = append(items, item)
	}
	return items, nil
}
