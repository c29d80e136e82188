package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/storefront/cache"
	"github.com/briangreenhill/storefront/internal/config"
	"github.com/briangreenhill/storefront/internal/http/routes"
	"github.com/briangreenhill/storefront/internal/source"
	"github.com/briangreenhill/storefront/internal/storefront"
)

// app holds the process-wide cache and the components built on it
type app struct {
	cfg     *config.Config
	store   *cache.MemoryCache
	catalog *storefront.Catalog
	admin   *storefront.Admin
	views   *storefront.ViewStore
	sess    *scs.SessionManager
	log     zerolog.Logger
}

func newApp(cfg *config.Config, src source.Source, log zerolog.Logger) *app {
	store := cache.NewMemory()
	catalog := storefront.NewCatalog(src, cache.NewLoader(store), storefront.TTLs{
		Products:   cfg.TTL.Products,
		Categories: cfg.TTL.Categories,
		Orders:     cfg.TTL.Orders,
	}, log)
	registry := storefront.NewRegistry(catalog.Warmers()...)

	// Sessions
	sess := scs.New()
	sess.Lifetime = cfg.SessionLifetime
	if sess.Lifetime <= 0 {
		sess.Lifetime = 12 * time.Hour
	}
	if cfg.ViewsIdle > 0 {
		sess.IdleTimeout = cfg.ViewsIdle
	}
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode

	return &app{
		cfg:     cfg,
		store:   store,
		catalog: catalog,
		admin:   storefront.NewAdmin(store, registry, cfg.Preload.Concurrency, log),
		views:   storefront.NewViewStore(catalog, cfg.OrdersPageSize, cfg.ViewsIdle, log),
		sess:    sess,
		log:     log,
	}
}

// handler builds the HTTP API; a nil enqueuer runs preloads in-process
func (a *app) handler(enq routes.Enqueuer) http.Handler {
	opts := routes.ServerOptions{
		Sess:     a.sess,
		Views:    a.views,
		Catalog:  a.catalog,
		Admin:    a.admin,
		Stats:    a.store,
		Queue:    a.cfg.Preload.Queue,
		PageSize: a.cfg.OrdersPageSize,
		Jobs:     enq,
		Logger:   a.log,
	}
	return routes.New(opts).Router
}

// openSource connects the configured data source. The returned func
// releases it.
func openSource(ctx context.Context, cfg *config.Config) (source.Source, func(), error) {
	switch cfg.DataSource {
	case config.SourcePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return source.NewPostgres(pool), pool.Close, nil

	case config.SourceSQLite:
		db, err := source.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil

	case config.SourceREST:
		rest, err := source.NewREST(cfg.REST.URL, cfg.REST.APIKey)
		if err != nil {
			return nil, nil, err
		}
		return rest, func() {}, nil
	}
	return nil, nil, errors.New("unknown data source " + cfg.DataSource)
}
