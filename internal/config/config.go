// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Data source kinds
const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceREST     = "rest"
)

// Config holds all application configuration
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DataSource  string     `env:"DATA_SOURCE" envDefault:"sqlite"`
	DatabaseURL string     `env:"DATABASE_URL"`
	SQLitePath  string     `env:"SQLITE_PATH" envDefault:"storefront.db"`
	REST        RESTConfig `envPrefix:"REST_"`

	// RedisAddr enables background preload jobs when set
	RedisAddr string `env:"REDIS_ADDR"`

	TTL            TTLConfig `envPrefix:"CACHE_TTL_"`
	OrdersPageSize int       `env:"ORDERS_PAGE_SIZE" envDefault:"10"`

	// Visitor sessions and the views kept for them
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"12h"`
	ViewsIdle       time.Duration `env:"VIEWS_IDLE" envDefault:"30m"`

	Preload PreloadConfig `envPrefix:"PRELOAD_"`
}

// RESTConfig holds settings for a PostgREST-compatible backend
type RESTConfig struct {
	URL    string `env:"URL"`
	APIKey string `env:"API_KEY"`
}

// TTLConfig holds the freshness window of each entity type
type TTLConfig struct {
	Products   time.Duration `env:"PRODUCTS" envDefault:"5m"`
	Categories time.Duration `env:"CATEGORIES" envDefault:"10m"`
	Orders     time.Duration `env:"ORDERS" envDefault:"2m"`
}

// PreloadConfig controls cache warming
type PreloadConfig struct {
	Entities    []string      `env:"ENTITIES" envSeparator:"," envDefault:"products,categories"`
	OnStart     bool          `env:"ON_START" envDefault:"true"`
	Interval    time.Duration `env:"INTERVAL" envDefault:"4m"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
	// Queue is the asynq queue an API instance consumes preload tasks from.
	// Each instance warms only its own cache, so instances sharing a Redis
	// need distinct queues.
	Queue string `env:"QUEUE" envDefault:"preload"`
	// TargetQueues are the API queues the scheduler enqueues to; empty means Queue
	TargetQueues []string `env:"TARGET_QUEUES" envSeparator:","`
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasJobs returns true if a Redis server is configured for background jobs
func (c *Config) HasJobs() bool {
	return c.RedisAddr != ""
}

// PreloadQueues returns the queues periodic preload tasks are sent to
func (c *Config) PreloadQueues() []string {
	if len(c.Preload.TargetQueues) > 0 {
		return c.Preload.TargetQueues
	}
	return []string{c.Preload.Queue}
}

// Level returns the configured log level
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate ensures the selected data source is fully configured and the
// cache settings are usable
func (c *Config) Validate() error {
	switch c.DataSource {
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for data source %q", c.DataSource)
		}
	case SourceSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for data source %q", c.DataSource)
		}
	case SourceREST:
		if c.REST.URL == "" || c.REST.APIKey == "" {
			return fmt.Errorf("REST_URL and REST_API_KEY are required for data source %q", c.DataSource)
		}
	default:
		return fmt.Errorf("unknown DATA_SOURCE %q (want postgres, sqlite or rest)", c.DataSource)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.TTL.Products <= 0 || c.TTL.Categories <= 0 || c.TTL.Orders <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.OrdersPageSize <= 0 {
		return fmt.Errorf("ORDERS_PAGE_SIZE must be positive, got %d", c.OrdersPageSize)
	}
	if c.Preload.Concurrency <= 0 {
		return fmt.Errorf("PRELOAD_CONCURRENCY must be positive, got %d", c.Preload.Concurrency)
	}
	if c.HasJobs() && c.Preload.Queue == "" {
		return fmt.Errorf("PRELOAD_QUEUE is required when REDIS_ADDR is set")
	}
	return nil
}
