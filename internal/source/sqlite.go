package source

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite fetches records from a local SQLite database. The schema is
// created by the embedded migrations when the database is opened.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and applies pending migrations
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// DB exposes the underlying handle, e.g. for seeding
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Fetch implements Source
func (s *SQLite) Fetch(ctx context.Context, q Query) ([]Record, error) {
	stmt, args, err := sqliteDialect.buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}
		records = append(records, Record(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Table, err)
	}
	return records, nil
}

var _ Source = (*SQLite)(nil)
