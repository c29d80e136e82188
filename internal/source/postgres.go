package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool the Postgres source needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ Querier = (*pgxpool.Pool)(nil)

// Postgres fetches records from a Postgres database
type Postgres struct {
	db Querier
}

// NewPostgres creates a Postgres source on top of a pool
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

// Fetch implements Source
func (p *Postgres) Fetch(ctx context.Context, q Query) ([]Record, error) {
	stmt, args, err := postgresDialect.buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", q.Table, err)
	}

	records := make([]Record, len(raw))
	for i, b := range raw {
		records[i] = Record(b)
	}
	return records, nil
}

var _ Source = (*Postgres)(nil)
