package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs console statements on the traced pool.
type Executor struct {
	pool         *pgxpool.Pool
	maxRows      int
	queryTimeout time.Duration
}

func NewExecutor(pool *pgxpool.Pool, maxRows int, queryTimeout time.Duration) *Executor {
	return &Executor{
		pool:         pool,
		maxRows:      maxRows,
		queryTimeout: queryTimeout,
	}
}

// Execute runs sql and returns at most maxRows rows. Statements are not
// wrapped or rewritten so the traced text is exactly what was typed.
func (e *Executor) Execute(ctx context.Context, sql string) (*port.Result, error) {
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	rows, err := e.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	columns, data, truncated, err := rowsToStrings(rows, e.maxRows)
	if err != nil {
		return nil, err
	}

	return &port.Result{
		Columns:    columns,
		Rows:       data,
		CommandTag: rows.CommandTag().String(),
		Truncated:  truncated,
	}, nil
}
