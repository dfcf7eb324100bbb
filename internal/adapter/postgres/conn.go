package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ConnQuerier runs follow-up statements on one traced connection.
type ConnQuerier struct {
	conn *pgx.Conn
}

func NewConnQuerier(conn *pgx.Conn) *ConnQuerier {
	return &ConnQuerier{conn: conn}
}

// QueryRows runs sql on the wrapped connection and returns every row as text.
func (q *ConnQuerier) QueryRows(ctx context.Context, sql string, args ...any) ([][]string, error) {
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	_, out, _, err := rowsToStrings(rows, 0)
	if err != nil {
		return nil, err
	}
	return out, nil
}
