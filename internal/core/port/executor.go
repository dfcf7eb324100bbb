package port

import "context"

// Result is a statement's output rendered as text.
type Result struct {
	Columns    []string
	Rows       [][]string
	CommandTag string
	Truncated  bool
}

// QueryExecutor runs caller statements.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*Result, error)
}

// QueryValidator rejects statements before they reach the database.
type QueryValidator interface {
	Validate(sql string) error
}
