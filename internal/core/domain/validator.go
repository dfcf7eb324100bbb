package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrNotAllowed     = errors.New("only SELECT queries are allowed in read-only mode")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
	ErrNoConnection   = errors.New("no connection attached to query event")
)

// PgQueryValidator enforces read-only mode with PostgreSQL's own parser.
// Statements run outside a read-only transaction, so anything that can write
// is rejected here: SELECT INTO, row locks, data-modifying CTEs, and EXPLAIN
// of a non-SELECT (EXPLAIN ANALYZE executes its statement).
type PgQueryValidator struct{}

func NewPgQueryValidator() *PgQueryValidator {
	return &PgQueryValidator{}
}

// Validate accepts exactly one read-only SELECT or EXPLAIN SELECT.
func (v *PgQueryValidator) Validate(sql string) error {
	stmt, err := parseSingle(sql)
	if err != nil {
		return err
	}
	if !readOnly(stmt) {
		return ErrNotAllowed
	}
	return nil
}

func parseSingle(sql string) (*pg_query.Node, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	switch {
	case len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil:
		return nil, ErrEmptyQuery
	case len(tree.Stmts) > 1:
		return nil, ErrMultiStatement
	}
	return tree.Stmts[0].Stmt, nil
}

func readOnly(node *pg_query.Node) bool {
	if explain := node.GetExplainStmt(); explain != nil {
		return readOnly(explain.GetQuery())
	}

	sel := node.GetSelectStmt()
	if sel == nil || sel.GetIntoClause() != nil || len(sel.GetLockingClause()) > 0 {
		return false
	}
	for _, cte := range sel.GetWithClause().GetCtes() {
		if !readOnly(cte.GetCommonTableExpr().GetCtequery()) {
			return false
		}
	}
	if larg := sel.GetLarg(); larg != nil && !readOnly(&pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: larg}}) {
		return false
	}
	if rarg := sel.GetRarg(); rarg != nil && !readOnly(&pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: rarg}}) {
		return false
	}
	return true
}

// OperationName returns a short lower-case name for the first statement in
// sql ("select", "insert", ...), "other" for anything else that parses, and
// "unknown" when PostgreSQL cannot parse it.
func OperationName(sql string) string {
	tree, err := pg_query.Parse(strings.TrimSpace(sql))
	if err != nil || len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil {
		return "unknown"
	}

	switch tree.Stmts[0].Stmt.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return "select"
	case *pg_query.Node_InsertStmt:
		return "insert"
	case *pg_query.Node_UpdateStmt:
		return "update"
	case *pg_query.Node_DeleteStmt:
		return "delete"
	case *pg_query.Node_MergeStmt:
		return "merge"
	case *pg_query.Node_ExplainStmt:
		return "explain"
	default:
		return "other"
	}
}
