package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock QueryExecutor ---

type mockExecutor struct {
	executeCalled bool
	lastSQL       string
	result        *port.Result
	err           error
}

func (m *mockExecutor) Execute(_ context.Context, sql string) (*port.Result, error) {
	m.executeCalled = true
	m.lastSQL = sql
	return m.result, m.err
}

// --- tests ---

func TestQueryService_PassesThroughWithoutValidator(t *testing.T) {
	exec := &mockExecutor{
		result: &port.Result{Columns: []string{"id"}, Rows: [][]string{{"1"}}, CommandTag: "INSERT 0 1"},
	}
	svc := NewQueryService(nil, exec, testLogger(), nil)

	res, err := svc.Execute(context.Background(), "INSERT INTO users (name) VALUES ('bob') RETURNING id")
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	assert.Equal(t, "INSERT 0 1", res.CommandTag)
}

func TestQueryService_ReadOnlyAllowsSelect(t *testing.T) {
	exec := &mockExecutor{
		result: &port.Result{Columns: []string{"id", "name"}, Rows: [][]string{{"1", "alice"}}},
	}
	svc := NewQueryService(domain.NewPgQueryValidator(), exec, testLogger(), nil)

	res, err := svc.Execute(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM users", exec.lastSQL)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0][1])
}

func TestQueryService_ReadOnlyRejectsWrites(t *testing.T) {
	for _, sql := range []string{
		"INSERT INTO users (name) VALUES ('bob')",
		"DROP TABLE users",
		"DELETE FROM users WHERE id = 1",
		"UPDATE users SET name = 'x'",
		"",
	} {
		t.Run(sql, func(t *testing.T) {
			exec := &mockExecutor{}
			svc := NewQueryService(domain.NewPgQueryValidator(), exec, testLogger(), nil)

			_, err := svc.Execute(context.Background(), sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation")
			assert.False(t, exec.executeCalled, "executor should not be called for rejected queries")
		})
	}
}

func TestQueryService_ExecutorError(t *testing.T) {
	exec := &mockExecutor{err: fmt.Errorf("connection refused")}
	svc := NewQueryService(nil, exec, testLogger(), nil)

	_, err := svc.Execute(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
