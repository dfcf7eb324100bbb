package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/adapter/postgres"
	"github.com/guillermoBallester/sqlpeek/internal/notify"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSchema = `
	CREATE TABLE users (
		id         SERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX idx_users_email ON users(email);

	INSERT INTO users (name, email)
	SELECT 'user ' || i, 'user' || i || '@example.com'
	FROM generate_series(1, 50) AS i;
`

// setupTestDB starts a Postgres container and returns a pool whose statements
// are published on bus.
func setupTestDB(t *testing.T, bus *notify.Notifier) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Seed through an untraced pool so the schema does not show up as events.
	seed, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	_, err = seed.Exec(ctx, testSchema)
	require.NoError(t, err)
	_, err = seed.Exec(ctx, "ANALYZE")
	require.NoError(t, err)
	seed.Close()

	pool, err := postgres.NewPool(ctx, connStr, postgres.PoolOptions{MaxConns: 2}, postgres.NewQueryTracer(bus, nil))
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}
