package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"equity-research-lab/internal/domain"
)

// setupTestDB creates a PostgreSQL container and applies the embedded
// migrations. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applyMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applyMigrations creates md_bars and corporate_events. The SQL files live
// in internal/storage/migrations; they are embedded, so the test does not
// depend on the working directory.
func applyMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	// The migrations package imports this one, so the statements are
	// inlined here instead of importing it back.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS md_bars (
			symbol      TEXT             NOT NULL,
			ts_utc      TIMESTAMPTZ      NOT NULL,
			timeframe   TEXT             NOT NULL,
			open        DOUBLE PRECISION NOT NULL,
			high        DOUBLE PRECISION NOT NULL,
			low         DOUBLE PRECISION NOT NULL,
			close       DOUBLE PRECISION NOT NULL,
			volume      DOUBLE PRECISION NOT NULL,
			is_complete BOOLEAN          NOT NULL DEFAULT true,
			PRIMARY KEY (symbol, timeframe, ts_utc)
		)`,
		`CREATE TABLE IF NOT EXISTS corporate_events (
			symbol       TEXT        NOT NULL,
			event_ts_utc TIMESTAMPTZ NOT NULL,
			event_type   TEXT        NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply migration")
	}
}

// insertBar writes one complete bar.
func insertBar(t *testing.T, ctx context.Context, pool *Pool, b domain.Bar, complete bool) {
	t.Helper()
	_, err := pool.Exec(ctx, `
		INSERT INTO md_bars (symbol, ts_utc, timeframe, open, high, low, close, volume, is_complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.Symbol, b.TsUTC, b.Timeframe, b.Open, b.High, b.Low, b.Close, b.Volume, complete)
	require.NoError(t, err, "failed to insert bar")
}

// insertEvent writes one corporate event.
func insertEvent(t *testing.T, ctx context.Context, pool *Pool, symbol string, ts time.Time, eventType string) {
	t.Helper()
	_, err := pool.Exec(ctx, `
		INSERT INTO corporate_events (symbol, event_ts_utc, event_type) VALUES ($1, $2, $3)
	`, symbol, ts, eventType)
	require.NoError(t, err, "failed to insert event")
}
