package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"equity-research-lab/internal/domain"
)

// setupTestDB creates a ClickHouse container with the bars schema applied.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())
	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	// The migrations package imports this one, so the bars DDL is inlined
	// here instead of importing it back.
	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS md_bars (
			symbol      String,
			ts_utc      DateTime('UTC'),
			timeframe   String,
			open        Float64,
			high        Float64,
			low         Float64,
			close       Float64,
			volume      Float64,
			is_complete Bool DEFAULT true
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, timeframe, ts_utc)
	`)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// insertBar writes one bar with the given completeness flag.
func insertBar(t *testing.T, ctx context.Context, conn *Conn, b domain.Bar, complete bool) {
	t.Helper()
	err := conn.Exec(ctx, `
		INSERT INTO md_bars (symbol, ts_utc, timeframe, open, high, low, close, volume, is_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.Symbol, b.TsUTC, b.Timeframe, b.Open, b.High, b.Low, b.Close, b.Volume, complete)
	require.NoError(t, err)
}
