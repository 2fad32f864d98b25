// Package main provides the deterministic research CLI: one invocation is
// one run, identified by (policy, asof, params) and written under
// <out>/<run_id>/. The run directory path is printed on success.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"equity-research-lab/internal/gate"
	"equity-research-lab/internal/pipeline"
	"equity-research-lab/internal/policy"
	"equity-research-lab/internal/storage"
	"equity-research-lab/internal/storage/clickhouse"
	"equity-research-lab/internal/storage/postgres"
)

func main() {
	policyPath := flag.String("policy", "", "Policy YAML path (required)")
	asofRaw := flag.String("asof-utc", "", "As-of timestamp with timezone offset, e.g. 2026-02-24T00:00:00Z (required)")
	symbolsCSV := flag.String("symbols", "", "Comma-separated symbols (required)")
	pgDSN := flag.String("pg-dsn", "", "Postgres DSN (or RESEARCH_PG_DSN)")
	chDSN := flag.String("ch-dsn", "", "ClickHouse DSN (or RESEARCH_CH_DSN)")
	barsTable := flag.String("bars-table", "", "Bars table name (default md_bars)")
	outRoot := flag.String("out", "runs", "Output root directory")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// Optional .env for DSNs; absence is not an error.
	_ = godotenv.Load()

	if err := run(log, *policyPath, *asofRaw, *symbolsCSV, *pgDSN, *chDSN, *barsTable, *outRoot); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(log zerolog.Logger, policyPath, asofRaw, symbolsCSV, pgDSN, chDSN, barsTable, outRoot string) error {
	if policyPath == "" {
		return fmt.Errorf("-policy is required")
	}
	if asofRaw == "" {
		return fmt.Errorf("-asof-utc is required")
	}
	if symbolsCSV == "" {
		return fmt.Errorf("-symbols is required (comma-separated)")
	}

	asofUTC, err := time.Parse(time.RFC3339, asofRaw)
	if err != nil {
		return fmt.Errorf("asof-utc must include a timezone offset, like 2026-02-24T00:00:00Z: %w", err)
	}

	pol, policySHA, err := policy.Load(policyPath)
	if err != nil {
		return err
	}

	if pgDSN == "" {
		pgDSN = os.Getenv("RESEARCH_PG_DSN")
	}
	if chDSN == "" {
		chDSN = os.Getenv("RESEARCH_CH_DSN")
	}

	ctx := context.Background()
	var bars storage.BarStore
	var events storage.EventStore

	// The stub pipeline records an intent without touching market data, so
	// a DSN is only required for equity policies.
	switch {
	case pgDSN != "":
		pool, err := postgres.NewPool(ctx, pgDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if barsTable != "" {
			bars = postgres.NewBarStoreForTable(pool, barsTable)
		} else {
			bars = postgres.NewBarStore(pool)
		}
		events = postgres.NewEventStore(pool)
	case chDSN != "":
		conn, err := clickhouse.NewConn(ctx, chDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		if barsTable != "" {
			bars = clickhouse.NewBarStoreForTable(conn, barsTable)
		} else {
			bars = clickhouse.NewBarStore(conn)
		}
		// No ClickHouse events source; earnings flags degrade to stub.
	case pol.Equity():
		return fmt.Errorf("equity policy requires -pg-dsn or -ch-dsn (or RESEARCH_PG_DSN / RESEARCH_CH_DSN)")
	}

	result, err := pipeline.Run(ctx, pipeline.Options{
		Bars:         bars,
		Events:       events,
		Policy:       pol,
		PolicyPath:   policyPath,
		PolicySHA256: policySHA,
		AsofUTC:      asofUTC,
		Symbols:      strings.Split(symbolsCSV, ","),
		OutRoot:      outRoot,
		Gate:         gate.DefaultConfig(),
		Log:          log,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.RunDir)
	return nil
}
