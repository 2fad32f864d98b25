// Package main provides a preflight inspector for a bars table: it resolves
// the column roles the research pipeline would use, reports how timestamps
// are stored, and counts rows per timeframe. Run it before pointing a
// policy at an unfamiliar database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"equity-research-lab/internal/storage"
	"equity-research-lab/internal/storage/clickhouse"
	"equity-research-lab/internal/storage/migrations"
	"equity-research-lab/internal/storage/postgres"
)

func main() {
	pgDSN := flag.String("pg-dsn", "", "Postgres DSN (or RESEARCH_PG_DSN)")
	chDSN := flag.String("ch-dsn", "", "ClickHouse DSN (or RESEARCH_CH_DSN)")
	table := flag.String("table", "md_bars", "Bars table to inspect")
	applySchema := flag.Bool("apply-schema", false, "Apply the embedded canonical schema before inspecting")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	_ = godotenv.Load()

	if err := run(*pgDSN, *chDSN, *table, *applySchema); err != nil {
		log.Error().Err(err).Msg("datacheck failed")
		os.Exit(1)
	}
}

func run(pgDSN, chDSN, table string, applySchema bool) error {
	if pgDSN == "" {
		pgDSN = os.Getenv("RESEARCH_PG_DSN")
	}
	if chDSN == "" {
		chDSN = os.Getenv("RESEARCH_CH_DSN")
	}

	ctx := context.Background()
	switch {
	case pgDSN != "":
		return checkPostgres(ctx, pgDSN, table, applySchema)
	case chDSN != "":
		return checkClickhouse(ctx, chDSN, table, applySchema)
	default:
		return fmt.Errorf("-pg-dsn or -ch-dsn is required (or RESEARCH_PG_DSN / RESEARCH_CH_DSN)")
	}
}

func printRoles(roles storage.Roles, tsDBType string, tsIsEpoch bool, unit storage.EpochUnit) {
	fmt.Printf("timestamp:   %s (%s", roles.Timestamp, tsDBType)
	if tsIsEpoch {
		fmt.Printf(", epoch unit %s", unit)
	}
	fmt.Println(")")
	for _, rc := range []struct{ role, col string }{
		{"open", roles.Open},
		{"high", roles.High},
		{"low", roles.Low},
		{"close", roles.Close},
		{"volume", roles.Volume},
	} {
		scale := ""
		if storage.MicroScaled(rc.col) {
			scale = " (micros, scaled /1e6)"
		}
		fmt.Printf("%-12s %s%s\n", rc.role+":", rc.col, scale)
	}
	fmt.Printf("is_complete: %v\n", roles.HasIsComplete)
}

func checkPostgres(ctx context.Context, dsn, table string, applySchema bool) error {
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if applySchema {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
	}

	schema, err := postgres.DetectSchema(ctx, pool, table)
	if err != nil {
		return err
	}
	fmt.Printf("table: %s (postgres)\n", table)
	printRoles(schema.Roles, schema.TsDBType, schema.TsIsEpoch, schema.EpochUnit)

	rows, err := pool.Query(ctx, fmt.Sprintf(
		`SELECT timeframe, count(*) FROM %s GROUP BY timeframe ORDER BY timeframe ASC`, table))
	if err != nil {
		return fmt.Errorf("count %s rows per timeframe: %w", table, err)
	}
	defer rows.Close()

	fmt.Println("rows per timeframe:")
	for rows.Next() {
		var tf string
		var n int64
		if err := rows.Scan(&tf, &n); err != nil {
			return fmt.Errorf("scan timeframe count: %w", err)
		}
		fmt.Printf("  %-8s %d\n", tf, n)
	}
	return rows.Err()
}

func checkClickhouse(ctx context.Context, dsn, table string, applySchema bool) error {
	conn, err := clickhouse.NewConn(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	if applySchema {
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return err
		}
	}

	schema, err := clickhouse.DetectSchema(ctx, conn, table)
	if err != nil {
		return err
	}
	fmt.Printf("table: %s (clickhouse)\n", table)
	printRoles(schema.Roles, schema.TsDBType, schema.TsIsEpoch, schema.EpochUnit)

	rows, err := conn.Query(ctx, fmt.Sprintf(
		`SELECT timeframe, count() FROM %s GROUP BY timeframe ORDER BY timeframe ASC`, table))
	if err != nil {
		return fmt.Errorf("count %s rows per timeframe: %w", table, err)
	}
	defer rows.Close()

	fmt.Println("rows per timeframe:")
	for rows.Next() {
		var tf string
		var n uint64
		if err := rows.Scan(&tf, &n); err != nil {
			return fmt.Errorf("scan timeframe count: %w", err)
		}
		fmt.Printf("  %-8s %d\n", tf, n)
	}
	return rows.Err()
}
