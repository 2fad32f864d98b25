package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"equity-research-lab/internal/domain"
	"equity-research-lab/internal/storage"
)

// DefaultBarsTable is the canonical bars table name.
const DefaultBarsTable = "md_bars"

// BarStore implements storage.BarStore over a Postgres bars table whose
// schema is detected at query time.
type BarStore struct {
	pool  *Pool
	table string
}

// NewBarStore creates a BarStore over the default md_bars table.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool, table: DefaultBarsTable}
}

// NewBarStoreForTable creates a BarStore over a custom bars table.
func NewBarStoreForTable(pool *Pool, table string) *BarStore {
	return &BarStore{pool: pool, table: table}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// priceExpr renders the select expression that normalizes one price column
// to a floating decimal. Micro-scaled integer columns divide by 1e6.
func priceExpr(column string) string {
	if storage.MicroScaled(column) {
		return fmt.Sprintf("(%s::double precision / %.1f)", column, storage.MicrosScale)
	}
	return fmt.Sprintf("%s::double precision", column)
}

// epochBound converts a UTC bound to the raw integer unit of the column.
func epochBound(t time.Time, unit storage.EpochUnit) int64 {
	if unit == storage.EpochMilliseconds {
		return t.UnixMilli()
	}
	return t.Unix()
}

// History returns bars for the query window, sorted by (symbol, ts)
// ascending. See storage.BarStore for the full contract.
func (s *BarStore) History(ctx context.Context, q storage.HistoryQuery) ([]domain.Bar, error) {
	symbols, err := storage.NormalizeSymbols(q.Symbols)
	if err != nil {
		return nil, err
	}
	if err := storage.ValidateWindow(q.StartUTC, q.EndUTC); err != nil {
		return nil, err
	}
	startUTC := q.StartUTC.UTC()
	endUTC := q.EndUTC.UTC()

	schema, err := DetectSchema(ctx, s.pool, s.table)
	if err != nil {
		return nil, err
	}
	roles := schema.Roles

	// Quality gate: require complete bars when the flag exists.
	completeClause := ""
	if roles.HasIsComplete {
		completeClause = "AND is_complete = true"
	}

	var query string
	args := []any{symbols}
	if schema.TsIsEpoch {
		query = fmt.Sprintf(`
			SELECT
				symbol,
				%s AS ts_raw,
				%s AS open,
				%s AS high,
				%s AS low,
				%s AS close,
				%s::double precision AS volume
			FROM %s
			WHERE symbol = any($1)
			  AND %s >= $2
			  AND %s < $3
			  AND timeframe = $4
			  %s
			ORDER BY symbol ASC, %s ASC
		`,
			roles.Timestamp,
			priceExpr(roles.Open), priceExpr(roles.High), priceExpr(roles.Low), priceExpr(roles.Close),
			roles.Volume, s.table,
			roles.Timestamp, roles.Timestamp, completeClause, roles.Timestamp)
		args = append(args, epochBound(startUTC, schema.EpochUnit), epochBound(endUTC, schema.EpochUnit), q.Timeframe)
	} else {
		query = fmt.Sprintf(`
			SELECT
				symbol,
				%s AS ts_utc,
				%s AS open,
				%s AS high,
				%s AS low,
				%s AS close,
				%s::double precision AS volume
			FROM %s
			WHERE symbol = any($1)
			  AND %s >= $2
			  AND %s < $3
			  AND timeframe = $4
			  %s
			ORDER BY symbol ASC, %s ASC
		`,
			roles.Timestamp,
			priceExpr(roles.Open), priceExpr(roles.High), priceExpr(roles.Low), priceExpr(roles.Close),
			roles.Volume, s.table,
			roles.Timestamp, roles.Timestamp, completeClause, roles.Timestamp)
		args = append(args, startUTC, endUTC, q.Timeframe)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s history: %w", s.table, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		b := domain.Bar{Timeframe: q.Timeframe}
		if schema.TsIsEpoch {
			var tsRaw int64
			if err := rows.Scan(&b.Symbol, &tsRaw, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
				return nil, fmt.Errorf("scan bar: %w", err)
			}
			if schema.EpochUnit == storage.EpochMilliseconds {
				b.TsUTC = time.UnixMilli(tsRaw).UTC()
			} else {
				b.TsUTC = time.Unix(tsRaw, 0).UTC()
			}
		} else {
			var ts time.Time
			if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
				return nil, fmt.Errorf("scan bar: %w", err)
			}
			b.TsUTC = ts.UTC()
		}
		b.Symbol = strings.ToUpper(b.Symbol)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}

	if len(bars) == 0 {
		return nil, s.diagnoseEmpty(ctx, symbols, q.Timeframe, roles)
	}

	storage.SortBars(bars)
	if err := storage.EnsureSymbolsPresent(bars, symbols); err != nil {
		return nil, err
	}
	return bars, nil
}

// diagnoseEmpty builds the zero-row diagnostics. All queries use fixed
// ORDER BY so the message itself is deterministic.
func (s *BarStore) diagnoseEmpty(ctx context.Context, symbols []string, timeframe string, roles storage.Roles) error {
	noBars := &storage.NoBarsError{
		Table:               s.table,
		Symbols:             symbols,
		Timeframe:           timeframe,
		TimestampColumn:     roles.Timestamp,
		AvailableTimeframes: "<none>",
		RawMinMax:           "<none>",
		CompletenessCounts:  "n/a",
	}

	tfQuery := fmt.Sprintf(`
		SELECT timeframe, count(*) AS n
		FROM %s
		WHERE symbol = any($1)
		GROUP BY timeframe
		ORDER BY timeframe ASC
	`, s.table)
	rows, err := s.pool.Query(ctx, tfQuery, symbols)
	if err != nil {
		return fmt.Errorf("diagnose empty result (timeframes): %w", err)
	}
	defer rows.Close()

	var tfParts []string
	for rows.Next() {
		var tf string
		var n int64
		if err := rows.Scan(&tf, &n); err != nil {
			return fmt.Errorf("scan timeframe count: %w", err)
		}
		tfParts = append(tfParts, fmt.Sprintf("%s=%d", tf, n))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate timeframe counts: %w", err)
	}
	if len(tfParts) > 0 {
		noBars.AvailableTimeframes = strings.Join(tfParts, ", ")
	}

	mmQuery := fmt.Sprintf(`
		SELECT min(%s)::text, max(%s)::text, count(*)
		FROM %s
		WHERE symbol = any($1) AND timeframe = $2
	`, roles.Timestamp, roles.Timestamp, s.table)
	var minTs, maxTs *string
	var n int64
	if err := s.pool.QueryRow(ctx, mmQuery, symbols, timeframe).Scan(&minTs, &maxTs, &n); err != nil {
		return fmt.Errorf("diagnose empty result (min/max): %w", err)
	}
	if minTs != nil && maxTs != nil {
		noBars.RawMinMax = fmt.Sprintf("min=%s max=%s n=%d", *minTs, *maxTs, n)
	}

	if roles.HasIsComplete {
		noBars.CompletenessCounts = "<none>"
		cQuery := fmt.Sprintf(`
			SELECT is_complete, count(*) AS n
			FROM %s
			WHERE symbol = any($1) AND timeframe = $2
			GROUP BY is_complete
			ORDER BY is_complete ASC
		`, s.table)
		cRows, err := s.pool.Query(ctx, cQuery, symbols, timeframe)
		if err != nil {
			return fmt.Errorf("diagnose empty result (completeness): %w", err)
		}
		defer cRows.Close()

		var cParts []string
		for cRows.Next() {
			var complete bool
			var cn int64
			if err := cRows.Scan(&complete, &cn); err != nil {
				return fmt.Errorf("scan completeness count: %w", err)
			}
			cParts = append(cParts, fmt.Sprintf("%t=%d", complete, cn))
		}
		if err := cRows.Err(); err != nil {
			return fmt.Errorf("iterate completeness counts: %w", err)
		}
		if len(cParts) > 0 {
			noBars.CompletenessCounts = strings.Join(cParts, ", ")
		}
	}

	return noBars
}
