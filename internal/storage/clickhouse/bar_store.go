package clickhouse

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

// BarStore implements storage.BarStore over a ClickHouse bars table whose
// schema is detected at query time. Alternative backend to the Postgres
// store with identical loading semantics.
type BarStore struct {
	conn  *Conn
	table string
}

// NewBarStore creates a BarStore over the default md_bars table.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn, table: DefaultBarsTable}
}

// NewBarStoreForTable creates a BarStore over a custom bars table.
func NewBarStoreForTable(conn *Conn, table string) *BarStore {
	return &BarStore{conn: conn, table: table}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// priceExpr renders the select expression that normalizes one price column
// to a floating decimal. Micro-scaled integer columns divide by 1e6.
func priceExpr(column string) string {
	if storage.MicroScaled(column) {
		return fmt.Sprintf("(toFloat64(%s) / %.1f)", column, storage.MicrosScale)
	}
	return fmt.Sprintf("toFloat64(%s)", column)
}

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

	schema, err := DetectSchema(ctx, s.conn, s.table)
	if err != nil {
		return nil, err
	}
	roles := schema.Roles

	completeClause := ""
	if roles.HasIsComplete {
		completeClause = "AND is_complete = true"
	}

	var tsExpr string
	var args []any
	if schema.TsIsEpoch {
		tsExpr = fmt.Sprintf("toInt64(%s)", roles.Timestamp)
		args = []any{symbols, epochBound(startUTC, schema.EpochUnit), epochBound(endUTC, schema.EpochUnit), q.Timeframe}
	} else {
		tsExpr = fmt.Sprintf("toTimeZone(%s, 'UTC')", roles.Timestamp)
		args = []any{symbols, startUTC, endUTC, q.Timeframe}
	}

	query := fmt.Sprintf(`
		SELECT
			symbol,
			%s AS ts,
			%s AS open,
			%s AS high,
			%s AS low,
			%s AS close,
			toFloat64(%s) AS volume
		FROM %s
		WHERE symbol IN ?
		  AND %s >= ?
		  AND %s < ?
		  AND timeframe = ?
		  %s
		ORDER BY symbol ASC, %s ASC
	`,
		tsExpr,
		priceExpr(roles.Open), priceExpr(roles.High), priceExpr(roles.Low), priceExpr(roles.Close),
		roles.Volume, s.table,
		roles.Timestamp, roles.Timestamp, completeClause, roles.Timestamp)

	rows, err := s.conn.Query(ctx, query, args...)
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

// diagnoseEmpty builds the zero-row diagnostics, mirroring the Postgres store.
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
		SELECT timeframe, count() AS n
		FROM %s
		WHERE symbol IN ?
		GROUP BY timeframe
		ORDER BY timeframe ASC
	`, s.table)
	rows, err := s.conn.Query(ctx, tfQuery, symbols)
	if err != nil {
		return fmt.Errorf("diagnose empty result (timeframes): %w", err)
	}
	defer rows.Close()

	var tfParts []string
	for rows.Next() {
		var tf string
		var n uint64
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
		SELECT toString(min(%s)), toString(max(%s)), count()
		FROM %s
		WHERE symbol IN ? AND timeframe = ?
	`, roles.Timestamp, roles.Timestamp, s.table)
	var minTs, maxTs string
	var n uint64
	if err := s.conn.QueryRow(ctx, mmQuery, symbols, timeframe).Scan(&minTs, &maxTs, &n); err != nil {
		return fmt.Errorf("diagnose empty result (min/max): %w", err)
	}
	if n > 0 {
		noBars.RawMinMax = fmt.Sprintf("min=%s max=%s n=%d", minTs, maxTs, n)
	}

	if roles.HasIsComplete {
		noBars.CompletenessCounts = "<none>"
		cQuery := fmt.Sprintf(`
			SELECT is_complete, count() AS n
			FROM %s
			WHERE symbol IN ? AND timeframe = ?
			GROUP BY is_complete
			ORDER BY is_complete ASC
		`, s.table)
		cRows, err := s.conn.Query(ctx, cQuery, symbols, timeframe)
		if err != nil {
			return fmt.Errorf("diagnose empty result (completeness): %w", err)
		}
		defer cRows.Close()

		var cParts []string
		for cRows.Next() {
			var complete bool
			var cn uint64
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
