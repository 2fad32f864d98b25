package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"equity-research-lab/internal/storage"
)

// DefaultEventsTable is the canonical corporate events table name.
const DefaultEventsTable = "corporate_events"

// Candidate column names for the events table roles.
var (
	eventTsCandidates   = []string{"event_ts_utc", "ts_utc", "event_ts", "event_time"}
	eventTypeCandidates = []string{"event_type", "type"}
)

// EventStore implements storage.EventStore over an optional corporate
// events table. The table is probed before use; an absent table or an
// unrecognized schema degrades via storage.ErrNoEvents instead of failing
// the run.
type EventStore struct {
	pool  *Pool
	table string
}

// NewEventStore creates an EventStore over the default corporate_events table.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool, table: DefaultEventsTable}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// probe resolves the events table's columns, or returns ErrNoEvents with
// the reason when the table is absent or its schema is unrecognized.
func (s *EventStore) probe(ctx context.Context) (tsCol, typeCol string, err error) {
	exists, err := TableExists(ctx, s.pool, s.table)
	if err != nil {
		return "", "", err
	}
	if !exists {
		return "", "", fmt.Errorf("%s table missing: %w", s.table, storage.ErrNoEvents)
	}

	cols, err := loadColumns(ctx, s.pool, s.table)
	if err != nil {
		return "", "", err
	}
	colset := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		colset[c] = struct{}{}
	}
	pick := func(candidates []string) string {
		for _, c := range candidates {
			if _, ok := colset[c]; ok {
				return c
			}
		}
		return ""
	}

	tsCol = pick(eventTsCandidates)
	typeCol = pick(eventTypeCandidates)
	_, hasSymbol := colset["symbol"]

	var missing []string
	if !hasSymbol {
		missing = append(missing, "symbol")
	}
	if tsCol == "" {
		missing = append(missing, "event timestamp")
	}
	if typeCol == "" {
		missing = append(missing, "event type")
	}
	if len(missing) > 0 {
		return "", "", fmt.Errorf("%s schema unrecognized (missing: %s; available: %s): %w",
			s.table, strings.Join(missing, ", "), strings.Join(cols, ", "), storage.ErrNoEvents)
	}
	return tsCol, typeCol, nil
}

// EarningsWithin reports, per requested symbol, whether an EARNINGS event
// falls inside [startUTC, endUTC). Query failures past the probe are fatal:
// only absence or schema incompatibility degrades.
func (s *EventStore) EarningsWithin(ctx context.Context, symbols []string, startUTC, endUTC time.Time) (map[string]bool, error) {
	normalized, err := storage.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}

	tsCol, typeCol, err := s.probe(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT upper(symbol)
		FROM %s
		WHERE upper(symbol) = any($1)
		  AND %s >= $2
		  AND %s < $3
		  AND %s = 'EARNINGS'
		ORDER BY upper(symbol) ASC
	`, s.table, tsCol, tsCol, typeCol)

	rows, err := s.pool.Query(ctx, query, normalized, startUTC.UTC(), endUTC.UTC())
	if err != nil {
		return nil, fmt.Errorf("query %s earnings: %w", s.table, err)
	}
	defer rows.Close()

	flags := make(map[string]bool, len(normalized))
	for _, sym := range normalized {
		flags[sym] = false
	}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan earnings symbol: %w", err)
		}
		flags[sym] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate earnings symbols: %w", err)
	}
	return flags, nil
}
