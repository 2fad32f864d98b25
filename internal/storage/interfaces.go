package storage

import (
	"context"
	"time"

	"equity-research-lab/internal/domain"
)

// HistoryQuery bounds a bar history request. The window is half-open
// [StartUTC, EndUTC).
type HistoryQuery struct {
	Symbols   []string
	StartUTC  time.Time
	EndUTC    time.Time
	Timeframe string // e.g. "1D"
}

// BarStore loads canonical bars from a bars table.
type BarStore interface {
	// History returns bars for the query window, sorted by (symbol, ts)
	// ascending with a stable sort. Prices and timestamps are normalized to
	// canonical units. A zero-row result returns *NoBarsError with
	// diagnostics; a requested symbol absent from a non-empty result returns
	// *MissingSymbolsError. Partial results are never returned as success.
	History(ctx context.Context, q HistoryQuery) ([]domain.Bar, error)
}

// EventStore loads corporate events from an optional events table.
type EventStore interface {
	// EarningsWithin reports, per requested symbol, whether an EARNINGS
	// event falls inside [startUTC, endUTC). Returns ErrNoEvents (possibly
	// wrapped) when the source is absent or its schema is unrecognized;
	// callers degrade to stub flags on that error only.
	EarningsWithin(ctx context.Context, symbols []string, startUTC, endUTC time.Time) (map[string]bool, error)
}
