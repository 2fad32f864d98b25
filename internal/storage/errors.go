package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented is returned by placeholder adapters (options, futures)
	// whose storage schema does not exist yet.
	ErrNotImplemented = errors.New("adapter not implemented")

	// ErrNoEvents marks an events source that is absent or schema-incompatible.
	// Callers degrade to stub flags on this error; it is never fatal by itself.
	ErrNoEvents = errors.New("events source unavailable")
)

// SchemaError reports that required column roles could not be resolved for a
// bars table. It enumerates every missing role and the full set of available
// columns; a role is never silently defaulted.
type SchemaError struct {
	Table     string
	Missing   []string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema detection failed (missing: %s); available columns: %s",
		e.Table,
		strings.Join(e.Missing, ", "),
		strings.Join(e.Available, ", "))
}

// MixedEpochUnitsError reports an integer timestamp column whose values are
// inconsistently classified as seconds vs milliseconds. A wrong unit guess
// corrupts every downstream timestamp, so the loaders refuse to pick one.
type MixedEpochUnitsError struct {
	Table  string
	Column string
	MinRaw int64
	MaxRaw int64
}

func (e *MixedEpochUnitsError) Error() string {
	return fmt.Sprintf("%s.%s contains mixed epoch units (min=%d classifies as %s, max=%d classifies as %s); refusing to guess",
		e.Table, e.Column,
		e.MinRaw, ClassifyEpochValue(e.MinRaw),
		e.MaxRaw, ClassifyEpochValue(e.MaxRaw))
}

// NoBarsError carries the diagnostics for a zero-row history result so the
// data gap is actionable without re-querying by hand.
type NoBarsError struct {
	Table               string
	Symbols             []string
	Timeframe           string
	TimestampColumn     string
	AvailableTimeframes string // "1D=120, 1H=40" or "<none>"
	RawMinMax           string // "min=... max=... n=..." for the requested timeframe
	CompletenessCounts  string // "false=3, true=117", "<none>" or "n/a"
}

func (e *NoBarsError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Table + " returned zero rows.\n")
	sb.WriteString(fmt.Sprintf("  symbols=%v\n", e.Symbols))
	sb.WriteString(fmt.Sprintf("  requested_timeframe=%s\n", e.Timeframe))
	sb.WriteString(fmt.Sprintf("  available_timeframes_for_symbols=%s\n", e.AvailableTimeframes))
	sb.WriteString(fmt.Sprintf("  ts_col=%s (raw min/max for requested timeframe: %s)\n", e.TimestampColumn, e.RawMinMax))
	sb.WriteString(fmt.Sprintf("  is_complete_counts_for_timeframe=%s", e.CompletenessCounts))
	return sb.String()
}

// MissingSymbolsError reports requested symbols absent from a non-empty
// history result. A partial result is never treated as success.
type MissingSymbolsError struct {
	Symbols []string
}

func (e *MissingSymbolsError) Error() string {
	return fmt.Sprintf("missing data for symbols in window: %v", e.Symbols)
}
