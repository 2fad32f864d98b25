package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"equity-research-lab/internal/domain"
)

// NormalizeSymbols deduplicates, trims, upper-cases and sorts the requested
// symbol set. Returns ErrInvalidInput when nothing usable remains.
func NormalizeSymbols(symbols []string) ([]string, error) {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("symbols must contain at least one non-empty symbol: %w", ErrInvalidInput)
	}
	sort.Strings(out)
	return out, nil
}

// ValidateWindow checks the half-open query window bounds.
func ValidateWindow(startUTC, endUTC time.Time) error {
	if startUTC.IsZero() || endUTC.IsZero() {
		return fmt.Errorf("start_utc and end_utc must be set: %w", ErrInvalidInput)
	}
	if !endUTC.After(startUTC) {
		return fmt.Errorf("end_utc must be > start_utc: %w", ErrInvalidInput)
	}
	return nil
}

// SortBars orders bars by (symbol ASC, ts ASC) with a stable sort so that
// repeated runs over identical inputs are byte-identical downstream.
func SortBars(bars []domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].TsUTC.Before(bars[j].TsUTC)
	})
}

// EnsureSymbolsPresent verifies that every requested symbol appears in the
// result. Returns *MissingSymbolsError listing exactly which are absent.
func EnsureSymbolsPresent(bars []domain.Bar, symbols []string) error {
	present := make(map[string]struct{}, len(symbols))
	for _, b := range bars {
		present[b.Symbol] = struct{}{}
	}
	var missing []string
	for _, s := range symbols {
		if _, ok := present[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return &MissingSymbolsError{Symbols: missing}
	}
	return nil
}
