package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"equity-research-lab/internal/domain"
	"equity-research-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore used by
// fixtures and tests. It mirrors the query semantics of the SQL-backed
// stores: half-open window, timeframe filter, completeness filter, stable
// (symbol, ts) ordering, zero-row diagnostics and missing-symbol checks.
type BarStore struct {
	mu   sync.RWMutex
	rows []row
}

type row struct {
	bar      domain.Bar
	complete bool
}

// NewBarStore creates an empty in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// Seed adds complete bars.
func (s *BarStore) Seed(bars ...domain.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		b.Symbol = strings.ToUpper(b.Symbol)
		s.rows = append(s.rows, row{bar: b, complete: true})
	}
}

// SeedIncomplete adds bars flagged incomplete; History filters them out.
func (s *BarStore) SeedIncomplete(bars ...domain.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		b.Symbol = strings.ToUpper(b.Symbol)
		s.rows = append(s.rows, row{bar: b, complete: false})
	}
}

// History returns bars for the query window, sorted by (symbol, ts)
// ascending. See storage.BarStore for the full contract.
func (s *BarStore) History(_ context.Context, q storage.HistoryQuery) ([]domain.Bar, error) {
	symbols, err := storage.NormalizeSymbols(q.Symbols)
	if err != nil {
		return nil, err
	}
	if err := storage.ValidateWindow(q.StartUTC, q.EndUTC); err != nil {
		return nil, err
	}
	startUTC := q.StartUTC.UTC()
	endUTC := q.EndUTC.UTC()

	requested := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		requested[sym] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var bars []domain.Bar
	for _, r := range s.rows {
		if !r.complete {
			continue
		}
		if _, ok := requested[r.bar.Symbol]; !ok {
			continue
		}
		if r.bar.Timeframe != q.Timeframe {
			continue
		}
		ts := r.bar.TsUTC.UTC()
		if ts.Before(startUTC) || !ts.Before(endUTC) {
			continue
		}
		b := r.bar
		b.TsUTC = ts
		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, s.diagnoseEmpty(symbols, q.Timeframe)
	}

	storage.SortBars(bars)
	if err := storage.EnsureSymbolsPresent(bars, symbols); err != nil {
		return nil, err
	}
	return bars, nil
}

func (s *BarStore) diagnoseEmpty(symbols []string, timeframe string) error {
	requested := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		requested[sym] = struct{}{}
	}

	tfCounts := make(map[string]int)
	var minTs, maxTs string
	n := 0
	completeCounts := map[bool]int{}
	for _, r := range s.rows {
		if _, ok := requested[r.bar.Symbol]; !ok {
			continue
		}
		tfCounts[r.bar.Timeframe]++
		if r.bar.Timeframe != timeframe {
			continue
		}
		completeCounts[r.complete]++
		ts := r.bar.TsUTC.UTC().Format("2006-01-02T15:04:05Z")
		if n == 0 || ts < minTs {
			minTs = ts
		}
		if n == 0 || ts > maxTs {
			maxTs = ts
		}
		n++
	}

	noBars := &storage.NoBarsError{
		Table:               "memory bars",
		Symbols:             symbols,
		Timeframe:           timeframe,
		TimestampColumn:     "ts_utc",
		AvailableTimeframes: "<none>",
		RawMinMax:           "<none>",
		CompletenessCounts:  "<none>",
	}

	if len(tfCounts) > 0 {
		tfs := make([]string, 0, len(tfCounts))
		for tf := range tfCounts {
			tfs = append(tfs, tf)
		}
		sort.Strings(tfs)
		parts := make([]string, 0, len(tfs))
		for _, tf := range tfs {
			parts = append(parts, fmt.Sprintf("%s=%d", tf, tfCounts[tf]))
		}
		noBars.AvailableTimeframes = strings.Join(parts, ", ")
	}
	if n > 0 {
		noBars.RawMinMax = fmt.Sprintf("min=%s max=%s n=%d", minTs, maxTs, n)
	}
	if len(completeCounts) > 0 {
		var parts []string
		for _, flag := range []bool{false, true} {
			if c, ok := completeCounts[flag]; ok {
				parts = append(parts, fmt.Sprintf("%t=%d", flag, c))
			}
		}
		noBars.CompletenessCounts = strings.Join(parts, ", ")
	}
	return noBars
}
