// Package universe reduces feature records to one as-of record per symbol,
// applies eligibility filters, scores and ranks.
package universe

import (
	"fmt"
	"sort"

	"equity-research-lab/internal/domain"
	"equity-research-lab/internal/events"
	"equity-research-lab/internal/policy"
)

// ret60Window is the return window the fixed score formula reads.
const ret60Window = 60

// Build creates one UniverseRecord per symbol from the latest feature
// snapshot. Output is ordered by symbol ascending and carries both included
// and excluded rows for audit.
//
// The score formula is fixed: score = ret_60d + trend_proxy. The policy's
// rank.scoring label is audit display only and is deliberately never
// applied here; making it configurable is a known non-goal.
func Build(feats []domain.FeatureRecord, pol *policy.Policy, flags events.Flags) ([]domain.UniverseRecord, error) {
	if len(feats) == 0 {
		return nil, fmt.Errorf("universe requires at least one feature record")
	}

	// As-of reduction: last row by timestamp per symbol. Features arrive
	// sorted (symbol, ts), but the reduction must not rely on that.
	latest := make(map[string]domain.FeatureRecord)
	for _, f := range feats {
		cur, ok := latest[f.Symbol]
		if !ok || f.TsUTC.After(cur.TsUTC) {
			latest[f.Symbol] = f
		}
	}

	symbols := make([]string, 0, len(latest))
	for sym := range latest {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	assetClass := domain.AssetClass(pol.AssetClass)
	records := make([]domain.UniverseRecord, 0, len(symbols))
	for _, sym := range symbols {
		f := latest[sym]
		ret60, ok := f.Returns[ret60Window]
		if !ok {
			return nil, fmt.Errorf("feature record for %s lacks the %dd return required for scoring", sym, ret60Window)
		}
		earnings := flags.Has(sym)
		included := f.Close > pol.Filters.MinPrice &&
			f.ADVUSD > pol.Filters.MinADVUSD20 &&
			!earnings

		records = append(records, domain.UniverseRecord{
			InstrumentID:      domain.InstrumentID(sym),
			Symbol:            sym,
			AssetClass:        assetClass,
			Included:          included,
			TsUTC:             f.TsUTC,
			Close:             f.Close,
			ADVUSD:            f.ADVUSD,
			ATRPct:            f.ATRPct,
			Ret60:             ret60,
			TrendProxy:        f.TrendProxy,
			EarningsWithin14d: earnings,
			Score:             ret60 + f.TrendProxy,
		})
	}

	assignRanks(records, pol.Rank.TopK)
	return records, nil
}

// assignRanks gives included rows dense 1-based ranks ordered by score
// descending, symbol ascending on ties, truncated to topK. Rows past the
// cutoff and excluded rows keep rank 0.
func assignRanks(records []domain.UniverseRecord, topK int) {
	idx := make([]int, 0, len(records))
	for i := range records {
		if records[i].Included {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := records[idx[a]], records[idx[b]]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		return ra.Symbol < rb.Symbol
	})
	for pos, i := range idx {
		if pos >= topK {
			break
		}
		records[i].Rank = pos + 1
	}
}
