// Package portfolio builds long-only equal-weight target weights from the
// ranked universe.
package portfolio

import (
	"fmt"
	"sort"

	"equity-research-lab/internal/domain"
	"equity-research-lab/internal/policy"
)

// Build selects the top-ranked included rows and equal-weights them.
// top_n is capped by max_positions. Output is sorted by symbol ascending
// and its weights sum to 1.0.
func Build(records []domain.UniverseRecord, pol *policy.Policy) ([]domain.TargetRecord, error) {
	topN := pol.Portfolio.TopN
	if pol.Portfolio.MaxPositions < topN {
		topN = pol.Portfolio.MaxPositions
	}
	if topN <= 0 {
		return nil, fmt.Errorf("portfolio.top_n must be > 0")
	}

	selected := make([]domain.UniverseRecord, 0, topN)
	for _, r := range records {
		if r.Included && r.Ranked() {
			selected = append(selected, r)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Rank != selected[j].Rank {
			return selected[i].Rank < selected[j].Rank
		}
		return selected[i].Symbol < selected[j].Symbol
	})
	if len(selected) > topN {
		selected = selected[:topN]
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("universe produced zero included instruments; cannot build targets")
	}

	weight := 1.0 / float64(len(selected))
	targets := make([]domain.TargetRecord, 0, len(selected))
	for _, r := range selected {
		targets = append(targets, domain.TargetRecord{
			InstrumentID: r.InstrumentID,
			Symbol:       r.Symbol,
			AssetClass:   r.AssetClass,
			Side:         domain.SideLong,
			Weight:       weight,
		})
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Symbol < targets[j].Symbol
	})
	return targets, nil
}
