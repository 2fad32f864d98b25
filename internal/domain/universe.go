package domain

import "time"

// UniverseRecord is the most recent qualifying feature snapshot for one
// symbol, plus eligibility, score and rank. Rank is 1-based and dense over
// included rows only, tie-broken by symbol ascending; Rank == 0 means the
// row carries no rank (excluded, or included but past the rank cutoff).
type UniverseRecord struct {
	InstrumentID string
	Symbol       string
	AssetClass   AssetClass

	Rank     int
	Included bool

	TsUTC             time.Time
	Close             float64
	ADVUSD            float64
	ATRPct            float64
	Ret60             float64
	TrendProxy        float64
	EarningsWithin14d bool
	Score             float64
}

// Ranked reports whether the record received a rank.
func (u *UniverseRecord) Ranked() bool {
	return u.Rank > 0
}
