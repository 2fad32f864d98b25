package domain

import "time"

// FeatureRecord is a Bar extended with rolling-window derived fields.
// A record exists only if every core derived field has a defined value;
// partial-window rows are dropped by the feature engine, never imputed.
type FeatureRecord struct {
	Symbol string
	TsUTC  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// Returns maps window length (periods) to close[t]/close[t-w] - 1.
	Returns map[int]float64

	ATRPct     float64 // rolling mean true range / close
	ADVUSD     float64 // rolling mean of close * volume
	MAFast     float64
	MASlow     float64
	TrendProxy float64 // ma_fast/ma_slow - 1
}

// Ret returns the N-period return. The feature engine guarantees every
// configured window is present, so a missing key indicates a programming error.
func (f *FeatureRecord) Ret(window int) float64 {
	return f.Returns[window]
}
