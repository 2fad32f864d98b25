// Package features computes per-symbol rolling-window technical features
// from canonical bars. Computation is strictly order-sensitive: bars are
// grouped by symbol and sorted by timestamp before any rolling statistic,
// and a statistic is undefined until its full window of history exists.
// Rows lacking any core derived field are dropped entirely, never imputed.
package features

import (
	"fmt"
	"math"
	"sort"

	"equity-research-lab/internal/domain"
)

// Config fixes the rolling windows.
type Config struct {
	ATRWindow     int
	ADVWindow     int
	ReturnWindows []int
	MAFast        int
	MASlow        int
}

// DefaultConfig returns the daily-equity feature windows.
func DefaultConfig() Config {
	return Config{
		ATRWindow:     20,
		ADVWindow:     20,
		ReturnWindows: []int{1, 5, 20, 60},
		MAFast:        20,
		MASlow:        50,
	}
}

func (c Config) validate() error {
	if c.ATRWindow <= 0 || c.ADVWindow <= 0 || c.MAFast <= 0 || c.MASlow <= 0 {
		return fmt.Errorf("feature windows must be > 0: %+v", c)
	}
	if len(c.ReturnWindows) == 0 {
		return fmt.Errorf("at least one return window is required")
	}
	for _, w := range c.ReturnWindows {
		if w <= 0 {
			return fmt.Errorf("return windows must be > 0: %v", c.ReturnWindows)
		}
	}
	return nil
}

// trueRange computes max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(high, low, prevClose float64) float64 {
	tr := math.Abs(high - low)
	if v := math.Abs(high - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(low - prevClose); v > tr {
		tr = v
	}
	return tr
}

// rollingMean averages values[i-window+1 .. i]; ok is false until the full
// window exists.
func rollingMean(values []float64, i, window int) (mean float64, ok bool) {
	if i < window-1 {
		return 0, false
	}
	sum := 0.0
	for j := i - window + 1; j <= i; j++ {
		sum += values[j]
	}
	return sum / float64(window), true
}

// Compute derives feature records from bars. Output is ordered by symbol
// ascending, then timestamp ascending.
func Compute(bars []domain.Bar, cfg Config) ([]domain.FeatureRecord, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Explicit grouping: per-symbol ordered sequences, processed
	// independently and concatenated in sorted symbol order.
	groups := make(map[string][]domain.Bar)
	for _, b := range bars {
		groups[b.Symbol] = append(groups[b.Symbol], b)
	}
	symbols := make([]string, 0, len(groups))
	for sym := range groups {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var out []domain.FeatureRecord
	for _, sym := range symbols {
		group := groups[sym]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TsUTC.Before(group[j].TsUTC)
		})
		out = append(out, computeSymbol(group, cfg)...)
	}
	return out, nil
}

// computeSymbol derives features for one symbol's time-ordered bars.
func computeSymbol(bars []domain.Bar, cfg Config) []domain.FeatureRecord {
	n := len(bars)
	dollarVolume := make([]float64, n)
	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		dollarVolume[i] = b.Close * b.Volume
	}

	// True range needs the previous close, so tr[0] stays undefined and the
	// ATR window is counted from index 1.
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = trueRange(bars[i].High, bars[i].Low, closes[i-1])
	}

	var out []domain.FeatureRecord
	for i, b := range bars {
		rets := make(map[int]float64, len(cfg.ReturnWindows))
		defined := true
		for _, w := range cfg.ReturnWindows {
			if i < w {
				defined = false
				break
			}
			rets[w] = closes[i]/closes[i-w] - 1
		}
		if !defined {
			continue
		}

		// ATR over cfg.ATRWindow true ranges, the earliest of which is tr[1].
		if i < cfg.ATRWindow {
			continue
		}
		atrSum := 0.0
		for j := i - cfg.ATRWindow + 1; j <= i; j++ {
			atrSum += tr[j]
		}
		atr := atrSum / float64(cfg.ATRWindow)

		adv, ok := rollingMean(dollarVolume, i, cfg.ADVWindow)
		if !ok {
			continue
		}
		maFast, ok := rollingMean(closes, i, cfg.MAFast)
		if !ok {
			continue
		}
		maSlow, ok := rollingMean(closes, i, cfg.MASlow)
		if !ok {
			continue
		}

		out = append(out, domain.FeatureRecord{
			Symbol:     b.Symbol,
			TsUTC:      b.TsUTC,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			Returns:    rets,
			ATRPct:     atr / closes[i],
			ADVUSD:     adv,
			MAFast:     maFast,
			MASlow:     maSlow,
			TrendProxy: maFast/maSlow - 1,
		})
	}
	return out
}
