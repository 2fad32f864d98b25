package domain

import "time"

// Bar represents one OHLCV observation for a symbol over a fixed timeframe.
// Corresponds to one row of the md_bars table after unit normalization:
// timestamps are UTC, prices are floating decimals regardless of how the
// source table stores them.
type Bar struct {
	Symbol    string    // upper-cased ticker
	TsUTC     time.Time // bar timestamp, always UTC
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timeframe string // e.g. "1D"
}

// AssetClass identifies the instrument family a policy targets.
type AssetClass string

const (
	AssetClassEquity AssetClass = "EQUITY"
	AssetClassOption AssetClass = "OPTION"
	AssetClassFuture AssetClass = "FUTURE"
)

// InstrumentID builds the synthetic equity instrument identifier.
func InstrumentID(symbol string) string {
	return "EQUITY::" + symbol
}
