// Package artifacts renders run outputs as deterministic CSV bytes.
// Column layout is fixed per artifact: identity columns first, every
// remaining column in ascending name order. Rows are emitted in the order
// the pipeline produced them, which is already (symbol, ts) or
// (symbol) sorted. Numeric formatting is part of the contract: dollar
// volumes round to 2 decimals, ratios, returns and weights to 8, and raw
// prices and volumes use the shortest round-trip decimal.
package artifacts

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"equity-research-lab/internal/domain"
	"equity-research-lab/internal/features"
)

func formatTs(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

func formatDollar(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func formatShortest(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

// formatRank renders rank 0 (unranked) as an empty cell.
func formatRank(rank int) string {
	if rank == 0 {
		return ""
	}
	return strconv.Itoa(rank)
}

func encode(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// columnsFor prepends the identity columns to the sorted remainder.
func columnsFor(identity, rest []string) []string {
	sorted := append([]string(nil), rest...)
	sort.Strings(sorted)
	return append(append([]string(nil), identity...), sorted...)
}

// FeaturesCSV renders feature records. Return and moving-average column
// names derive from the configured windows (ret_5d, ma_20, ...); the ATR
// and dollar-volume columns keep their canonical names atr_pct_20 and
// adv_usd_20 whatever window computed them, so downstream readers never
// chase a renamed column.
func FeaturesCSV(records []domain.FeatureRecord, cfg features.Config) ([]byte, error) {
	rest := []string{
		"open", "high", "low", "close", "volume",
		"atr_pct_20",
		"adv_usd_20",
		fmt.Sprintf("ma_%d", cfg.MAFast),
		fmt.Sprintf("ma_%d", cfg.MASlow),
		"trend_proxy",
	}
	for _, w := range cfg.ReturnWindows {
		rest = append(rest, fmt.Sprintf("ret_%dd", w))
	}
	header := columnsFor([]string{"symbol", "ts_utc"}, rest)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		cells := map[string]string{
			"symbol":  r.Symbol,
			"ts_utc":  formatTs(r.TsUTC),
			"open":    formatShortest(r.Open),
			"high":    formatShortest(r.High),
			"low":     formatShortest(r.Low),
			"close":   formatShortest(r.Close),
			"volume":  formatShortest(r.Volume),
			"atr_pct_20":                     formatRatio(r.ATRPct),
			"adv_usd_20":                     formatDollar(r.ADVUSD),
			fmt.Sprintf("ma_%d", cfg.MAFast): formatShortest(r.MAFast),
			fmt.Sprintf("ma_%d", cfg.MASlow): formatShortest(r.MASlow),
			"trend_proxy":                    formatRatio(r.TrendProxy),
		}
		for _, w := range cfg.ReturnWindows {
			cells[fmt.Sprintf("ret_%dd", w)] = formatRatio(r.Ret(w))
		}
		rows = append(rows, project(header, cells))
	}
	return encode(header, rows)
}

// UniverseCSV renders universe records, included and excluded alike.
// Unranked rows carry an empty rank cell.
func UniverseCSV(records []domain.UniverseRecord) ([]byte, error) {
	header := columnsFor(
		[]string{"instrument_id", "symbol", "asset_class", "rank", "included"},
		[]string{"ts_utc", "close", "adv_usd_20", "atr_pct_20", "ret_60d", "trend_proxy", "earnings_within_14d", "score"},
	)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, project(header, map[string]string{
			"instrument_id":       r.InstrumentID,
			"symbol":              r.Symbol,
			"asset_class":         string(r.AssetClass),
			"rank":                formatRank(r.Rank),
			"included":            formatBool(r.Included),
			"ts_utc":              formatTs(r.TsUTC),
			"close":               formatShortest(r.Close),
			"adv_usd_20":          formatDollar(r.ADVUSD),
			"atr_pct_20":          formatRatio(r.ATRPct),
			"ret_60d":             formatRatio(r.Ret60),
			"trend_proxy":         formatRatio(r.TrendProxy),
			"earnings_within_14d": formatBool(r.EarningsWithin14d),
			"score":               formatRatio(r.Score),
		}))
	}
	return encode(header, rows)
}

// TargetsCSV renders portfolio targets.
func TargetsCSV(records []domain.TargetRecord) ([]byte, error) {
	header := []string{"instrument_id", "symbol", "asset_class", "side", "weight"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.InstrumentID,
			r.Symbol,
			string(r.AssetClass),
			string(r.Side),
			formatRatio(r.Weight),
		})
	}
	return encode(header, rows)
}

// BarsCSV renders the loaded bar window. Used for the manifest input hash,
// not written to the run directory.
func BarsCSV(bars []domain.Bar) ([]byte, error) {
	header := columnsFor(
		[]string{"symbol", "ts_utc"},
		[]string{"open", "high", "low", "close", "volume", "timeframe"},
	)
	rows := make([][]string, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, project(header, map[string]string{
			"symbol":    b.Symbol,
			"ts_utc":    formatTs(b.TsUTC),
			"open":      formatShortest(b.Open),
			"high":      formatShortest(b.High),
			"low":       formatShortest(b.Low),
			"close":     formatShortest(b.Close),
			"volume":    formatShortest(b.Volume),
			"timeframe": b.Timeframe,
		}))
	}
	return encode(header, rows)
}

// project lays cell values out in header order.
func project(header []string, cells map[string]string) []string {
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = cells[col]
	}
	return row
}
