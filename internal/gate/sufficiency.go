// Package gate validates loaded bar history against completeness and
// freshness thresholds before any computation proceeds. The gate never
// passes partial data: every check enumerates the offending symbols and
// the measured values so the data gap is actionable.
package gate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"equity-research-lab/internal/domain"
)

// Config holds the gate thresholds. Zero values fall back to defaults.
type Config struct {
	MinBarsFloor      int // minimum bar count regardless of window length
	HolidayBufferDays int // fixed allowance for holidays/missing sessions
	MaxStalenessDays  int // max age of the latest bar vs the window end
}

// Default thresholds.
const (
	DefaultMinBarsFloor      = 60
	DefaultHolidayBufferDays = 8
	DefaultMaxStalenessDays  = 7
)

// DefaultConfig returns the default gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinBarsFloor:      DefaultMinBarsFloor,
		HolidayBufferDays: DefaultHolidayBufferDays,
		MaxStalenessDays:  DefaultMaxStalenessDays,
	}
}

func (c Config) withDefaults() Config {
	if c.MinBarsFloor == 0 {
		c.MinBarsFloor = DefaultMinBarsFloor
	}
	if c.HolidayBufferDays == 0 {
		c.HolidayBufferDays = DefaultHolidayBufferDays
	}
	if c.MaxStalenessDays == 0 {
		c.MaxStalenessDays = DefaultMaxStalenessDays
	}
	return c
}

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Result contains all checks.
type Result struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// Error is the failure form of a Result. It is fatal; the pipeline never
// proceeds with partial data.
type Error struct {
	Checks []SufficiencyCheck
}

func (e *Error) Error() string {
	var parts []string
	for _, c := range e.Checks {
		if !c.Pass {
			parts = append(parts, fmt.Sprintf("%s: threshold %s, actual %s", c.Name, c.Threshold, c.Actual))
		}
	}
	return "data sufficiency gate failed: " + strings.Join(parts, "; ")
}

// BusinessDays counts Mon-Fri dates d with startUTC's date <= d < endUTC's
// date, in UTC.
func BusinessDays(startUTC, endUTC time.Time) int {
	start := startUTC.UTC().Truncate(24 * time.Hour)
	end := endUTC.UTC().Truncate(24 * time.Hour)
	n := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			n++
		}
	}
	return n
}

// DepthThreshold computes the per-symbol minimum bar count for a window:
// max(min_bars_floor, expected_business_days - dynamic_buffer), where
// dynamic_buffer = max(holiday_buffer_days, round(0.15 * expected)).
// The buffer tolerates holiday/missing-session noise while catching
// genuinely thin histories.
func DepthThreshold(startUTC, endUTC time.Time, cfg Config) int {
	cfg = cfg.withDefaults()
	expected := BusinessDays(startUTC, endUTC)
	buffer := cfg.HolidayBufferDays
	if dyn := int(math.Round(0.15 * float64(expected))); dyn > buffer {
		buffer = dyn
	}
	threshold := expected - buffer
	if cfg.MinBarsFloor > threshold {
		threshold = cfg.MinBarsFloor
	}
	return threshold
}

// Evaluate runs the three sufficiency checks over loaded history.
// endUTC is both the window end and the as-of day end the freshness check
// measures against.
func Evaluate(bars []domain.Bar, symbols []string, startUTC, endUTC time.Time, cfg Config) *Result {
	cfg = cfg.withDefaults()
	result := &Result{AllPass: true}

	counts := make(map[string]int, len(symbols))
	lastTs := make(map[string]time.Time, len(symbols))
	for _, b := range bars {
		counts[b.Symbol]++
		if b.TsUTC.After(lastTs[b.Symbol]) {
			lastTs[b.Symbol] = b.TsUTC
		}
	}

	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	// 1. Presence: every requested symbol appears in the history.
	var missing []string
	for _, sym := range sorted {
		if counts[sym] == 0 {
			missing = append(missing, sym)
		}
	}
	presence := SufficiencyCheck{
		Name:      "Symbol presence",
		Threshold: "all requested symbols present",
		Actual:    "all present",
		Pass:      len(missing) == 0,
	}
	if len(missing) > 0 {
		presence.Actual = fmt.Sprintf("missing: %s", strings.Join(missing, ", "))
	}
	result.Checks = append(result.Checks, presence)

	// 2. Depth: per-symbol bar count against the business-day threshold.
	threshold := DepthThreshold(startUTC, endUTC, cfg)
	var thin []string
	for _, sym := range sorted {
		if n, ok := counts[sym]; ok && n < threshold {
			thin = append(thin, fmt.Sprintf("%s=%d", sym, n))
		}
	}
	depth := SufficiencyCheck{
		Name:      "Bar depth",
		Threshold: fmt.Sprintf(">= %d bars per symbol", threshold),
		Actual:    "all sufficient",
		Pass:      len(thin) == 0,
	}
	if len(thin) > 0 {
		depth.Actual = fmt.Sprintf("insufficient: %s", strings.Join(thin, ", "))
	}
	result.Checks = append(result.Checks, depth)

	// 3. Freshness: latest bar within max_staleness_days of the window end.
	staleCutoff := endUTC.UTC().AddDate(0, 0, -cfg.MaxStalenessDays)
	var stale []string
	for _, sym := range sorted {
		ts, ok := lastTs[sym]
		if !ok {
			continue // covered by presence
		}
		if ts.Before(staleCutoff) {
			stale = append(stale, fmt.Sprintf("%s=%s", sym, ts.UTC().Format("2006-01-02")))
		}
	}
	freshness := SufficiencyCheck{
		Name:      "Freshness",
		Threshold: fmt.Sprintf("last bar within %d days of %s", cfg.MaxStalenessDays, endUTC.UTC().Format("2006-01-02")),
		Actual:    "all fresh",
		Pass:      len(stale) == 0,
	}
	if len(stale) > 0 {
		freshness.Actual = fmt.Sprintf("stale: %s", strings.Join(stale, ", "))
	}
	result.Checks = append(result.Checks, freshness)

	for _, c := range result.Checks {
		if !c.Pass {
			result.AllPass = false
		}
	}
	return result
}

// Check runs Evaluate and converts a failed result into *Error.
// It passes silently otherwise.
func Check(bars []domain.Bar, symbols []string, startUTC, endUTC time.Time, cfg Config) error {
	result := Evaluate(bars, symbols, startUTC, endUTC, cfg)
	if result.AllPass {
		return nil
	}
	return &Error{Checks: result.Checks}
}
