package gate

import (
	"testing"
	"time"

	"equity-research-lab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedBars emits one bar per business day in [start, end).
func seedBars(symbol string, start, end time.Time) []domain.Bar {
	var bars []domain.Bar
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		bars = append(bars, domain.Bar{Symbol: symbol, TsUTC: d, Close: 100, Timeframe: "1d"})
	}
	return bars
}

func TestBusinessDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"one full week", day(2026, 2, 2), day(2026, 2, 9), 5}, // Mon..Mon
		{"weekend only", day(2026, 2, 7), day(2026, 2, 9), 0},  // Sat, Sun
		{"empty window", day(2026, 2, 2), day(2026, 2, 2), 0},
		{"single monday", day(2026, 2, 2), day(2026, 2, 3), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BusinessDays(tt.start, tt.end); got != tt.want {
				t.Errorf("BusinessDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDepthThreshold_FloorDominatesShortWindows(t *testing.T) {
	// 30 business days minus the buffer is well below the floor.
	got := DepthThreshold(day(2026, 1, 5), day(2026, 2, 16), DefaultConfig())
	if got != DefaultMinBarsFloor {
		t.Errorf("DepthThreshold() = %d, want floor %d", got, DefaultMinBarsFloor)
	}
}

func TestDepthThreshold_DynamicBuffer(t *testing.T) {
	// 400 calendar days, ~286 business days: dynamic buffer round(0.15*n)
	// exceeds the fixed holiday buffer.
	start, end := day(2025, 1, 27), day(2026, 3, 3)
	expected := BusinessDays(start, end)
	got := DepthThreshold(start, end, DefaultConfig())

	dyn := (expected*15 + 50) / 100 // round(0.15*expected)
	want := expected - dyn
	if got != want {
		t.Errorf("DepthThreshold() = %d, want %d (expected=%d buffer=%d)", got, want, expected, dyn)
	}
}

func TestEvaluate_AllPass(t *testing.T) {
	start, end := day(2025, 9, 1), day(2026, 3, 3)
	bars := append(
		seedBars("AAPL", start, end),
		seedBars("MSFT", start, end)...,
	)
	res := Evaluate(bars, []string{"AAPL", "MSFT"}, start, end, DefaultConfig())
	if !res.AllPass {
		t.Fatalf("Evaluate() AllPass = false: %+v", res.Checks)
	}
	if len(res.Checks) != 3 {
		t.Errorf("len(Checks) = %d, want 3", len(res.Checks))
	}
}

func TestEvaluate_MissingSymbolFailsPresence(t *testing.T) {
	start, end := day(2025, 9, 1), day(2026, 3, 3)
	bars := seedBars("AAPL", start, end)
	res := Evaluate(bars, []string{"AAPL", "NVDA"}, start, end, DefaultConfig())
	if res.AllPass {
		t.Fatal("Evaluate() AllPass = true, want presence failure")
	}
	if res.Checks[0].Pass {
		t.Errorf("presence check passed: %+v", res.Checks[0])
	}
}

func TestEvaluate_DepthBoundary(t *testing.T) {
	start, end := day(2025, 9, 1), day(2026, 3, 3)
	threshold := DepthThreshold(start, end, DefaultConfig())

	full := seedBars("AAPL", start, end)
	if len(full) < threshold {
		t.Fatalf("fixture too thin: %d bars, threshold %d", len(full), threshold)
	}

	// Exactly at threshold passes. Keep the most recent bars so freshness
	// is unaffected.
	exact := full[len(full)-threshold:]
	res := Evaluate(exact, []string{"AAPL"}, start, end, DefaultConfig())
	if !res.AllPass {
		t.Errorf("Evaluate(exactly at threshold) failed: %+v", res.Checks)
	}

	// One below fails.
	below := full[len(full)-threshold+1:]
	res = Evaluate(below, []string{"AAPL"}, start, end, DefaultConfig())
	if res.Checks[1].Pass {
		t.Errorf("depth check passed one bar below threshold %d", threshold)
	}
}

func TestEvaluate_Staleness(t *testing.T) {
	start, end := day(2025, 9, 1), day(2026, 3, 3)
	// History stops 10 days before the window end.
	bars := seedBars("AAPL", start, end.AddDate(0, 0, -10))
	res := Evaluate(bars, []string{"AAPL"}, start, end, DefaultConfig())
	if res.Checks[2].Pass {
		t.Errorf("freshness check passed with a %d-day-stale tail", 10)
	}
}

func TestCheck_ReturnsTypedError(t *testing.T) {
	start, end := day(2025, 9, 1), day(2026, 3, 3)
	err := Check(nil, []string{"AAPL"}, start, end, DefaultConfig())
	if err == nil {
		t.Fatal("Check(no bars) expected error")
	}
	if _, ok := err.(*Error); !ok {
		t.Errorf("error type = %T, want *gate.Error", err)
	}

	bars := seedBars("AAPL", start, end)
	if err := Check(bars, []string{"AAPL"}, start, end, DefaultConfig()); err != nil {
		t.Errorf("Check(sufficient) error = %v", err)
	}
}
