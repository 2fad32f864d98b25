package runid

import (
	"testing"
	"time"
)

func TestStable_LengthAndDeterminism(t *testing.T) {
	asof := time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC)
	params := Params{Symbols: []string{"AAPL", "MSFT"}, Timeframe: "1d", LookbackDays: 400}

	id1, err := Stable("swing_v1", asof, params)
	if err != nil {
		t.Fatalf("Stable() error = %v", err)
	}
	if len(id1) != Length {
		t.Errorf("len(id) = %d, want %d", len(id1), Length)
	}

	id2, err := Stable("swing_v1", asof, params)
	if err != nil {
		t.Fatalf("Stable() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("Stable() not deterministic: %s != %s", id1, id2)
	}
}

func TestStable_SensitiveToEveryInput(t *testing.T) {
	asof := time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC)
	params := Params{Symbols: []string{"AAPL"}, Timeframe: "1d", LookbackDays: 400}
	base, err := Stable("swing_v1", asof, params)
	if err != nil {
		t.Fatalf("Stable() error = %v", err)
	}

	variants := []struct {
		name   string
		policy string
		asof   time.Time
		params Params
	}{
		{"policy name", "swing_v2", asof, params},
		{"asof", "swing_v1", asof.AddDate(0, 0, 1), params},
		{"symbols", "swing_v1", asof, Params{Symbols: []string{"MSFT"}, Timeframe: "1d", LookbackDays: 400}},
		{"timeframe", "swing_v1", asof, Params{Symbols: []string{"AAPL"}, Timeframe: "1h", LookbackDays: 400}},
		{"lookback", "swing_v1", asof, Params{Symbols: []string{"AAPL"}, Timeframe: "1d", LookbackDays: 200}},
	}
	for _, v := range variants {
		got, err := Stable(v.policy, v.asof, v.params)
		if err != nil {
			t.Fatalf("Stable(%s) error = %v", v.name, err)
		}
		if got == base {
			t.Errorf("changing %s did not change the run id", v.name)
		}
	}
}

func TestStable_NonUTCAsofNormalized(t *testing.T) {
	params := Params{Symbols: []string{"AAPL"}, Timeframe: "1d", LookbackDays: 400}
	utc := time.Date(2026, 2, 24, 5, 0, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*3600))

	a, err := Stable("swing_v1", utc, params)
	if err != nil {
		t.Fatalf("Stable() error = %v", err)
	}
	b, err := Stable("swing_v1", est, params)
	if err != nil {
		t.Fatalf("Stable() error = %v", err)
	}
	if a != b {
		t.Errorf("same instant in different zones produced %s vs %s", a, b)
	}
}

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"b": 1, "a": map[string]any{"z": 1, "y": 2}})
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	want := `{"a":{"y":2,"z":1},"b":1}`
	if string(got) != want {
		t.Errorf("CanonicalJSON() = %s, want %s", got, want)
	}
}
