package storage

import (
	"errors"
	"testing"
)

func TestResolveRoles(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		wantTs  string
		wantErr bool
	}{
		{
			name:    "canonical columns",
			columns: []string{"symbol", "ts_utc", "timeframe", "open", "high", "low", "close", "volume"},
			wantTs:  "ts_utc",
		},
		{
			name:    "bar_end_ts alias and adj_close",
			columns: []string{"symbol", "bar_end_ts", "timeframe", "open", "high", "low", "adj_close", "volume"},
			wantTs:  "bar_end_ts",
		},
		{
			name:    "micros price columns",
			columns: []string{"symbol", "t", "timeframe", "open_micros", "high_micros", "low_micros", "close_micros", "volume"},
			wantTs:  "t",
		},
		{
			name:    "missing close",
			columns: []string{"symbol", "ts_utc", "timeframe", "open", "high", "low", "volume"},
			wantErr: true,
		},
		{
			name:    "missing timeframe",
			columns: []string{"symbol", "ts_utc", "open", "high", "low", "close", "volume"},
			wantErr: true,
		},
		{
			name:    "missing symbol",
			columns: []string{"ts_utc", "timeframe", "open", "high", "low", "close", "volume"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, err := ResolveRoles("md_bars", tt.columns)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ResolveRoles() expected error, got roles %+v", roles)
				}
				var se *SchemaError
				if !errors.As(err, &se) {
					t.Errorf("ResolveRoles() error type = %T, want *SchemaError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveRoles() error = %v", err)
			}
			if roles.Timestamp != tt.wantTs {
				t.Errorf("Timestamp = %q, want %q", roles.Timestamp, tt.wantTs)
			}
		})
	}
}

func TestResolveRoles_CandidatePriority(t *testing.T) {
	// Both ts_utc and ts present: the earlier candidate wins.
	roles, err := ResolveRoles("md_bars", []string{"symbol", "ts", "ts_utc", "timeframe", "open", "high", "low", "close", "volume"})
	if err != nil {
		t.Fatalf("ResolveRoles() error = %v", err)
	}
	if roles.Timestamp != "ts_utc" {
		t.Errorf("Timestamp = %q, want ts_utc (candidate priority)", roles.Timestamp)
	}

	// close beats adj_close when both exist.
	roles, err = ResolveRoles("md_bars", []string{"symbol", "ts_utc", "timeframe", "open", "high", "low", "adj_close", "close", "volume"})
	if err != nil {
		t.Fatalf("ResolveRoles() error = %v", err)
	}
	if roles.Close != "close" {
		t.Errorf("Close = %q, want close", roles.Close)
	}
}

func TestResolveRoles_IsComplete(t *testing.T) {
	roles, err := ResolveRoles("md_bars", []string{"symbol", "ts_utc", "timeframe", "open", "high", "low", "close", "volume", "is_complete"})
	if err != nil {
		t.Fatalf("ResolveRoles() error = %v", err)
	}
	if !roles.HasIsComplete {
		t.Error("HasIsComplete = false, want true")
	}
}

func TestMicroScaled(t *testing.T) {
	if !MicroScaled("close_micros") {
		t.Error("MicroScaled(close_micros) = false, want true")
	}
	if MicroScaled("close") {
		t.Error("MicroScaled(close) = true, want false")
	}
}

func TestClassifyEpochValue(t *testing.T) {
	if got := ClassifyEpochValue(1_700_000_000); got != EpochSeconds {
		t.Errorf("ClassifyEpochValue(seconds) = %v, want %v", got, EpochSeconds)
	}
	if got := ClassifyEpochValue(1_700_000_000_000); got != EpochMilliseconds {
		t.Errorf("ClassifyEpochValue(millis) = %v, want %v", got, EpochMilliseconds)
	}
}

func TestInferEpochUnit(t *testing.T) {
	unit, err := InferEpochUnit("md_bars", "ts", 1_600_000_000, 1_700_000_000)
	if err != nil {
		t.Fatalf("InferEpochUnit() error = %v", err)
	}
	if unit != EpochSeconds {
		t.Errorf("unit = %v, want %v", unit, EpochSeconds)
	}

	unit, err = InferEpochUnit("md_bars", "ts", 1_600_000_000_000, 1_700_000_000_000)
	if err != nil {
		t.Fatalf("InferEpochUnit() error = %v", err)
	}
	if unit != EpochMilliseconds {
		t.Errorf("unit = %v, want %v", unit, EpochMilliseconds)
	}
}

func TestInferEpochUnit_MixedFailsClosed(t *testing.T) {
	_, err := InferEpochUnit("md_bars", "ts", 1_600_000_000, 1_700_000_000_000)
	if err == nil {
		t.Fatal("InferEpochUnit() expected error for mixed units")
	}
	var me *MixedEpochUnitsError
	if !errors.As(err, &me) {
		t.Fatalf("error type = %T, want *MixedEpochUnitsError", err)
	}
	if me.MinRaw != 1_600_000_000 || me.MaxRaw != 1_700_000_000_000 {
		t.Errorf("error bounds = %d/%d, want raw min/max", me.MinRaw, me.MaxRaw)
	}
}
