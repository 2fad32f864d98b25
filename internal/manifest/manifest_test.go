package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"equity-research-lab/internal/runid"
)

func testManifest() *Manifest {
	return &Manifest{
		SchemaVersion:   SchemaVersion,
		ContractVersion: ContractVersion,
		RunID:           "abc123",
		AsofUTC:         "2026-02-24T00:00:00Z",
		PolicyName:      "swing_v1",
		PolicyPath:      "policies/swing_v1.yaml",
		PolicySHA256:    "deadbeef",
		Pipeline:        PipelineEquity,
		Params:          runid.Params{Symbols: []string{"AAPL"}, Timeframe: "1d", LookbackDays: 400},
		Outputs:         map[string]FileRecord{},
		Notes:           []string{},
	}
}

func TestWriteOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	if err := WriteOnce(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("WriteOnce() error = %v", err)
	}

	// A second write must fail and leave the original bytes intact.
	err := WriteOnce(path, []byte(`{"a":2}`))
	if !errors.Is(err, ErrManifestExists) {
		t.Fatalf("second WriteOnce() error = %v, want ErrManifestExists", err)
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read back: %v", readErr)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("file content = %s, want original bytes", data)
	}
}

func TestJSONBytesRoundTrip(t *testing.T) {
	m := testManifest()
	blob, err := m.JSONBytes()
	if err != nil {
		t.Fatalf("JSONBytes() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := WriteOnce(path, blob); err != nil {
		t.Fatalf("WriteOnce() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RunID != m.RunID || loaded.PolicySHA256 != m.PolicySHA256 || loaded.Pipeline != m.Pipeline {
		t.Errorf("Load() = %+v, want %+v", loaded, m)
	}
	if len(loaded.Params.Symbols) != 1 || loaded.Params.Symbols[0] != "AAPL" {
		t.Errorf("Params.Symbols = %v, want [AAPL]", loaded.Params.Symbols)
	}
}

func TestJSONBytes_Deterministic(t *testing.T) {
	a, err := testManifest().JSONBytes()
	if err != nil {
		t.Fatalf("JSONBytes() error = %v", err)
	}
	b, err := testManifest().JSONBytes()
	if err != nil {
		t.Fatalf("JSONBytes() error = %v", err)
	}
	if string(a) != string(b) {
		t.Error("JSONBytes() not byte-deterministic")
	}
}

func TestCheckReuse_Identical(t *testing.T) {
	if err := CheckReuse("runs/abc123", testManifest(), testManifest()); err != nil {
		t.Errorf("CheckReuse(identical) error = %v", err)
	}
}

func TestCheckReuse_Divergent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Manifest)
		field  string
	}{
		{"policy sha", func(m *Manifest) { m.PolicySHA256 = "feedface" }, "policy_sha256"},
		{"policy name", func(m *Manifest) { m.PolicyName = "swing_v2" }, "policy_name"},
		{"asof", func(m *Manifest) { m.AsofUTC = "2026-02-25T00:00:00Z" }, "asof_utc"},
		{"contract", func(m *Manifest) { m.ContractVersion = "2" }, "contract_version"},
		{"pipeline", func(m *Manifest) { m.Pipeline = PipelineStub }, "pipeline"},
		{"params", func(m *Manifest) { m.Params.Symbols = []string{"MSFT"} }, "params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requested := testManifest()
			tt.mutate(requested)

			err := CheckReuse("runs/abc123", testManifest(), requested)
			var de *DivergenceError
			if !errors.As(err, &de) {
				t.Fatalf("CheckReuse() error = %v, want *DivergenceError", err)
			}
			found := false
			for _, f := range de.Fields {
				if f.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("DivergenceError fields %+v missing %q", de.Fields, tt.field)
			}
		})
	}
}

func TestNewFileRecord(t *testing.T) {
	rec := NewFileRecord("targets.csv", []byte("instrument_id,symbol\n"))
	if rec.Path != "targets.csv" {
		t.Errorf("Path = %q", rec.Path)
	}
	if rec.Bytes != 21 {
		t.Errorf("Bytes = %d, want 21", rec.Bytes)
	}
	if len(rec.SHA256) != 64 {
		t.Errorf("len(SHA256) = %d, want 64", len(rec.SHA256))
	}
}
