// Package manifest defines the schema-versioned run manifest and the
// non-equity intent artifact. Manifests are written once per run directory
// and never truncated; an existing manifest either proves the run was
// already produced with identical inputs, or names the divergent fields.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"equity-research-lab/internal/runid"
)

// SchemaVersion is the manifest layout version.
const SchemaVersion = "1"

// ContractVersion is the artifact contract version. Runs refuse to reuse a
// directory written under a different contract.
const ContractVersion = "1"

// Pipeline kinds recorded in the manifest.
const (
	PipelineEquity = "equity_daily"
	PipelineStub   = "non_equity_stub"
)

// ErrManifestExists reports a second write attempt into a run directory.
var ErrManifestExists = errors.New("manifest already exists")

// FileRecord describes one artifact file by path, content hash and size.
type FileRecord struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// NewFileRecord hashes in-memory artifact bytes under their run-relative
// path.
func NewFileRecord(relPath string, data []byte) FileRecord {
	sum := sha256.Sum256(data)
	return FileRecord{
		Path:   relPath,
		SHA256: hex.EncodeToString(sum[:]),
		Bytes:  len(data),
	}
}

// BarsInput records what was read from the bars table and a content hash of
// the loaded window rendered as CSV bytes.
type BarsInput struct {
	Symbols   []string `json:"symbols"`
	StartUTC  string   `json:"start_utc"`
	EndUTC    string   `json:"end_utc"`
	Timeframe string   `json:"timeframe"`
	Rows      int      `json:"bars_rows"`
	CSVSHA256 string   `json:"bars_sha256_csv"`
}

// EventsInput records whether the optional earnings source was usable.
type EventsInput struct {
	Stubbed bool   `json:"stubbed"`
	Reason  string `json:"reason,omitempty"`
}

// Inputs describes everything a run read.
type Inputs struct {
	Bars   *BarsInput  `json:"md_bars,omitempty"`
	Events EventsInput `json:"events"`
}

// Manifest is the write-once record of a completed run.
type Manifest struct {
	SchemaVersion   string                `json:"schema_version"`
	ContractVersion string                `json:"contract_version"`
	RunID           string                `json:"run_id"`
	AsofUTC         string                `json:"asof_utc"`
	PolicyName      string                `json:"policy_name"`
	PolicyPath      string                `json:"policy_path"`
	PolicySHA256    string                `json:"policy_sha256"`
	Pipeline        string                `json:"pipeline"`
	Params          runid.Params          `json:"params"`
	Inputs          Inputs                `json:"inputs"`
	Outputs         map[string]FileRecord `json:"outputs"`
	Notes           []string              `json:"notes"`
}

// JSONBytes renders the manifest as canonical JSON.
func (m *Manifest) JSONBytes() ([]byte, error) {
	return runid.CanonicalJSON(m)
}

// SHA256 hashes the canonical JSON bytes.
func (m *Manifest) SHA256() (string, error) {
	blob, err := m.JSONBytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}

// Intent is the placeholder artifact for non-equity runs: the research
// request is recorded, no market data is touched.
type Intent struct {
	SchemaVersion   string   `json:"schema_version"`
	ContractVersion string   `json:"contract_version"`
	RunID           string   `json:"run_id"`
	AsofUTC         string   `json:"asof_utc"`
	PolicyName      string   `json:"policy_name"`
	AssetClass      string   `json:"asset_class"`
	Symbols         []string `json:"symbols"`
	Pipeline        string   `json:"pipeline"`
	Notes           []string `json:"notes"`
}

// JSONBytes renders the intent as canonical JSON.
func (i *Intent) JSONBytes() ([]byte, error) {
	return runid.CanonicalJSON(i)
}

// FieldDivergence is one identity field that differs between the requested
// run and an existing manifest.
type FieldDivergence struct {
	Field    string
	Expected any
	Actual   any
}

// DivergenceError reports a run directory whose manifest was produced from
// different inputs than the current request.
type DivergenceError struct {
	RunDir string
	Fields []FieldDivergence
}

func (e *DivergenceError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, d := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: manifest=%v request=%v", d.Field, d.Expected, d.Actual))
	}
	return fmt.Sprintf("run directory %s holds a manifest with divergent identity (%s)", e.RunDir, strings.Join(parts, "; "))
}

// WriteOnce writes data with O_CREATE|O_EXCL so an existing file is never
// truncated. An existing path maps to ErrManifestExists.
func WriteOnce(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrManifestExists)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// CheckReuse compares the identity fields of an existing manifest against
// the requested run. Equal identities return nil and the directory may be
// reused untouched; any mismatch returns a *DivergenceError.
func CheckReuse(runDir string, existing, requested *Manifest) error {
	var fields []FieldDivergence
	add := func(name string, expected, actual any) {
		if expected != actual {
			fields = append(fields, FieldDivergence{Field: name, Expected: expected, Actual: actual})
		}
	}
	add("schema_version", existing.SchemaVersion, requested.SchemaVersion)
	add("contract_version", existing.ContractVersion, requested.ContractVersion)
	add("policy_name", existing.PolicyName, requested.PolicyName)
	add("policy_sha256", existing.PolicySHA256, requested.PolicySHA256)
	add("asof_utc", existing.AsofUTC, requested.AsofUTC)
	add("pipeline", existing.Pipeline, requested.Pipeline)

	existingParams, err := runid.CanonicalJSON(existing.Params)
	if err != nil {
		return fmt.Errorf("canonicalize manifest params: %w", err)
	}
	requestedParams, err := runid.CanonicalJSON(requested.Params)
	if err != nil {
		return fmt.Errorf("canonicalize requested params: %w", err)
	}
	if !bytes.Equal(existingParams, requestedParams) {
		fields = append(fields, FieldDivergence{
			Field:    "params",
			Expected: string(existingParams),
			Actual:   string(requestedParams),
		})
	}

	if len(fields) > 0 {
		return &DivergenceError{RunDir: runDir, Fields: fields}
	}
	return nil
}
