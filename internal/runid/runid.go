// Package runid derives the content-addressed run identifier: a hash of
// the logical inputs (policy name, as-of timestamp, canonicalized params),
// so re-running with identical inputs lands in the same run directory.
package runid

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Length of the truncated hex run id.
const Length = 20

// CanonicalJSON marshals a value into deterministic JSON: sorted keys,
// compact separators. Structs are round-tripped through a generic value so
// nested maps sort the same way regardless of field order.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("round-trip value: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical value: %w", err)
	}
	return out, nil
}

// Params are the canonicalized run parameters included in the identity.
type Params struct {
	Symbols      []string `json:"symbols"`
	Timeframe    string   `json:"timeframe"`
	LookbackDays int      `json:"lookback_days"`
}

// Stable computes the run identifier:
// sha256(canonical_json({policy_name, asof_utc, params}))[:Length].
func Stable(policyName string, asofUTC time.Time, params Params) (string, error) {
	blob, err := CanonicalJSON(map[string]any{
		"policy_name": policyName,
		"asof_utc":    asofUTC.UTC().Format(time.RFC3339),
		"params":      params,
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize run identity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])[:Length], nil
}
