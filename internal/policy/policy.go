// Package policy loads and validates research policy YAML files. Only the
// consumed fields are modeled; unknown keys are ignored. A policy is
// identified by its name plus the sha256 of its file bytes, both of which
// go into the run manifest.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"equity-research-lab/internal/domain"
)

// Policy is the parsed mapping a run consumes.
type Policy struct {
	// Name is preferred; PolicyName is accepted as an alias for older
	// policy files. Use EffectiveName.
	Name       string `yaml:"name"`
	PolicyName string `yaml:"policy_name"`

	AssetClass string `yaml:"asset_class"`

	Bars struct {
		Timeframe    string `yaml:"timeframe"`
		LookbackDays int    `yaml:"lookback_days"`
	} `yaml:"bars"`

	Filters struct {
		MinPrice    float64 `yaml:"min_price"`
		MinADVUSD20 float64 `yaml:"min_adv_usd_20"`
	} `yaml:"filters"`

	Rank struct {
		TopK int `yaml:"top_k"`
		// Scoring is an audit label only. The universe score formula is
		// fixed in code and this value is never applied to it.
		Scoring string `yaml:"scoring"`
	} `yaml:"rank"`

	Portfolio struct {
		TopN         int `yaml:"top_n"`
		MaxPositions int `yaml:"max_positions"`
	} `yaml:"portfolio"`

	Gate struct {
		// Optional overrides for the data sufficiency gate. Zero values
		// fall back to the gate defaults.
		MinBarsFloor      int `yaml:"min_bars_floor"`
		HolidayBufferDays int `yaml:"holiday_buffer_days"`
		MaxStalenessDays  int `yaml:"max_staleness_days"`
	} `yaml:"gate"`
}

// EffectiveName returns the policy name, preferring the `name` key.
func (p *Policy) EffectiveName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.PolicyName
}

// Equity reports whether the policy targets the equity pipeline.
func (p *Policy) Equity() bool {
	return domain.AssetClass(p.AssetClass) == domain.AssetClassEquity
}

// Validate checks the fields every pipeline kind requires, then the
// equity-only fields when applicable.
func (p *Policy) Validate() error {
	var problems []string
	if p.EffectiveName() == "" {
		problems = append(problems, "name (or policy_name) is required")
	}
	if p.AssetClass == "" {
		problems = append(problems, "asset_class is required")
	}
	if p.Equity() {
		if p.Bars.Timeframe == "" {
			problems = append(problems, "bars.timeframe is required")
		}
		if p.Bars.LookbackDays <= 0 {
			problems = append(problems, "bars.lookback_days must be > 0")
		}
		if p.Filters.MinPrice < 0 {
			problems = append(problems, "filters.min_price must be >= 0")
		}
		if p.Filters.MinADVUSD20 < 0 {
			problems = append(problems, "filters.min_adv_usd_20 must be >= 0")
		}
		if p.Rank.TopK <= 0 {
			problems = append(problems, "rank.top_k must be > 0")
		}
		if p.Portfolio.TopN <= 0 {
			problems = append(problems, "portfolio.top_n must be > 0")
		}
		if p.Portfolio.MaxPositions <= 0 {
			problems = append(problems, "portfolio.max_positions must be > 0")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid policy %q: %s", p.EffectiveName(), strings.Join(problems, "; "))
	}
	return nil
}

// Load reads and validates a policy file, returning the policy and the
// sha256 hex of the raw file bytes.
func Load(path string) (*Policy, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read policy %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, "", fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, "", err
	}

	sum := sha256.Sum256(data)
	return &p, hex.EncodeToString(sum[:]), nil
}
