// Package pipeline orchestrates a single research run: history, gate,
// features, universe, targets, artifacts. A run is deterministic for a
// given (policy, asof, params) identity and idempotent against its run
// directory; every failure is terminal, nothing retries.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"equity-research-lab/internal/artifacts"
	"equity-research-lab/internal/events"
	"equity-research-lab/internal/features"
	"equity-research-lab/internal/gate"
	"equity-research-lab/internal/manifest"
	"equity-research-lab/internal/policy"
	"equity-research-lab/internal/portfolio"
	"equity-research-lab/internal/runid"
	"equity-research-lab/internal/storage"
	"equity-research-lab/internal/universe"
)

// Options configures one run.
type Options struct {
	Bars   storage.BarStore
	Events storage.EventStore // optional; nil degrades to stub flags

	Policy       *policy.Policy
	PolicyPath   string
	PolicySHA256 string

	AsofUTC time.Time
	Symbols []string
	OutRoot string

	Features features.Config // zero value replaced by features.DefaultConfig
	Gate     gate.Config     // zero values fall back to gate defaults

	Log zerolog.Logger
}

// Result reports where a run landed.
type Result struct {
	RunID  string
	RunDir string
	Reused bool // an identical prior run already occupied the directory
}

// asofDayBounds floors the as-of timestamp to its UTC day and returns
// [day, day+1).
func asofDayBounds(asofUTC time.Time) (time.Time, time.Time) {
	day := asofUTC.UTC().Truncate(24 * time.Hour)
	return day, day.AddDate(0, 0, 1)
}

// Run executes the pipeline for the policy's asset class. The run identity
// and any existing manifest are resolved before a single byte is read from
// the database or written to disk.
func Run(ctx context.Context, opts Options) (*Result, error) {
	pol := opts.Policy
	if pol == nil {
		return nil, fmt.Errorf("pipeline requires a policy")
	}
	symbols, err := storage.NormalizeSymbols(opts.Symbols)
	if err != nil {
		return nil, err
	}
	if opts.Features.ATRWindow == 0 {
		opts.Features = features.DefaultConfig()
	}
	if pol.Gate.MinBarsFloor != 0 {
		opts.Gate.MinBarsFloor = pol.Gate.MinBarsFloor
	}
	if pol.Gate.HolidayBufferDays != 0 {
		opts.Gate.HolidayBufferDays = pol.Gate.HolidayBufferDays
	}
	if pol.Gate.MaxStalenessDays != 0 {
		opts.Gate.MaxStalenessDays = pol.Gate.MaxStalenessDays
	}

	asofUTC := opts.AsofUTC.UTC()
	params := runid.Params{
		Symbols:      symbols,
		Timeframe:    pol.Bars.Timeframe,
		LookbackDays: pol.Bars.LookbackDays,
	}
	pipelineKind := manifest.PipelineEquity
	if !pol.Equity() {
		pipelineKind = manifest.PipelineStub
	}

	runID, err := runid.Stable(pol.EffectiveName(), asofUTC, params)
	if err != nil {
		return nil, err
	}
	runDir := filepath.Join(opts.OutRoot, runID)
	result := &Result{RunID: runID, RunDir: runDir}

	requested := &manifest.Manifest{
		SchemaVersion:   manifest.SchemaVersion,
		ContractVersion: manifest.ContractVersion,
		RunID:           runID,
		AsofUTC:         asofUTC.Format(time.RFC3339),
		PolicyName:      pol.EffectiveName(),
		PolicyPath:      opts.PolicyPath,
		PolicySHA256:    opts.PolicySHA256,
		Pipeline:        pipelineKind,
		Params:          params,
	}

	// Idempotence check first: an identical prior run short-circuits before
	// any database work; a divergent one is fatal.
	manifestPath := filepath.Join(runDir, "manifest.json")
	if existing, lerr := manifest.Load(manifestPath); lerr == nil {
		if cerr := manifest.CheckReuse(runDir, existing, requested); cerr != nil {
			return nil, cerr
		}
		opts.Log.Info().Str("run_id", runID).Str("run_dir", runDir).Msg("reusing existing run directory")
		result.Reused = true
		return result, nil
	} else if !errors.Is(lerr, fs.ErrNotExist) {
		return nil, lerr
	}

	if pipelineKind == manifest.PipelineStub {
		return runStub(opts, requested, result, symbols, asofUTC)
	}
	return runEquity(ctx, opts, requested, result, symbols, asofUTC)
}

// runEquity is the daily-bars research path: every artifact is rendered in
// memory before the first write, and manifest.json is written last.
func runEquity(ctx context.Context, opts Options, requested *manifest.Manifest, result *Result, symbols []string, asofUTC time.Time) (*Result, error) {
	pol := opts.Policy
	log := opts.Log

	asofDayStart, asofDayEnd := asofDayBounds(asofUTC)
	endUTC := asofDayEnd
	startUTC := endUTC.AddDate(0, 0, -pol.Bars.LookbackDays)

	bars, err := opts.Bars.History(ctx, storage.HistoryQuery{
		Symbols:   symbols,
		StartUTC:  startUTC,
		EndUTC:    endUTC,
		Timeframe: pol.Bars.Timeframe,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("bars", len(bars)).Int("symbols", len(symbols)).Msg("history loaded")

	if err := gate.Check(bars, symbols, startUTC, endUTC, opts.Gate); err != nil {
		return nil, err
	}

	feats, err := features.Compute(bars, opts.Features)
	if err != nil {
		return nil, err
	}

	flags, err := events.Load(ctx, opts.Events, symbols, asofDayStart, asofDayEnd)
	if err != nil {
		return nil, err
	}
	if flags.Stubbed {
		log.Warn().Str("reason", flags.Reason).Msg("earnings flags stubbed")
	}

	uni, err := universe.Build(feats, pol, flags)
	if err != nil {
		return nil, err
	}
	targets, err := portfolio.Build(uni, pol)
	if err != nil {
		return nil, err
	}

	featuresCSV, err := artifacts.FeaturesCSV(feats, opts.Features)
	if err != nil {
		return nil, err
	}
	universeCSV, err := artifacts.UniverseCSV(uni)
	if err != nil {
		return nil, err
	}
	targetsCSV, err := artifacts.TargetsCSV(targets)
	if err != nil {
		return nil, err
	}
	barsCSV, err := artifacts.BarsCSV(bars)
	if err != nil {
		return nil, err
	}
	barsSum := sha256.Sum256(barsCSV)

	man := *requested
	man.Inputs = manifest.Inputs{
		Bars: &manifest.BarsInput{
			Symbols:   symbols,
			StartUTC:  startUTC.Format(time.RFC3339),
			EndUTC:    endUTC.Format(time.RFC3339),
			Timeframe: pol.Bars.Timeframe,
			Rows:      len(bars),
			CSVSHA256: hex.EncodeToString(barsSum[:]),
		},
		Events: manifest.EventsInput{Stubbed: flags.Stubbed, Reason: flags.Reason},
	}
	man.Outputs = map[string]manifest.FileRecord{
		"features_csv": manifest.NewFileRecord("features.csv", featuresCSV),
		"universe_csv": manifest.NewFileRecord("universe.csv", universeCSV),
		"targets_csv":  manifest.NewFileRecord("targets.csv", targetsCSV),
	}
	man.Notes = []string{}
	if flags.Stubbed {
		man.Notes = append(man.Notes, fmt.Sprintf("STUBBED: earnings exclusion used stub flags (%s)", flags.Reason))
	}

	manifestJSON, err := man.JSONBytes()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(result.RunDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory %s: %w", result.RunDir, err)
	}
	writes := []struct {
		name string
		data []byte
	}{
		{"features.csv", featuresCSV},
		{"universe.csv", universeCSV},
		{"targets.csv", targetsCSV},
	}
	for _, w := range writes {
		if err := os.WriteFile(filepath.Join(result.RunDir, w.name), w.data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", w.name, err)
		}
	}
	if err := manifest.WriteOnce(filepath.Join(result.RunDir, "manifest.json"), manifestJSON); err != nil {
		return nil, err
	}

	log.Info().Str("run_id", result.RunID).Str("run_dir", result.RunDir).
		Int("universe", len(uni)).Int("targets", len(targets)).Msg("run complete")
	return result, nil
}

// runStub handles non-equity asset classes: the request is recorded as an
// intent artifact, no market data is touched.
func runStub(opts Options, requested *manifest.Manifest, result *Result, symbols []string, asofUTC time.Time) (*Result, error) {
	pol := opts.Policy
	note := fmt.Sprintf("INTENT ONLY: %s pipeline not implemented; no market data loaded", pol.AssetClass)

	intent := &manifest.Intent{
		SchemaVersion:   manifest.SchemaVersion,
		ContractVersion: manifest.ContractVersion,
		RunID:           result.RunID,
		AsofUTC:         asofUTC.Format(time.RFC3339),
		PolicyName:      pol.EffectiveName(),
		AssetClass:      pol.AssetClass,
		Symbols:         symbols,
		Pipeline:        manifest.PipelineStub,
		Notes:           []string{note},
	}
	intentJSON, err := intent.JSONBytes()
	if err != nil {
		return nil, err
	}

	man := *requested
	man.Inputs = manifest.Inputs{}
	man.Outputs = map[string]manifest.FileRecord{
		"intent_json": manifest.NewFileRecord("intent.json", intentJSON),
	}
	man.Notes = []string{note}
	manifestJSON, err := man.JSONBytes()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(result.RunDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory %s: %w", result.RunDir, err)
	}
	if err := os.WriteFile(filepath.Join(result.RunDir, "intent.json"), intentJSON, 0o644); err != nil {
		return nil, fmt.Errorf("write intent.json: %w", err)
	}
	if err := manifest.WriteOnce(filepath.Join(result.RunDir, "manifest.json"), manifestJSON); err != nil {
		return nil, err
	}

	opts.Log.Info().Str("run_id", result.RunID).Str("run_dir", result.RunDir).
		Str("asset_class", pol.AssetClass).Msg("intent recorded")
	return result, nil
}
