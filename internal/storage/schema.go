package storage

import "strings"

// Canonical column roles of a bars table. The source schema is neither fixed
// nor fully trusted: each role is resolved from an ordered candidate list,
// and detection fails closed when any role is missing.

// Candidate column names per role, tried in priority order.
var (
	TimestampCandidates = []string{
		"ts_utc",
		"bar_ts_utc",
		"end_ts",
		"end_ts_utc",
		"bar_end_ts",
		"bar_end_ts_utc",
		"ts",
		"bar_ts",
		"timestamp",
		"time",
		"t",
	}
	OpenCandidates   = []string{"open", "o", "open_micros"}
	HighCandidates   = []string{"high", "h", "high_micros"}
	LowCandidates    = []string{"low", "l", "low_micros"}
	CloseCandidates  = []string{"close", "c", "close_micros", "adj_close", "close_adj"}
	VolumeCandidates = []string{"volume", "v", "vol"}
)

// MicrosScale divides micro-scaled integer price columns into decimals.
const MicrosScale = 1_000_000.0

// EpochUnit is the storage unit of an integer timestamp column.
type EpochUnit string

const (
	EpochSeconds      EpochUnit = "s"
	EpochMilliseconds EpochUnit = "ms"
)

// epochMillisThreshold separates second-scale from millisecond-scale epoch
// values. Current epoch seconds are ~1.7e9; milliseconds are ~1.7e12.
const epochMillisThreshold = 1_000_000_000_000

// ClassifyEpochValue classifies a single raw epoch value.
func ClassifyEpochValue(v int64) EpochUnit {
	if v > epochMillisThreshold {
		return EpochMilliseconds
	}
	return EpochSeconds
}

// InferEpochUnit classifies the observed min/max of a timestamp column.
// Strict: if the bounds classify differently the column mixes units and the
// inference fails closed rather than picking a majority.
func InferEpochUnit(table, column string, minRaw, maxRaw int64) (EpochUnit, error) {
	minUnit := ClassifyEpochValue(minRaw)
	maxUnit := ClassifyEpochValue(maxRaw)
	if minUnit != maxUnit {
		return "", &MixedEpochUnitsError{Table: table, Column: column, MinRaw: minRaw, MaxRaw: maxRaw}
	}
	return minUnit, nil
}

// Roles holds the resolved canonical column names for a bars table.
type Roles struct {
	Timestamp     string
	Open          string
	High          string
	Low           string
	Close         string
	Volume        string
	HasIsComplete bool
}

// MicroScaled reports whether a resolved price column stores micro-scaled
// integers that must be divided by MicrosScale.
func MicroScaled(column string) bool {
	return strings.HasSuffix(column, "_micros")
}

// ResolveRoles maps available columns onto canonical roles. Both the symbol
// and timeframe columns are required alongside the OHLCV roles; is_complete
// is optional. Returns *SchemaError enumerating every missing role.
func ResolveRoles(table string, columns []string) (Roles, error) {
	colset := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		colset[c] = struct{}{}
	}

	pick := func(candidates []string) string {
		for _, c := range candidates {
			if _, ok := colset[c]; ok {
				return c
			}
		}
		return ""
	}

	r := Roles{
		Timestamp: pick(TimestampCandidates),
		Open:      pick(OpenCandidates),
		High:      pick(HighCandidates),
		Low:       pick(LowCandidates),
		Close:     pick(CloseCandidates),
		Volume:    pick(VolumeCandidates),
	}
	_, r.HasIsComplete = colset["is_complete"]

	var missing []string
	if _, ok := colset["symbol"]; !ok {
		missing = append(missing, "symbol")
	}
	if _, ok := colset["timeframe"]; !ok {
		missing = append(missing, "timeframe")
	}
	if r.Timestamp == "" {
		missing = append(missing, "timestamp")
	}
	if r.Open == "" {
		missing = append(missing, "open")
	}
	if r.High == "" {
		missing = append(missing, "high")
	}
	if r.Low == "" {
		missing = append(missing, "low")
	}
	if r.Close == "" {
		missing = append(missing, "close")
	}
	if r.Volume == "" {
		missing = append(missing, "volume")
	}
	if len(missing) > 0 {
		return Roles{}, &SchemaError{Table: table, Missing: missing, Available: columns}
	}
	return r, nil
}
