package domain

// Side of a portfolio target. The long-only policy emits SideLong only.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// TargetRecord is one portfolio target weight. Weights over all records of
// a run sum to 1.0 (equal weight).
type TargetRecord struct {
	InstrumentID string
	Symbol       string
	AssetClass   AssetClass
	Side         Side
	Weight       float64
}
