package stub

import (
	"context"
	"fmt"
	"time"

	"equity-research-lab/internal/storage"
)

// FuturesHistoryQuery describes a future continuous/rolled futures lookup.
type FuturesHistoryQuery struct {
	Root     string // e.g. "ES"
	Contract string // e.g. "ESM2026", empty for continuous
	RollRule string // e.g. "front_month"
	AsofUTC  time.Time
	StartUTC time.Time
	EndUTC   time.Time
}

// LoadFuturesHistory always fails: the futures schema and ingestion do not
// exist yet.
func LoadFuturesHistory(_ context.Context, q FuturesHistoryQuery) error {
	return fmt.Errorf("futures adapter: root=%s contract=%s roll_rule=%s asof_utc=%s: %w",
		q.Root, q.Contract, q.RollRule, q.AsofUTC.UTC().Format(time.RFC3339), storage.ErrNotImplemented)
}
