// Package stub holds placeholder adapters for asset classes whose storage
// schema does not exist yet. Every loader fails with ErrNotImplemented;
// nothing here silently returns empty data.
package stub

import (
	"context"
	"fmt"
	"time"

	"equity-research-lab/internal/storage"
)

// OptionsChainQuery describes a future option-chain lookup. All queries are
// as-of scoped; data may come only from the research database.
type OptionsChainQuery struct {
	Symbol    string
	AsofUTC   time.Time
	ExpiryUTC *time.Time
}

// LoadOptionsChain always fails: the options schema and ingestion do not
// exist yet.
func LoadOptionsChain(_ context.Context, q OptionsChainQuery) error {
	return fmt.Errorf("options adapter: symbol=%s asof_utc=%s: %w",
		q.Symbol, q.AsofUTC.UTC().Format(time.RFC3339), storage.ErrNotImplemented)
}
