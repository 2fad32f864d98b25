// Package events loads earnings-exclusion flags from the optional corporate
// events source. The result is a tagged value: either populated flags or an
// explicit stub carrying the degradation reason. Stubbing is the single
// non-fatal degradation in the pipeline and is always recorded, never hidden.
package events

import (
	"context"
	"errors"
	"time"

	"equity-research-lab/internal/storage"
)

// EarningsLookaheadDays is how far past the as-of day end the exclusion
// window extends.
const EarningsLookaheadDays = 14

// Flags carries per-symbol earnings flags, or a stub when the source was
// unavailable. Branch on Stubbed, not on missing map entries.
type Flags struct {
	Stubbed   bool
	Reason    string // degradation reason, set only when Stubbed
	Within14d map[string]bool
}

// Has reports the earnings flag for a symbol. Stub flags are false for
// every symbol.
func (f Flags) Has(symbol string) bool {
	return f.Within14d[symbol]
}

// stubFlags synthesizes all-false flags for the symbol set.
func stubFlags(symbols []string, reason string) Flags {
	flags := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		flags[sym] = false
	}
	return Flags{Stubbed: true, Reason: reason, Within14d: flags}
}

// Load queries the events source for EARNINGS events in
// [asofDayStart, asofDayEnd + EarningsLookaheadDays). A nil store, an
// absent table or an unrecognized schema degrades to stub flags; any other
// failure is fatal.
func Load(ctx context.Context, store storage.EventStore, symbols []string, asofDayStart, asofDayEnd time.Time) (Flags, error) {
	if store == nil {
		return stubFlags(symbols, "events store not configured"), nil
	}

	endUTC := asofDayEnd.UTC().AddDate(0, 0, EarningsLookaheadDays)
	flags, err := store.EarningsWithin(ctx, symbols, asofDayStart.UTC(), endUTC)
	if err != nil {
		if errors.Is(err, storage.ErrNoEvents) {
			return stubFlags(symbols, err.Error()), nil
		}
		return Flags{}, err
	}
	return Flags{Within14d: flags}, nil
}
