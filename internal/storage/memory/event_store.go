package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"equity-research-lab/internal/storage"
)

// Event is one corporate event row.
type Event struct {
	Symbol string
	TsUTC  time.Time
	Type   string // e.g. "EARNINGS"
}

// EventStore is an in-memory implementation of storage.EventStore.
// An absent store simulates a missing corporate_events table and degrades
// via storage.ErrNoEvents like the SQL-backed store.
type EventStore struct {
	mu     sync.RWMutex
	events []Event
	absent bool
}

// NewEventStore creates an empty, present event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// NewAbsentEventStore creates a store that reports the source unavailable.
func NewAbsentEventStore() *EventStore {
	return &EventStore{absent: true}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Seed adds events.
func (s *EventStore) Seed(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		e.Symbol = strings.ToUpper(e.Symbol)
		s.events = append(s.events, e)
	}
}

// EarningsWithin reports, per requested symbol, whether an EARNINGS event
// falls inside [startUTC, endUTC).
func (s *EventStore) EarningsWithin(_ context.Context, symbols []string, startUTC, endUTC time.Time) (map[string]bool, error) {
	if s.absent {
		return nil, fmt.Errorf("memory events store marked absent: %w", storage.ErrNoEvents)
	}

	normalized, err := storage.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	flags := make(map[string]bool, len(normalized))
	for _, sym := range normalized {
		flags[sym] = false
	}
	for _, e := range s.events {
		if e.Type != "EARNINGS" {
			continue
		}
		if _, ok := flags[e.Symbol]; !ok {
			continue
		}
		ts := e.TsUTC.UTC()
		if ts.Before(startUTC.UTC()) || !ts.Before(endUTC.UTC()) {
			continue
		}
		flags[e.Symbol] = true
	}
	return flags, nil
}
