package service

import (
	"sort"
	"sync"

	"tradecore/internal/engine"

	"github.com/shopspring/decimal"
)

// SessionService collects the immutable post-bar summaries published by
// each instrument's pipeline. It is the only place cross-instrument
// aggregation happens; it never reaches into live pipeline state.
type SessionService struct {
	mu        sync.RWMutex
	summaries map[string]engine.Summary
}

// NewSessionService creates an empty session aggregator.
func NewSessionService() *SessionService {
	return &SessionService{
		summaries: make(map[string]engine.Summary),
	}
}

// OnSummary is the pipeline callback; safe for concurrent use across
// instrument goroutines.
func (s *SessionService) OnSummary(sum engine.Summary) {
	s.mu.Lock()
	s.summaries[sum.Instrument] = sum
	s.mu.Unlock()
}

// All returns the latest summary per instrument, sorted by instrument for
// consistent ordering.
func (s *SessionService) All() []engine.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]engine.Summary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		result = append(result, sum)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})
	return result
}

// Get returns the latest summary for one instrument.
func (s *SessionService) Get(instrument string) (engine.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[instrument]
	return sum, ok
}

// TotalPnL sums session PnL across instruments with exact arithmetic.
func (s *SessionService) TotalPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sum := range s.summaries {
		total = total.Add(decimal.NewFromFloat(sum.SessionPnL))
	}
	return total
}

// OpenPositions counts instruments with an open position. Portfolio
// overlap checks run on this, not on live pipelines.
func (s *SessionService) OpenPositions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sum := range s.summaries {
		if sum.PositionOpen {
			n++
		}
	}
	return n
}
