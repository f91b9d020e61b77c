package memory

import (
	"context"
	"fxconverter/internal/domain"
	"sync"
	"time"
)

type rateSet struct {
	rates     domain.RateTable
	updatedAt time.Time
}

// RateStore keeps rate sets in process memory. Used in tests and when no
// database is configured.
type RateStore struct {
	mu    sync.RWMutex
	bases map[string]rateSet
}

func (s *RateStore) GetRates(_ context.Context, base string) ([]domain.RateEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.bases[base]
	if !ok {
		return []domain.RateEntry{}, nil
	}
	entries := make([]domain.RateEntry, 0, len(set.rates))
	for code, rate := range set.rates {
		entries = append(entries, domain.RateEntry{Code: code, Rate: rate, Base: base, UpdatedAt: set.updatedAt})
	}
	return entries, nil
}

func (s *RateStore) GetLastUpdated(_ context.Context, base string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.bases[base]
	if !ok || len(set.rates) == 0 {
		return time.Time{}, false, nil
	}
	return set.updatedAt, true, nil
}

func (s *RateStore) ReplaceRates(_ context.Context, base string, rates domain.RateTable, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(rates) == 0 {
		delete(s.bases, base)
		return nil
	}
	s.bases[base] = rateSet{rates: rates.Clone(), updatedAt: updatedAt}
	return nil
}

func NewRateStore() *RateStore {
	return &RateStore{bases: make(map[string]rateSet)}
}
