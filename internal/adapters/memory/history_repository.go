package memory

import (
	"context"
	"fxconverter/internal/domain"
	"sort"
	"sync"
)

type HistoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []domain.ConversionRecord
}

func (r *HistoryRepository) Insert(_ context.Context, record domain.ConversionRecord) (domain.ConversionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	record.ID = r.nextID
	r.records = append(r.records, record)
	return record, nil
}

func (r *HistoryRepository) GetLatest(_ context.Context, limit int) ([]domain.ConversionRecord, error) {
	if limit <= 0 {
		return []domain.ConversionRecord{}, nil
	}

	r.mu.RLock()
	latest := make([]domain.ConversionRecord, len(r.records))
	copy(latest, r.records)
	r.mu.RUnlock()

	sort.SliceStable(latest, func(i, j int) bool {
		if latest[i].CreatedAt.Equal(latest[j].CreatedAt) {
			return latest[i].ID > latest[j].ID
		}
		return latest[i].CreatedAt.After(latest[j].CreatedAt)
	})
	if len(latest) > limit {
		latest = latest[:limit]
	}
	return latest, nil
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}
