package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"fxconverter/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	historyKey    = "fxconverter:history"
	historySeqKey = "fxconverter:history:seq"
)

// HistoryRepository keeps conversions in a list, newest at the head.
type HistoryRepository struct {
	client *redis.Client
}

func NewHistoryRepository(client *redis.Client) *HistoryRepository {
	return &HistoryRepository{client: client}
}

func (r *HistoryRepository) Insert(ctx context.Context, record domain.ConversionRecord) (domain.ConversionRecord, error) {
	id, err := r.client.Incr(ctx, historySeqKey).Result()
	if err != nil {
		return domain.ConversionRecord{}, fmt.Errorf("failed to allocate conversion id: %w", err)
	}
	record.ID = id

	data, err := json.Marshal(record)
	if err != nil {
		return domain.ConversionRecord{}, fmt.Errorf("failed to marshal conversion: %w", err)
	}
	if err = r.client.LPush(ctx, historyKey, data).Err(); err != nil {
		return domain.ConversionRecord{}, fmt.Errorf("failed to push conversion %s->%s: %w", record.FromCurrency, record.ToCurrency, err)
	}
	return record, nil
}

func (r *HistoryRepository) GetLatest(ctx context.Context, limit int) ([]domain.ConversionRecord, error) {
	if limit <= 0 {
		return []domain.ConversionRecord{}, nil
	}

	raw, err := r.client.LRange(ctx, historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversion history: %w", err)
	}

	records := make([]domain.ConversionRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.ConversionRecord
		if err = json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode conversion: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
