package adapters

import (
	"context"
	"fxconverter/internal/domain"
	"time"
)

type RateClient interface {
	GetExchangeRates(ctx context.Context, base string) (domain.FetchResult, error)
}

// RateStore keeps one rate set per base. ReplaceRates must swap the whole set
// so that readers never observe a mix of old and new entries.
type RateStore interface {
	GetRates(ctx context.Context, base string) ([]domain.RateEntry, error)
	GetLastUpdated(ctx context.Context, base string) (time.Time, bool, error)
	ReplaceRates(ctx context.Context, base string, rates domain.RateTable, updatedAt time.Time) error
}

type HistoryRepository interface {
	Insert(ctx context.Context, record domain.ConversionRecord) (domain.ConversionRecord, error)
	GetLatest(ctx context.Context, limit int) ([]domain.ConversionRecord, error)
}
