package postgres

import (
	"context"
	"fmt"
	"fxconverter/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HistoryRepository struct {
	pool *pgxpool.Pool
}

func (r *HistoryRepository) Insert(ctx context.Context, record domain.ConversionRecord) (domain.ConversionRecord, error) {
	const q = `
		insert into conversion_history (from_currency, to_currency, amount, result, created_at)
		values ($1, $2, $3, $4, $5)
		returning id;
	`

	err := r.pool.QueryRow(ctx, q,
		record.FromCurrency,
		record.ToCurrency,
		record.Amount,
		record.Result,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return domain.ConversionRecord{}, fmt.Errorf("failed to insert conversion %s->%s: %w", record.FromCurrency, record.ToCurrency, err)
	}
	return record, nil
}

func (r *HistoryRepository) GetLatest(ctx context.Context, limit int) ([]domain.ConversionRecord, error) {
	if limit <= 0 {
		return []domain.ConversionRecord{}, nil
	}

	const q = `
		select id, from_currency, to_currency, amount, result, created_at
		from conversion_history
		order by created_at desc, id desc
		limit $1;
	`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversion history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ConversionRecord, 0, limit)
	for rows.Next() {
		var rec domain.ConversionRecord
		if err = rows.Scan(&rec.ID, &rec.FromCurrency, &rec.ToCurrency, &rec.Amount, &rec.Result, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversion history: %w", err)
	}
	return records, nil
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}
