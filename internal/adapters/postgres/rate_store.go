package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"fxconverter/internal/domain"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RateStore struct {
	pool *pgxpool.Pool
}

type rateRow struct {
	Code string  `json:"code"`
	Rate float64 `json:"rate"`
}

func (s *RateStore) GetRates(ctx context.Context, base string) ([]domain.RateEntry, error) {
	const q = `
		select code, base, rate, updated_at
		from currency_rates
		where base = $1;
	`

	rows, err := s.pool.Query(ctx, q, base)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates for base %q: %w", base, err)
	}
	defer rows.Close()

	entries := make([]domain.RateEntry, 0, 64)
	for rows.Next() {
		var e domain.RateEntry
		if err = rows.Scan(&e.Code, &e.Base, &e.Rate, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rates: %w", err)
	}
	return entries, nil
}

func (s *RateStore) GetLastUpdated(ctx context.Context, base string) (time.Time, bool, error) {
	const q = `select max(updated_at) from currency_rates where base = $1;`

	var last *time.Time
	if err := s.pool.QueryRow(ctx, q, base).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to select last update for base %q: %w", base, err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// ReplaceRates clears the base and inserts the new set in one transaction, so
// concurrent readers keep seeing the previous set until commit.
func (s *RateStore) ReplaceRates(ctx context.Context, base string, rates domain.RateTable, updatedAt time.Time) error {
	payload := make([]rateRow, 0, len(rates))
	for code, rate := range rates {
		payload = append(payload, rateRow{Code: code, Rate: rate})
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal rates: %w", err)
	}

	const clearQ = `delete from currency_rates where base = $1;`
	const insertQ = `
		insert into currency_rates(code, base, rate, updated_at)
		select r.code, $2::varchar, r.rate, $3::timestamptz
		from json_to_recordset($1::json) as r(code text, rate double precision)
		on conflict (code, base) do update
		set rate = excluded.rate, updated_at = excluded.updated_at;
	`

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, clearQ, base); err != nil {
		return fmt.Errorf("failed to clear rates for base %q: %w", base, err)
	}
	if len(payload) > 0 {
		if _, err = tx.Exec(ctx, insertQ, json.RawMessage(payloadJSON), base, updatedAt); err != nil {
			return fmt.Errorf("failed to insert rates for base %q: %w", base, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func NewRateStore(pool *pgxpool.Pool) *RateStore {
	return &RateStore{pool: pool}
}
