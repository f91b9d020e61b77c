package redis

import (
	"context"
	"errors"
	"fmt"
	"fxconverter/internal/domain"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fxconverter:rates:"

// RateStore keeps each base as a hash of code -> rate plus a sibling key with
// the update time in unix milliseconds. Reads and replaces run inside
// MULTI/EXEC so a reader never sees a half-replaced base.
type RateStore struct {
	client *redis.Client
}

func NewRateStore(client *redis.Client) *RateStore {
	return &RateStore{client: client}
}

// Connect creates a client and checks it is reachable.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func ratesKey(base string) string   { return keyPrefix + base }
func updatedKey(base string) string { return keyPrefix + base + ":updated_at" }

func (s *RateStore) GetRates(ctx context.Context, base string) ([]domain.RateEntry, error) {
	var ratesCmd *redis.MapStringStringCmd
	var updatedCmd *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		ratesCmd = pipe.HGetAll(ctx, ratesKey(base))
		updatedCmd = pipe.Get(ctx, updatedKey(base))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read rates for base %q from redis: %w", base, err)
	}

	raw, err := ratesCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rates for base %q from redis: %w", base, err)
	}
	updatedAt, _, err := parseUpdated(updatedCmd)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RateEntry, 0, len(raw))
	for code, v := range raw {
		rate, parseErr := strconv.ParseFloat(v, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid rate %q for %s/%s in redis: %w", v, base, code, parseErr)
		}
		entries = append(entries, domain.RateEntry{Code: code, Rate: rate, Base: base, UpdatedAt: updatedAt})
	}
	return entries, nil
}

func (s *RateStore) GetLastUpdated(ctx context.Context, base string) (time.Time, bool, error) {
	return parseUpdated(s.client.Get(ctx, updatedKey(base)))
}

func (s *RateStore) ReplaceRates(ctx context.Context, base string, rates domain.RateTable, updatedAt time.Time) error {
	values := make(map[string]interface{}, len(rates))
	for code, rate := range rates {
		values[code] = strconv.FormatFloat(rate, 'g', -1, 64)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ratesKey(base), updatedKey(base))
		if len(values) > 0 {
			pipe.HSet(ctx, ratesKey(base), values)
			pipe.Set(ctx, updatedKey(base), updatedAt.UnixMilli(), 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace rates for base %q in redis: %w", base, err)
	}
	return nil
}

func parseUpdated(cmd *redis.StringCmd) (time.Time, bool, error) {
	ms, err := cmd.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read last update from redis: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}
