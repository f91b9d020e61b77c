package rate

import (
	"context"
	"errors"
	"fmt"
	"fxconverter/internal/adapters"
	"fxconverter/internal/domain"
	"fxconverter/internal/metrics"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultStalenessWindow is the minimum age of cached rates before a
// non-forced sync fetches again.
const DefaultStalenessWindow = time.Hour

type SyncStatus string

const (
	// StatusRefreshed: rates were fetched, normalized and persisted.
	StatusRefreshed SyncStatus = "refreshed"
	// StatusTooSoon: cache is fresh, nothing was fetched.
	StatusTooSoon SyncStatus = "too_soon"
	// StatusKeptCache: fetch or normalization failed, cached rates stay in use.
	StatusKeptCache SyncStatus = "kept_cache"
	// StatusRefreshFailed: fetch or normalization failed and there is no cache.
	StatusRefreshFailed SyncStatus = "refresh_failed"
)

type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
)

type SyncOutcome struct {
	Status    SyncStatus
	Table     domain.RateTable
	UpdatedAt time.Time
}

type SyncConfig struct {
	WorkingBase     string
	SourceBase      string
	StalenessWindow time.Duration
}

// SyncController owns the in-memory rate table for the working base and keeps
// it in step with the store and the remote source.
type SyncController struct {
	store   adapters.RateStore
	client  adapters.RateClient
	metrics *metrics.Metrics
	cfg     SyncConfig
	now     func() time.Time
	flight  singleflight.Group
	syncing atomic.Int32

	mu        sync.RWMutex
	table     domain.RateTable
	updatedAt time.Time
}

// attempt is the part of a sync shared by concurrent callers.
type attempt struct {
	status    SyncStatus
	table     domain.RateTable
	updatedAt time.Time
}

const statusFailed SyncStatus = "failed"

func NewSyncController(store adapters.RateStore, client adapters.RateClient, cfg SyncConfig, m *metrics.Metrics) *SyncController {
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	return &SyncController{
		store:   store,
		client:  client,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
		table:   domain.RateTable{},
	}
}

// LoadCached seeds the in-memory table from the store. It reports whether any
// cached rates were found.
func (c *SyncController) LoadCached(ctx context.Context) (bool, error) {
	entries, err := c.store.GetRates(ctx, c.cfg.WorkingBase)
	if err != nil {
		return false, fmt.Errorf("failed to load cached rates: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	var updatedAt time.Time
	for _, e := range entries {
		if e.UpdatedAt.After(updatedAt) {
			updatedAt = e.UpdatedAt
		}
	}
	c.setTable(domain.TableFromEntries(entries), updatedAt)
	logrus.Infof("Loaded %d cached rates for base %s", len(entries), c.cfg.WorkingBase)
	return true, nil
}

// Sync performs at most one remote fetch. Fetch and normalization failures are
// absorbed: the outcome is StatusKeptCache when hadCachedRates is true and
// StatusRefreshFailed otherwise. The returned error is only set when the store
// fails.
//
// Concurrent calls with the same force flag share a single attempt. The
// attempt ignores cancellation of ctx and is bounded by the client timeouts.
func (c *SyncController) Sync(ctx context.Context, force bool, hadCachedRates bool) (SyncOutcome, error) {
	key := "sync"
	if force {
		key = "sync:force"
	}

	// the attempt outlives a cancelled caller, others may be waiting on it
	attemptCtx := context.WithoutCancel(ctx)
	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		c.syncing.Add(1)
		defer c.syncing.Add(-1)
		return c.attempt(attemptCtx, force)
	})
	if err != nil {
		c.metrics.ObserveSync("error")
		return SyncOutcome{}, err
	}
	res := v.(attempt)
	if shared {
		logrus.Debugf("Sync joined an in-flight attempt with status %s", res.status)
	}

	outcome := SyncOutcome{Status: res.status, Table: res.table.Clone(), UpdatedAt: res.updatedAt}
	if res.status == statusFailed {
		outcome = SyncOutcome{Status: StatusRefreshFailed}
		if hadCachedRates {
			outcome = SyncOutcome{Status: StatusKeptCache, Table: c.Table(), UpdatedAt: c.UpdatedAt()}
		}
	}
	c.metrics.ObserveSync(string(outcome.Status))
	return outcome, nil
}

func (c *SyncController) attempt(ctx context.Context, force bool) (attempt, error) {
	execID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"exec_id": execID, "base": c.cfg.WorkingBase, "force": force})

	lastUpdated, ok, err := c.store.GetLastUpdated(ctx, c.cfg.WorkingBase)
	if err != nil {
		return attempt{}, fmt.Errorf("failed to read last update: %w", err)
	}
	if !ok {
		lastUpdated = time.UnixMilli(0)
	}

	now := c.now()
	isStale := now.Sub(lastUpdated) >= c.cfg.StalenessWindow
	if !force && !isStale {
		log.Debugf("Rates updated at %s are still fresh", lastUpdated.Format(time.RFC3339))
		return attempt{status: StatusTooSoon, table: c.Table(), updatedAt: lastUpdated}, nil
	}

	start := time.Now()
	fetched, err := c.client.GetExchangeRates(ctx, c.cfg.SourceBase)
	c.metrics.ObserveFetch(start, err)
	if err != nil {
		log.WithError(err).Warn("Rates fetch failed")
		return attempt{status: statusFailed}, nil
	}

	normalized, err := Normalize(c.cfg.WorkingBase, c.cfg.SourceBase, fetched.Rates)
	if err == nil && len(normalized) == 0 {
		err = errors.New("normalized rate set is empty")
	}
	if err != nil {
		log.WithError(err).Warn("Fetched rates could not be normalized")
		return attempt{status: statusFailed}, nil
	}

	updatedAt := fetched.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	if err = c.store.ReplaceRates(ctx, c.cfg.WorkingBase, normalized, updatedAt); err != nil {
		return attempt{}, fmt.Errorf("failed to persist rates: %w", err)
	}
	c.setTable(normalized, updatedAt)

	log.Infof("%d rates refreshed, source update time %s", len(normalized), updatedAt.Format(time.RFC3339))
	return attempt{status: StatusRefreshed, table: normalized, updatedAt: updatedAt}, nil
}

// Table returns a copy of the current in-memory rate table.
func (c *SyncController) Table() domain.RateTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Clone()
}

func (c *SyncController) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

func (c *SyncController) HasRates() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table) > 0
}

func (c *SyncController) State() State {
	if c.syncing.Load() > 0 {
		return StateSyncing
	}
	return StateIdle
}

func (c *SyncController) WorkingBase() string { return c.cfg.WorkingBase }

func (c *SyncController) setTable(table domain.RateTable, updatedAt time.Time) {
	if len(table) == 0 {
		return
	}
	c.mu.Lock()
	c.table = table.Clone()
	c.updatedAt = updatedAt
	c.mu.Unlock()
	c.metrics.SetRatesCached(len(table))
}
