package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fxconverter/internal/adapters/memory"
	"fxconverter/internal/domain"
	"fxconverter/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Testify mocks ---

type MockRateClient struct{ mock.Mock }

func (m *MockRateClient) GetExchangeRates(ctx context.Context, base string) (domain.FetchResult, error) {
	args := m.Called(ctx, base)
	res, _ := args.Get(0).(domain.FetchResult)
	return res, args.Error(1)
}

type MockRateStore struct{ mock.Mock }

func (m *MockRateStore) GetRates(ctx context.Context, base string) ([]domain.RateEntry, error) {
	args := m.Called(ctx, base)
	entries, _ := args.Get(0).([]domain.RateEntry)
	return entries, args.Error(1)
}

func (m *MockRateStore) GetLastUpdated(ctx context.Context, base string) (time.Time, bool, error) {
	args := m.Called(ctx, base)
	ts, _ := args.Get(0).(time.Time)
	return ts, args.Bool(1), args.Error(2)
}

func (m *MockRateStore) ReplaceRates(ctx context.Context, base string, rates domain.RateTable, updatedAt time.Time) error {
	args := m.Called(ctx, base, rates, updatedAt)
	return args.Error(0)
}

var (
	testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	testCfg = SyncConfig{WorkingBase: "USDT", SourceBase: "USD", StalenessWindow: time.Hour}

	remoteRates = map[string]float64{"USD": 1.0, "USDT": 1.1, "EUR": 0.9}
)

func newTestController(t *testing.T, store *memory.RateStore, client *MockRateClient) *SyncController {
	t.Helper()
	c := NewSyncController(store, client, testCfg, metrics.New(prometheus.NewRegistry()))
	c.now = func() time.Time { return testNow }
	return c
}

func seed(t *testing.T, store *memory.RateStore, table domain.RateTable, updatedAt time.Time) {
	t.Helper()
	require.NoError(t, store.ReplaceRates(context.Background(), testCfg.WorkingBase, table, updatedAt))
}

func storedTable(t *testing.T, store *memory.RateStore) domain.RateTable {
	t.Helper()
	entries, err := store.GetRates(context.Background(), testCfg.WorkingBase)
	require.NoError(t, err)
	return domain.TableFromEntries(entries)
}

// --- LoadCached ---

func TestSyncController_LoadCached_Empty(t *testing.T) {
	c := newTestController(t, memory.NewRateStore(), new(MockRateClient))

	had, err := c.LoadCached(context.Background())
	require.NoError(t, err)
	require.False(t, had)
	require.False(t, c.HasRates())
	require.Empty(t, c.Table())
}

func TestSyncController_LoadCached_SeedsTable(t *testing.T) {
	store := memory.NewRateStore()
	cachedAt := testNow.Add(-10 * time.Minute)
	seed(t, store, domain.RateTable{"USDT": 1, "EUR": 0.8}, cachedAt)
	c := newTestController(t, store, new(MockRateClient))

	had, err := c.LoadCached(context.Background())
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, domain.RateTable{"USDT": 1, "EUR": 0.8}, c.Table())
	require.True(t, cachedAt.Equal(c.UpdatedAt()))
}

func TestSyncController_LoadCached_StoreError(t *testing.T) {
	store := new(MockRateStore)
	store.On("GetRates", mock.Anything, "USDT").Return(nil, errors.New("disk full")).Once()
	c := NewSyncController(store, new(MockRateClient), testCfg, nil)

	_, err := c.LoadCached(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

// --- Sync ---

func TestSyncController_Sync_FreshCache_TooSoon(t *testing.T) {
	store := memory.NewRateStore()
	seed(t, store, domain.RateTable{"USDT": 1, "EUR": 0.8}, testNow)
	client := new(MockRateClient)
	c := newTestController(t, store, client)

	outcome, err := c.Sync(context.Background(), false, true)
	require.NoError(t, err)
	require.Equal(t, StatusTooSoon, outcome.Status)
	require.Equal(t, domain.RateTable{"USDT": 1, "EUR": 0.8}, storedTable(t, store))
	client.AssertNotCalled(t, "GetExchangeRates", mock.Anything, mock.Anything)
}

func TestSyncController_Sync_JustInsideWindow_TooSoon(t *testing.T) {
	store := memory.NewRateStore()
	seed(t, store, domain.RateTable{"USDT": 1}, testNow.Add(-time.Hour+time.Millisecond))
	client := new(MockRateClient)
	c := newTestController(t, store, client)

	outcome, err := c.Sync(context.Background(), false, true)
	require.NoError(t, err)
	require.Equal(t, StatusTooSoon, outcome.Status)
	client.AssertNotCalled(t, "GetExchangeRates", mock.Anything, mock.Anything)
}

func TestSyncController_Sync_StaleCache_Refreshes(t *testing.T) {
	store := memory.NewRateStore()
	seed(t, store, domain.RateTable{"USDT": 1, "GBP": 0.7}, testNow.Add(-time.Hour))
	client := new(MockRateClient)
	payloadTime := testNow.Add(-5 * time.Minute)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(domain.FetchResult{Rates: remoteRates, UpdatedAt: payloadTime}, nil).Once()
	c := newTestController(t, store, client)

	outcome, err := c.Sync(context.Background(), false, true)
	require.NoError(t, err)
	require.Equal(t, StatusRefreshed, outcome.Status)
	require.True(t, payloadTime.Equal(outcome.UpdatedAt))
	require.Equal(t, 1.0, outcome.Table["USDT"])
	require.InDelta(t, 1.0/1.1, outcome.Table["USD"], 1e-9)
	require.InDelta(t, 0.9/1.1, outcome.Table["EUR"], 1e-9)

	// stale codes are dropped, not merged
	stored := storedTable(t, store)
	require.Equal(t, outcome.Table, stored)
	require.False(t, stored.Has("GBP"))
	require.Equal(t, outcome.Table, c.Table())

	last, ok, err := store.GetLastUpdated(context.Background(), "USDT")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, payloadTime.Equal(last))
	client.AssertExpectations(t)
}

func TestSyncController_Sync_Force_FetchesEvenWhenFresh(t *testing.T) {
	store := memory.NewRateStore()
	seed(t, store, domain.RateTable{"USDT": 1}, testNow)
	client := new(MockRateClient)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(domain.FetchResult{Rates: remoteRates, UpdatedAt: testNow}, nil).Once()
	c := newTestController(t, store, client)

	outcome, err := c.Sync(context.Background(), true, true)
	require.NoError(t, err)
	require.Equal(t, StatusRefreshed, outcome.Status)
	client.AssertExpectations(t)
}

func TestSyncController_Sync_NoLastUpdate_TreatedAsStale(t *testing.T) {
	store := memory.NewRateStore()
	client := new(MockRateClient)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(domain.FetchResult{Rates: remoteRates, UpdatedAt: testNow}, nil).Once()
	c := newTestController(t, store, client)

	outcome, err := c.Sync(context.Background(), false, false)
	require.NoError(t, err)
	require.Equal(t, StatusRefreshed, outcome.Status)
	require.True(t, c.HasRates())
}

func TestSyncController_Sync_ZeroPayloadTime_UsesNow(t *testing.T) {
	store := memory.NewRateStore()
	client := new(MockRateClient)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(domain.FetchResult{Rates: remoteRates}, nil).Once()
	c := newTestController(t, store, client)

	outcome, err := c.Sync(context.Background(), false, false)
	require.NoError(t, err)
	require.True(t, testNow.Equal(outcome.UpdatedAt))

	// the next non-forced sync is gated
	outcome, err = c.Sync(context.Background(), false, true)
	require.NoError(t, err)
	require.Equal(t, StatusTooSoon, outcome.Status)
	client.AssertExpectations(t)
}

func TestSyncController_Sync_FetchFailed_NoCache_RefreshFailed(t *testing.T) {
	store := memory.NewRateStore()
	client := new(MockRateClient)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(nil, fmt.Errorf("%w: timeout", domain.ErrFetchFailed)).Once()
	c := newTestController(t, store, client)

	outcome, err := c.Sync(context.Background(), false, false)
	require.NoError(t, err)
	require.Equal(t, StatusRefreshFailed, outcome.Status)
	require.Empty(t, outcome.Table)
	require.Empty(t, storedTable(t, store))
	require.False(t, c.HasRates())

	require.Equal(t, 1.0, testutil.ToFloat64(c.metrics.SyncTotal.WithLabelValues(string(StatusRefreshFailed))))
}

func TestSyncController_Sync_FetchFailed_WithCache_KeepsTable(t *testing.T) {
	store := memory.NewRateStore()
	cached := domain.RateTable{"USDT": 1, "EUR": 0.8}
	seed(t, store, cached, testNow.Add(-2*time.Hour))
	client := new(MockRateClient)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(nil, errors.New("connection refused")).Once()
	c := newTestController(t, store, client)

	had, err := c.LoadCached(context.Background())
	require.NoError(t, err)
	require.True(t, had)

	outcome, err := c.Sync(context.Background(), false, had)
	require.NoError(t, err)
	require.Equal(t, StatusKeptCache, outcome.Status)
	require.Equal(t, cached, outcome.Table)
	require.Equal(t, cached, c.Table())
	require.Equal(t, cached, storedTable(t, store))
}

func TestSyncController_Sync_NotNormalizable(t *testing.T) {
	cases := []struct {
		name      string
		hadCached bool
		want      SyncStatus
	}{
		{name: "no cache", hadCached: false, want: StatusRefreshFailed},
		{name: "with cache", hadCached: true, want: StatusKeptCache},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewRateStore()
			client := new(MockRateClient)
			// working base not quoted by the source
			client.On("GetExchangeRates", mock.Anything, "USD").
				Return(domain.FetchResult{Rates: map[string]float64{"USD": 1, "EUR": 0.9}, UpdatedAt: testNow}, nil).Once()
			c := newTestController(t, store, client)

			outcome, err := c.Sync(context.Background(), true, tc.hadCached)
			require.NoError(t, err)
			require.Equal(t, tc.want, outcome.Status)
			require.Empty(t, storedTable(t, store))
		})
	}
}

func TestSyncController_Sync_LastUpdatedError(t *testing.T) {
	store := new(MockRateStore)
	store.On("GetLastUpdated", mock.Anything, "USDT").Return(time.Time{}, false, errors.New("db down")).Once()
	client := new(MockRateClient)
	c := NewSyncController(store, client, testCfg, nil)

	_, err := c.Sync(context.Background(), false, true)
	require.Error(t, err)
	client.AssertNotCalled(t, "GetExchangeRates", mock.Anything, mock.Anything)
}

func TestSyncController_Sync_ReplaceError_TableUnchanged(t *testing.T) {
	store := new(MockRateStore)
	store.On("GetLastUpdated", mock.Anything, "USDT").Return(time.Time{}, false, nil).Once()
	store.On("ReplaceRates", mock.Anything, "USDT", mock.Anything, testNow).Return(errors.New("constraint")).Once()
	client := new(MockRateClient)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(domain.FetchResult{Rates: remoteRates, UpdatedAt: testNow}, nil).Once()
	c := NewSyncController(store, client, testCfg, nil)
	c.now = func() time.Time { return testNow }

	_, err := c.Sync(context.Background(), false, false)
	require.Error(t, err)
	require.False(t, c.HasRates())
	store.AssertExpectations(t)
}

func TestSyncController_Sync_ConcurrentCallsShareOneFetch(t *testing.T) {
	store := memory.NewRateStore()
	client := new(MockRateClient)
	release := make(chan struct{})
	entered := make(chan struct{})
	client.On("GetExchangeRates", mock.Anything, "USD").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(domain.FetchResult{Rates: remoteRates, UpdatedAt: testNow}, nil).Once()
	c := newTestController(t, store, client)

	const callers = 5
	outcomes := make([]SyncOutcome, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes[0], _ = c.Sync(context.Background(), false, false)
	}()
	<-entered
	require.Equal(t, StateSyncing, c.State())

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = c.Sync(context.Background(), false, false)
		}(i)
	}
	// give joiners time to attach to the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, o := range outcomes {
		require.Equal(t, StatusRefreshed, o.Status)
	}
	require.Equal(t, StateIdle, c.State())
	client.AssertNumberOfCalls(t, "GetExchangeRates", 1)
}

func TestSyncController_Table_ReturnsCopy(t *testing.T) {
	store := memory.NewRateStore()
	seed(t, store, domain.RateTable{"USDT": 1, "EUR": 0.8}, testNow)
	c := newTestController(t, store, new(MockRateClient))
	_, err := c.LoadCached(context.Background())
	require.NoError(t, err)

	table := c.Table()
	table["EUR"] = 100
	require.Equal(t, 0.8, c.Table()["EUR"])
}

func TestNewSyncController_DefaultsStalenessWindow(t *testing.T) {
	c := NewSyncController(memory.NewRateStore(), new(MockRateClient), SyncConfig{WorkingBase: "USDT", SourceBase: "USD"}, nil)
	require.Equal(t, DefaultStalenessWindow, c.cfg.StalenessWindow)
}

// positiveOnlyStore rejects non-positive rates like the postgres check constraint.
type positiveOnlyStore struct {
	*memory.RateStore
}

func (s positiveOnlyStore) ReplaceRates(ctx context.Context, base string, rates domain.RateTable, updatedAt time.Time) error {
	for code, r := range rates {
		if r <= 0 {
			return fmt.Errorf("rate for %s violates check constraint", code)
		}
	}
	return s.RateStore.ReplaceRates(ctx, base, rates, updatedAt)
}

func TestSyncController_Sync_NonPositiveQuotesDropped(t *testing.T) {
	store := positiveOnlyStore{memory.NewRateStore()}
	client := new(MockRateClient)
	client.On("GetExchangeRates", mock.Anything, "USD").
		Return(domain.FetchResult{
			Rates:     map[string]float64{"USD": 1, "USDT": 1.1, "VES": 0, "XXX": -2},
			UpdatedAt: testNow,
		}, nil).Once()
	c := NewSyncController(store, client, testCfg, nil)
	c.now = func() time.Time { return testNow }

	outcome, err := c.Sync(context.Background(), true, false)
	require.NoError(t, err)
	require.Equal(t, StatusRefreshed, outcome.Status)
	require.False(t, outcome.Table.Has("VES"))
	require.False(t, outcome.Table.Has("XXX"))
	require.Equal(t, 1.0, outcome.Table["USDT"])

	entries, err := store.GetRates(context.Background(), "USDT")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

// blockingClient waits for release, then fails if its ctx was cancelled.
type blockingClient struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingClient) GetExchangeRates(ctx context.Context, _ string) (domain.FetchResult, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
	}
	<-b.release
	if err := ctx.Err(); err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	return domain.FetchResult{Rates: remoteRates, UpdatedAt: testNow}, nil
}

func TestSyncController_Sync_LeaderCancelDoesNotFailFollower(t *testing.T) {
	store := memory.NewRateStore()
	client := &blockingClient{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewSyncController(store, client, testCfg, nil)
	c.now = func() time.Time { return testNow }

	leaderCtx, cancel := context.WithCancel(context.Background())
	var leader, follower SyncOutcome
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		leader, _ = c.Sync(leaderCtx, false, false)
	}()
	<-client.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		follower, _ = c.Sync(context.Background(), false, false)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(client.release)
	wg.Wait()

	require.Equal(t, StatusRefreshed, follower.Status)
	require.Equal(t, StatusRefreshed, leader.Status)
	require.True(t, c.HasRates())
	require.Equal(t, int32(1), client.calls.Load())
}
