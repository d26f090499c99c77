package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/assumptions"
	"github.com/projetsjsl/GOB-sub006/internal/bulksync"
	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/internal/outlier"
	"github.com/projetsjsl/GOB-sub006/internal/profilecache"
	"github.com/projetsjsl/GOB-sub006/internal/reconcile"
	"github.com/projetsjsl/GOB-sub006/internal/roster"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

func history(symbol string, price float64) *contracts.FetchResult {
	res := &contracts.FetchResult{
		Symbol:       symbol,
		CurrentPrice: price,
		Info:         contracts.CompanyInfo{Symbol: symbol, Name: symbol + " Inc"},
	}
	for i, year := range []int{2019, 2020, 2021, 2022, 2023} {
		eps := 4.0 + float64(i)*0.2
		res.Data = append(res.Data, contracts.AnnualRecord{
			Year:              year,
			PriceHigh:         eps * 18,
			PriceLow:          eps * 12,
			EarningsPerShare:  eps,
			CashFlowPerShare:  eps * 1.5,
			BookValuePerShare: eps * 8,
			DividendPerShare:  eps * 0.4,
			AutoFetched:       contracts.Bool(true),
		})
	}
	return res
}

type fakeFetcher struct {
	mu       sync.Mutex
	results  map[string]*contracts.FetchResult
	failures map[string]error
	calls    atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, symbol string) (*contracts.FetchResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[symbol]; ok {
		return nil, contracts.NewSymbolError(symbol, err)
	}
	if res, ok := f.results[symbol]; ok {
		return res, nil
	}
	return history(symbol, 100), nil
}

type fakeLoader struct {
	mu      sync.Mutex
	entries []contracts.RosterEntry
	err     error
	calls   atomic.Int32
}

func (f *fakeLoader) LoadRoster(context.Context) ([]contracts.RosterEntry, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.err
}

func (f *fakeLoader) set(entries ...contracts.RosterEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

type notes struct {
	mu  sync.Mutex
	all []contracts.Notification
}

func (n *notes) Progress(contracts.SyncProgress) {}

func (n *notes) Notify(note contracts.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, note)
}

func (n *notes) last() contracts.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.all) == 0 {
		return contracts.Notification{}
	}
	return n.all[len(n.all)-1]
}

type harness struct {
	engine  *Engine
	store   *library.Store
	cache   *profilecache.Cache
	backend *profilecache.MemoryBackend
	loader  *fakeLoader
	fetcher *fakeFetcher
	notes   *notes
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()
	now := time.Now()

	h := &harness{
		store:   library.NewStore(log),
		backend: profilecache.NewMemoryBackend(),
		loader:  &fakeLoader{},
		fetcher: &fakeFetcher{results: map[string]*contracts.FetchResult{}, failures: map[string]error{}},
		notes:   &notes{},
	}
	h.cache = profilecache.New(h.backend, 5*time.Minute, log)

	rec := reconcile.New(reconcile.Options{
		Bounds:   assumptions.DefaultBounds(now),
		Outliers: outlier.DefaultBounds(),
	}, log)

	full := bulksync.Options{BatchSize: 5, BatchDelay: time.Millisecond, FetchTimeout: time.Second}
	h.engine = New(Deps{
		Store:      h.store,
		Cache:      h.cache,
		Roster:     roster.NewSynchronizer(h.loader, h.store, log),
		Fetcher:    h.fetcher,
		Reconciler: rec,
		Notifier:   h.notes,
		Logger:     log,
	}, Options{
		Full:              full,
		Targeted:          bulksync.Options{BatchSize: 2, BatchDelay: time.Millisecond, FetchTimeout: time.Second},
		Debounce:          20 * time.Millisecond,
		CompleteSkeletons: true,
		FetchOnSelect:     true,
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.engine.Close(ctx)
		_ = h.cache.Close(ctx)
	})
	return h
}

func (h *harness) seedCache(t *testing.T, lib contracts.Library, at time.Time) {
	t.Helper()
	raw, err := profilecache.Encode(lib, at)
	require.NoError(t, err)
	require.NoError(t, h.backend.Store(context.Background(), raw))
}

func waitJob(t *testing.T, e *Engine) contracts.SyncProgress {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := e.Wait(ctx)
	require.NoError(t, err)
	return p
}

func TestLoad_EmptyCacheLoadsRosterAndCompletesSkeletons(t *testing.T) {
	h := newHarness(t)
	h.loader.set(contracts.RosterEntry{Ticker: "XOM", Source: contracts.SourceTeam})
	h.fetcher.results["XOM"] = history("XOM", 110.25)

	report, err := h.engine.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, report.FromCache)
	require.NotNil(t, report.Roster)
	assert.Equal(t, []string{"XOM"}, report.Roster.Created)
	assert.NotEmpty(t, report.SkeletonJobID)

	p := waitJob(t, h.engine)
	assert.Equal(t, contracts.JobCompleted, p.State)
	assert.Equal(t, 1, p.SuccessCount)

	xom, ok := h.engine.Profile("XOM")
	require.True(t, ok)
	assert.False(t, xom.IsSkeleton)
	assert.Len(t, xom.Data, 5)
	assert.Equal(t, 110.25, xom.Assumptions.CurrentPrice)
	require.NotNil(t, xom.IsWatchlist)
	assert.False(t, *xom.IsWatchlist)
	for _, r := range xom.Data {
		require.NotNil(t, r.AutoFetched)
		assert.True(t, *r.AutoFetched)
	}
}

func TestLoad_FreshCacheSkipsRoster(t *testing.T) {
	h := newHarness(t)
	h.seedCache(t, contracts.Library{"AAPL": {ID: "AAPL", Info: contracts.CompanyInfo{Symbol: "AAPL"}}}, time.Now())

	report, err := h.engine.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.True(t, report.CacheFresh)
	assert.Nil(t, report.Roster)
	assert.Equal(t, int32(0), h.loader.calls.Load())

	_, ok := h.engine.Profile("AAPL")
	assert.True(t, ok)
}

func TestLoad_StaleCacheFallbackWhenRosterFails(t *testing.T) {
	h := newHarness(t)
	h.seedCache(t, contracts.Library{"AAPL": {ID: "AAPL"}}, time.Now().Add(-6*time.Minute))
	h.loader.err = errors.New("connection refused")

	report, err := h.engine.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrRosterLoad)
	assert.True(t, report.FromCache)
	assert.False(t, report.CacheFresh)

	_, ok := h.engine.Profile("AAPL")
	assert.True(t, ok, "stale profiles stay usable")
	assert.Equal(t, contracts.LevelError, h.notes.last().Level)
}

func TestLoad_StaleCacheTriggersRoster(t *testing.T) {
	h := newHarness(t)
	h.seedCache(t, contracts.Library{"AAPL": {ID: "AAPL", IsWatchlist: contracts.Bool(true)}}, time.Now().Add(-6*time.Minute))
	h.loader.set(contracts.RosterEntry{Ticker: "MSFT", Source: contracts.SourceWatchlist})

	report, err := h.engine.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Roster)
	assert.Equal(t, []string{"AAPL"}, report.Roster.Demoted)
	waitJob(t, h.engine)

	aapl, _ := h.engine.Profile("AAPL")
	assert.Nil(t, aapl.IsWatchlist)
}

func TestRefreshOne_PreservesManualYear(t *testing.T) {
	h := newHarness(t)
	existing := contracts.AnalysisProfile{
		ID: "XOM",
		Data: []contracts.AnnualRecord{
			{Year: 2023, PriceHigh: 120, PriceLow: 90, EarningsPerShare: 5.00, CashFlowPerShare: 9, BookValuePerShare: 40, AutoFetched: contracts.Bool(false)},
		},
		Info: contracts.CompanyInfo{Symbol: "XOM", Name: "Exxon"},
	}
	h.store.Replace(contracts.Library{"XOM": existing})

	res := history("XOM", 110)
	res.Data[4].EarningsPerShare = 4.80
	h.fetcher.results["XOM"] = res

	p, err := h.engine.RefreshOne(context.Background(), "xom")
	require.NoError(t, err)
	require.Len(t, p.Data, 5)
	assert.Equal(t, 2023, p.Data[4].Year)
	assert.Equal(t, 5.00, p.Data[4].EarningsPerShare)
	assert.Equal(t, contracts.LevelSuccess, h.notes.last().Level)
}

func TestRefreshOne_FailureNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	h.fetcher.failures["ZZZZ"] = contracts.ErrNotFound

	_, err := h.engine.RefreshOne(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	note := h.notes.last()
	assert.Equal(t, contracts.LevelError, note.Level)
	assert.Contains(t, note.Message, "not found")
	_, ok := h.engine.Profile("ZZZZ")
	assert.False(t, ok)
}

func TestRefreshOne_InvalidDataLeavesProfile(t *testing.T) {
	h := newHarness(t)
	h.store.Replace(contracts.Library{"XOM": contracts.NewSkeleton(contracts.RosterEntry{Ticker: "XOM"}, time.Now())})
	h.fetcher.results["XOM"] = &contracts.FetchResult{Symbol: "XOM", CurrentPrice: 0, Data: history("XOM", 1).Data}

	_, err := h.engine.RefreshOne(context.Background(), "XOM")
	assert.ErrorIs(t, err, contracts.ErrInvalidData)

	p, _ := h.engine.Profile("XOM")
	assert.True(t, p.IsSkeleton)
}

func TestSelectTicker(t *testing.T) {
	h := newHarness(t)
	h.store.Replace(contracts.Library{"CVX": contracts.NewSkeleton(contracts.RosterEntry{Ticker: "CVX"}, time.Now())})

	_, err := h.engine.SelectTicker("NOPE")
	assert.ErrorIs(t, err, contracts.ErrUnknownSymbol)
	assert.Equal(t, "", h.engine.ActiveTicker())

	p, err := h.engine.SelectTicker("cvx")
	require.NoError(t, err)
	assert.True(t, p.IsSkeleton)
	assert.Equal(t, "CVX", h.engine.ActiveTicker())

	require.Eventually(t, func() bool {
		p, _ := h.engine.Profile("CVX")
		return !p.IsSkeleton
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartBulkSync_TwelveSymbolsOneNotFound(t *testing.T) {
	h := newHarness(t)
	lib := contracts.Library{}
	var symbols []string
	for i := 0; i < 12; i++ {
		s := fmt.Sprintf("T%02d", i)
		symbols = append(symbols, s)
		lib[s] = contracts.NewSkeleton(contracts.RosterEntry{Ticker: s, Source: contracts.SourceTeam}, time.Now())
	}
	h.store.Replace(lib)
	h.fetcher.failures["T04"] = contracts.ErrNotFound

	_, err := h.engine.StartBulkSync(nil, 5)
	require.NoError(t, err)

	p := waitJob(t, h.engine)
	assert.Equal(t, contracts.JobCompleted, p.State)
	assert.Equal(t, 12, p.Total)
	assert.Equal(t, 11, p.SuccessCount)
	assert.Equal(t, 1, p.ErrorCount)
	assert.Equal(t, 11, len(h.store.Symbols(func(p contracts.AnalysisProfile) bool { return !p.IsSkeleton })))
	assert.Equal(t, contracts.LevelWarning, h.notes.last().Level)
}

func TestStartTargetedSync_AddsManualProfiles(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.StartTargetedSync([]string{"SHOP.TO"})
	require.NoError(t, err)
	waitJob(t, h.engine)

	p, ok := h.engine.Profile("SHOP.TO")
	require.True(t, ok)
	assert.Nil(t, p.IsWatchlist)
	assert.False(t, p.IsSkeleton)
}

func TestCommitsArePersisted(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.RefreshOne(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NoError(t, h.cache.Flush(context.Background()))

	entry, err := h.cache.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, entry.Data, "AAPL")
}

func TestStartRealtime_InsertCreatesAndCompletesSkeleton(t *testing.T) {
	h := newHarness(t)
	h.loader.set(contracts.RosterEntry{Ticker: "XOM", Source: contracts.SourceTeam})
	_, err := h.engine.Load(context.Background())
	require.NoError(t, err)
	waitJob(t, h.engine)

	feed := &chanFeed{events: make(chan contracts.ChangeEvent, 1)}
	require.NoError(t, h.engine.StartRealtime(feed, "tickers"))
	assert.Error(t, h.engine.StartRealtime(feed, "tickers"))

	h.loader.set(
		contracts.RosterEntry{Ticker: "XOM", Source: contracts.SourceTeam},
		contracts.RosterEntry{Ticker: "CVX", Source: contracts.SourceWatchlist},
	)
	feed.events <- contracts.ChangeEvent{EventType: contracts.EventInsert, New: &contracts.TickerRow{Ticker: "CVX"}}

	require.Eventually(t, func() bool {
		p, ok := h.engine.Profile("CVX")
		return ok && !p.IsSkeleton
	}, 3*time.Second, 10*time.Millisecond)

	cvx, _ := h.engine.Profile("CVX")
	require.NotNil(t, cvx.IsWatchlist)
	assert.True(t, *cvx.IsWatchlist)
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.Close(ctx))
	require.NoError(t, h.engine.Close(ctx))

	_, err := h.engine.StartBulkSync([]string{"AAPL"}, 1)
	assert.Error(t, err)
	assert.Error(t, h.engine.StartRealtime(&chanFeed{events: make(chan contracts.ChangeEvent)}, "tickers"))
}

type chanFeed struct {
	events chan contracts.ChangeEvent
}

func (f *chanFeed) Subscribe(ctx context.Context, _ string, onChange func(contracts.ChangeEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.events:
			onChange(ev)
		}
	}
}
