// Package engine is the UI-facing facade over the profile library.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/bulksync"
	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/internal/metrics"
	"github.com/projetsjsl/GOB-sub006/internal/realtime"
	"github.com/projetsjsl/GOB-sub006/internal/reconcile"
	"github.com/projetsjsl/GOB-sub006/internal/roster"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// RosterSync loads the remote roster into the library
type RosterSync interface {
	Load(ctx context.Context) (roster.Result, error)
	ResetLoaded()
	HasLoaded() bool
}

// Deps are the collaborators of an Engine
type Deps struct {
	Store      *library.Store
	Cache      contracts.ProfileCache
	Roster     RosterSync
	Fetcher    contracts.Fetcher
	Reconciler *reconcile.Reconciler
	Notifier   contracts.Notifier
	Logger     *logger.Logger
}

// Options tunes the engine
type Options struct {
	Full              bulksync.Options
	Targeted          bulksync.Options
	Debounce          time.Duration
	CompleteSkeletons bool
	FetchOnSelect     bool
}

// OptionsFromConfig builds engine options from the sync and realtime sections
func OptionsFromConfig(cfg *config.Config) Options {
	full := bulksync.OptionsFromConfig(cfg.Sync)
	full.Title = "Portfolio sync"

	targeted := full
	targeted.BatchSize = cfg.Sync.TargetedBatchSize
	targeted.Title = "Targeted sync"

	return Options{
		Full:              full,
		Targeted:          targeted,
		Debounce:          cfg.Realtime.Debounce,
		CompleteSkeletons: true,
		FetchOnSelect:     true,
	}
}

// LoadReport describes where the library came from
type LoadReport struct {
	FromCache     bool           `json:"fromCache"`
	CacheFresh    bool           `json:"cacheFresh"`
	CacheLegacy   bool           `json:"cacheLegacy"`
	Roster        *roster.Result `json:"roster,omitempty"`
	SkeletonJobID string         `json:"skeletonJobId,omitempty"`
	Profiles      int            `json:"profiles"`
}

// Engine owns one session of the profile library
// SSOT: UI operations on the library go through here only
type Engine struct {
	store      *library.Store
	cache      contracts.ProfileCache
	roster     RosterSync
	fetcher    contracts.Fetcher
	reconciler *reconcile.Reconciler
	notifier   contracts.Notifier
	orch       *bulksync.Orchestrator
	opts       Options
	root       *logger.Logger
	logger     *logger.Logger

	active atomic.Pointer[string]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	handler *realtime.Handler
	closed  bool
}

// New wires an engine. The store's change hooks persist every new snapshot.
func New(deps Deps, opts Options) *Engine {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = contracts.NopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:      deps.Store,
		cache:      deps.Cache,
		roster:     deps.Roster,
		fetcher:    deps.Fetcher,
		reconciler: deps.Reconciler,
		notifier:   notifier,
		opts:       opts,
		root:       deps.Logger,
		logger:     deps.Logger.WithModule("engine"),
		ctx:        ctx,
		cancel:     cancel,
	}
	e.orch = bulksync.New(deps.Fetcher, bulksync.CommitFunc(e.commit), notifier, deps.Logger)

	e.store.OnChange(func(lib contracts.Library) {
		e.cache.Write(lib)
		e.recordStats()
	})
	return e
}

// Load restores the library from the cache and reconciles it with the roster.
// A fresh cache is trusted as is. A stale or missing cache triggers a roster
// load; if that fails the stale entry stays in use and the error is returned.
func (e *Engine) Load(ctx context.Context) (LoadReport, error) {
	var report LoadReport

	entry, fresh := e.cache.Fresh(ctx)
	if entry != nil {
		e.store.Restore(e.sanitizeAll(entry.Data))
		e.recordStats()
		report.FromCache = true
		report.CacheFresh = fresh
		report.CacheLegacy = entry.Legacy
	}

	log := e.logger.WithFields(map[string]interface{}{
		"from_cache": report.FromCache,
		"fresh":      fresh,
		"profiles":   e.store.Len(),
	})

	if fresh {
		report.Profiles = e.store.Len()
		log.Info("Library restored from cache")
		return report, nil
	}

	res, err := e.roster.Load(ctx)
	report.Profiles = e.store.Len()
	if err != nil {
		e.notifier.Notify(contracts.Notification{
			Level:   contracts.LevelError,
			Title:   "Roster",
			Message: contracts.UserMessage("", err),
		})
		if report.FromCache {
			log.WithError(err).Warn("Roster load failed, using stale cache")
		} else {
			log.WithError(err).Error("Roster load failed")
		}
		return report, err
	}

	report.Roster = &res
	report.SkeletonJobID = e.completeSkeletons(res.Created)
	log.WithFields(map[string]interface{}{
		"created": len(res.Created),
		"demoted": len(res.Demoted),
	}).Info("Library loaded")
	return report, nil
}

// ReloadRoster forces a roster reload regardless of the has-loaded flag
func (e *Engine) ReloadRoster(ctx context.Context) (roster.Result, error) {
	e.roster.ResetLoaded()
	res, err := e.roster.Load(ctx)
	if err != nil {
		e.notifier.Notify(contracts.Notification{
			Level:   contracts.LevelError,
			Title:   "Roster",
			Message: contracts.UserMessage("", err),
		})
		return res, err
	}
	e.completeSkeletons(res.Created)
	return res, nil
}

// Library returns the current snapshot. Callers must not mutate it.
func (e *Engine) Library() contracts.Library {
	return e.store.Snapshot()
}

// Profile returns a copy of one profile
func (e *Engine) Profile(symbol string) (contracts.AnalysisProfile, bool) {
	return e.store.Get(symbol)
}

// Stats summarizes the library
func (e *Engine) Stats() library.Stats {
	return e.store.Stats()
}

// PortfolioSymbols returns the symbols owned by the team
func (e *Engine) PortfolioSymbols() []string {
	return e.store.Symbols(library.IsPortfolio)
}

// SelectTicker makes symbol the active profile. Selecting a skeleton starts
// a background refresh when FetchOnSelect is set.
func (e *Engine) SelectTicker(symbol string) (contracts.AnalysisProfile, error) {
	p, ok := e.store.Get(symbol)
	if !ok {
		return contracts.AnalysisProfile{}, fmt.Errorf("%w: %s", contracts.ErrUnknownSymbol, contracts.NormalizeSymbol(symbol))
	}

	key := p.ID
	e.active.Store(&key)

	if p.IsSkeleton && e.opts.FetchOnSelect {
		e.background(func(ctx context.Context) {
			if _, err := e.RefreshOne(ctx, key); err != nil {
				return
			}
			// the user may have moved on while the fetch was in flight
			if e.ActiveTicker() == key {
				e.logger.WithField("symbol", key).Debug("Active profile completed")
			}
		})
	}
	return p, nil
}

// ActiveTicker returns the currently selected symbol, or ""
func (e *Engine) ActiveTicker() string {
	if s := e.active.Load(); s != nil {
		return *s
	}
	return ""
}

// RefreshOne fetches symbol and reconciles it into the library.
// Failures produce one user-facing notification.
func (e *Engine) RefreshOne(ctx context.Context, symbol string) (contracts.AnalysisProfile, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	log := e.logger.WithField("symbol", symbol)

	timeout := e.opts.Full.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := e.fetcher.Fetch(fctx, symbol)
	if err == nil {
		var p contracts.AnalysisProfile
		p, err = e.apply(symbol, res)
		if err == nil {
			log.Info("Profile refreshed")
			e.notifier.Notify(contracts.Notification{
				Level:   contracts.LevelSuccess,
				Title:   "Refresh " + symbol,
				Message: fmt.Sprintf("%s updated with %d years of data.", symbol, len(p.Data)),
			})
			return p, nil
		}
	}

	err = contracts.ClassifyContextError(err)
	log.WithError(err).Warn("Profile refresh failed")
	e.notifier.Notify(contracts.Notification{
		Level:   contracts.LevelError,
		Title:   "Refresh " + symbol,
		Message: contracts.UserMessage(symbol, err),
	})
	return contracts.AnalysisProfile{}, err
}

// StartBulkSync syncs symbols, or the portfolio when symbols is empty.
// batchSize <= 0 keeps the configured size.
func (e *Engine) StartBulkSync(symbols []string, batchSize int) (string, error) {
	opts := e.opts.Full
	if batchSize > 0 {
		opts.BatchSize = batchSize
	}
	if len(symbols) == 0 {
		symbols = e.PortfolioSymbols()
	}
	return e.start(symbols, opts)
}

// StartTargetedSync re-syncs a handful of symbols with the smaller batch size
func (e *Engine) StartTargetedSync(symbols []string) (string, error) {
	return e.start(symbols, e.opts.Targeted)
}

// Pause pauses the running job
func (e *Engine) Pause() error { return e.orch.Pause() }

// Resume resumes a paused job
func (e *Engine) Resume() error { return e.orch.Resume() }

// Abort stops the running job from taking new work
func (e *Engine) Abort() error { return e.orch.Abort() }

// Progress returns the running or last job's counters
func (e *Engine) Progress() contracts.SyncProgress { return e.orch.Progress() }

// Wait blocks until the running job, if any, finishes
func (e *Engine) Wait(ctx context.Context) (contracts.SyncProgress, error) {
	return e.orch.Wait(ctx)
}

// StartRealtime subscribes to feed in the background. Each debounced reload
// completes any skeletons it created.
func (e *Engine) StartRealtime(feed contracts.ChangeFeed, table string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("engine closed")
	}
	if e.handler != nil {
		return errors.New("realtime already started")
	}

	h := realtime.NewHandler(e.store, e.cache, e.roster, e.opts.Debounce, e.root)
	h.OnReload(func(res roster.Result, err error) {
		if err != nil {
			e.notifier.Notify(contracts.Notification{
				Level:   contracts.LevelWarning,
				Title:   "Roster",
				Message: contracts.UserMessage("", err),
			})
			return
		}
		e.completeSkeletons(res.Created)
	})
	e.handler = h

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := h.Run(e.ctx, feed, table); err != nil {
			e.logger.WithError(err).Error("Realtime feed stopped")
		}
	}()
	return nil
}

// Close stops realtime handling, aborts any running job and waits for
// background work to finish or ctx to end.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	h := e.handler
	e.mu.Unlock()

	if h != nil {
		h.Close()
	}
	_ = e.orch.Abort()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if _, err := e.orch.Wait(ctx); err != nil {
		return err
	}
	e.logger.Info("Engine closed")
	return nil
}

func (e *Engine) start(symbols []string, opts bulksync.Options) (string, error) {
	if e.isClosed() {
		return "", errors.New("engine closed")
	}
	return e.orch.Start(e.ctx, symbols, opts)
}

// commit is the bulk sync committer
func (e *Engine) commit(symbol string, res *contracts.FetchResult) error {
	_, err := e.apply(symbol, res)
	return err
}

// apply folds a fetch result into the latest profile for symbol.
// Symbols outside the library become manual profiles.
func (e *Engine) apply(symbol string, res *contracts.FetchResult) (contracts.AnalysisProfile, error) {
	return e.store.UpdateProfile(symbol, func(prev contracts.AnalysisProfile, ok bool) (contracts.AnalysisProfile, error) {
		if !ok {
			prev = contracts.NewSkeleton(contracts.RosterEntry{Ticker: symbol, Source: contracts.SourceManual}, time.Now())
		}
		return e.reconciler.Apply(prev, res)
	})
}

// completeSkeletons starts a background sync over new skeletons
func (e *Engine) completeSkeletons(symbols []string) string {
	if len(symbols) == 0 || !e.opts.CompleteSkeletons || e.isClosed() {
		return ""
	}

	opts := e.opts.Full
	opts.Title = "Skeleton completion"
	id, err := e.orch.Start(e.ctx, symbols, opts)
	if err != nil {
		e.logger.WithError(err).WithField("skeletons", len(symbols)).Info("Skeleton completion deferred")
		return ""
	}
	e.logger.WithFields(map[string]interface{}{
		"job_id":    id,
		"skeletons": len(symbols),
	}).Info("Skeleton completion started")
	return id
}

func (e *Engine) background(fn func(ctx context.Context)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) sanitizeAll(lib contracts.Library) contracts.Library {
	out := make(contracts.Library, len(lib))
	for symbol, p := range lib {
		p = p.Clone()
		p.Assumptions = e.reconciler.Sanitize(p.Assumptions)
		out[symbol] = p
	}
	return out
}

func (e *Engine) recordStats() {
	st := e.store.Stats()
	metrics.SetLibrary(st.Profiles, st.Skeletons, st.Portfolio, st.Watchlist, st.Manual)
}
