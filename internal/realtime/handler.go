// Package realtime turns remote roster changes into library updates.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/internal/metrics"
	"github.com/projetsjsl/GOB-sub006/internal/roster"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// DefaultDebounce is the reload coalescing window
const DefaultDebounce = 400 * time.Millisecond

// Invalidator drops the persisted library
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Reloader reloads the roster into the library
type Reloader interface {
	ResetLoaded()
	Load(ctx context.Context) (roster.Result, error)
}

// ReloadFunc observes the outcome of every debounced reload
type ReloadFunc func(res roster.Result, err error)

// Handler applies change events to the library.
// Update events patch ratings at once; every event schedules one
// coalesced full reload.
// SSOT: realtime change events are handled here only
type Handler struct {
	store    *library.Store
	cache    Invalidator
	reloader Reloader
	logger   *logger.Logger

	debouncer *Debouncer
	alive     atomic.Bool

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	onReload ReloadFunc
}

// NewHandler creates a live handler. delay <= 0 uses DefaultDebounce.
func NewHandler(store *library.Store, cache Invalidator, reloader Reloader, delay time.Duration, log *logger.Logger) *Handler {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		store:    store,
		cache:    cache,
		reloader: reloader,
		logger:   log.WithModule("realtime"),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.debouncer = NewDebouncer(delay, h.reload)
	h.alive.Store(true)
	return h
}

// OnReload registers a hook run after every debounced reload
func (h *Handler) OnReload(fn ReloadFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReload = fn
}

// Alive reports whether Close has not been called
func (h *Handler) Alive() bool {
	return h.alive.Load()
}

// Handle consumes one change event
func (h *Handler) Handle(ev contracts.ChangeEvent) {
	if !h.alive.Load() {
		return
	}
	metrics.RealtimeEvents.WithLabelValues(string(ev.EventType)).Inc()

	log := h.logger.WithFields(map[string]interface{}{
		"event":  ev.EventType,
		"symbol": ev.Symbol(),
	})
	log.Debug("Change event received")

	if ev.EventType == contracts.EventUpdate && ev.New != nil {
		row := *ev.New
		patched := false
		h.store.Update(func(prev contracts.Library) contracts.Library {
			next, ok := roster.PatchRatings(prev, row)
			patched = ok
			return next
		})
		if patched {
			log.Debug("Ratings patched")
		}
	}

	h.debouncer.Trigger()
}

// Run subscribes to feed until ctx is cancelled or Close is called
func (h *Handler) Run(ctx context.Context, feed contracts.ChangeFeed, table string) error {
	h.mu.Lock()
	hctx := h.ctx
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-hctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	h.logger.WithField("table", table).Info("Realtime subscription started")
	err := feed.Subscribe(ctx, table, h.Handle)
	h.logger.Info("Realtime subscription ended")
	return err
}

// Close stops the handler. Pending and later callbacks become no-ops.
func (h *Handler) Close() {
	if !h.alive.CompareAndSwap(true, false) {
		return
	}
	h.debouncer.Stop()
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()
	h.logger.Info("Realtime handler closed")
}

func (h *Handler) reload() {
	if !h.alive.Load() {
		return
	}

	h.mu.Lock()
	ctx, hook := h.ctx, h.onReload
	h.mu.Unlock()

	h.cache.Invalidate(ctx)
	h.reloader.ResetLoaded()
	res, err := h.reloader.Load(ctx)
	metrics.RealtimeReloads.Inc()

	if err != nil {
		h.logger.WithError(err).Warn("Realtime roster reload failed")
	} else {
		h.logger.WithFields(map[string]interface{}{
			"created": len(res.Created),
			"updated": res.Updated,
		}).Info("Roster reloaded after change")
	}

	if hook != nil && h.alive.Load() {
		hook(res, err)
	}
}
