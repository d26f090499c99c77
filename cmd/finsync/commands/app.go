package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/engine"
	"github.com/projetsjsl/GOB-sub006/internal/external/fmp"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/internal/metrics"
	"github.com/projetsjsl/GOB-sub006/internal/profilecache"
	"github.com/projetsjsl/GOB-sub006/internal/reconcile"
	"github.com/projetsjsl/GOB-sub006/internal/roster"
	"github.com/projetsjsl/GOB-sub006/internal/strategyconfig"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/database"
	"github.com/projetsjsl/GOB-sub006/pkg/httputil"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
	"github.com/projetsjsl/GOB-sub006/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

// app holds the wired components shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	cache  *profilecache.Cache
	engine *engine.Engine
}

// newApp loads config and wires the engine.
// tune may adjust engine options before construction.
func newApp(notifier contracts.Notifier, tune func(*engine.Options)) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	switch {
	case logLevel != "":
		cfg.LogLevel = logLevel
	case verbose:
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 2b. Strategy file overrides the valuation and outlier bounds
	if err := applyStrategyFile(cfg, log); err != nil {
		return nil, err
	}

	// 3. Connect to database (roster store)
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to redis; the cache degrades to memory without it
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without it")
		rdb = nil
	}

	// 5. Provider client
	fetcher := fmp.NewClient(newProviderHTTP(cfg, log, rdb), cfg.Provider, log)

	// 6. Profile cache
	backend, err := profilecache.NewBackend(cfg, rdb, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open cache backend: %w", err)
	}
	cache := profilecache.New(backend, cfg.Cache.TTL, log)

	// 7. Reconciler
	ropts, err := reconcile.OptionsFromConfig(cfg, time.Now())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reconcile options: %w", err)
	}

	// 8. Library, roster and engine
	store := library.NewStore(log)
	synchronizer := roster.NewSynchronizer(roster.NewRepository(db.Pool, cfg.Database.RosterTable), store, log)

	opts := engine.OptionsFromConfig(cfg)
	if tune != nil {
		tune(&opts)
	}

	eng := engine.New(engine.Deps{
		Store:      store,
		Cache:      cache,
		Roster:     synchronizer,
		Fetcher:    fetcher,
		Reconciler: reconcile.New(ropts, log),
		Notifier:   notifier,
		Logger:     log,
	}, opts)

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		redis:  rdb,
		cache:  cache,
		engine: eng,
	}, nil
}

// applyStrategyFile overlays STRATEGY_FILE onto cfg when it is set
func applyStrategyFile(cfg *config.Config, log *logger.Logger) error {
	if cfg.StrategyFile == "" {
		return nil
	}

	sc, err := strategyconfig.Load(cfg.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy file: %w", err)
	}
	sc.Apply(cfg)

	if snap, err := strategyconfig.NewSnapshot(sc, cfg.StrategyFile); err == nil {
		log.WithFields(map[string]interface{}{
			"strategy_id": snap.StrategyID,
			"version":     snap.Version,
			"hash":        snap.ConfigHash,
		}).Info("Strategy file applied")
	}
	for _, w := range strategyconfig.Warn(sc) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	return nil
}

// newProviderHTTP builds the rate-limited, breaker-guarded provider client
func newProviderHTTP(cfg *config.Config, log *logger.Logger, rdb *redis.Client) *httputil.Client {
	client := httputil.New(cfg, log).
		WithLocalRateLimit(cfg.Provider.RatePerSec, cfg.Provider.Burst).
		WithCircuitBreaker(httputil.BreakerConfig{
			Name: "fmp",
			OnStateChange: func(_, _, to string) {
				metrics.BreakerTransitions.WithLabelValues(to).Inc()
			},
		})

	if rdb != nil && rdb.Enabled() && cfg.Provider.RatePerSec > 0 {
		limit := int(cfg.Provider.RatePerSec * 60)
		client.WithRateLimiter(redis.NewRateLimiter(rdb, "finsync"), redis.RateLimitConfig{
			Key:    "fmp",
			Limit:  limit,
			Window: time.Minute,
		})
	}
	return client
}

// close shuts the engine down and releases every connection
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.engine.Close(ctx); err != nil {
		a.log.WithError(err).Warn("Engine close failed")
	}
	if err := a.cache.Close(ctx); err != nil {
		a.log.WithError(err).Warn("Cache close failed")
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}
