// Package metrics exposes Prometheus collectors for the sync engine.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

var (
	// SyncJobsTotal counts finished bulk sync jobs.
	// Labels:
	//   - state: "completed", "aborted"
	SyncJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsync_sync_jobs_total",
			Help: "Total number of finished bulk sync jobs",
		},
		[]string{"state"},
	)

	// SyncItemsTotal counts processed symbols.
	// Labels:
	//   - outcome: "success", "not_found", "invalid", "timeout", "fund", "config", "error"
	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsync_sync_items_total",
			Help: "Total number of symbols processed by bulk sync",
		},
		[]string{"outcome"},
	)

	// SyncRunning is 1 while a job holds the orchestrator
	SyncRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finsync_sync_running",
		Help: "Whether a bulk sync job is running",
	})

	// FetchDuration measures provider fetch latency
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsync_fetch_duration_seconds",
			Help:    "Duration of provider fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	// CacheOperations counts persistent cache operations.
	// Labels:
	//   - op: "read", "write", "invalidate"
	//   - result: "hit", "miss", "stale", "ok", "error"
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsync_cache_operations_total",
			Help: "Total number of persistent cache operations",
		},
		[]string{"op", "result"},
	)

	// RosterLoads counts roster loads by result
	RosterLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsync_roster_loads_total",
			Help: "Total number of roster loads",
		},
		[]string{"result"},
	)

	// RealtimeEvents counts change feed events by type
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsync_realtime_events_total",
			Help: "Total number of change feed events received",
		},
		[]string{"type"},
	)

	// RealtimeReloads counts debounced roster reloads
	RealtimeReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finsync_realtime_reloads_total",
		Help: "Total number of debounced roster reloads",
	})

	// LibraryProfiles tracks library composition.
	// Labels:
	//   - kind: "total", "skeleton", "portfolio", "watchlist", "manual"
	LibraryProfiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finsync_library_profiles",
			Help: "Number of profiles in the library",
		},
		[]string{"kind"},
	)

	// BreakerTransitions counts provider circuit breaker transitions
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsync_breaker_transitions_total",
			Help: "Total number of provider circuit breaker state changes",
		},
		[]string{"to"},
	)
)

// Outcome maps a fetch or reconcile error to a low-cardinality label
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, contracts.ErrNotFound):
		return "not_found"
	case errors.Is(err, contracts.ErrInvalidData), errors.Is(err, contracts.ErrEmptyData):
		return "invalid"
	case errors.Is(err, contracts.ErrTimeout):
		return "timeout"
	case errors.Is(err, contracts.ErrFundNotEquity):
		return "fund"
	case errors.Is(err, contracts.ErrConfigMissing):
		return "config"
	}
	return "error"
}

// RecordFetch records one provider fetch
func RecordFetch(d time.Duration, err error) {
	FetchDuration.WithLabelValues(Outcome(err)).Observe(d.Seconds())
}

// RecordSyncItem records one processed symbol
func RecordSyncItem(err error) {
	SyncItemsTotal.WithLabelValues(Outcome(err)).Inc()
}

// RecordJob records a finished job
func RecordJob(state contracts.JobState) {
	SyncJobsTotal.WithLabelValues(string(state)).Inc()
}

// RecordCache records one cache operation
func RecordCache(op, result string) {
	CacheOperations.WithLabelValues(op, result).Inc()
}

// SetRunning flips the running gauge
func SetRunning(running bool) {
	if running {
		SyncRunning.Set(1)
		return
	}
	SyncRunning.Set(0)
}

// SetLibrary publishes library composition counts
func SetLibrary(total, skeletons, portfolio, watchlist, manual int) {
	LibraryProfiles.WithLabelValues("total").Set(float64(total))
	LibraryProfiles.WithLabelValues("skeleton").Set(float64(skeletons))
	LibraryProfiles.WithLabelValues("portfolio").Set(float64(portfolio))
	LibraryProfiles.WithLabelValues("watchlist").Set(float64(watchlist))
	LibraryProfiles.WithLabelValues("manual").Set(float64(manual))
}
