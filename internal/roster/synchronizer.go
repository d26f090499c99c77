// Package roster loads the remote ticker roster and applies it to the library.
package roster

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/internal/metrics"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// Synchronizer keeps the library's roster-owned fields in line with the remote store
type Synchronizer struct {
	loader contracts.RosterLoader
	store  *library.Store
	now    func() time.Time
	logger *logger.Logger

	loaded atomic.Bool
	mu     sync.Mutex
}

// NewSynchronizer creates a synchronizer
func NewSynchronizer(loader contracts.RosterLoader, store *library.Store, log *logger.Logger) *Synchronizer {
	return &Synchronizer{
		loader: loader,
		store:  store,
		now:    time.Now,
		logger: log.WithModule("roster"),
	}
}

// WithClock overrides the time source
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	s.now = now
	return s
}

// HasLoaded reports whether a load has succeeded since the last reset
func (s *Synchronizer) HasLoaded() bool {
	return s.loaded.Load()
}

// ResetLoaded makes the next Load go to the remote store
func (s *Synchronizer) ResetLoaded() {
	s.loaded.Store(false)
}

// Load fetches the roster and applies it to the library. A load that
// already succeeded is skipped until ResetLoaded. On failure the library
// is unchanged and the has-loaded flag stays cleared.
func (s *Synchronizer) Load(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded.Load() {
		return Result{Skipped: true}, nil
	}

	start := time.Now()
	entries, err := s.loader.LoadRoster(ctx)
	if err == nil && len(entries) == 0 {
		err = contracts.ErrRosterEmpty
	}
	if err != nil {
		s.loaded.Store(false)
		if !errors.Is(err, contracts.ErrRosterLoad) {
			err = errors.Join(contracts.ErrRosterNetwork, err)
		}
		metrics.RosterLoads.WithLabelValues(rosterOutcome(err)).Inc()
		s.logger.WithError(err).Error("Roster load failed")
		return Result{}, err
	}

	now := s.now()
	var res Result
	s.store.Update(func(prev contracts.Library) contracts.Library {
		next, r := ApplyRoster(prev, entries, now)
		res = r
		return next
	})
	s.loaded.Store(true)

	metrics.RosterLoads.WithLabelValues("success").Inc()
	s.logger.WithFields(map[string]interface{}{
		"entries":  res.Entries,
		"created":  len(res.Created),
		"updated":  res.Updated,
		"demoted":  len(res.Demoted),
		"duration": time.Since(start),
	}).Info("Roster applied")

	return res, nil
}

func rosterOutcome(err error) string {
	switch {
	case errors.Is(err, contracts.ErrRosterEmpty):
		return "empty"
	case errors.Is(err, contracts.ErrRosterMalformed):
		return "malformed"
	}
	return "network"
}
