// Package library holds the in-memory profile library.
package library

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// Store is the single owner of the current library snapshot.
// SSOT: profile state changes only through Replace, Update and UpdateProfile.
//
// Snapshots are never mutated after publication. Writers build the next
// library from the previous one and swap it in with compare-and-swap.
type Store struct {
	current atomic.Pointer[contracts.Library]

	mu    sync.RWMutex
	hooks []func(contracts.Library)

	logger *logger.Logger
}

// Stats summarizes the library composition
type Stats struct {
	Profiles  int `json:"profiles"`
	Skeletons int `json:"skeletons"`
	Portfolio int `json:"portfolio"`
	Watchlist int `json:"watchlist"`
	Manual    int `json:"manual"`
}

// NewStore creates an empty store
func NewStore(log *logger.Logger) *Store {
	s := &Store{logger: log.WithModule("library")}
	empty := contracts.Library{}
	s.current.Store(&empty)
	return s
}

// Snapshot returns the current library. Callers must not mutate it.
func (s *Store) Snapshot() contracts.Library {
	return *s.current.Load()
}

// Get returns a deep copy of one profile
func (s *Store) Get(symbol string) (contracts.AnalysisProfile, bool) {
	p, ok := s.Snapshot()[contracts.NormalizeSymbol(symbol)]
	if !ok {
		return contracts.AnalysisProfile{}, false
	}
	return p.Clone(), true
}

// Len returns the number of profiles
func (s *Store) Len() int {
	return len(s.Snapshot())
}

// Replace publishes lib as the new snapshot without comparing
func (s *Store) Replace(lib contracts.Library) {
	next := lib.Clone()
	s.current.Store(&next)
	s.notify(next)
}

// Restore publishes lib without running change hooks.
// Used when the library comes from the persisted cache itself.
func (s *Store) Restore(lib contracts.Library) {
	next := lib.Clone()
	s.current.Store(&next)
}

// Update applies fn to the latest snapshot until the swap succeeds.
// fn must be pure: it may run more than once and must not modify prev.
func (s *Store) Update(fn func(prev contracts.Library) contracts.Library) contracts.Library {
	for {
		prev := s.current.Load()
		next := fn(*prev)
		if next == nil {
			next = contracts.Library{}
		}
		if s.current.CompareAndSwap(prev, &next) {
			s.notify(next)
			return next
		}
		s.logger.Debug("Library changed during update, retrying")
	}
}

// UpdateProfile applies fn to one profile. ok is false when the symbol is
// absent. An error from fn aborts the update and is returned as is.
func (s *Store) UpdateProfile(symbol string, fn func(prev contracts.AnalysisProfile, ok bool) (contracts.AnalysisProfile, error)) (contracts.AnalysisProfile, error) {
	key := contracts.NormalizeSymbol(symbol)
	if key == "" {
		return contracts.AnalysisProfile{}, fmt.Errorf("%w: empty symbol", contracts.ErrUnknownSymbol)
	}

	for {
		prev := s.current.Load()
		cur, ok := (*prev)[key]
		if ok {
			cur = cur.Clone()
		}

		updated, err := fn(cur, ok)
		if err != nil {
			return contracts.AnalysisProfile{}, err
		}
		updated.ID = key

		next := (*prev).Clone()
		next[key] = updated
		if s.current.CompareAndSwap(prev, &next) {
			s.notify(next)
			return updated.Clone(), nil
		}
	}
}

// OnChange registers fn to run after every successful swap
func (s *Store) OnChange(fn func(contracts.Library)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(lib contracts.Library) {
	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()

	for _, h := range hooks {
		h(lib)
	}
}

// Stats counts profiles by kind
func (s *Store) Stats() Stats {
	lib := s.Snapshot()
	st := Stats{Profiles: len(lib)}
	for _, p := range lib {
		if p.IsSkeleton {
			st.Skeletons++
		}
		switch {
		case p.IsWatchlist == nil:
			st.Manual++
		case *p.IsWatchlist:
			st.Watchlist++
		default:
			st.Portfolio++
		}
	}
	return st
}

// Symbols returns the sorted symbols matching keep, or all when keep is nil
func (s *Store) Symbols(keep func(contracts.AnalysisProfile) bool) []string {
	lib := s.Snapshot()
	out := make([]string, 0, len(lib))
	for _, sym := range lib.Symbols() {
		if keep == nil || keep(lib[sym]) {
			out = append(out, sym)
		}
	}
	return out
}

// IsPortfolio selects profiles with isWatchlist == false
func IsPortfolio(p contracts.AnalysisProfile) bool {
	return p.IsWatchlist != nil && !*p.IsWatchlist
}

// IsSkeleton selects placeholder profiles
func IsSkeleton(p contracts.AnalysisProfile) bool {
	return p.IsSkeleton
}
