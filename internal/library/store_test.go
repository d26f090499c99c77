package library

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

func profile(symbol string, watch *bool, skeleton bool) contracts.AnalysisProfile {
	return contracts.AnalysisProfile{
		ID:          symbol,
		Info:        contracts.CompanyInfo{Symbol: symbol, Name: symbol},
		IsWatchlist: watch,
		IsSkeleton:  skeleton,
	}
}

func TestStore_ReplaceAndGet(t *testing.T) {
	s := NewStore(logger.Nop())
	assert.Equal(t, 0, s.Len())

	s.Replace(contracts.Library{"AAPL": profile("AAPL", contracts.Bool(false), false)})

	p, ok := s.Get("aapl")
	require.True(t, ok)
	assert.Equal(t, "AAPL", p.ID)

	_, ok = s.Get("MSFT")
	assert.False(t, ok)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(logger.Nop())
	s.Replace(contracts.Library{"AAPL": profile("AAPL", contracts.Bool(false), false)})

	p, _ := s.Get("AAPL")
	*p.IsWatchlist = true

	again, _ := s.Get("AAPL")
	assert.False(t, *again.IsWatchlist)
}

func TestStore_UpdateIsPure(t *testing.T) {
	s := NewStore(logger.Nop())
	s.Replace(contracts.Library{"AAPL": profile("AAPL", nil, false)})
	before := s.Snapshot()

	s.Update(func(prev contracts.Library) contracts.Library {
		next := prev.Clone()
		delete(next, "AAPL")
		next["MSFT"] = profile("MSFT", nil, true)
		return next
	})

	assert.Contains(t, before, "AAPL", "published snapshot must not change")
	assert.NotContains(t, s.Snapshot(), "AAPL")
	assert.Contains(t, s.Snapshot(), "MSFT")
}

func TestStore_UpdateProfile(t *testing.T) {
	s := NewStore(logger.Nop())

	p, err := s.UpdateProfile("xom", func(prev contracts.AnalysisProfile, ok bool) (contracts.AnalysisProfile, error) {
		assert.False(t, ok)
		prev.Notes = "new"
		return prev, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "XOM", p.ID)

	boom := errors.New("boom")
	_, err = s.UpdateProfile("XOM", func(prev contracts.AnalysisProfile, ok bool) (contracts.AnalysisProfile, error) {
		assert.True(t, ok)
		return prev, boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.Get("XOM")
	assert.Equal(t, "new", got.Notes)

	_, err = s.UpdateProfile("  ", func(prev contracts.AnalysisProfile, ok bool) (contracts.AnalysisProfile, error) {
		return prev, nil
	})
	assert.ErrorIs(t, err, contracts.ErrUnknownSymbol)
}

func TestStore_ConcurrentUpdatesAreNotLost(t *testing.T) {
	s := NewStore(logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym := fmt.Sprintf("T%02d", i)
			_, err := s.UpdateProfile(sym, func(prev contracts.AnalysisProfile, ok bool) (contracts.AnalysisProfile, error) {
				return profile(sym, nil, false), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore(logger.Nop())

	var calls atomic.Int32
	var last atomic.Int32
	s.OnChange(func(lib contracts.Library) {
		calls.Add(1)
		last.Store(int32(len(lib)))
	})

	s.Replace(contracts.Library{"A": profile("A", nil, false)})
	s.Update(func(prev contracts.Library) contracts.Library {
		next := prev.Clone()
		next["B"] = profile("B", nil, false)
		return next
	})

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(2), last.Load())
}

func TestStore_RestoreSkipsHooks(t *testing.T) {
	s := NewStore(logger.Nop())

	var calls atomic.Int32
	s.OnChange(func(contracts.Library) { calls.Add(1) })

	s.Restore(contracts.Library{"A": profile("A", nil, false)})

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int32(0), calls.Load())
}

func TestStore_StatsAndSymbols(t *testing.T) {
	s := NewStore(logger.Nop())
	s.Replace(contracts.Library{
		"A": profile("A", contracts.Bool(false), false),
		"B": profile("B", contracts.Bool(false), true),
		"C": profile("C", contracts.Bool(true), true),
		"D": profile("D", nil, false),
	})

	assert.Equal(t, Stats{Profiles: 4, Skeletons: 2, Portfolio: 2, Watchlist: 1, Manual: 1}, s.Stats())
	assert.Equal(t, []string{"A", "B"}, s.Symbols(IsPortfolio))
	assert.Equal(t, []string{"B", "C"}, s.Symbols(IsSkeleton))
	assert.Equal(t, []string{"A", "B", "C", "D"}, s.Symbols(nil))
}
