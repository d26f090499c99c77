package roster

import (
	"sort"
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// Result describes what a roster application changed
type Result struct {
	Entries int      `json:"entries"`
	Created []string `json:"created"`
	Updated int      `json:"updated"`
	Demoted []string `json:"demoted"`
	Skipped bool     `json:"skipped,omitempty"`
}

// ApplyRoster computes the next library from prev and the roster.
// prev is not modified.
//
//   - profiles absent from the roster get isWatchlist reset to nil
//   - profiles present get isWatchlist and ratings overwritten
//   - roster tickers without a profile get a skeleton
//
// Historical rows and assumptions are never touched.
func ApplyRoster(prev contracts.Library, entries []contracts.RosterEntry, now time.Time) (contracts.Library, Result) {
	bySymbol := make(map[string]contracts.RosterEntry, len(entries))
	for _, e := range entries {
		bySymbol[contracts.NormalizeSymbol(e.Ticker)] = e
	}

	res := Result{Entries: len(bySymbol)}
	next := make(contracts.Library, len(prev)+len(bySymbol))

	for _, symbol := range prev.Symbols() {
		p := prev[symbol]
		e, ok := bySymbol[symbol]
		if !ok {
			if p.IsWatchlist != nil {
				p = p.Clone()
				p.IsWatchlist = nil
				res.Demoted = append(res.Demoted, symbol)
			}
			next[symbol] = p
			continue
		}

		p = p.Clone()
		p.IsWatchlist = e.Source.WatchlistFlag()
		p.Info.Ratings = e.Ratings
		if p.Info.Name == "" || p.Info.Name == symbol {
			if e.CompanyName != "" {
				p.Info.Name = e.CompanyName
			}
		}
		if p.Info.Sector == "" {
			p.Info.Sector = e.Sector
		}
		next[symbol] = p
		res.Updated++
	}

	for _, symbol := range sortedKeys(bySymbol) {
		if _, ok := next[symbol]; ok {
			continue
		}
		next[symbol] = contracts.NewSkeleton(bySymbol[symbol], now)
		res.Created = append(res.Created, symbol)
	}

	return next, res
}

// PatchRatings overwrites only the rating fields of the row's profile.
// It reports false when the symbol is not in the library.
func PatchRatings(prev contracts.Library, row contracts.TickerRow) (contracts.Library, bool) {
	symbol := contracts.NormalizeSymbol(row.Ticker)
	p, ok := prev[symbol]
	if !ok {
		return prev, false
	}

	p = p.Clone()
	p.Info.Ratings = row.RowRatings()

	next := prev.Clone()
	next[symbol] = p
	return next, true
}

func sortedKeys(m map[string]contracts.RosterEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
