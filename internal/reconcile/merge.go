package reconcile

import (
	"sort"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// Merge folds freshly fetched records into an existing history.
// SSOT: every path that combines provider data with a profile calls this.
//
//   - a year only in existing is kept as is
//   - a user-owned existing year is kept as is, whatever incoming says
//   - a system-owned existing year is replaced by incoming, stamped autoFetched
//   - a year only in incoming is appended, stamped autoFetched
//
// The result is sorted by year. Neither input is modified.
func Merge(existing, incoming []contracts.AnnualRecord) []contracts.AnnualRecord {
	byYear := make(map[int]contracts.AnnualRecord, len(incoming))
	order := make([]int, 0, len(incoming))
	for _, r := range incoming {
		if _, seen := byYear[r.Year]; !seen {
			order = append(order, r.Year)
		}
		byYear[r.Year] = r
	}

	out := make([]contracts.AnnualRecord, 0, len(existing)+len(incoming))
	present := make(map[int]bool, len(existing))

	for _, cur := range existing {
		present[cur.Year] = true
		next, ok := byYear[cur.Year]
		switch {
		case !ok, cur.UserOwned():
			out = append(out, copyRecord(cur))
		default:
			out = append(out, stamp(next))
		}
	}

	for _, year := range order {
		if !present[year] {
			out = append(out, stamp(byYear[year]))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func stamp(r contracts.AnnualRecord) contracts.AnnualRecord {
	r.AutoFetched = contracts.Bool(true)
	return r
}

func copyRecord(r contracts.AnnualRecord) contracts.AnnualRecord {
	if r.AutoFetched != nil {
		r.AutoFetched = contracts.Bool(*r.AutoFetched)
	}
	return r
}
