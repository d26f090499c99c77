package reconcile

import (
	"reflect"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

func recordsGen() gopter.Gen {
	return gen.SliceOf(gen.Struct(reflect.TypeOf(contracts.AnnualRecord{}), map[string]gopter.Gen{
		"Year":             gen.IntRange(2008, 2026),
		"EarningsPerShare": gen.Float64Range(-5, 20),
		"PriceHigh":        gen.Float64Range(0, 300),
		"AutoFetched":      gen.PtrOf(gen.Bool()),
	}))
}

func TestProperty_MergePreservesUserRows(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("every user-owned existing row appears unchanged", prop.ForAll(
		func(existing, incoming []contracts.AnnualRecord) bool {
			out := Merge(existing, incoming)
			for _, e := range existing {
				if !e.UserOwned() {
					continue
				}
				found := false
				for _, o := range out {
					if reflect.DeepEqual(e, o) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		},
		recordsGen(), recordsGen(),
	))

	properties.Property("years are the union and sorted", prop.ForAll(
		func(existing, incoming []contracts.AnnualRecord) bool {
			out := Merge(existing, incoming)
			if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Year < out[j].Year }) {
				return false
			}
			want := map[int]bool{}
			for _, r := range existing {
				want[r.Year] = true
			}
			for _, r := range incoming {
				want[r.Year] = true
			}
			got := map[int]bool{}
			for _, r := range out {
				got[r.Year] = true
			}
			return reflect.DeepEqual(want, got)
		},
		recordsGen(), recordsGen(),
	))

	properties.Property("system-owned rows stay system-owned", prop.ForAll(
		func(existing, incoming []contracts.AnnualRecord) bool {
			out := Merge(existing, incoming)
			return len(out) >= len(existing) && countAuto(out) >= countAuto(existing)
		},
		recordsGen(), recordsGen(),
	))

	properties.TestingRun(t)
}

func countAuto(rs []contracts.AnnualRecord) int {
	n := 0
	for _, r := range rs {
		if !r.UserOwned() {
			n++
		}
	}
	return n
}
