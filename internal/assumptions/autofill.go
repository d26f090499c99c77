package assumptions

import (
	"fmt"
	"math"
	"sort"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// ZeroPolicy decides what an existing assumption of exactly 0 means.
// The stored data cannot tell "never filled" from "deliberately zero".
type ZeroPolicy int

const (
	// ZeroIsUnset treats 0 as a placeholder and lets auto-fill replace it
	ZeroIsUnset ZeroPolicy = iota
	// ZeroIsExplicit treats 0 as a user value and preserves it
	ZeroIsExplicit
)

// ParseZeroPolicy maps the config value to a policy
func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch s {
	case "", "unset":
		return ZeroIsUnset, nil
	case "explicit":
		return ZeroIsExplicit, nil
	}
	return ZeroIsUnset, fmt.Errorf("unknown zero policy %q", s)
}

// IsSet reports whether v counts as a user-owned value
func (p ZeroPolicy) IsSet(v *float64) bool {
	if v == nil || !finite(*v) {
		return false
	}
	if *v == 0 {
		return p == ZeroIsExplicit
	}
	return true
}

func (p ZeroPolicy) String() string {
	if p == ZeroIsExplicit {
		return "explicit"
	}
	return "unset"
}

// Auto-fill defaults and limits
const (
	fillDefaultPE             = 15.0
	fillDefaultPCF            = 10.0
	fillDefaultPBV            = 6.0
	fillDefaultYield          = 2.0
	fillDefaultRequiredReturn = 10.0
	fillDefaultPayout         = 35.0
)

var (
	fillGrowthRange = Range{0, 20}
	fillPERange     = Range{1, 100}
	fillPCFRange    = Range{1, 100}
	fillPBVRange    = Range{0.5, 50}
	fillYieldRange  = Range{0, 20}
)

// AutoFill derives growth rates and target multiples from history.
// Fields already set in existing (per policy) are kept as user-owned.
// Price, dividend and base year always follow the fetched data.
func AutoFill(history []contracts.AnnualRecord, currentPrice float64, existing contracts.Assumptions, policy ZeroPolicy) contracts.Assumptions {
	out := existing.Clone()
	if currentPrice > 0 && finite(currentPrice) {
		out.CurrentPrice = currentPrice
	}
	if len(history) == 0 {
		return out
	}

	rows := make([]contracts.AnnualRecord, len(history))
	copy(rows, history)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })

	first := rows[0]
	last := rows[len(rows)-1]
	base := last
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].EarningsPerShare > 0 {
			base = rows[i]
			break
		}
	}
	years := base.Year - first.Year
	if years < 1 {
		years = 1
	}

	out.BaseYear = base.Year
	out.CurrentDividend = last.DividendPerShare

	growth := func(start, end float64) *float64 {
		return contracts.Float(round(fillGrowthRange.Clamp(CAGR(start, end, years)), GrowthPrecision))
	}
	fill := func(dst **float64, src *float64, compute func() *float64) {
		if policy.IsSet(src) {
			return
		}
		*dst = compute()
	}

	fill(&out.GrowthRateEPS, existing.GrowthRateEPS, func() *float64 { return growth(first.EarningsPerShare, base.EarningsPerShare) })
	fill(&out.GrowthRateCF, existing.GrowthRateCF, func() *float64 { return growth(first.CashFlowPerShare, base.CashFlowPerShare) })
	fill(&out.GrowthRateBV, existing.GrowthRateBV, func() *float64 { return growth(first.BookValuePerShare, base.BookValuePerShare) })
	fill(&out.GrowthRateDiv, existing.GrowthRateDiv, func() *float64 { return growth(first.DividendPerShare, base.DividendPerShare) })

	valid := make([]contracts.AnnualRecord, 0, len(rows))
	for _, r := range rows {
		if r.PriceHigh > 0 && r.PriceLow > 0 {
			valid = append(valid, r)
		}
	}

	multiple := func(metric func(contracts.AnnualRecord) float64, fallback float64, r Range) func() *float64 {
		return func() *float64 {
			avg := averageMultiple(valid, metric, fallback)
			return contracts.Float(round(r.Clamp(avg), RatioPrecision))
		}
	}
	fill(&out.TargetPE, existing.TargetPE, multiple(func(r contracts.AnnualRecord) float64 { return r.EarningsPerShare }, fillDefaultPE, fillPERange))
	fill(&out.TargetPCF, existing.TargetPCF, multiple(func(r contracts.AnnualRecord) float64 { return r.CashFlowPerShare }, fillDefaultPCF, fillPCFRange))
	fill(&out.TargetPBV, existing.TargetPBV, multiple(func(r contracts.AnnualRecord) float64 { return r.BookValuePerShare }, fillDefaultPBV, fillPBVRange))
	fill(&out.TargetYield, existing.TargetYield, func() *float64 {
		return contracts.Float(round(fillYieldRange.Clamp(averageYield(valid)), YieldPrecision))
	})

	fill(&out.RequiredReturn, existing.RequiredReturn, func() *float64 { return contracts.Float(fillDefaultRequiredReturn) })
	fill(&out.DividendPayoutRatio, existing.DividendPayoutRatio, func() *float64 { return contracts.Float(fillDefaultPayout) })

	return out
}

// CAGR is the compound annual growth rate in percent, 0 when undefined
func CAGR(start, end float64, years int) float64 {
	if start <= 0 || end <= 0 || years <= 0 {
		return 0
	}
	v := (math.Pow(end/start, 1/float64(years)) - 1) * 100
	if !finite(v) {
		return 0
	}
	return v
}

// averageMultiple is the mean of (high/m + low/m)/2 over rows where it is positive
func averageMultiple(rows []contracts.AnnualRecord, metric func(contracts.AnnualRecord) float64, fallback float64) float64 {
	sum, n := 0.0, 0
	for _, r := range rows {
		m := metric(r)
		v := (r.PriceHigh/m + r.PriceLow/m) / 2
		if finite(v) && v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}

func averageYield(rows []contracts.AnnualRecord) float64 {
	sum, n := 0.0, 0
	for _, r := range rows {
		v := r.DividendPerShare / r.PriceHigh * 100
		if finite(v) && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return fillDefaultYield
	}
	return sum / float64(n)
}
