// Package outlier flags valuation pillars whose implied target price is implausible.
package outlier

import (
	"fmt"
	"math"

	"github.com/projetsjsl/GOB-sub006/internal/assumptions"
	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
)

// Pillar identifies one valuation method
type Pillar string

const (
	PillarEPS Pillar = "EPS"
	PillarCF  Pillar = "CF"
	PillarBV  Pillar = "BV"
	PillarDIV Pillar = "DIV"
)

// Bounds are the plausibility limits. They come from configuration;
// none of them is a business rule.
type Bounds struct {
	HorizonYears int
	Ratio        assumptions.Range // target price / current price
	PE           assumptions.Range
	PCF          assumptions.Range
	PBV          assumptions.Range
	Yield        assumptions.Range // percent
	Growth       assumptions.Range // percent
}

// DefaultBounds mirrors the historical-ranges limits
func DefaultBounds() Bounds {
	return Bounds{
		HorizonYears: 5,
		Ratio:        assumptions.Range{Min: 0.1, Max: 10},
		PE:           assumptions.Range{Min: 1, Max: 200},
		PCF:          assumptions.Range{Min: 1, Max: 200},
		PBV:          assumptions.Range{Min: 0.1, Max: 50},
		Yield:        assumptions.Range{Min: 0, Max: 50},
		Growth:       assumptions.Range{Min: -50, Max: 100},
	}
}

// BoundsFromConfig maps OutlierConfig to Bounds
func BoundsFromConfig(cfg config.OutlierConfig) Bounds {
	horizon := cfg.HorizonYears
	if horizon < 1 {
		horizon = 5
	}
	return Bounds{
		HorizonYears: horizon,
		Ratio:        assumptions.Range{Min: cfg.RatioMin, Max: cfg.RatioMax},
		PE:           assumptions.Range{Min: cfg.PEMin, Max: cfg.PEMax},
		PCF:          assumptions.Range{Min: cfg.PCFMin, Max: cfg.PCFMax},
		PBV:          assumptions.Range{Min: cfg.PBVMin, Max: cfg.PBVMax},
		Yield:        assumptions.Range{Min: cfg.YieldMin, Max: cfg.YieldMax},
		Growth:       assumptions.Range{Min: cfg.GrowthMin, Max: cfg.GrowthMax},
	}
}

// Result is the detector output
type Result struct {
	ExcludeEPS       bool
	ExcludeCF        bool
	ExcludeBV        bool
	ExcludeDIV       bool
	DetectedOutliers []Pillar
	Targets          map[Pillar]float64
	Reasons          map[Pillar]string
}

// Apply overwrites the exclusion flags of a with the result
func (r Result) Apply(a contracts.Assumptions) contracts.Assumptions {
	out := a.Clone()
	out.ExcludeEPS = r.ExcludeEPS
	out.ExcludeCF = r.ExcludeCF
	out.ExcludeBV = r.ExcludeBV
	out.ExcludeDIV = r.ExcludeDIV
	return out
}

// Union raises the flags set by the result and keeps every flag already
// set on a. A pillar excluded by hand stays excluded.
func (r Result) Union(a contracts.Assumptions) contracts.Assumptions {
	out := a.Clone()
	out.ExcludeEPS = a.ExcludeEPS || r.ExcludeEPS
	out.ExcludeCF = a.ExcludeCF || r.ExcludeCF
	out.ExcludeBV = a.ExcludeBV || r.ExcludeBV
	out.ExcludeDIV = a.ExcludeDIV || r.ExcludeDIV
	return out
}

// Detect evaluates the four pillars. Pure; no I/O.
func Detect(history []contracts.AnnualRecord, a contracts.Assumptions, b Bounds) Result {
	base := baseRecord(history, a.BaseYear)

	res := Result{
		Targets: make(map[Pillar]float64, 4),
		Reasons: make(map[Pillar]string),
	}

	check := func(p Pillar, metric float64, growth, multiple *float64, multipleRange assumptions.Range, dividend bool) bool {
		reason, target := evaluate(metric, growth, multiple, multipleRange, dividend, a.CurrentPrice, b)
		res.Targets[p] = target
		if reason == "" {
			return false
		}
		res.Reasons[p] = reason
		res.DetectedOutliers = append(res.DetectedOutliers, p)
		return true
	}

	res.ExcludeEPS = check(PillarEPS, base.EarningsPerShare, a.GrowthRateEPS, a.TargetPE, b.PE, false)
	res.ExcludeCF = check(PillarCF, base.CashFlowPerShare, a.GrowthRateCF, a.TargetPCF, b.PCF, false)
	res.ExcludeBV = check(PillarBV, base.BookValuePerShare, a.GrowthRateBV, a.TargetPBV, b.PBV, false)
	res.ExcludeDIV = check(PillarDIV, a.CurrentDividend, a.GrowthRateDiv, a.TargetYield, b.Yield, true)

	return res
}

// evaluate returns a non-empty reason when the pillar is an outlier
func evaluate(metric float64, growth, multiple *float64, multipleRange assumptions.Range, dividend bool, price float64, b Bounds) (string, float64) {
	if multiple == nil || growth == nil {
		return "assumption not set", 0
	}
	if !multipleRange.Contains(*multiple) {
		return fmt.Sprintf("target multiple %.2f outside [%.2f, %.2f]", *multiple, multipleRange.Min, multipleRange.Max), 0
	}
	if !b.Growth.Contains(*growth) {
		return fmt.Sprintf("growth %.2f%% outside [%.2f, %.2f]", *growth, b.Growth.Min, b.Growth.Max), 0
	}
	if metric <= 0 {
		return "base metric is not positive", 0
	}

	future := metric * math.Pow(1+*growth/100, float64(b.HorizonYears))
	var target float64
	if dividend {
		if *multiple <= 0 {
			return "target yield is zero", 0
		}
		target = future / (*multiple / 100)
	} else {
		target = future * *multiple
	}

	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return "implied target is not computable", 0
	}
	if price > 0 {
		ratio := target / price
		if !b.Ratio.Contains(ratio) {
			return fmt.Sprintf("target/price ratio %.2f outside [%.2f, %.2f]", ratio, b.Ratio.Min, b.Ratio.Max), target
		}
	}
	return "", target
}

// baseRecord is the row for baseYear, else the latest row
func baseRecord(history []contracts.AnnualRecord, baseYear int) contracts.AnnualRecord {
	var latest contracts.AnnualRecord
	for _, r := range history {
		if r.Year == baseYear {
			return r
		}
		if r.Year > latest.Year {
			latest = r
		}
	}
	return latest
}
