package assumptions

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// Fallbacks for present-but-non-finite values
const (
	defaultGrowth         = 5.0
	defaultDividendGrowth = 0.0
	defaultPE             = 15.0
	defaultPCF            = 10.0
	defaultPBV            = 2.0
	defaultYield          = 2.0
	defaultRequiredReturn = 10.0
	defaultPayout         = 30.0
)

// Correction records one field the sanitizer changed
type Correction struct {
	Field string
	From  float64
	To    float64
}

// Sanitize clamps and rounds every numeric field. Nil fields stay nil.
// Sanitize(Sanitize(a, b), b) == Sanitize(a, b).
func Sanitize(a contracts.Assumptions, b Bounds) contracts.Assumptions {
	out, _ := SanitizeWithReport(a, b)
	return out
}

// SanitizeWithReport is Sanitize plus the list of changed fields
func SanitizeWithReport(a contracts.Assumptions, b Bounds) (contracts.Assumptions, []Correction) {
	s := sanitizer{bounds: b}
	out := a.Clone()

	out.CurrentPrice = s.positive("currentPrice", a.CurrentPrice, PricePrecision)
	out.CurrentDividend = s.nonNegative("currentDividend", a.CurrentDividend, DividendPrecision)
	if a.BaseYear < MinBaseYear || a.BaseYear > b.CurrentYear+1 {
		out.BaseYear = b.CurrentYear
	}

	out.GrowthRateEPS = s.optional("growthRateEPS", a.GrowthRateEPS, b.Growth, GrowthPrecision, defaultGrowth)
	out.GrowthRateCF = s.optional("growthRateCF", a.GrowthRateCF, b.Growth, GrowthPrecision, defaultGrowth)
	out.GrowthRateBV = s.optional("growthRateBV", a.GrowthRateBV, b.Growth, GrowthPrecision, defaultGrowth)
	out.GrowthRateDiv = s.optional("growthRateDiv", a.GrowthRateDiv, b.Growth, GrowthPrecision, defaultDividendGrowth)

	out.TargetPE = s.optional("targetPE", a.TargetPE, b.PE, RatioPrecision, defaultPE)
	out.TargetPCF = s.optional("targetPCF", a.TargetPCF, b.PCF, RatioPrecision, defaultPCF)
	out.TargetPBV = s.optional("targetPBV", a.TargetPBV, b.PBV, RatioPrecision, defaultPBV)
	out.TargetYield = s.optional("targetYield", a.TargetYield, b.Yield, YieldPrecision, defaultYield)

	out.RequiredReturn = s.optional("requiredReturn", a.RequiredReturn, b.RequiredReturn, RatioPrecision, defaultRequiredReturn)
	out.DividendPayoutRatio = s.optional("dividendPayoutRatio", a.DividendPayoutRatio, b.Payout, RatioPrecision, defaultPayout)

	return out, s.corrections
}

type sanitizer struct {
	bounds      Bounds
	corrections []Correction
}

func (s *sanitizer) record(field string, from, to float64) {
	if from != to && !(math.IsNaN(from) && math.IsNaN(to)) {
		s.corrections = append(s.corrections, Correction{Field: field, From: from, To: to})
	}
}

func (s *sanitizer) optional(field string, v *float64, r Range, places int32, fallback float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	if !finite(x) {
		x = fallback
	}
	// Round first: the bounds sit on the grid, so the clamp result does too
	x = r.Clamp(round(x, places))
	s.record(field, *v, x)
	return &x
}

func (s *sanitizer) positive(field string, v float64, places int32) float64 {
	out := 0.0
	if finite(v) && v > 0 {
		out = round(v, places)
	}
	s.record(field, v, out)
	return out
}

func (s *sanitizer) nonNegative(field string, v float64, places int32) float64 {
	out := 0.0
	if finite(v) && v >= 0 {
		out = round(v, places)
	}
	s.record(field, v, out)
	return out
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
