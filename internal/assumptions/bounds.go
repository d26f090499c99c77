package assumptions

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/projetsjsl/GOB-sub006/pkg/config"
)

// Precision of each assumption family, in decimal places
const (
	GrowthPrecision   int32 = 2
	RatioPrecision    int32 = 1
	YieldPrecision    int32 = 2
	PricePrecision    int32 = 2
	DividendPrecision int32 = 4
)

// MinBaseYear is the oldest accepted base year
const MinBaseYear = 2015

// Range is an inclusive [Min, Max] interval
type Range struct {
	Min float64
	Max float64
}

// Clamp limits v to the range
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(v, r.Max))
}

// Contains reports whether v lies in the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// snap moves both ends onto the decimal grid, inward
func (r Range) snap(places int32) Range {
	return Range{
		Min: decimal.NewFromFloat(r.Min).RoundCeil(places).InexactFloat64(),
		Max: decimal.NewFromFloat(r.Max).RoundFloor(places).InexactFloat64(),
	}
}

// Bounds are the sanitizer guardrails
type Bounds struct {
	Growth         Range
	PE             Range
	PCF            Range
	PBV            Range
	Yield          Range
	RequiredReturn Range
	Payout         Range

	// CurrentYear caps BaseYear at CurrentYear+1 and is the fallback base year
	CurrentYear int
}

// DefaultBounds returns the built-in guardrails
func DefaultBounds(now time.Time) Bounds {
	return Bounds{
		Growth:         Range{-20, 20},
		PE:             Range{5, 50},
		PCF:            Range{3, 50},
		PBV:            Range{0.5, 10},
		Yield:          Range{0, 15},
		RequiredReturn: Range{5, 25},
		Payout:         Range{0, 100},
		CurrentYear:    now.Year(),
	}
}

// BoundsFromConfig builds guardrails from configuration.
// Ends are snapped onto each family's precision grid.
func BoundsFromConfig(cfg config.ValuationConfig, now time.Time) (Bounds, error) {
	b := Bounds{
		Growth:         Range{cfg.GrowthMin, cfg.GrowthMax}.snap(GrowthPrecision),
		PE:             Range{cfg.PEMin, cfg.PEMax}.snap(RatioPrecision),
		PCF:            Range{cfg.PCFMin, cfg.PCFMax}.snap(RatioPrecision),
		PBV:            Range{cfg.PBVMin, cfg.PBVMax}.snap(RatioPrecision),
		Yield:          Range{cfg.YieldMin, cfg.YieldMax}.snap(YieldPrecision),
		RequiredReturn: Range{cfg.RequiredReturnMin, cfg.RequiredReturnMax}.snap(RatioPrecision),
		Payout:         Range{cfg.PayoutMin, cfg.PayoutMax}.snap(RatioPrecision),
		CurrentYear:    now.Year(),
	}
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// Validate rejects empty or non-finite ranges
func (b Bounds) Validate() error {
	for name, r := range map[string]Range{
		"growth":          b.Growth,
		"pe":              b.PE,
		"pcf":             b.PCF,
		"pbv":             b.PBV,
		"yield":           b.Yield,
		"required_return": b.RequiredReturn,
		"payout":          b.Payout,
	} {
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
			return fmt.Errorf("%s bounds must be finite", name)
		}
		if r.Min > r.Max {
			return fmt.Errorf("%s bounds are empty: [%v, %v]", name, r.Min, r.Max)
		}
	}
	if b.CurrentYear < MinBaseYear {
		return fmt.Errorf("current year %d predates %d", b.CurrentYear, MinBaseYear)
	}
	return nil
}
