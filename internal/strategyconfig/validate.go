package strategyconfig

import (
	"fmt"
)

// ValidationError rejects the file
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a legal but suspicious setting
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Valuation ===
	if v := cfg.Valuation; v != nil {
		ranges := []struct {
			field string
			r     Range
		}{
			{"valuation.growth", v.Growth},
			{"valuation.pe", v.PE},
			{"valuation.pcf", v.PCF},
			{"valuation.pbv", v.PBV},
			{"valuation.yield", v.Yield},
			{"valuation.required_return", v.RequiredReturn},
			{"valuation.payout", v.Payout},
		}
		for _, rr := range ranges {
			if err := validateRange(rr.r, rr.field); err != nil {
				return err
			}
		}
		if v.PE.Min < 0 || v.PCF.Min < 0 || v.PBV.Min < 0 {
			return ValidationError{"valuation", "multiple bounds must not be negative"}
		}
		switch v.ZeroPolicy {
		case "", "unset", "explicit":
		default:
			return ValidationError{"valuation.zero_policy", "must be unset or explicit"}
		}
	}

	// === Outlier ===
	if o := cfg.Outlier; o != nil {
		if o.HorizonYears < 1 || o.HorizonYears > 30 {
			return ValidationError{"outlier.horizon_years", "must be in [1, 30]"}
		}
		if o.Ratio.Min <= 0 {
			return ValidationError{"outlier.ratio.min", "must be > 0"}
		}
		ranges := []struct {
			field string
			r     Range
		}{
			{"outlier.ratio", o.Ratio},
			{"outlier.pe", o.PE},
			{"outlier.pcf", o.PCF},
			{"outlier.pbv", o.PBV},
			{"outlier.yield", o.Yield},
			{"outlier.growth", o.Growth},
		}
		for _, rr := range ranges {
			if err := validateRange(rr.r, rr.field); err != nil {
				return err
			}
		}
	}

	return nil
}

// Warn returns settings where the sanitizer accepts a target the outlier
// detector would then reject
func Warn(cfg *Config) []Warning {
	var warnings []Warning
	if cfg.Valuation == nil || cfg.Outlier == nil {
		return warnings
	}

	pairs := []struct {
		code      string
		valuation Range
		outlier   Range
	}{
		{"PE_WIDER_THAN_OUTLIER", cfg.Valuation.PE, cfg.Outlier.PE},
		{"PCF_WIDER_THAN_OUTLIER", cfg.Valuation.PCF, cfg.Outlier.PCF},
		{"PBV_WIDER_THAN_OUTLIER", cfg.Valuation.PBV, cfg.Outlier.PBV},
		{"YIELD_WIDER_THAN_OUTLIER", cfg.Valuation.Yield, cfg.Outlier.Yield},
	}
	for _, p := range pairs {
		if p.valuation.Min < p.outlier.Min || p.valuation.Max > p.outlier.Max {
			warnings = append(warnings, Warning{
				Code: p.code,
				Message: fmt.Sprintf("valuation range [%g, %g] exceeds outlier range [%g, %g]",
					p.valuation.Min, p.valuation.Max, p.outlier.Min, p.outlier.Max),
			})
		}
	}
	return warnings
}

func validateRange(r Range, field string) error {
	if r.Min > r.Max {
		return ValidationError{field, fmt.Sprintf("min %g exceeds max %g", r.Min, r.Max)}
	}
	return nil
}
