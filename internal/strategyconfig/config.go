// Package strategyconfig loads the valuation strategy file: the sanitizer
// guardrails and outlier plausibility bounds shared by a team.
package strategyconfig

import (
	"time"

	"github.com/projetsjsl/GOB-sub006/pkg/config"
)

// Config is the strategy file. Omitted sections keep the environment values.
type Config struct {
	Meta      Meta       `yaml:"meta" json:"meta"`
	Valuation *Valuation `yaml:"valuation" json:"valuation,omitempty"`
	Outlier   *Outlier   `yaml:"outlier" json:"outlier,omitempty"`
}

// Meta identifies the file
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Range is an inclusive [min, max] bound
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Valuation holds the assumption guardrails
type Valuation struct {
	Growth         Range  `yaml:"growth" json:"growth"`
	PE             Range  `yaml:"pe" json:"pe"`
	PCF            Range  `yaml:"pcf" json:"pcf"`
	PBV            Range  `yaml:"pbv" json:"pbv"`
	Yield          Range  `yaml:"yield" json:"yield"`
	RequiredReturn Range  `yaml:"required_return" json:"required_return"`
	Payout         Range  `yaml:"payout" json:"payout"`
	ZeroPolicy     string `yaml:"zero_policy" json:"zero_policy"` // unset, explicit; empty keeps env
}

// Outlier holds the implied-target plausibility bounds
type Outlier struct {
	HorizonYears int   `yaml:"horizon_years" json:"horizon_years"`
	Ratio        Range `yaml:"ratio" json:"ratio"` // target price / current price
	PE           Range `yaml:"pe" json:"pe"`
	PCF          Range `yaml:"pcf" json:"pcf"`
	PBV          Range `yaml:"pbv" json:"pbv"`
	Yield        Range `yaml:"yield" json:"yield"`
	Growth       Range `yaml:"growth" json:"growth"`
}

// Apply overlays the file onto cfg
func (c *Config) Apply(cfg *config.Config) {
	if v := c.Valuation; v != nil {
		cfg.Valuation.GrowthMin, cfg.Valuation.GrowthMax = v.Growth.Min, v.Growth.Max
		cfg.Valuation.PEMin, cfg.Valuation.PEMax = v.PE.Min, v.PE.Max
		cfg.Valuation.PCFMin, cfg.Valuation.PCFMax = v.PCF.Min, v.PCF.Max
		cfg.Valuation.PBVMin, cfg.Valuation.PBVMax = v.PBV.Min, v.PBV.Max
		cfg.Valuation.YieldMin, cfg.Valuation.YieldMax = v.Yield.Min, v.Yield.Max
		cfg.Valuation.RequiredReturnMin, cfg.Valuation.RequiredReturnMax = v.RequiredReturn.Min, v.RequiredReturn.Max
		cfg.Valuation.PayoutMin, cfg.Valuation.PayoutMax = v.Payout.Min, v.Payout.Max
		if v.ZeroPolicy != "" {
			cfg.Valuation.ZeroPolicy = v.ZeroPolicy
		}
	}

	if o := c.Outlier; o != nil {
		cfg.Outlier.HorizonYears = o.HorizonYears
		cfg.Outlier.RatioMin, cfg.Outlier.RatioMax = o.Ratio.Min, o.Ratio.Max
		cfg.Outlier.PEMin, cfg.Outlier.PEMax = o.PE.Min, o.PE.Max
		cfg.Outlier.PCFMin, cfg.Outlier.PCFMax = o.PCF.Min, o.PCF.Max
		cfg.Outlier.PBVMin, cfg.Outlier.PBVMax = o.PBV.Min, o.PBV.Max
		cfg.Outlier.YieldMin, cfg.Outlier.YieldMax = o.Yield.Min, o.Yield.Max
		cfg.Outlier.GrowthMin, cfg.Outlier.GrowthMax = o.Growth.Min, o.Growth.Max
	}
}

// Snapshot records which strategy file a session ran with
type Snapshot struct {
	ConfigHash string    `json:"config_hash"`
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	Path       string    `json:"path"`
	LoadedAt   time.Time `json:"loaded_at"`
}
