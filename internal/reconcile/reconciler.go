// Package reconcile merges provider results into analysis profiles.
package reconcile

import (
	"time"

	"github.com/projetsjsl/GOB-sub006/internal/assumptions"
	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/outlier"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// Reconciler turns (previous profile, fetch result) into the next profile
type Reconciler struct {
	bounds   assumptions.Bounds
	outliers outlier.Bounds
	zero     assumptions.ZeroPolicy
	sync     SyncOptions
	now      func() time.Time
	logger   *logger.Logger
}

// SyncOptions selects which parts of a fetch result are folded in
type SyncOptions struct {
	// PreserveExclusions keeps exclusion flags already set on the profile;
	// the detector can only add to them
	PreserveExclusions bool
	// RecalculateOutliers runs the detector; off leaves the flags untouched
	RecalculateOutliers bool
	// UpdateCurrentPrice replaces a known price with the fetched one
	UpdateCurrentPrice bool
	// SyncInfo overlays provider descriptive fields
	SyncInfo bool
	// OnlyNewYears ignores fetched years the profile already has
	OnlyNewYears bool
}

// DefaultSyncOptions preserves exclusions and syncs everything else
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		PreserveExclusions:  true,
		RecalculateOutliers: true,
		UpdateCurrentPrice:  true,
		SyncInfo:            true,
	}
}

// SyncOptionsFromConfig reads the sync section
func SyncOptionsFromConfig(cfg config.SyncConfig) SyncOptions {
	return SyncOptions{
		PreserveExclusions:  cfg.PreserveExclusions,
		RecalculateOutliers: cfg.RecalculateOutliers,
		UpdateCurrentPrice:  cfg.UpdateCurrentPrice,
		SyncInfo:            cfg.SyncInfo,
		OnlyNewYears:        cfg.OnlyNewYears,
	}
}

// Options configures a Reconciler
type Options struct {
	Bounds     assumptions.Bounds
	Outliers   outlier.Bounds
	ZeroPolicy assumptions.ZeroPolicy
	Sync       *SyncOptions // nil uses DefaultSyncOptions
	Now        func() time.Time
}

// OptionsFromConfig builds options from the valuation and outlier sections
func OptionsFromConfig(cfg *config.Config, now time.Time) (Options, error) {
	bounds, err := assumptions.BoundsFromConfig(cfg.Valuation, now)
	if err != nil {
		return Options{}, err
	}
	zero, err := assumptions.ParseZeroPolicy(cfg.Valuation.ZeroPolicy)
	if err != nil {
		return Options{}, err
	}
	sync := SyncOptionsFromConfig(cfg.Sync)
	return Options{
		Bounds:     bounds,
		Outliers:   outlier.BoundsFromConfig(cfg.Outlier),
		ZeroPolicy: zero,
		Sync:       &sync,
	}, nil
}

// New creates a Reconciler
func New(opts Options, log *logger.Logger) *Reconciler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sync := DefaultSyncOptions()
	if opts.Sync != nil {
		sync = *opts.Sync
	}
	return &Reconciler{
		bounds:   opts.Bounds,
		outliers: opts.Outliers,
		zero:     opts.ZeroPolicy,
		sync:     sync,
		now:      now,
		logger:   log.WithModule("reconcile"),
	}
}

// Sanitize exposes the configured sanitizer
func (r *Reconciler) Sanitize(a contracts.Assumptions) contracts.Assumptions {
	return assumptions.Sanitize(a, r.bounds)
}

// Apply validates res and folds it into prev. prev is not modified.
// Pipeline: merge history, overlay info, auto-fill, outliers, sanitize.
func (r *Reconciler) Apply(prev contracts.AnalysisProfile, res *contracts.FetchResult) (contracts.AnalysisProfile, error) {
	symbol := contracts.NormalizeSymbol(prev.ID)
	if symbol == "" && res != nil {
		symbol = contracts.NormalizeSymbol(res.Symbol)
	}

	if err := Validate(res); err != nil {
		return prev, contracts.NewSymbolError(symbol, err)
	}

	next := prev.Clone()
	next.ID = symbol
	incoming := res.Data
	if r.sync.OnlyNewYears {
		incoming = newYears(prev.Data, incoming)
	}
	next.Data = Merge(prev.Data, incoming)
	if r.sync.SyncInfo {
		next.Info = overlayInfo(prev.Info, res.Info, symbol)
	} else {
		next.Info.Symbol = symbol
	}

	price := res.CurrentPrice
	if !r.sync.UpdateCurrentPrice && prev.Assumptions.CurrentPrice > 0 {
		price = 0
	}
	filled := assumptions.AutoFill(next.Data, price, prev.Assumptions, r.zero)

	var detected outlier.Result
	flagged := filled
	if r.sync.RecalculateOutliers {
		detected = outlier.Detect(next.Data, filled, r.outliers)
		if r.sync.PreserveExclusions {
			flagged = detected.Union(filled)
		} else {
			flagged = detected.Apply(filled)
		}
	}
	sanitized, corrections := assumptions.SanitizeWithReport(flagged, r.bounds)
	next.Assumptions = sanitized

	next.IsSkeleton = false
	next.Touch(r.now())

	log := r.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"records":   len(next.Data),
		"outliers":  detected.DetectedOutliers,
		"corrected": len(corrections),
	})
	if prev.IsSkeleton {
		log.Info("Skeleton profile completed")
	} else {
		log.Debug("Profile reconciled")
	}

	return next, nil
}

// newYears drops incoming rows whose year is already in existing
func newYears(existing, incoming []contracts.AnnualRecord) []contracts.AnnualRecord {
	have := make(map[int]struct{}, len(existing))
	for _, r := range existing {
		have[r.Year] = struct{}{}
	}
	out := make([]contracts.AnnualRecord, 0, len(incoming))
	for _, r := range incoming {
		if _, ok := have[r.Year]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// overlayInfo takes descriptive fields from the provider and keeps
// roster-owned ratings from the existing profile
func overlayInfo(prev, fetched contracts.CompanyInfo, symbol string) contracts.CompanyInfo {
	out := prev
	out.Symbol = symbol
	if fetched.Name != "" {
		out.Name = fetched.Name
	}
	for _, f := range []struct{ dst *string; src string }{
		{&out.Sector, fetched.Sector},
		{&out.Industry, fetched.Industry},
		{&out.Exchange, fetched.Exchange},
		{&out.Country, fetched.Country},
		{&out.Currency, fetched.Currency},
		{&out.MarketCap, fetched.MarketCap},
		{&out.Logo, fetched.Logo},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	// Beta is the one rating the provider may fill when the roster has none
	if out.Beta == nil && fetched.Beta != nil {
		out.Beta = contracts.Float(*fetched.Beta)
	}
	return out
}
