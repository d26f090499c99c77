package contracts

import (
	"sort"
	"strings"
	"time"
)

// AnnualRecord is one fiscal year of per-share history.
// AutoFetched nil or false marks a user-owned row.
type AnnualRecord struct {
	Year              int     `json:"year"`
	PriceHigh         float64 `json:"priceHigh"`
	PriceLow          float64 `json:"priceLow"`
	EarningsPerShare  float64 `json:"earningsPerShare"`
	CashFlowPerShare  float64 `json:"cashFlowPerShare"`
	BookValuePerShare float64 `json:"bookValuePerShare"`
	DividendPerShare  float64 `json:"dividendPerShare"`
	IsEstimate        bool    `json:"isEstimate,omitempty"`
	AutoFetched       *bool   `json:"autoFetched,omitempty"`
}

// UserOwned reports whether a merge must leave this row untouched
func (r AnnualRecord) UserOwned() bool {
	return r.AutoFetched == nil || !*r.AutoFetched
}

// HasFundamentals reports whether any of EPS, CFPS or BVPS is positive
func (r AnnualRecord) HasFundamentals() bool {
	return r.EarningsPerShare > 0 || r.CashFlowPerShare > 0 || r.BookValuePerShare > 0
}

// Assumptions drives the valuation. Pointer fields are optional:
// nil means "no value", which is not the same as zero.
type Assumptions struct {
	CurrentPrice    float64 `json:"currentPrice"`
	CurrentDividend float64 `json:"currentDividend"`
	BaseYear        int     `json:"baseYear"`

	GrowthRateEPS *float64 `json:"growthRateEPS,omitempty"`
	GrowthRateCF  *float64 `json:"growthRateCF,omitempty"`
	GrowthRateBV  *float64 `json:"growthRateBV,omitempty"`
	GrowthRateDiv *float64 `json:"growthRateDiv,omitempty"`

	TargetPE    *float64 `json:"targetPE,omitempty"`
	TargetPCF   *float64 `json:"targetPCF,omitempty"`
	TargetPBV   *float64 `json:"targetPBV,omitempty"`
	TargetYield *float64 `json:"targetYield,omitempty"`

	RequiredReturn      *float64 `json:"requiredReturn,omitempty"`
	DividendPayoutRatio *float64 `json:"dividendPayoutRatio,omitempty"`

	ExcludeEPS bool `json:"excludeEPS,omitempty"`
	ExcludeCF  bool `json:"excludeCF,omitempty"`
	ExcludeBV  bool `json:"excludeBV,omitempty"`
	ExcludeDIV bool `json:"excludeDIV,omitempty"`
}

// Clone returns a copy that shares no pointers with a
func (a Assumptions) Clone() Assumptions {
	out := a
	for _, f := range []struct{ dst, src **float64 }{
		{&out.GrowthRateEPS, &a.GrowthRateEPS},
		{&out.GrowthRateCF, &a.GrowthRateCF},
		{&out.GrowthRateBV, &a.GrowthRateBV},
		{&out.GrowthRateDiv, &a.GrowthRateDiv},
		{&out.TargetPE, &a.TargetPE},
		{&out.TargetPCF, &a.TargetPCF},
		{&out.TargetPBV, &a.TargetPBV},
		{&out.TargetYield, &a.TargetYield},
		{&out.RequiredReturn, &a.RequiredReturn},
		{&out.DividendPayoutRatio, &a.DividendPayoutRatio},
	} {
		if *f.src != nil {
			*f.dst = Float(**f.src)
		}
	}
	return out
}

// Ratings are the analyst-grade fields owned by the remote roster
type Ratings struct {
	SecurityRank           string   `json:"securityRank,omitempty"`
	EarningsPredictability string   `json:"earningsPredictability,omitempty"`
	PriceGrowthPersistence string   `json:"priceGrowthPersistence,omitempty"`
	PriceStability         string   `json:"priceStability,omitempty"`
	Beta                   *float64 `json:"beta,omitempty"`
	ProjectedLowReturn     *float64 `json:"valueLineProjLowReturn,omitempty"`
	ProjectedHighReturn    *float64 `json:"valueLineProjHighReturn,omitempty"`
	RatingsUpdatedAt       string   `json:"valueLineUpdatedAt,omitempty"`
}

// CompanyInfo is per-symbol metadata. Ratings are flattened into the same object.
type CompanyInfo struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Sector    string `json:"sector,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	Country   string `json:"country,omitempty"`
	Currency  string `json:"currency,omitempty"`
	MarketCap string `json:"marketCap,omitempty"`
	Logo      string `json:"logo,omitempty"`

	Ratings
}

// AnalysisProfile is the per-symbol unit of the library
type AnalysisProfile struct {
	ID           string         `json:"id"`
	LastModified int64          `json:"lastModified"` // unix millis
	Data         []AnnualRecord `json:"data"`
	Assumptions  Assumptions    `json:"assumptions"`
	Info         CompanyInfo    `json:"info"`
	Notes        string         `json:"notes"`
	IsWatchlist  *bool          `json:"isWatchlist"` // false portfolio, true watchlist, nil manual
	IsSkeleton   bool           `json:"isSkeleton,omitempty"`
}

// Clone deep-copies the profile
func (p AnalysisProfile) Clone() AnalysisProfile {
	out := p
	if p.Data != nil {
		out.Data = make([]AnnualRecord, len(p.Data))
		for i, r := range p.Data {
			if r.AutoFetched != nil {
				r.AutoFetched = Bool(*r.AutoFetched)
			}
			out.Data[i] = r
		}
	}
	out.Assumptions = p.Assumptions.Clone()
	out.Info.Ratings = p.Info.Ratings.clone()
	if p.IsWatchlist != nil {
		out.IsWatchlist = Bool(*p.IsWatchlist)
	}
	return out
}

func (r Ratings) clone() Ratings {
	out := r
	if r.Beta != nil {
		out.Beta = Float(*r.Beta)
	}
	if r.ProjectedLowReturn != nil {
		out.ProjectedLowReturn = Float(*r.ProjectedLowReturn)
	}
	if r.ProjectedHighReturn != nil {
		out.ProjectedHighReturn = Float(*r.ProjectedHighReturn)
	}
	return out
}

// Touch stamps LastModified
func (p *AnalysisProfile) Touch(now time.Time) {
	p.LastModified = now.UnixMilli()
}

// Library maps uppercase symbol to profile
type Library map[string]AnalysisProfile

// Clone copies the map. Profiles are values, so the copy is independent
// as long as callers replace rather than mutate nested slices.
func (l Library) Clone() Library {
	out := make(Library, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Symbols returns the keys in sorted order
func (l Library) Symbols() []string {
	out := make([]string, 0, len(l))
	for k := range l {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeSymbol is the canonical library key for a ticker
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f
func Float(f float64) *float64 { return &f }
