package contracts

import "time"

// Source is the roster membership of a ticker
type Source string

const (
	SourceTeam      Source = "team"
	SourceWatchlist Source = "watchlist"
	SourceBoth      Source = "both"
	SourceManual    Source = "manual"
)

// Valid reports whether s is one of the known sources
func (s Source) Valid() bool {
	switch s {
	case SourceTeam, SourceWatchlist, SourceBoth, SourceManual:
		return true
	}
	return false
}

// WatchlistFlag maps a source to the profile's isWatchlist value.
// team and both are portfolio (false), watchlist is true, manual is nil.
func (s Source) WatchlistFlag() *bool {
	switch s {
	case SourceTeam, SourceBoth:
		return Bool(false)
	case SourceWatchlist:
		return Bool(true)
	}
	return nil
}

// SkeletonRequiredReturn is the required return given to new skeletons
const SkeletonRequiredReturn = 10.0

// NewSkeleton builds the placeholder profile for a roster ticker that
// has no local profile yet
func NewSkeleton(e RosterEntry, now time.Time) AnalysisProfile {
	symbol := NormalizeSymbol(e.Ticker)
	name := e.CompanyName
	if name == "" {
		name = symbol
	}
	p := AnalysisProfile{
		ID:   symbol,
		Data: []AnnualRecord{},
		Assumptions: Assumptions{
			CurrentPrice:   0,
			BaseYear:       now.Year(),
			RequiredReturn: Float(SkeletonRequiredReturn),
		},
		Info: CompanyInfo{
			Symbol:  symbol,
			Name:    name,
			Sector:  e.Sector,
			Ratings: e.Ratings.clone(),
		},
		IsWatchlist: e.Source.WatchlistFlag(),
		IsSkeleton:  true,
	}
	p.Touch(now)
	return p
}

// RosterEntry is one normalized active ticker from the remote store
type RosterEntry struct {
	Ticker      string `json:"ticker" validate:"required,max=16,ticker"`
	CompanyName string `json:"companyName"`
	Sector      string `json:"sector"`
	Source      Source `json:"source" validate:"required,oneof=team watchlist both manual"`
	Ratings
}

// TickerRow is the raw shape of a row in the remote tickers table.
// It is what the repository scans and what change events carry.
type TickerRow struct {
	Ticker                 string   `json:"ticker"`
	CompanyName            *string  `json:"company_name"`
	Sector                 *string  `json:"sector"`
	Source                 *string  `json:"source"`
	Category               *string  `json:"category"`
	Categories             []string `json:"categories"`
	IsActive               *bool    `json:"is_active"`
	SecurityRank           *string  `json:"security_rank"`
	EarningsPredictability *string  `json:"earnings_predictability"`
	PriceGrowthPersistence *string  `json:"price_growth_persistence"`
	PriceStability         *string  `json:"price_stability"`
	Beta                   *float64 `json:"beta"`
	ProjectedLowReturn     *float64 `json:"valueline_proj_low_return"`
	ProjectedHighReturn    *float64 `json:"valueline_proj_high_return"`
	RatingsUpdatedAt       *string  `json:"valueline_updated_at"`
}

// RowRatings extracts the rating fields of a row
func (r TickerRow) RowRatings() Ratings {
	return Ratings{
		SecurityRank:           deref(r.SecurityRank),
		EarningsPredictability: deref(r.EarningsPredictability),
		PriceGrowthPersistence: deref(r.PriceGrowthPersistence),
		PriceStability:         deref(r.PriceStability),
		Beta:                   r.Beta,
		ProjectedLowReturn:     r.ProjectedLowReturn,
		ProjectedHighReturn:    r.ProjectedHighReturn,
		RatingsUpdatedAt:       deref(r.RatingsUpdatedAt),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
