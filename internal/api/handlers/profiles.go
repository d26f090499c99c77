package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/internal/library"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// ProfileEngine is the part of the engine the profile endpoints use
type ProfileEngine interface {
	Library() contracts.Library
	Profile(symbol string) (contracts.AnalysisProfile, bool)
	Stats() library.Stats
	SelectTicker(symbol string) (contracts.AnalysisProfile, error)
	ActiveTicker() string
	RefreshOne(ctx context.Context, symbol string) (contracts.AnalysisProfile, error)
}

// ProfileHandler serves the profile library
// SSOT: profile endpoints are implemented in this handler only
type ProfileHandler struct {
	engine ProfileEngine
	logger *logger.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(engine ProfileEngine, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		engine: engine,
		logger: log,
	}
}

// ProfileSummary is one row of the library listing
type ProfileSummary struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Sector       string    `json:"sector,omitempty"`
	IsWatchlist  *bool     `json:"isWatchlist"`
	IsSkeleton   bool      `json:"isSkeleton"`
	Years        int       `json:"years"`
	CurrentPrice float64   `json:"currentPrice"`
	LastModified int64     `json:"lastModified"`
}

// ListProfiles returns the library summaries
// GET /api/profiles?kind=portfolio|watchlist|manual|skeleton
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	keep, ok := kindFilter(kind)
	if !ok {
		respondError(w, http.StatusBadRequest, "kind must be one of portfolio, watchlist, manual, skeleton")
		return
	}

	lib := h.engine.Library()
	summaries := make([]ProfileSummary, 0, len(lib))
	for _, symbol := range lib.Symbols() {
		p := lib[symbol]
		if keep != nil && !keep(p) {
			continue
		}
		summaries = append(summaries, ProfileSummary{
			Symbol:       symbol,
			Name:         p.Info.Name,
			Sector:       p.Info.Sector,
			IsWatchlist:  p.IsWatchlist,
			IsSkeleton:   p.IsSkeleton,
			Years:        len(p.Data),
			CurrentPrice: p.Assumptions.CurrentPrice,
			LastModified: p.LastModified,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": summaries,
		"stats":    h.engine.Stats(),
		"active":   h.engine.ActiveTicker(),
	})
}

// GetProfile returns one full profile
// GET /api/profiles/{symbol}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	p, ok := h.engine.Profile(symbol)
	if !ok {
		respondFailure(w, symbol, contracts.ErrUnknownSymbol)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// SelectProfile makes a profile the active one
// POST /api/profiles/{symbol}/select
func (h *ProfileHandler) SelectProfile(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	p, err := h.engine.SelectTicker(symbol)
	if err != nil {
		respondFailure(w, symbol, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active":  h.engine.ActiveTicker(),
		"profile": p,
	})
}

// RefreshProfile fetches and reconciles one symbol
// POST /api/profiles/{symbol}/refresh
func (h *ProfileHandler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	p, err := h.engine.RefreshOne(r.Context(), symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Warn("Refresh request failed")
		respondFailure(w, symbol, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func kindFilter(kind string) (func(contracts.AnalysisProfile) bool, bool) {
	switch kind {
	case "":
		return nil, true
	case "portfolio":
		return library.IsPortfolio, true
	case "watchlist":
		return func(p contracts.AnalysisProfile) bool { return p.IsWatchlist != nil && *p.IsWatchlist }, true
	case "manual":
		return func(p contracts.AnalysisProfile) bool { return p.IsWatchlist == nil }, true
	case "skeleton":
		return library.IsSkeleton, true
	default:
		return nil, false
	}
}
