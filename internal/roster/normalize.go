package roster

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerPattern.MatchString(fl.Field().String())
	})
	return v
}

// MapSource maps a raw source string to the isWatchlist tri-state
func MapSource(source string) *bool {
	return contracts.Source(strings.ToLower(strings.TrimSpace(source))).WatchlistFlag()
}

// NormalizeSource derives a row's source. An explicit source wins, then
// category, then categories (team and watchlist together mean both).
// Unknown values are manual.
func NormalizeSource(row contracts.TickerRow) contracts.Source {
	for _, raw := range []*string{row.Source, row.Category} {
		if raw == nil {
			continue
		}
		if s := contracts.Source(strings.ToLower(strings.TrimSpace(*raw))); s != "" {
			if !s.Valid() {
				return contracts.SourceManual
			}
			return s
		}
	}
	if row.Categories != nil {
		var team, watch bool
		for _, c := range row.Categories {
			switch strings.ToLower(strings.TrimSpace(c)) {
			case string(contracts.SourceTeam):
				team = true
			case string(contracts.SourceWatchlist):
				watch = true
			}
		}
		switch {
		case team && watch:
			return contracts.SourceBoth
		case watch:
			return contracts.SourceWatchlist
		case team:
			return contracts.SourceTeam
		}
	}
	return contracts.SourceManual
}

// ToEntry converts a raw row. The result is not validated.
func ToEntry(row contracts.TickerRow) contracts.RosterEntry {
	e := contracts.RosterEntry{
		Ticker:  contracts.NormalizeSymbol(row.Ticker),
		Source:  NormalizeSource(row),
		Ratings: row.RowRatings(),
	}
	if row.CompanyName != nil {
		e.CompanyName = strings.TrimSpace(*row.CompanyName)
	}
	if row.Sector != nil {
		e.Sector = strings.TrimSpace(*row.Sector)
	}
	return e
}

// Normalize turns active rows into validated, de-duplicated entries.
// When a ticker appears twice the team or both row wins.
// Any invalid row fails the whole roster with ErrRosterMalformed.
func Normalize(rows []contracts.TickerRow) ([]contracts.RosterEntry, error) {
	entries := make([]contracts.RosterEntry, 0, len(rows))
	index := make(map[string]int, len(rows))
	var problems []string

	for _, row := range rows {
		if row.IsActive != nil && !*row.IsActive {
			continue
		}

		e := ToEntry(row)
		if err := validate.Struct(e); err != nil {
			problems = append(problems, fmt.Sprintf("%q: %v", row.Ticker, err))
			continue
		}

		if i, seen := index[e.Ticker]; seen {
			if isTeam(e.Source) && !isTeam(entries[i].Source) {
				entries[i] = e
			}
			continue
		}
		index[e.Ticker] = len(entries)
		entries = append(entries, e)
	}

	if len(problems) > 0 {
		shown := problems
		if len(shown) > 3 {
			shown = shown[:3]
		}
		return nil, fmt.Errorf("%w: %d invalid rows: %s", contracts.ErrRosterMalformed, len(problems), strings.Join(shown, "; "))
	}
	if len(entries) == 0 {
		return nil, contracts.ErrRosterEmpty
	}
	return entries, nil
}

func isTeam(s contracts.Source) bool {
	return s == contracts.SourceTeam || s == contracts.SourceBoth
}
