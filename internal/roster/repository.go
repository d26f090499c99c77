package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// Repository reads the ticker roster from PostgreSQL
// SSOT: roster rows are read here only
type Repository struct {
	pool  *pgxpool.Pool
	table string
}

// NewRepository creates a roster repository over table
func NewRepository(pool *pgxpool.Pool, table string) *Repository {
	if table == "" {
		table = "tickers"
	}
	return &Repository{pool: pool, table: table}
}

// FetchActive returns the raw active rows ordered by ticker
func (r *Repository) FetchActive(ctx context.Context) ([]contracts.TickerRow, error) {
	query := `
		SELECT ticker, company_name, sector, source, category, categories, is_active,
		       security_rank, earnings_predictability, price_growth_persistence, price_stability,
		       beta::float8, valueline_proj_low_return::float8, valueline_proj_high_return::float8,
		       valueline_updated_at::text
		FROM ` + pgx.Identifier{r.table}.Sanitize() + `
		WHERE is_active IS DISTINCT FROM false
		ORDER BY ticker ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.TickerRow
	for rows.Next() {
		var t contracts.TickerRow
		if err := rows.Scan(
			&t.Ticker, &t.CompanyName, &t.Sector, &t.Source, &t.Category, &t.Categories, &t.IsActive,
			&t.SecurityRank, &t.EarningsPredictability, &t.PriceGrowthPersistence, &t.PriceStability,
			&t.Beta, &t.ProjectedLowReturn, &t.ProjectedHighReturn, &t.RatingsUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", contracts.ErrRosterMalformed, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadRoster implements contracts.RosterLoader
func (r *Repository) LoadRoster(ctx context.Context) ([]contracts.RosterEntry, error) {
	rows, err := r.FetchActive(ctx)
	if err != nil {
		if errors.Is(err, contracts.ErrRosterLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", contracts.ErrRosterNetwork, contracts.ClassifyContextError(err))
	}
	return Normalize(rows)
}
