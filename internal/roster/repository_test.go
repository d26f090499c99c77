package roster

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/config"
	"github.com/projetsjsl/GOB-sub006/pkg/database"
)

func TestRepository_LoadRoster(t *testing.T) {
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("requires DATABASE_URL")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := context.Background()
	_, err = db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS finsync_roster_test (
			ticker text, company_name text, sector text, source text, category text,
			categories text[], is_active boolean, security_rank text,
			earnings_predictability text, price_growth_persistence text, price_stability text,
			beta numeric, valueline_proj_low_return numeric, valueline_proj_high_return numeric,
			valueline_updated_at date
		)`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DROP TABLE IF EXISTS finsync_roster_test`)
	})

	_, err = db.Pool.Exec(ctx, `TRUNCATE finsync_roster_test`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO finsync_roster_test (ticker, company_name, source, categories, is_active, security_rank, beta) VALUES
		('xom', 'Exxon Mobil', NULL, ARRAY['team','watchlist'], true, 'A++', 0.95),
		('old', 'Old Co', 'team', NULL, false, NULL, NULL)`)
	require.NoError(t, err)

	repo := NewRepository(db.Pool, "finsync_roster_test")
	entries, err := repo.LoadRoster(ctx)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "XOM", entries[0].Ticker)
	assert.Equal(t, contracts.SourceBoth, entries[0].Source)
	assert.Equal(t, 0.95, *entries[0].Beta)
}
