package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// BulkSyncer starts and awaits bulk syncs
type BulkSyncer interface {
	StartBulkSync(symbols []string, batchSize int) (string, error)
	Wait(ctx context.Context) (contracts.SyncProgress, error)
}

// PortfolioSyncJob re-syncs every portfolio profile from the provider
// SSOT: the nightly portfolio sync schedule lives in this job only
type PortfolioSyncJob struct {
	engine   BulkSyncer
	schedule string
	logger   *logger.Logger
}

// NewPortfolioSyncJob creates a new portfolio sync job
func NewPortfolioSyncJob(engine BulkSyncer, schedule string, log *logger.Logger) *PortfolioSyncJob {
	return &PortfolioSyncJob{
		engine:   engine,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *PortfolioSyncJob) Name() string {
	return "portfolio_sync"
}

// Schedule returns the cron schedule
func (j *PortfolioSyncJob) Schedule() string {
	return j.schedule
}

// Run syncs the portfolio and waits for the job to finish.
// A job already running is not an error; the next run picks up the slack.
func (j *PortfolioSyncJob) Run(ctx context.Context) error {
	id, err := j.engine.StartBulkSync(nil, 0)
	if errors.Is(err, contracts.ErrJobRunning) {
		j.logger.Info("Sync already running, skipping scheduled portfolio sync")
		return nil
	}
	if err != nil {
		return fmt.Errorf("start portfolio sync: %w", err)
	}

	p, err := j.engine.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for portfolio sync: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"job_id":  id,
		"state":   p.State,
		"success": p.SuccessCount,
		"errors":  p.ErrorCount,
	}).Info("Scheduled portfolio sync done")

	if p.Fatal != "" {
		return errors.New(p.Fatal)
	}
	if p.Total > 0 && p.SuccessCount == 0 {
		return fmt.Errorf("portfolio sync: all %d symbols failed", p.Total)
	}
	return nil
}
