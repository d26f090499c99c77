// Package jobs holds the scheduled jobs.
package jobs

import (
	"context"
	"fmt"

	"github.com/projetsjsl/GOB-sub006/internal/roster"
	"github.com/projetsjsl/GOB-sub006/pkg/logger"
)

// RosterReloader forces a roster reload
type RosterReloader interface {
	ReloadRoster(ctx context.Context) (roster.Result, error)
}

// RosterRefreshJob reloads the roster on a schedule, a safety net for
// change events missed while the feed was down
// SSOT: the periodic roster refresh schedule lives in this job only
type RosterRefreshJob struct {
	engine   RosterReloader
	schedule string
	logger   *logger.Logger
}

// NewRosterRefreshJob creates a new roster refresh job
func NewRosterRefreshJob(engine RosterReloader, schedule string, log *logger.Logger) *RosterRefreshJob {
	return &RosterRefreshJob{
		engine:   engine,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RosterRefreshJob) Name() string {
	return "roster_refresh"
}

// Schedule returns the cron schedule
func (j *RosterRefreshJob) Schedule() string {
	return j.schedule
}

// Run reloads the roster
func (j *RosterRefreshJob) Run(ctx context.Context) error {
	res, err := j.engine.ReloadRoster(ctx)
	if err != nil {
		return fmt.Errorf("reload roster: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"entries": res.Entries,
		"created": len(res.Created),
		"demoted": len(res.Demoted),
	}).Info("Scheduled roster refresh done")
	return nil
}
