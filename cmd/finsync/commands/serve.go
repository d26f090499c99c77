package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/projetsjsl/GOB-sub006/internal/api"
	"github.com/projetsjsl/GOB-sub006/internal/api/handlers"
	"github.com/projetsjsl/GOB-sub006/internal/realtime/feed"
	"github.com/projetsjsl/GOB-sub006/internal/scheduler"
	"github.com/projetsjsl/GOB-sub006/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server with realtime updates and scheduled jobs",
	Long: `Starts the HTTP bridge for the UI, the remote change feed and the
scheduled jobs (ROSTER_SCHEDULE, SYNC_SCHEDULE).

Endpoints:
  GET  /health
  GET  /metrics
  GET  /api/profiles
  GET  /api/profiles/{symbol}
  POST /api/profiles/{symbol}/select
  POST /api/profiles/{symbol}/refresh
  POST /api/sync
  POST /api/sync/{pause|resume|abort}
  GET  /api/sync/progress
  POST /api/roster/reload

Example:
  go run ./cmd/finsync serve
  go run ./cmd/finsync serve --port 8080`,
	RunE: runServe,
}

var (
	servePort     string
	serveRealtime bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default PORT)")
	serveCmd.Flags().BoolVar(&serveRealtime, "realtime", true, "subscribe to the remote change feed")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(newConsoleNotifier(os.Stdout), nil)
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	// A missing roster is not fatal for the server: the UI can reload it
	if _, err := a.engine.Load(ctx); err != nil {
		a.log.WithError(err).Warn("Initial load incomplete")
	}

	if serveRealtime {
		if err := startRealtime(a); err != nil {
			if !errors.Is(err, feed.ErrDisabled) {
				return err
			}
			a.log.Info("Realtime updates disabled")
		}
	}

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	router := api.NewRouter(
		handlers.NewProfileHandler(a.engine, a.log),
		handlers.NewSyncHandler(a.engine, a.log),
		a.log,
		a.cfg.MetricsEnabled,
	)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\nServer running on http://localhost:%s\n", a.cfg.Port)
	if jobNames := sched.GetAllJobs(); len(jobNames) > 0 {
		fmt.Println("Scheduled jobs:")
		for _, name := range jobNames {
			fmt.Printf("  - %s\n", name)
		}
	}
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info("Server stopped")
	return nil
}

// newScheduler registers the jobs whose schedules are configured
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	if schedule := a.cfg.Realtime.RosterSchedule; schedule != "" {
		if err := sched.AddJob(jobs.NewRosterRefreshJob(a.engine, schedule, a.log)); err != nil {
			return nil, fmt.Errorf("register roster job: %w", err)
		}
	}
	if schedule := a.cfg.Sync.Schedule; schedule != "" {
		if err := sched.AddJob(jobs.NewPortfolioSyncJob(a.engine, schedule, a.log)); err != nil {
			return nil, fmt.Errorf("register sync job: %w", err)
		}
	}
	return sched, nil
}
