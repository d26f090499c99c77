package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/projetsjsl/GOB-sub006/internal/engine"
)

// rosterCmd represents the roster command
var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Load the ticker roster into the library",
	Long: `Loads the library from the cache, then reloads the remote ticker
roster. New tickers become skeleton profiles, removed portfolio tickers
are demoted to the watchlist.

Example:
  go run ./cmd/finsync roster
  go run ./cmd/finsync roster --complete`,
	RunE: runRoster,
}

var (
	rosterComplete bool
	rosterList     bool
)

func init() {
	rootCmd.AddCommand(rosterCmd)

	rosterCmd.Flags().BoolVar(&rosterComplete, "complete", false, "fetch data for new skeletons and wait for it")
	rosterCmd.Flags().BoolVar(&rosterList, "list", true, "print the library after the load")
}

func runRoster(cmd *cobra.Command, args []string) error {
	a, err := newApp(newConsoleNotifier(os.Stdout), func(o *engine.Options) {
		o.CompleteSkeletons = rosterComplete
	})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	report, err := loadLibrary(ctx, a)
	if err != nil {
		return err
	}

	res := report.Roster
	if res == nil {
		reloaded, err := a.engine.ReloadRoster(ctx)
		if err != nil {
			return fmt.Errorf("reload roster: %w", err)
		}
		res = &reloaded
	}
	renderRoster(os.Stdout, *res)

	if report.SkeletonJobID != "" {
		if _, err := a.engine.Wait(ctx); err != nil {
			return fmt.Errorf("wait for skeleton sync: %w", err)
		}
	}

	if rosterList {
		fmt.Println()
		renderLibrary(os.Stdout, a.engine.Library())
	}
	renderStats(os.Stdout, a.engine.Stats())
	return nil
}

// loadLibrary runs the startup load. A roster failure is tolerated as
// long as some library, even a stale one, is available.
func loadLibrary(ctx context.Context, a *app) (engine.LoadReport, error) {
	report, err := a.engine.Load(ctx)
	if err != nil {
		if report.Profiles == 0 {
			return report, fmt.Errorf("load library: %w", err)
		}
		a.log.WithError(err).Warn("Roster unavailable, using cached library")
	}

	a.log.WithFields(map[string]interface{}{
		"from_cache":  report.FromCache,
		"cache_fresh": report.CacheFresh,
		"profiles":    report.Profiles,
	}).Info("Library loaded")
	return report, nil
}
