package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/projetsjsl/GOB-sub006/internal/realtime/feed"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow remote roster changes",
	Long: `Loads the library and subscribes to the remote change feed
(REALTIME_MODE=postgres|websocket). Rating updates are applied in place;
inserts and deletes trigger a debounced roster reload.

Example:
  go run ./cmd/finsync watch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(newConsoleNotifier(os.Stdout), nil)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	if _, err := loadLibrary(ctx, a); err != nil {
		return err
	}
	renderStats(os.Stdout, a.engine.Stats())

	if err := startRealtime(a); err != nil {
		return err
	}

	fmt.Printf("Watching %s (%s). Press Ctrl+C to stop\n", a.cfg.Realtime.Table, a.cfg.Realtime.Mode)
	<-ctx.Done()

	fmt.Println()
	renderStats(os.Stdout, a.engine.Stats())
	return nil
}

// startRealtime subscribes the engine to the configured feed
func startRealtime(a *app) error {
	f, err := feed.New(a.cfg.Realtime, a.db, a.log)
	if err != nil {
		if errors.Is(err, feed.ErrDisabled) {
			return err
		}
		return fmt.Errorf("create change feed: %w", err)
	}
	if err := a.engine.StartRealtime(f, a.cfg.Realtime.Table); err != nil {
		return fmt.Errorf("start realtime: %w", err)
	}
	return nil
}
