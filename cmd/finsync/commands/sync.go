package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [symbols...]",
	Short: "Bulk sync profiles from the provider",
	Long: `Fetches fresh provider data for the given symbols, or for every
portfolio profile when none are given, and reconciles it into the library.
User-entered years and assumptions are preserved.

Ctrl+C aborts the job: in-flight fetches finish, nothing new starts.

Example:
  go run ./cmd/finsync sync
  go run ./cmd/finsync sync AAPL MSFT --batch 2
  go run ./cmd/finsync sync ACME --targeted`,
	RunE: runSync,
}

var (
	syncBatch    int
	syncTargeted bool
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&syncBatch, "batch", 0, "symbols fetched in parallel (0 uses SYNC_BATCH_SIZE)")
	syncCmd.Flags().BoolVar(&syncTargeted, "targeted", false, "targeted sync for manually added symbols")
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncTargeted && len(args) == 0 {
		return errors.New("--targeted needs at least one symbol")
	}

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

	symbols := make([]string, 0, len(args))
	for _, s := range args {
		symbols = append(symbols, contracts.NormalizeSymbol(s))
	}

	var id string
	if syncTargeted {
		id, err = a.engine.StartTargetedSync(symbols)
	} else {
		id, err = a.engine.StartBulkSync(symbols, syncBatch)
	}
	if err != nil {
		return fmt.Errorf("start sync: %w", err)
	}

	label := "portfolio"
	if len(symbols) > 0 {
		label = strings.Join(symbols, ", ")
	}
	fmt.Printf("Sync %s started for %s\n", id, label)

	// First Ctrl+C aborts gracefully, the engine close bounds the wait
	go func() {
		<-ctx.Done()
		_ = a.engine.Abort()
	}()

	p, err := a.engine.Wait(context.Background())
	if err != nil {
		return fmt.Errorf("wait for sync: %w", err)
	}

	fmt.Println()
	renderErrors(os.Stdout, p.Errors)
	renderStats(os.Stdout, a.engine.Stats())

	if p.Fatal != "" {
		return fmt.Errorf("%w: %s", contracts.ErrFatalJob, p.Fatal)
	}
	return nil
}
