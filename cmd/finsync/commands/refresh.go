package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh <symbol>",
	Short: "Fetch and reconcile one symbol",
	Long: `Fetches one symbol from the provider, merges it into its profile and
prints the result. A symbol missing from the library is added as a manual
profile.

Example:
  go run ./cmd/finsync refresh AAPL`,
	Args: cobra.ExactArgs(1),
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	symbol := contracts.NormalizeSymbol(args[0])

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

	p, err := a.engine.RefreshOne(ctx, symbol)
	if err != nil {
		// the notifier already printed the user message
		return fmt.Errorf("refresh %s: %w", symbol, err)
	}

	fmt.Println()
	renderProfile(os.Stdout, p)
	return nil
}
