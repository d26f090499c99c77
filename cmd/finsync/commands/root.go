package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	noColor  bool
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "finsync",
	Short: "Profile library sync engine",
	Long: `finsync keeps the local valuation profile library in step with
the shared ticker roster, the financial-data provider and the user's
own edits.

Usage:
  go run ./cmd/finsync [command]

Examples:
  go run ./cmd/finsync roster
  go run ./cmd/finsync sync
  go run ./cmd/finsync sync AAPL MSFT --batch 2
  go run ./cmd/finsync refresh AAPL
  go run ./cmd/finsync cache show
  go run ./cmd/finsync watch
  go run ./cmd/finsync serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}
