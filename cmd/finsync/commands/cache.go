package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persistent profile cache",
	Long: `Subcommands:
  show        - print the cached library and its age
  invalidate  - delete the cached library

Example:
  go run ./cmd/finsync cache show
  go run ./cmd/finsync cache invalidate`,
}

var (
	cacheShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the cached library",
		RunE:  showCache,
	}

	cacheInvalidateCmd = &cobra.Command{
		Use:   "invalidate",
		Short: "Delete the cached library",
		RunE:  invalidateCache,
	}
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
}

func showCache(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.close()

	entry, err := a.cache.Read(context.Background())
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	if entry == nil {
		fmt.Println("Cache is empty")
		return nil
	}

	state := "fresh"
	if a.cache.Stale(entry) {
		state = "stale"
	}
	format := "current"
	if entry.Legacy {
		format = "legacy"
	}
	fmt.Printf("Cached %s (%s ago, %s, ttl %s, %s format)\n\n",
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		time.Since(entry.Timestamp).Round(time.Second),
		state, a.cache.TTL(), format)

	renderLibrary(os.Stdout, entry.Data)
	return nil
}

func invalidateCache(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.close()

	a.cache.Invalidate(context.Background())
	fmt.Println("Cache invalidated")
	return nil
}
