package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"condense/internal/config"
	"condense/internal/logger"
	"condense/internal/store"
)

// NewCacheCmd creates the cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the summary cache",
		Long:  `Inspect, clean, and manage the SQLite cache of generated summaries.`,
	}

	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics and storage information",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCacheStats(); err != nil {
				logger.Error("Failed to get cache stats", err)
				os.Exit(1)
			}
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the cache (removes all cached summaries)",
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if err := runCacheClear(confirm); err != nil {
				logger.Error("Failed to clear cache", err)
				os.Exit(1)
			}
		},
	}

	clearCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func openCacheStore() (*store.Store, error) {
	cacheStore, err := store.NewStore(config.GetCacheDirectory())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}
	return cacheStore, nil
}

func runCacheStats() error {
	cacheStore, err := openCacheStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error("Failed to close cache store", err)
		}
	}()

	stats, err := cacheStore.GetCacheStats()
	if err != nil {
		return fmt.Errorf("failed to get cache statistics: %w", err)
	}

	fmt.Println("Cache Statistics")
	fmt.Println("================")
	fmt.Printf("Summaries cached: %d\n", stats.SummaryCount)
	fmt.Printf("Cache size: %.2f MB\n", float64(stats.CacheSize)/1024/1024)
	if !stats.LastUpdated.IsZero() {
		fmt.Printf("Last updated: %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func runCacheClear(confirm bool) error {
	if !confirm {
		fmt.Print("This will remove all cached summaries. Continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Println("Cache clear cancelled")
			return nil
		}
	}

	cacheStore, err := openCacheStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error("Failed to close cache store", err)
		}
	}()

	if err := cacheStore.ClearCache(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Println("Cache cleared")
	return nil
}
