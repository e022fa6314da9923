package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"condense/internal/config"
	"condense/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "condense",
		Short: "Condense turns extracted web content into structured summaries.",
		Long: `Condense reads extracted page content and produces a structured summary
document (TLDR, key takeaways, notable quotes, and more) through the
configured LLM provider.

Oversized content is split into chunks and summarized with rolling
context, so articles larger than the model's window still produce a
single coherent document.`,
	}

	// Initialize configuration
	cobra.OnInitialize(initConfig)

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.condense.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewSummarizeCmd())
	rootCmd.AddCommand(NewModelsCmd())
	rootCmd.AddCommand(NewCheckCmd())
	rootCmd.AddCommand(NewCacheCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	logger.Init()

	_, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if config.Get().App.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", config.Get().App.ConfigFile)
	}
}
