package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"condense/internal/config"
	"condense/internal/llm"
	"condense/internal/logger"
)

// NewCheckCmd creates the connection check command
func NewCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the configured provider credentials and model",
		Long: `Send a minimal chat request through the configured provider to verify
that the endpoint, API key, and model all work together.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCheck(); err != nil {
				logger.Error("Provider check failed", err)
				fmt.Fprintf(os.Stderr, "✗ %v\n", err)
				os.Exit(1)
			}
		},
	}

	return checkCmd
}

func runCheck() error {
	cfg := config.Get()

	pc, err := cfg.ActiveProvider()
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(pc)
	if err != nil {
		return err
	}

	fmt.Printf("Checking %s (%s)...\n", provider.Name(), pc.Model)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := llm.TestConnection(ctx, provider); err != nil {
		return err
	}

	fmt.Println("✓ Connection OK")
	return nil
}
