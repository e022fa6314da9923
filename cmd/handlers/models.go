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

// NewModelsCmd creates the models listing command
func NewModelsCmd() *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List models available from the configured provider",
		Long: `Query the active provider's model catalog and print the chat-capable
models. Use --provider to query a different configured provider.`,
		Run: func(cmd *cobra.Command, args []string) {
			providerID, _ := cmd.Flags().GetString("provider")
			if err := runModels(providerID); err != nil {
				logger.Error("Failed to list models", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}

	modelsCmd.Flags().String("provider", "", "Provider to query (default: the active provider)")

	return modelsCmd
}

func runModels(providerID string) error {
	cfg := config.Get()

	pc, err := cfg.ActiveProvider()
	if err != nil {
		return err
	}
	if providerID != "" {
		var ok bool
		pc, ok = cfg.Provider.Providers[providerID]
		if !ok {
			pc.ProviderID = providerID
		}
		if pc.ProviderID == "" {
			pc.ProviderID = providerID
		}
	}

	name := pc.ProviderID
	if def, ok := llm.GetDefinition(pc.ProviderID); ok {
		name = def.Name
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := llm.ListModels(ctx, pc)
	if err != nil {
		return fmt.Errorf("failed to list models for %s: %w", name, err)
	}

	if len(models) == 0 {
		fmt.Printf("No models reported by %s\n", name)
		return nil
	}

	fmt.Printf("Models available from %s:\n", name)
	for _, m := range models {
		marker := "  "
		if m.ID == pc.Model {
			marker = "* "
		}
		if m.Name != "" && m.Name != m.ID {
			fmt.Printf("%s%s  (%s)\n", marker, m.ID, m.Name)
		} else {
			fmt.Printf("%s%s\n", marker, m.ID)
		}
	}
	if pc.Model != "" {
		fmt.Printf("\n* currently configured model\n")
	}

	return nil
}
