package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute runs the vibearb CLI.
func Execute(ctx context.Context) error {
	var configPath string

	root := &cobra.Command{
		Use:   "vibearb",
		Short: "Cultural arbitrage: map cultural themes to crypto assets",
		Long: `vibearb expands a cultural theme into keywords, correlates it across
taste and social data, discovers matching tokens and NFT collections, and
scores everything into a ranked trend analysis.`,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (built-in defaults when omitted)")

	// Accept underscore flag spellings, config keys use snake_case.
	root.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(analyzeCmd(&configPath))
	root.AddCommand(simulateCmd(&configPath))
	root.AddCommand(healthCmd(&configPath))

	return root.ExecuteContext(ctx)
}
