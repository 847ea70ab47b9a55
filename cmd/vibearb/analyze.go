package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibearb/vibearb/internal/domain"
)

func analyzeCmd(configPath *string) *cobra.Command {
	var (
		maxAssets int
		noCache   bool
		tolerance string
		nftsOnly  bool
		tokensOnly bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <vibe>",
		Short: "Run one trend analysis and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			opts := domain.DefaultSearchOptions()
			opts.MaxAssets = maxAssets
			opts.UseCache = !noCache
			opts.RiskTolerance = domain.RiskTolerance(tolerance)
			if nftsOnly {
				opts.IncludeTokens = false
			}
			if tokensOnly {
				opts.IncludeNFTs = false
			}
			if nftsOnly && tokensOnly {
				return fmt.Errorf("--nfts-only and --tokens-only are mutually exclusive")
			}
			switch opts.RiskTolerance {
			case domain.ToleranceLow, domain.ToleranceMedium, domain.ToleranceHigh:
			default:
				return fmt.Errorf("tolerance must be low, medium or high, got %q", tolerance)
			}

			result := app.orch.Run(cmd.Context(), args[0], opts)

			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAssets, "max-assets", 10, "maximum assets in the result")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().StringVar(&tolerance, "tolerance", "medium", "risk tolerance: low, medium or high")
	cmd.Flags().BoolVar(&nftsOnly, "nfts-only", false, "search NFT collections only")
	cmd.Flags().BoolVar(&tokensOnly, "tokens-only", false, "search tokens only")
	return cmd
}
