package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibearb/vibearb/internal/domain"
	"github.com/vibearb/vibearb/internal/sim"
)

func simulateCmd(configPath *string) *cobra.Command {
	var (
		tolerance    string
		days         int
		initialValue float64
		backtest     bool
	)

	cmd := &cobra.Command{
		Use:   "simulate <vibe>",
		Short: "Analyze a vibe and build a hypothetical portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			tol := domain.RiskTolerance(tolerance)
			switch tol {
			case domain.ToleranceLow, domain.ToleranceMedium, domain.ToleranceHigh:
			default:
				return fmt.Errorf("tolerance must be low, medium or high, got %q", tolerance)
			}

			opts := domain.DefaultSearchOptions()
			opts.RiskTolerance = tol

			result := app.orch.Run(cmd.Context(), args[0], opts)
			portfolio := sim.BuildPortfolio(result.AssetMatches, tol)

			output := map[string]interface{}{
				"vibe":        args[0],
				"tolerance":   tol,
				"portfolio":   portfolio,
					"projections": sim.Project(portfolio),
			}
			if backtest {
				output["backtest"] = sim.RunBacktest(portfolio, days, initialValue)
			}

			encoded, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&tolerance, "tolerance", "medium", "risk tolerance: low, medium or high")
	cmd.Flags().BoolVar(&backtest, "backtest", false, "run a synthetic backtest over the portfolio")
	cmd.Flags().IntVar(&days, "days", 90, "backtest length in days")
	cmd.Flags().Float64Var(&initialValue, "initial-value", 10000, "backtest starting value in USD")
	return cmd
}
