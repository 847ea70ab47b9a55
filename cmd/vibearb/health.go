package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibearb/vibearb/internal/providers/guard"
)

func healthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print provider configuration and guard state",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			healths := make([]guard.Health, 0, len(app.guards))
			for _, g := range app.guards {
				healths = append(healths, g.Health())
			}

			encoded, err := json.MarshalIndent(map[string]interface{}{
				"providers": healths,
				"cache":     app.store.Stats(),
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode health: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}
