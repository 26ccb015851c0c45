package main

import (
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show portfolio summary statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			svc, _, cleanup, err := openService(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := svc.DashboardStats(ctx)
			if err != nil {
				return err
			}

			writeLine(cmd.OutOrStdout(), cli.RenderStats(stats))
			return nil
		},
	}
}
