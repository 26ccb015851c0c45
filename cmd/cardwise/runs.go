package main

import (
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show analysis run history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			svc, _, cleanup, err := openService(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := svc.Runs(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				writeLine(out, cli.FormatInfo("No analysis runs yet."))
				return nil
			}
			writeLine(out, cli.RenderRuns(runs))
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")

	return cmd
}
