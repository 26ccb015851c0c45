package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/spf13/cobra"
)

func segmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segments",
		Short: "Show the current segmentation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			svc, _, cleanup, err := openService(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			gen, err := svc.CurrentGeneration(ctx)
			if errors.Is(err, common.ErrNotFound) {
				writeLine(out, cli.FormatInfo("No segmentation yet. Run 'cardwise analyze' first."))
				return nil
			}
			if err != nil {
				return err
			}

			segments, err := svc.Segments(ctx)
			if err != nil {
				return err
			}

			writeLine(out, cli.FormatTitle(fmt.Sprintf("%s Segments (generation %s, %s)",
				cli.ChartIcon, shortID(gen.ID), gen.CreatedAt.Local().Format("2006-01-02 15:04"))))
			writeLine(out, cli.RenderSegments(segments))
			return nil
		},
	}
}
