package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/cardwise/internal/analysis"
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Segment all customers",
		Long: `Extract behavioral features for every customer, cluster them and commit a new
segmentation. The previous segmentation stays in place until the new one is
fully committed, so an interrupted analysis changes nothing.`,
		RunE: runAnalyze,
	}

	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	out := cmd.OutOrStdout()

	interruptHandler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "analysis", "The current segmentation was left unchanged.")
	ctx := interruptHandler.HandleInterrupts(cmd.Context())

	svc, _, cleanup, err := openService(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := analysis.Options{}
	var progress *cli.Progress
	if !noProgress {
		progress = cli.NewProgress(cmd.ErrOrStderr())
		opts.ProgressFunc = progress.Update
	}

	result, err := svc.Run(ctx, opts)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		if interruptHandler.WasInterrupted() && errors.Is(err, ctx.Err()) {
			return nil
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	slog.Debug("Analysis finished", "run_id", result.Run.ID, "generation", result.Generation.ID)

	writeLine(out, cli.FormatSuccess(fmt.Sprintf("Segmented %d customers into %d segments",
		result.Run.CustomerCount, len(result.Segments))))
	if result.Warning != nil {
		writeLine(out, cli.FormatWarning(result.Warning.Error()))
	}
	writeLine(out, "")
	writeLine(out, cli.RenderSegments(result.Segments))
	return nil
}
