package main

import (
	"fmt"

	"github.com/Veraticus/cardwise/internal/analysis"
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/ingest"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a synthetic demo portfolio and analyze it",
		Long: `Generate a synthetic portfolio of corporate-card customers with 90 days of
transactions, store it and run an analysis over it.

With --reset all customers, transactions and segments are removed first.
The database is backed up before a reset unless --no-backup is given.`,
		RunE: runSeed,
	}

	defaults := ingest.DefaultSyntheticOptions()
	cmd.Flags().Bool("reset", false, "Remove existing data before seeding")
	cmd.Flags().Bool("no-backup", false, "Skip the backup before a reset")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().Int("customers", defaults.Customers, "Number of customers to generate")
	cmd.Flags().Int64("seed", defaults.Seed, "Random seed for the generated data")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	reset, _ := cmd.Flags().GetBool("reset")
	noBackup, _ := cmd.Flags().GetBool("no-backup")
	yes, _ := cmd.Flags().GetBool("yes")
	customers, _ := cmd.Flags().GetInt("customers")
	seed, _ := cmd.Flags().GetInt64("seed")

	if customers < 0 {
		return fmt.Errorf("--customers must not be negative")
	}

	if reset && !yes {
		question := "This will delete all customers, transactions and segments."
		if noBackup {
			question += " No backup will be made."
		}
		confirmed, err := cli.Confirm(ctx, cmd.InOrStdin(), out, question+" Continue?")
		if err != nil {
			return err
		}
		if !confirmed {
			writeLine(out, cli.FormatInfo("Seed cancelled."))
			return nil
		}
	}

	svc, _, cleanup, err := openService(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	synthetic := ingest.DefaultSyntheticOptions()
	synthetic.Customers = customers
	synthetic.Seed = seed

	progress := cli.NewProgress(cmd.ErrOrStderr())
	result, err := svc.Seed(ctx, analysis.SeedOptions{
		Synthetic:    synthetic,
		Reset:        reset,
		SkipBackup:   noBackup,
		ProgressFunc: progress.Update,
	})
	progress.Finish()
	if err != nil {
		return err
	}

	if result.Backup != "" {
		writeLine(out, cli.FormatInfo("Backup written to "+result.Backup))
	}
	writeLine(out, cli.FormatSuccess(fmt.Sprintf("Seeded %d customers and %d transactions",
		result.Customers, result.Transactions)))
	if result.Analysis != nil {
		if result.Analysis.Warning != nil {
			writeLine(out, cli.FormatWarning(result.Analysis.Warning.Error()))
		}
		writeLine(out, "")
		writeLine(out, cli.RenderSegments(result.Analysis.Segments))
	}
	return nil
}
