package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Veraticus/cardwise/internal/analysis"
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/ingest"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import customers and transactions",
		Long: `Import customers and transactions from CSV exports or OFX statements.

Imports only store data; run 'cardwise analyze' afterwards to refresh the
segmentation. Malformed rows are reported and skipped, and transactions
that were already imported are ignored.`,
	}

	cmd.AddCommand(importFileCmd(analysis.ImportKindCustomers, "Import customers from a CSV file",
		func(ctx context.Context, svc *analysis.Service, r io.Reader, _ string) (*ingest.ImportReport, error) {
			return svc.ImportCustomers(ctx, r)
		}))
	cmd.AddCommand(importFileCmd(analysis.ImportKindTransactions, "Import transactions from a CSV file",
		func(ctx context.Context, svc *analysis.Service, r io.Reader, _ string) (*ingest.ImportReport, error) {
			return svc.ImportTransactions(ctx, r)
		}))

	ofx := importFileCmd(analysis.ImportKindOFX, "Import a card statement in OFX format",
		func(ctx context.Context, svc *analysis.Service, r io.Reader, customerID string) (*ingest.ImportReport, error) {
			return svc.ImportOFX(ctx, r, customerID)
		})
	ofx.Flags().String("customer", "", "Customer the statement belongs to (required)")
	_ = ofx.MarkFlagRequired("customer")
	cmd.AddCommand(ofx)

	return cmd
}

type importer func(ctx context.Context, svc *analysis.Service, r io.Reader, customerID string) (*ingest.ImportReport, error)

func importFileCmd(kind, short string, run importer) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			customerID, _ := cmd.Flags().GetString("customer")

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			svc, _, cleanup, err := openService(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := run(ctx, svc, f, customerID)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			writeLine(cmd.OutOrStdout(), cli.RenderImportReport(kind, report))
			return nil
		},
	}
}
