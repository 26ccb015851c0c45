package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/cardwise/internal/ingest"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/ofx"
)

// Import kinds reported to the Recorder.
const (
	ImportKindCustomers    = "customers"
	ImportKindTransactions = "transactions"
	ImportKindOFX          = "ofx"
	ImportKindSeed         = "seed"
)

// SeedOptions configures demo data generation.
type SeedOptions struct {
	ProgressFunc ProgressFunc
	Synthetic    ingest.SyntheticOptions
	// Reset clears existing customers, transactions and segments first.
	Reset bool
	// SkipBackup disables the snapshot normally taken before a reset.
	SkipBackup bool
}

// SeedResult reports what Seed created.
type SeedResult struct {
	Backup       string     `json:"backup,omitempty"`
	Analysis     *RunResult `json:"analysis"`
	Customers    int        `json:"customers_created"`
	Transactions int        `json:"transactions_created"`
}

// Recover marks runs interrupted by a previous process as failed.
func (s *Service) Recover(ctx context.Context) error {
	n, err := s.deps.Store.FailInterruptedRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted runs: %w", err)
	}
	if n > 0 {
		slog.Warn("Marked interrupted analysis runs as failed", "count", n)
	}
	return nil
}

// ImportCustomers reads a customer CSV and stores every valid row. Existing
// customers with the same id are updated. It waits for any in-flight run.
func (s *Service) ImportCustomers(ctx context.Context, r io.Reader) (*ingest.ImportReport, error) {
	customers, report, err := ingest.NewParser().ParseCustomers(r)
	if err != nil {
		return nil, err
	}

	if err := s.guard.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.guard.release()

	if err := s.deps.Store.SaveCustomers(ctx, customers); err != nil {
		return nil, fmt.Errorf("failed to save customers: %w", err)
	}
	report.Imported = len(customers)

	s.deps.Recorder.ObserveImport(ImportKindCustomers, report.Imported, report.Rejected)
	slog.Info("Imported customers", "imported", report.Imported, "rejected", report.Rejected)
	return report, nil
}

// ImportTransactions reads a transaction CSV. Rows for unknown customers are
// rejected and rows already stored are counted as duplicates.
func (s *Service) ImportTransactions(ctx context.Context, r io.Reader) (*ingest.ImportReport, error) {
	if err := s.guard.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.guard.release()

	known, err := s.deps.Store.CustomerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer ids: %w", err)
	}

	txns, report, err := ingest.NewParser().ParseTransactions(r, known)
	if err != nil {
		return nil, err
	}

	if err := s.saveTransactions(ctx, txns, report); err != nil {
		return nil, err
	}

	s.deps.Recorder.ObserveImport(ImportKindTransactions, report.Imported, report.Rejected)
	slog.Info("Imported transactions",
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"rejected", report.Rejected)
	return report, nil
}

// ImportOFX reads an OFX/QFX card statement and attributes its charges to
// customerID, which must exist.
func (s *Service) ImportOFX(ctx context.Context, r io.Reader, customerID string) (*ingest.ImportReport, error) {
	if _, err := s.deps.Store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	stmt, err := ofx.NewParser().ParseFile(ctx, r, customerID)
	if err != nil {
		return nil, err
	}

	if err := s.guard.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.guard.release()

	report := &ingest.ImportReport{Errors: []ingest.RowError{}, Rows: len(stmt.Transactions) + stmt.Credits}
	if err := s.saveTransactions(ctx, stmt.Transactions, report); err != nil {
		return nil, err
	}

	s.deps.Recorder.ObserveImport(ImportKindOFX, report.Imported, report.Rejected)
	slog.Info("Imported OFX statement",
		"customer_id", customerID,
		"accounts", stmt.Accounts,
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"credits_skipped", stmt.Credits)
	return report, nil
}

func (s *Service) saveTransactions(ctx context.Context, txns []model.Transaction, report *ingest.ImportReport) error {
	inserted, err := s.deps.Store.SaveTransactions(ctx, txns)
	if err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	report.Imported = inserted
	report.Duplicates = len(txns) - inserted
	return nil
}

// Seed stores a synthetic demo dataset and runs an analysis over it.
func (s *Service) Seed(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	if err := s.guard.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.guard.release()

	result := &SeedResult{}

	if opts.Reset {
		if !opts.SkipBackup {
			backup, err := s.deps.Store.AutoBackup(ctx, "reset")
			if err != nil {
				return nil, fmt.Errorf("refusing to reset without a backup: %w", err)
			}
			result.Backup = backup.Path
		}
		if err := s.deps.Store.ResetData(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset data: %w", err)
		}
		slog.Info("Reset customer data", "backup", result.Backup)
	}

	ds := ingest.Synthesize(opts.Synthetic)
	if err := s.deps.Store.SaveCustomers(ctx, ds.Customers); err != nil {
		return nil, fmt.Errorf("failed to save customers: %w", err)
	}
	inserted, err := s.deps.Store.SaveTransactions(ctx, ds.Transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to save transactions: %w", err)
	}
	result.Customers = len(ds.Customers)
	result.Transactions = inserted
	s.deps.Recorder.ObserveImport(ImportKindSeed, result.Customers+result.Transactions, 0)

	slog.Info("Seeded synthetic data",
		"customers", result.Customers,
		"transactions", result.Transactions)

	analysis, err := s.runLocked(ctx, Options{ProgressFunc: opts.ProgressFunc})
	if err != nil {
		return result, fmt.Errorf("seeded data but analysis failed: %w", err)
	}
	result.Analysis = analysis
	return result, nil
}
