package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: customers and transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS customers (
					id TEXT PRIMARY KEY,
					company_name TEXT NOT NULL,
					monthly_spend TEXT NOT NULL DEFAULT '0',
					total_transactions INTEGER NOT NULL DEFAULT 0,
					international_ratio REAL NOT NULL DEFAULT 0,
					reported_timeliness REAL,
					avg_transaction_value TEXT NOT NULL DEFAULT '0',
					top_merchant_category TEXT NOT NULL DEFAULT '',
					segment_id TEXT,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_customers_company ON customers(company_name)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					customer_id TEXT NOT NULL,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					merchant_name TEXT NOT NULL,
					merchant_category TEXT NOT NULL,
					amount TEXT NOT NULL,
					international INTEGER NOT NULL DEFAULT 0,
					paid_on_time INTEGER,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add segmentation generations with a current-generation pointer",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS generations (
					id TEXT PRIMARY KEY,
					created_at DATETIME NOT NULL,
					k INTEGER NOT NULL,
					iterations INTEGER NOT NULL,
					converged INTEGER NOT NULL,
					inertia REAL NOT NULL,
					customer_count INTEGER NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS segments (
					id TEXT PRIMARY KEY,
					generation_id TEXT NOT NULL,
					cluster_index INTEGER NOT NULL,
					category TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT NOT NULL,
					customer_count INTEGER NOT NULL,
					characteristics TEXT NOT NULL,
					centroid TEXT NOT NULL,
					FOREIGN KEY (generation_id) REFERENCES generations(id) ON DELETE CASCADE,
					UNIQUE (generation_id, cluster_index)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_segments_generation ON segments(generation_id)`,

				`CREATE TABLE IF NOT EXISTS segmentation_state (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					generation_id TEXT NOT NULL,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (generation_id) REFERENCES generations(id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_customers_segment ON customers(segment_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add analysis run history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS analysis_runs (
					id TEXT PRIMARY KEY,
					status TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					completed_at DATETIME,
					error TEXT,
					warning TEXT,
					generation_id TEXT,
					customer_count INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_analysis_runs_started ON analysis_runs(started_at)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the database's PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
