package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
)

const runColumns = `id, status, started_at, completed_at, error, warning, generation_id, customer_count`

// CreateRun records the start of an analysis run.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *model.AnalysisRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := validateString(run.ID, "run ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Status),
		run.StartedAt.UTC(),
		nullTime(run.CompletedAt),
		nullString(run.Error),
		nullString(run.Warning),
		nullString(run.GenerationID),
		run.CustomerCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	slog.Debug("Created analysis run", "run_id", run.ID, "status", run.Status)
	return nil
}

// UpdateRun stores a run's current status and outcome.
func (s *SQLiteStorage) UpdateRun(ctx context.Context, run *model.AnalysisRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs SET
			status = ?, completed_at = ?, error = ?, warning = ?,
			generation_id = ?, customer_count = ?
		WHERE id = ?
	`,
		string(run.Status),
		nullTime(run.CompletedAt),
		nullString(run.Error),
		nullString(run.Warning),
		nullString(run.GenerationID),
		run.CustomerCount,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, common.ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.AnalysisRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of 0 returns all runs.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + runColumns + ` FROM analysis_runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []model.AnalysisRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FailInterruptedRuns marks runs left "running" by a previous process as failed.
func (s *SQLiteStorage) FailInterruptedRuns(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs SET status = ?, completed_at = ?, error = ?
		WHERE status = ?
	`, string(model.RunStatusFailed), time.Now().UTC(), "interrupted", string(model.RunStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Warn("Marked interrupted analysis runs as failed", "count", n)
	}
	return int(n), nil
}

func scanRun(row rowScanner) (*model.AnalysisRun, error) {
	var (
		run          model.AnalysisRun
		status       string
		completedAt  sql.NullTime
		errStr       sql.NullString
		warning      sql.NullString
		generationID sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&status,
		&run.StartedAt,
		&completedAt,
		&errStr,
		&warning,
		&generationID,
		&run.CustomerCount,
	); err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errStr.Valid {
		run.Error = &errStr.String
	}
	if warning.Valid {
		run.Warning = &warning.String
	}
	if generationID.Valid {
		run.GenerationID = &generationID.String
	}
	return &run, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
