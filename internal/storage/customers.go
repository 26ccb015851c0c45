package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
)

// CustomerFilter narrows ListCustomers.
type CustomerFilter struct {
	SegmentID string
	Limit     int
	Offset    int
}

const customerColumns = `
	id, company_name, monthly_spend, total_transactions, international_ratio,
	reported_timeliness, avg_transaction_value, top_merchant_category,
	segment_id, created_at`

// SaveCustomers inserts customers or refreshes existing ones. Segment
// references are left alone; only an analysis commit changes them.
func (s *SQLiteStorage) SaveCustomers(ctx context.Context, customers []model.Customer) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(customers) == 0 {
		return nil
	}
	for i := range customers {
		if err := validateCustomer(&customers[i]); err != nil {
			return fmt.Errorf("customer at index %d: %w", i, err)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO customers (
				id, company_name, monthly_spend, total_transactions, international_ratio,
				reported_timeliness, avg_transaction_value, top_merchant_category, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				company_name = excluded.company_name,
				monthly_spend = excluded.monthly_spend,
				total_transactions = excluded.total_transactions,
				international_ratio = excluded.international_ratio,
				reported_timeliness = excluded.reported_timeliness,
				avg_transaction_value = excluded.avg_transaction_value,
				top_merchant_category = excluded.top_merchant_category
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := time.Now().UTC()
		for _, c := range customers {
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}

			var reported sql.NullFloat64
			if c.ReportedTimeliness != nil {
				reported = sql.NullFloat64{Float64: *c.ReportedTimeliness, Valid: true}
			}

			if _, err := stmt.ExecContext(ctx,
				c.ID,
				c.CompanyName,
				c.MonthlySpend.String(),
				c.TotalTransactions,
				c.InternationalRatio,
				reported,
				c.AvgTransactionValue.String(),
				c.TopMerchantCategory,
				createdAt.UTC(),
			); err != nil {
				return fmt.Errorf("failed to save customer %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// GetCustomer retrieves a customer by ID.
func (s *SQLiteStorage) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns customers ordered by company name.
func (s *SQLiteStorage) ListCustomers(ctx context.Context, filter CustomerFilter) ([]model.Customer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.SegmentID != "" {
		where = append(where, "segment_id = ?")
		args = append(args, filter.SegmentID)
	}

	query := `SELECT ` + customerColumns + ` FROM customers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY company_name, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	customers := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// CustomerIDs returns the set of known customer IDs.
func (s *SQLiteStorage) CustomerIDs(ctx context.Context) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM customers`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan customer id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ResetData deletes every customer, transaction and segmentation generation.
// Run history is kept.
func (s *SQLiteStorage) ResetData(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"transactions", "customers", "segmentation_state", "segments", "generations"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*model.Customer, error) {
	var (
		c         model.Customer
		reported  sql.NullFloat64
		segmentID sql.NullString
	)
	if err := row.Scan(
		&c.ID,
		&c.CompanyName,
		&c.MonthlySpend,
		&c.TotalTransactions,
		&c.InternationalRatio,
		&reported,
		&c.AvgTransactionValue,
		&c.TopMerchantCategory,
		&segmentID,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}

	if reported.Valid {
		c.ReportedTimeliness = &reported.Float64
	}
	if segmentID.Valid {
		c.SegmentID = &segmentID.String
	}
	return &c, nil
}
