package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
)

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	CustomerID string
	Limit      int
}

const transactionColumns = `
	id, customer_id, hash, date, merchant_name, merchant_category,
	amount, international, paid_on_time`

// SaveTransactions inserts transactions, skipping any whose hash is already
// stored. It returns how many rows were inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, nil
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return 0, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, customer_id, hash, date, merchant_name, merchant_category,
				amount, international, paid_on_time
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, txn := range transactions {
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}

			var paid sql.NullBool
			if txn.PaidOnTime != nil {
				paid = sql.NullBool{Bool: *txn.PaidOnTime, Valid: true}
			}

			res, err := stmt.ExecContext(ctx,
				txn.ID,
				txn.CustomerID,
				txn.Hash,
				txn.Date.UTC(),
				txn.MerchantName,
				txn.MerchantCategory,
				txn.Amount.String(),
				txn.International,
				paid,
			)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListTransactions returns transactions newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryTransactions(ctx, s.db, query, args...)
}

// GetTransactionsForCustomer returns one customer's transactions oldest first.
func (s *SQLiteStorage) GetTransactionsForCustomer(ctx context.Context, customerID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(customerID, "customerID"); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx, s.db,
		`SELECT `+transactionColumns+` FROM transactions WHERE customer_id = ? ORDER BY date, id`, customerID)
}

// TransactionsByCustomer loads every transaction grouped by customer.
func (s *SQLiteStorage) TransactionsByCustomer(ctx context.Context) (map[string][]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	txns, err := s.queryTransactions(ctx, s.db,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY customer_id, date, id`)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]model.Transaction)
	for _, txn := range txns {
		grouped[txn.CustomerID] = append(grouped[txn.CustomerID], txn)
	}
	return grouped, nil
}

// CountTransactions returns the number of stored transactions.
func (s *SQLiteStorage) CountTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	txns := []model.Transaction{}
	for rows.Next() {
		var (
			txn  model.Transaction
			paid sql.NullBool
		)
		if err := rows.Scan(
			&txn.ID,
			&txn.CustomerID,
			&txn.Hash,
			&txn.Date,
			&txn.MerchantName,
			&txn.MerchantCategory,
			&txn.Amount,
			&txn.International,
			&paid,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if paid.Valid {
			txn.PaidOnTime = &paid.Bool
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
