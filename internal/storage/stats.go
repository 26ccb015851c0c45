package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
)

// UnassignedSegmentName labels customers not in the current segmentation.
const UnassignedSegmentName = "Unassigned"

// DashboardStats summarizes customers, spend and the segment distribution.
// All reads happen in one transaction so the figures agree with each other.
func (s *SQLiteStorage) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	stats := &model.DashboardStats{
		TotalSpend:          decimal.Zero,
		AvgSpendPerCustomer: decimal.Zero,
		SegmentDistribution: []model.SegmentShare{},
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT monthly_spend FROM customers`)
		if err != nil {
			return fmt.Errorf("failed to query customer spend: %w", err)
		}
		for rows.Next() {
			var spend decimal.Decimal
			if err := rows.Scan(&spend); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan spend: %w", err)
			}
			stats.TotalSpend = stats.TotalSpend.Add(spend)
			stats.TotalCustomers++
		}
		if err := rows.Close(); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&stats.TotalTransactions); err != nil {
			return fmt.Errorf("failed to count transactions: %w", err)
		}

		dist, err := tx.QueryContext(ctx, `
			SELECT s.name, COUNT(c.id)
			FROM segments s
			LEFT JOIN customers c ON c.segment_id = s.id
			WHERE s.generation_id = (SELECT generation_id FROM segmentation_state WHERE id = 1)
			GROUP BY s.id
			ORDER BY s.cluster_index
		`)
		if err != nil {
			return fmt.Errorf("failed to query segment distribution: %w", err)
		}
		assigned := 0
		for dist.Next() {
			var share model.SegmentShare
			if err := dist.Scan(&share.Name, &share.Count); err != nil {
				_ = dist.Close()
				return fmt.Errorf("failed to scan segment share: %w", err)
			}
			assigned += share.Count
			stats.SegmentDistribution = append(stats.SegmentDistribution, share)
		}
		if err := dist.Close(); err != nil {
			return err
		}

		if unassigned := stats.TotalCustomers - assigned; unassigned > 0 {
			stats.SegmentDistribution = append(stats.SegmentDistribution, model.SegmentShare{
				Name:  UnassignedSegmentName,
				Count: unassigned,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stats.TotalCustomers > 0 {
		stats.AvgSpendPerCustomer = stats.TotalSpend.Div(decimal.NewFromInt(int64(stats.TotalCustomers))).Round(2)
	}
	return stats, nil
}
