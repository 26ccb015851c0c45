package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
)

const segmentColumns = `
	id, generation_id, cluster_index, category, name, description,
	customer_count, characteristics, centroid`

// ReplaceSegmentation commits a new generation in one SQL transaction: the
// generation and its segments are inserted, every customer's derived fields
// and segment reference are overwritten, the current pointer is swapped and
// the previous generation's segments are deleted. On any failure nothing
// changes and readers keep seeing the prior generation.
func (s *SQLiteStorage) ReplaceSegmentation(
	ctx context.Context,
	gen *model.Generation,
	segments []model.Segment,
	updates []model.CustomerUpdate,
) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGeneration(gen, segments); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO generations (id, created_at, k, iterations, converged, inertia, customer_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, gen.ID, gen.CreatedAt.UTC(), gen.K, gen.Iterations, gen.Converged, gen.Inertia, gen.CustomerCount); err != nil {
			return fmt.Errorf("failed to insert generation: %w", err)
		}

		if err := insertSegments(ctx, tx, gen.ID, segments); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE customers SET segment_id = NULL`); err != nil {
			return fmt.Errorf("failed to clear segment references: %w", err)
		}
		if err := updateCustomers(ctx, tx, updates); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO segmentation_state (id, generation_id, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET generation_id = excluded.generation_id, updated_at = excluded.updated_at
		`, gen.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to swap current generation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE generation_id != ?`, gen.ID); err != nil {
			return fmt.Errorf("failed to delete previous segments: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Committed segmentation generation",
		"generation_id", gen.ID,
		"segments", len(segments),
		"customers", len(updates))
	return nil
}

func insertSegments(ctx context.Context, tx *sql.Tx, generationID string, segments []model.Segment) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (`+segmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, seg := range segments {
		characteristics, err := json.Marshal(seg.Characteristics)
		if err != nil {
			return fmt.Errorf("failed to encode characteristics: %w", err)
		}
		centroid, err := json.Marshal(seg.Centroid)
		if err != nil {
			return fmt.Errorf("failed to encode centroid: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			seg.ID,
			generationID,
			seg.ClusterIndex,
			string(seg.Category),
			seg.Name,
			seg.Description,
			seg.CustomerCount,
			string(characteristics),
			string(centroid),
		); err != nil {
			return fmt.Errorf("failed to insert segment %d: %w", seg.ClusterIndex, err)
		}
	}
	return nil
}

func updateCustomers(ctx context.Context, tx *sql.Tx, updates []model.CustomerUpdate) error {
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE customers SET
			segment_id = ?,
			monthly_spend = ?,
			total_transactions = ?,
			international_ratio = ?,
			avg_transaction_value = ?,
			top_merchant_category = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare customer update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range updates {
		var segmentID sql.NullString
		if u.Stats.SegmentID != "" {
			segmentID = sql.NullString{String: u.Stats.SegmentID, Valid: true}
		}

		res, err := stmt.ExecContext(ctx,
			segmentID,
			u.Stats.MonthlySpend.String(),
			u.Stats.TotalTransactions,
			u.Stats.InternationalRatio,
			u.Stats.AvgTransactionValue.String(),
			u.Stats.TopMerchantCategory,
			u.CustomerID,
		)
		if err != nil {
			return fmt.Errorf("failed to update customer %s: %w", u.CustomerID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("customer %s: %w", u.CustomerID, common.ErrNotFound)
		}
	}
	return nil
}

// CurrentGeneration returns the generation readers currently see.
func (s *SQLiteStorage) CurrentGeneration(ctx context.Context) (*model.Generation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var gen model.Generation
	err := s.db.QueryRowContext(ctx, `
		SELECT g.id, g.created_at, g.k, g.iterations, g.converged, g.inertia, g.customer_count
		FROM segmentation_state st
		JOIN generations g ON g.id = st.generation_id
		WHERE st.id = 1
	`).Scan(&gen.ID, &gen.CreatedAt, &gen.K, &gen.Iterations, &gen.Converged, &gen.Inertia, &gen.CustomerCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("current generation: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current generation: %w", err)
	}
	return &gen, nil
}

// ListSegments returns the current generation's segments by cluster index.
// Before any analysis has committed the list is empty.
func (s *SQLiteStorage) ListSegments(ctx context.Context) ([]model.Segment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listSegmentsTx(ctx, s.db)
}

func (s *SQLiteStorage) listSegmentsTx(ctx context.Context, q queryable) ([]model.Segment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+segmentColumns+`
		FROM segments
		WHERE generation_id = (SELECT generation_id FROM segmentation_state WHERE id = 1)
		ORDER BY cluster_index
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	segments := []model.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *seg)
	}
	return segments, rows.Err()
}

// GetSegment retrieves a segment of the current generation by ID.
func (s *SQLiteStorage) GetSegment(ctx context.Context, id string) (*model.Segment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return seg, nil
}

func scanSegment(row rowScanner) (*model.Segment, error) {
	var (
		seg             model.Segment
		category        string
		characteristics string
		centroid        string
	)
	if err := row.Scan(
		&seg.ID,
		&seg.GenerationID,
		&seg.ClusterIndex,
		&category,
		&seg.Name,
		&seg.Description,
		&seg.CustomerCount,
		&characteristics,
		&centroid,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan segment: %w", err)
	}

	parsed, err := model.ParseSegmentCategory(category)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w: %w", seg.ID, common.ErrDatabaseCorrupted, err)
	}
	seg.Category = parsed

	if err := json.Unmarshal([]byte(characteristics), &seg.Characteristics); err != nil {
		return nil, fmt.Errorf("segment %s characteristics: %w", seg.ID, err)
	}
	if err := json.Unmarshal([]byte(centroid), &seg.Centroid); err != nil {
		return nil, fmt.Errorf("segment %s centroid: %w", seg.ID, err)
	}
	return &seg, nil
}
