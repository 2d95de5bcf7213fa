package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rcliao/calmcompass/internal/model"
)

// ExportAll returns every stored record, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.FeedbackRecord, error) {
	q := sq.Select(feedbackColumns...).From("feedback").OrderBy("created_at", "id")
	return s.queryFeedback(ctx, q)
}

// Import stores records from an export in one transaction. Records whose ID
// already exists are skipped; records without an ID get a fresh one.
func (s *SQLiteStore) Import(ctx context.Context, recs []model.FeedbackRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	imported := 0
	for i, r := range recs {
		if err := validateFeedback(r); err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		if r.ID == "" {
			r.ID = newID()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = r.Date
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		query, args, err := insertFeedback(r, true).ToSql()
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert record %d: %w", i+1, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}
