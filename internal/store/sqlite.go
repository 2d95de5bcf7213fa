package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/model"
)

const dateLayout = "2006-01-02"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var feedbackColumns = []string{
	"id", "checkin_date", "phq2_score", "gad2_score",
	"feeling_today", "workload_stress", "need_most", "text_emotion_label",
	"action_suggested", "action_taken", "helped_score", "ml_used", "confidence", "created_at",
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func newID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id                 TEXT PRIMARY KEY,
		checkin_date       TEXT,
		phq2_score         INTEGER,
		gad2_score         INTEGER,
		feeling_today      TEXT NOT NULL DEFAULT '',
		workload_stress    TEXT NOT NULL DEFAULT '',
		need_most          TEXT NOT NULL DEFAULT '',
		text_emotion_label TEXT NOT NULL DEFAULT '',
		action_suggested   TEXT NOT NULL DEFAULT '',
		action_taken       TEXT NOT NULL,
		helped_score       INTEGER NOT NULL,
		ml_used            INTEGER NOT NULL DEFAULT 0,
		confidence         REAL,
		created_at         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_feedback_action ON feedback(action_taken);

	CREATE TABLE IF NOT EXISTS training_runs (
		id            TEXT PRIMARY KEY,
		model_version TEXT NOT NULL,
		n_samples     INTEGER NOT NULL,
		action_ids    TEXT NOT NULL,
		artifact_dir  TEXT NOT NULL,
		source        TEXT NOT NULL DEFAULT '',
		warnings      TEXT,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON training_runs(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func validateFeedback(r model.FeedbackRecord) error {
	if !action.Valid(r.ActionTaken) {
		return fmt.Errorf("%w: action_taken %q", ErrInvalidFeedback, r.ActionTaken)
	}
	if r.ActionSuggested != "" && !action.Valid(r.ActionSuggested) {
		return fmt.Errorf("%w: action_suggested %q", ErrInvalidFeedback, r.ActionSuggested)
	}
	if !r.Helped.Valid() {
		return fmt.Errorf("%w: helped_score %d", ErrInvalidFeedback, r.Helped)
	}
	for name, p := range map[string]*int{"phq2_score": r.PHQ2, "gad2_score": r.GAD2} {
		if p != nil && (*p < model.MinScore || *p > model.MaxScore) {
			return fmt.Errorf("%w: %s %d out of range", ErrInvalidFeedback, name, *p)
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v", ErrInvalidFeedback, r.Confidence)
	}
	return nil
}

func (s *SQLiteStore) AddFeedback(ctx context.Context, r model.FeedbackRecord) (*model.FeedbackRecord, error) {
	if err := validateFeedback(r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if !r.MLUsed {
		r.Confidence = 0
	}

	query, args, err := insertFeedback(r, false).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	return &r, nil
}

func insertFeedback(r model.FeedbackRecord, ignoreDup bool) sq.InsertBuilder {
	var date, conf any
	if !r.Date.IsZero() {
		date = r.Date.Format(dateLayout)
	}
	if r.MLUsed {
		conf = r.Confidence
	}
	b := sq.Insert("feedback")
	if ignoreDup {
		b = b.Options("OR IGNORE")
	}
	return b.Columns(feedbackColumns...).Values(
		r.ID, date, r.PHQ2, r.GAD2,
		r.FeelingToday, r.WorkloadStress, r.NeedMost, r.TextEmotionLabel,
		string(r.ActionSuggested), string(r.ActionTaken), int(r.Helped), r.MLUsed, conf,
		r.CreatedAt.UTC().Format(timeLayout),
	)
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, f FeedbackFilter) ([]model.FeedbackRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	q := sq.Select(feedbackColumns...).From("feedback")
	if f.ActionTaken != "" {
		q = q.Where(sq.Eq{"action_taken": string(f.ActionTaken)})
	}
	switch model.Source(f.Source) {
	case model.SourceModel:
		q = q.Where(sq.Eq{"ml_used": 1})
	case model.SourceRuleBased:
		q = q.Where(sq.Eq{"ml_used": 0})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": f.Since.UTC().Format(timeLayout)})
	}
	q = q.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit))
	return s.queryFeedback(ctx, q)
}

func (s *SQLiteStore) queryFeedback(ctx context.Context, q sq.SelectBuilder) ([]model.FeedbackRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.FeedbackRecord
	for rows.Next() {
		r, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, r Run) (*Run, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	ids, err := json.Marshal(r.ActionIDs)
	if err != nil {
		return nil, err
	}
	var warnings *string
	if len(r.Warnings) > 0 {
		b, _ := json.Marshal(r.Warnings)
		w := string(b)
		warnings = &w
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, model_version, n_samples, action_ids, artifact_dir, source, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ModelVersion, r.NSamples, string(ids), r.ArtifactDir, r.Source, warnings,
		r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model_version, n_samples, action_ids, artifact_dir, source, warnings, created_at
		 FROM training_runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ids, createdAt string
		var warnings sql.NullString
		if err := rows.Scan(&r.ID, &r.ModelVersion, &r.NSamples, &ids, &r.ArtifactDir, &r.Source, &warnings, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(ids), &r.ActionIDs)
		if warnings.Valid {
			json.Unmarshal([]byte(warnings.String), &r.Warnings)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(row scanner) (model.FeedbackRecord, error) {
	var r model.FeedbackRecord
	var date sql.NullString
	var phq, gad sql.NullInt64
	var conf sql.NullFloat64
	var suggested, taken, createdAt string
	var helped int

	err := row.Scan(
		&r.ID, &date, &phq, &gad,
		&r.FeelingToday, &r.WorkloadStress, &r.NeedMost, &r.TextEmotionLabel,
		&suggested, &taken, &helped, &r.MLUsed, &conf, &createdAt,
	)
	if err != nil {
		return r, err
	}

	if date.Valid {
		r.Date, _ = time.Parse(dateLayout, date.String)
	}
	if phq.Valid {
		r.PHQ2 = model.Score(int(phq.Int64))
	}
	if gad.Valid {
		r.GAD2 = model.Score(int(gad.Int64))
	}
	if conf.Valid {
		r.Confidence = conf.Float64
	}
	r.ActionSuggested = action.ID(suggested)
	r.ActionTaken = action.ID(taken)
	r.Helped = model.HelpedScore(helped)
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return r, nil
}
