package store

import (
	"context"
	"os"

	"github.com/rcliao/calmcompass/internal/action"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string        `json:"db_path"`
	DBSizeBytes   int64         `json:"db_size_bytes"`
	TotalFeedback int           `json:"total_feedback"`
	ModelServed   int           `json:"model_served"`
	TrainingRuns  int           `json:"training_runs"`
	Actions       []ActionStats `json:"actions"`
}

// ActionStats holds per-action outcome counts.
type ActionStats struct {
	Action     action.ID `json:"action"`
	Count      int       `json:"count"`
	MeanHelped float64   `json:"mean_helped"`
	NotReally  int       `json:"not_really"`
	ALittle    int       `json:"a_little"`
	Yes        int       `json:"yes"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&st.TotalFeedback)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback WHERE ml_used = 1`).Scan(&st.ModelServed)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_runs`).Scan(&st.TrainingRuns)

	rows, err := s.db.QueryContext(ctx, `
		SELECT action_taken, COUNT(*) AS cnt, AVG(helped_score),
		       SUM(helped_score = 0), SUM(helped_score = 1), SUM(helped_score = 2)
		FROM feedback
		GROUP BY action_taken ORDER BY cnt DESC, action_taken`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var a ActionStats
		var id string
		if err := rows.Scan(&id, &a.Count, &a.MeanHelped, &a.NotReally, &a.ALittle, &a.Yes); err != nil {
			return st, err
		}
		a.Action = action.ID(id)
		st.Actions = append(st.Actions, a)
	}
	return st, rows.Err()
}
