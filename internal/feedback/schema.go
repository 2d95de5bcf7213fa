// Package feedback reads and writes the feedback CSV consumed by training.
package feedback

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/model"
)

// Columns is the export order. Training accepts any order.
var Columns = []string{
	IDColumn,
	"timestamp_date",
	"phq2_score",
	"gad2_score",
	"feeling_today",
	"workload_stress",
	"need_most",
	"text_emotion_label",
	"action_suggested",
	"action_taken",
	"helped_score",
	"ml_used",
	"confidence",
}

// RequiredColumns must be present in a training CSV header.
var RequiredColumns = []string{"phq2_score", "gad2_score", "action_suggested", "action_taken", "helped_score"}

// IDColumn is optional. It carries the store id so a re-import skips rows
// already present; training ignores it.
const IDColumn = "id"

// CompletedColumn, when present, marks whether the person finished the action.
const CompletedColumn = "action_completed"

const dateLayout = "2006-01-02"

// SchemaError lists required columns missing from a header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch: missing columns %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return model.ErrSchemaMismatch }

// BuildRow assembles the record stored after someone answers "Did this help?".
// Confidence is kept to four decimals and only when the model made the suggestion.
func BuildRow(c model.CheckInRecord, suggested, taken action.ID, helpLabel string, mlUsed bool, confidence float64, date time.Time) model.FeedbackRecord {
	c.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	r := model.FeedbackRecord{
		CheckInRecord:   c,
		ActionSuggested: suggested,
		ActionTaken:     taken,
		Helped:          model.HelpedScoreFromLabel(helpLabel),
		MLUsed:          mlUsed,
	}
	if mlUsed {
		r.Confidence = math.Round(confidence*1e4) / 1e4
	}
	return r
}
