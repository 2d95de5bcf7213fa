// Package model defines the check-in, feedback and inference data types.
package model

import (
	"errors"
	"time"

	"github.com/rcliao/calmcompass/internal/action"
)

// Score bounds shared by PHQ-2 and GAD-2.
const (
	MinScore = 0
	MaxScore = 6
)

// ErrSchemaMismatch reports input that does not fit the expected columns or feature layout.
var ErrSchemaMismatch = errors.New("schema mismatch")

// CheckInRecord is one screening observation with its context.
// A nil score means the person chose not to answer that scale.
type CheckInRecord struct {
	Date             time.Time `json:"date"`
	PHQ2             *int      `json:"phq2_score"`
	GAD2             *int      `json:"gad2_score"`
	FeelingToday     string    `json:"feeling_today,omitempty"`
	WorkloadStress   string    `json:"workload_stress,omitempty"`
	NeedMost         string    `json:"need_most,omitempty"`
	TextEmotionLabel string    `json:"text_emotion_label,omitempty"`
}

// FeedbackRecord is a check-in plus what was suggested, what was done and whether it helped.
type FeedbackRecord struct {
	ID string `json:"id,omitempty"`
	CheckInRecord
	ActionSuggested action.ID   `json:"action_suggested"`
	ActionTaken     action.ID   `json:"action_taken"`
	Helped          HelpedScore `json:"helped_score"`
	MLUsed          bool        `json:"ml_used"`
	Confidence      float64     `json:"confidence,omitempty"`
	CreatedAt       time.Time   `json:"created_at,omitempty"`
}

// Score returns a pointer to v for populating optional score fields.
func Score(v int) *int {
	return &v
}

// ClipScore bounds v to the valid score range.
func ClipScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
