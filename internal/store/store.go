// Package store persists check-in feedback and the training run registry.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/model"
)

// ErrInvalidFeedback is returned for records that could never be trained on.
var ErrInvalidFeedback = errors.New("invalid feedback")

// FeedbackFilter narrows ListFeedback. Zero values match everything.
type FeedbackFilter struct {
	ActionTaken action.ID
	Source      string // "model" or "rule_based"
	Since       time.Time
	Limit       int
}

// Run is one successful training run.
type Run struct {
	ID           string      `json:"id"`
	ModelVersion string      `json:"model_version"`
	NSamples     int         `json:"n_samples"`
	ActionIDs    []action.ID `json:"action_ids"`
	ArtifactDir  string      `json:"artifact_dir"`
	Source       string      `json:"source"`
	Warnings     []string    `json:"warnings,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Store defines feedback and run persistence.
type Store interface {
	// AddFeedback validates and stores one record, assigning ID and CreatedAt.
	AddFeedback(ctx context.Context, r model.FeedbackRecord) (*model.FeedbackRecord, error)

	// ListFeedback returns records newest first.
	ListFeedback(ctx context.Context, f FeedbackFilter) ([]model.FeedbackRecord, error)

	// ExportAll returns every record oldest first, ready for training.
	ExportAll(ctx context.Context) ([]model.FeedbackRecord, error)

	// Import stores records, skipping IDs already present.
	Import(ctx context.Context, recs []model.FeedbackRecord) (int, error)

	// RecordRun registers a finished training run.
	RecordRun(ctx context.Context, r Run) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Close() error
}
