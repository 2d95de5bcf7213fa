package model

import "github.com/rcliao/calmcompass/internal/action"

// Source says which path produced a recommendation.
type Source string

const (
	SourceModel     Source = "model"
	SourceRuleBased Source = "rule_based"
)

// Reasons attached to rule-based results.
const (
	ReasonDisabled       = "disabled"
	ReasonUnavailable    = "artifact_unavailable"
	ReasonSchemaMismatch = "schema_mismatch"
	ReasonLowConfidence  = "low_confidence"
)

// InferenceResult is the per-request outcome. RecommendedAction is empty
// when the gate defers and the caller has not yet applied the fallback.
type InferenceResult struct {
	RecommendedAction action.ID `json:"recommended_action"`
	Confidence        float64   `json:"confidence"`
	Source            Source    `json:"source"`
	ModelVersion      string    `json:"model_version,omitempty"`
	Reason            string    `json:"reason,omitempty"`
}

// HasAction reports whether an action has been chosen.
func (r InferenceResult) HasAction() bool {
	return r.RecommendedAction != ""
}
