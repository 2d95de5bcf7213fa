package recommender

import (
	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/model"
	"github.com/rcliao/calmcompass/internal/rules"
)

// Inferer is the model path consulted before the fallback.
type Inferer interface {
	Infer(rec model.CheckInRecord) model.InferenceResult
}

// Recommender always resolves an action.
type Recommender struct {
	gate   Inferer
	logger *zap.Logger
}

// New creates a Recommender around gate.
func New(gate Inferer, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{gate: gate, logger: logger}
}

// Recommend returns the model's action when trusted, otherwise the rules
// suggestion tagged rule_based.
func (r *Recommender) Recommend(rec model.CheckInRecord) model.InferenceResult {
	res := r.gate.Infer(rec)
	if !res.HasAction() {
		res.RecommendedAction = rules.Suggest(rec)
		res.Source = model.SourceRuleBased
	}
	r.logger.Debug("recommendation",
		zap.String("action", string(res.RecommendedAction)),
		zap.String("source", string(res.Source)),
		zap.Float64("confidence", res.Confidence),
		zap.String("model_version", res.ModelVersion),
		zap.String("reason", res.Reason))
	return res
}
