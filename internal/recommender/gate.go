// Package recommender serves coping action recommendations: a confidence
// gated model path backed by the deterministic rules fallback.
package recommender

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/artifact"
	"github.com/rcliao/calmcompass/internal/classifier"
	"github.com/rcliao/calmcompass/internal/model"
)

// MinConfidence is the probability at or above which the model's arg-max
// action is returned as-is. It is not configurable.
const MinConfidence = 0.35

// Gate runs the classifier for a check-in and decides whether its answer is
// trusted. The artifact is loaded at most once, on first use, and shared
// read-only by every caller afterwards.
type Gate struct {
	loader    artifact.Loader
	disabled  bool
	threshold float64
	logger    *zap.Logger

	once    sync.Once
	art     *artifact.Artifact
	loadErr error
}

// NewGate creates a gate. When disabled is set the loader is never called.
func NewGate(loader artifact.Loader, disabled bool, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{loader: loader, disabled: disabled, threshold: MinConfidence, logger: logger}
}

func (g *Gate) load() (*artifact.Artifact, error) {
	g.once.Do(func() {
		start := time.Now()
		g.art, g.loadErr = g.loader.Load()
		if g.loadErr != nil {
			g.logger.Warn("model artifact unavailable, serving rule-based suggestions",
				zap.Error(g.loadErr))
			return
		}
		g.logger.Info("model artifact loaded",
			zap.String("model_version", g.art.Meta.ModelVersion),
			zap.Int("actions", len(g.art.Meta.ActionIDs)),
			zap.Int("features", len(g.art.Meta.FeatureNames)),
			zap.Duration("took", time.Since(start)))
	})
	return g.art, g.loadErr
}

// Infer returns the model's answer for rec, or a rule_based result with no
// action when the model is disabled, unavailable, misaligned or unconfident.
func (g *Gate) Infer(rec model.CheckInRecord) model.InferenceResult {
	if g.disabled {
		return deferred(model.ReasonDisabled, 0, "")
	}
	a, err := g.load()
	if err != nil {
		return deferred(model.ReasonUnavailable, 0, "")
	}
	version := a.Meta.ModelVersion

	x, err := a.Pipeline.Encoder.Transform(rec)
	if err != nil || len(x) != len(a.Meta.FeatureNames) {
		g.logger.Warn("feature vector does not match artifact layout",
			zap.String("model_version", version),
			zap.Int("encoded", len(x)),
			zap.Int("expected", len(a.Meta.FeatureNames)),
			zap.Error(err))
		return deferred(model.ReasonSchemaMismatch, 0, version)
	}
	p, err := a.Pipeline.Classifier.PredictProba(x)
	if err != nil || len(p) != len(a.Meta.ActionIDs) {
		g.logger.Warn("classifier rejected input", zap.String("model_version", version), zap.Error(err))
		return deferred(model.ReasonSchemaMismatch, 0, version)
	}

	idx, conf := classifier.ArgMax(p)
	if conf >= g.threshold {
		return model.InferenceResult{
			RecommendedAction: a.Meta.ActionIDs[idx],
			Confidence:        conf,
			Source:            model.SourceModel,
			ModelVersion:      version,
		}
	}
	return deferred(model.ReasonLowConfidence, conf, version)
}

func deferred(reason string, conf float64, version string) model.InferenceResult {
	return model.InferenceResult{
		Confidence:   conf,
		Source:       model.SourceRuleBased,
		ModelVersion: version,
		Reason:       reason,
	}
}

// Version returns the loaded MODEL_VERSION, or "" when no model is served.
func (g *Gate) Version() string {
	if g.disabled {
		return ""
	}
	a, err := g.load()
	if err != nil {
		return ""
	}
	return a.Meta.ModelVersion
}

// Status summarizes the served model.
type Status struct {
	Enabled      bool        `json:"enabled"`
	Loaded       bool        `json:"loaded"`
	ModelVersion string      `json:"model_version,omitempty"`
	ActionIDs    []action.ID `json:"action_ids,omitempty"`
	FeatureNames []string    `json:"feature_names,omitempty"`
	NSamples     int         `json:"n_samples,omitempty"`
	TrainedAt    *time.Time  `json:"trained_at,omitempty"`
	Threshold    float64     `json:"confidence_threshold"`
	Error        string      `json:"error,omitempty"`
}

// Status reports what the gate is serving, loading the artifact if needed.
func (g *Gate) Status() Status {
	s := Status{Enabled: !g.disabled, Threshold: g.threshold}
	if g.disabled {
		return s
	}
	a, err := g.load()
	if err != nil {
		s.Error = err.Error()
		return s
	}
	trained := a.Meta.TrainedAt
	s.Loaded = true
	s.ModelVersion = a.Meta.ModelVersion
	s.ActionIDs = a.Meta.ActionIDs
	s.FeatureNames = a.Meta.FeatureNames
	s.NSamples = a.Meta.NSamples
	s.TrainedAt = &trained
	return s
}
