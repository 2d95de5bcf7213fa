// Package trainer fits the coping action recommender from feedback records.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/artifact"
	"github.com/rcliao/calmcompass/internal/classifier"
	"github.com/rcliao/calmcompass/internal/features"
	"github.com/rcliao/calmcompass/internal/feedback"
	"github.com/rcliao/calmcompass/internal/model"
)

// ErrInsufficientData is returned for an empty batch or fewer than two distinct actions.
var ErrInsufficientData = errors.New("insufficient data")

// MinClassRows is the per-action row count below which training warns.
const MinClassRows = 5

// Options configures a training run.
type Options struct {
	Classifier classifier.Options
	// RecommendedRows is the batch size below which training warns.
	RecommendedRows int
	// ModelVersion overrides the generated version token.
	ModelVersion string
	Now          func() time.Time
}

// DefaultOptions returns the standard training settings.
func DefaultOptions() Options {
	return Options{
		Classifier:      classifier.DefaultOptions(),
		RecommendedRows: 200,
		Now:             time.Now,
	}
}

// Result describes a finished run.
type Result struct {
	Artifact    *artifact.Artifact
	Samples     int
	ClassCounts map[action.ID]int
	Warnings    []string
}

// Trainer runs offline training jobs.
type Trainer struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Trainer. A nil logger discards output.
func New(opts Options, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Trainer{opts: opts, logger: logger}
}

// ReadCSV loads a feedback export and logs what was dropped.
func (t *Trainer) ReadCSV(path string) (*feedback.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	b, err := feedback.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if b.DroppedIncomplete > 0 {
		t.logger.Info("dropped rows with action_completed=0",
			zap.Int("dropped", b.DroppedIncomplete), zap.Int("kept", len(b.Records)))
	}
	if b.DroppedInvalid > 0 {
		t.logger.Warn("dropped invalid rows",
			zap.Int("dropped", b.DroppedInvalid), zap.Strings("problems", b.Problems))
	}
	return b, nil
}

// Train fits encoder and classifier on records. Nothing is written to disk.
func (t *Trainer) Train(ctx context.Context, records []model.FeedbackRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.FeedbackRecord
	for _, r := range records {
		if action.Valid(r.ActionTaken) {
			rows = append(rows, r)
		}
	}
	if dropped := len(records) - len(rows); dropped > 0 {
		t.logger.Warn("skipping records with unknown action_taken", zap.Int("dropped", dropped))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty training batch", ErrInsufficientData)
	}

	counts := map[action.ID]int{}
	for _, r := range rows {
		counts[r.ActionTaken]++
	}
	if len(counts) < 2 {
		return nil, fmt.Errorf("%w: %d distinct action(s), need at least 2", ErrInsufficientData, len(counts))
	}

	ids := make([]action.ID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b action.ID) int { return action.Order(a) - action.Order(b) })
	classOf := make(map[action.ID]int, len(ids))
	for i, id := range ids {
		classOf[id] = i
	}

	res := &Result{Samples: len(rows), ClassCounts: counts}
	if len(rows) < t.opts.RecommendedRows {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("only %d rows; at least %d recommended for a useful model", len(rows), t.opts.RecommendedRows))
	}
	for _, id := range ids {
		if counts[id] < MinClassRows {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("action %s has only %d rows", id, counts[id]))
		}
	}
	for _, w := range res.Warnings {
		t.logger.Warn(w)
	}

	checkIns := make([]model.CheckInRecord, len(rows))
	for i, r := range rows {
		checkIns[i] = r.CheckInRecord
	}
	enc, err := features.Fit(checkIns)
	if err != nil {
		return nil, fmt.Errorf("fit encoder: %w", err)
	}

	X := make([][]float64, len(rows))
	y := make([]int, len(rows))
	w := make([]float64, len(rows))
	for i, r := range rows {
		if X[i], err = enc.Transform(r.CheckInRecord); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		y[i] = classOf[r.ActionTaken]
		w[i] = model.SampleWeight(r.Helped)
	}

	clf, err := classifier.Fit(X, y, w, len(ids), t.opts.Classifier)
	if err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version := t.opts.ModelVersion
	if version == "" {
		version = ulid.Make().String()
	}
	cat := make([]string, len(features.CategoricalFields))
	for i, f := range features.CategoricalFields {
		cat[i] = string(f)
	}

	res.Artifact = &artifact.Artifact{
		Meta: artifact.Meta{
			FormatVersion:       artifact.FormatVersion,
			ModelVersion:        version,
			ActionIDs:           ids,
			FeatureNames:        enc.FeatureNames(),
			NumericFeatures:     slices.Clone(features.NumericFields),
			CategoricalFeatures: cat,
			NSamples:            len(rows),
			TrainedAt:           t.opts.Now().UTC(),
		},
		Pipeline: artifact.Pipeline{
			FormatVersion: artifact.FormatVersion,
			ModelVersion:  version,
			Encoder:       enc,
			Classifier:    clf,
		},
	}

	t.logger.Info("trained coping recommender",
		zap.String("model_version", version),
		zap.Int("samples", len(rows)),
		zap.Int("actions", len(ids)),
		zap.Int("features", enc.Dim()),
		zap.Int("iterations", clf.Iterations))
	return res, nil
}

// TrainAndSave trains and then writes the artifact pair. On any error the
// existing artifact, if any, is left untouched.
func (t *Trainer) TrainAndSave(ctx context.Context, records []model.FeedbackRecord, paths artifact.Paths) (*Result, error) {
	res, err := t.Train(ctx, records)
	if err != nil {
		return nil, err
	}
	if err := artifact.Save(paths, res.Artifact); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	t.logger.Info("saved artifact",
		zap.String("model", paths.Model()),
		zap.String("meta", paths.MetaPath()))
	return res, nil
}
