// Package artifact persists and loads the trained recommender: a pipeline
// file (encoder + classifier) and a metadata descriptor written as a pair.
package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/classifier"
	"github.com/rcliao/calmcompass/internal/features"
)

// FormatVersion is the on-disk layout this build reads and writes.
const FormatVersion = 1

const (
	DefaultModelFile = "coping_action_model.json"
	DefaultMetaFile  = "coping_action_meta.json"
)

// ErrUnavailable covers every reason an artifact cannot be served:
// missing files, corrupt data, incompatible version, mismatched pair.
var ErrUnavailable = errors.New("model artifact unavailable")

// Pipeline is the fitted encoder and classifier.
type Pipeline struct {
	FormatVersion int               `json:"format_version"`
	ModelVersion  string            `json:"model_version"`
	Encoder       *features.Encoder `json:"encoder"`
	Classifier    *classifier.Model `json:"classifier"`
}

// Meta describes a pipeline. ActionIDs order defines class indices.
type Meta struct {
	FormatVersion       int         `json:"format_version" jsonschema:"minimum=1"`
	ModelVersion        string      `json:"MODEL_VERSION" jsonschema:"minLength=1"`
	ActionIDs           []action.ID `json:"action_ids" jsonschema:"minItems=2"`
	FeatureNames        []string    `json:"feature_names" jsonschema:"minItems=1"`
	NumericFeatures     []string    `json:"numeric_features"`
	CategoricalFeatures []string    `json:"categorical_features"`
	NSamples            int         `json:"n_samples" jsonschema:"minimum=0"`
	TrainedAt           time.Time   `json:"trained_at"`
	PipelineSHA256      string      `json:"pipeline_sha256" jsonschema:"pattern=^[0-9a-f]{64}$"`
}

// Artifact is a loaded, validated pair. Read-only once returned by Load.
type Artifact struct {
	Meta     Meta
	Pipeline Pipeline
}

// Paths locates the two files of an artifact.
type Paths struct {
	Dir       string
	ModelFile string
	MetaFile  string
}

// DefaultPaths returns the standard file names inside dir.
func DefaultPaths(dir string) Paths {
	return Paths{Dir: dir, ModelFile: DefaultModelFile, MetaFile: DefaultMetaFile}
}

// Model is the full path of the pipeline file.
func (p Paths) Model() string {
	return filepath.Join(p.Dir, orDefault(p.ModelFile, DefaultModelFile))
}

// MetaPath is the full path of the metadata file.
func (p Paths) MetaPath() string {
	return filepath.Join(p.Dir, orDefault(p.MetaFile, DefaultMetaFile))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Validate cross-checks metadata against the pipeline.
func (a *Artifact) Validate() error {
	m, p := a.Meta, a.Pipeline
	if m.FormatVersion != FormatVersion || p.FormatVersion != FormatVersion {
		return fmt.Errorf("format version meta=%d pipeline=%d, want %d", m.FormatVersion, p.FormatVersion, FormatVersion)
	}
	if m.ModelVersion == "" || m.ModelVersion != p.ModelVersion {
		return fmt.Errorf("model version meta=%q pipeline=%q", m.ModelVersion, p.ModelVersion)
	}
	if p.Encoder == nil || p.Classifier == nil {
		return errors.New("pipeline is missing encoder or classifier")
	}
	if err := p.Encoder.Validate(); err != nil {
		return err
	}
	if err := p.Classifier.Validate(); err != nil {
		return err
	}
	if len(m.ActionIDs) != p.Classifier.Classes {
		return fmt.Errorf("%d action ids for %d classes", len(m.ActionIDs), p.Classifier.Classes)
	}
	seen := map[action.ID]bool{}
	for _, id := range m.ActionIDs {
		if !action.Valid(id) {
			return fmt.Errorf("unknown action %q in metadata", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate action %q in metadata", id)
		}
		seen[id] = true
	}
	if len(m.FeatureNames) != p.Classifier.Features {
		return fmt.Errorf("%d feature names for a classifier of width %d", len(m.FeatureNames), p.Classifier.Features)
	}
	if !slices.Equal(m.FeatureNames, p.Encoder.FeatureNames()) {
		return errors.New("feature names do not match the encoder layout")
	}
	return nil
}
