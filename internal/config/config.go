// Package config loads calmcompass settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/calmcompass/internal/artifact"
	"github.com/rcliao/calmcompass/internal/classifier"
	"github.com/rcliao/calmcompass/internal/trainer"
)

const (
	configPathEnv = "CALMCOMPASS_CONFIG"
	dbPathEnv     = "CALMCOMPASS_DB"
	modelDirEnv   = "CALMCOMPASS_MODEL_DIR"
	addrEnv       = "CALMCOMPASS_ADDR"
	logLevelEnv   = "CALMCOMPASS_LOG_LEVEL"
	disableMLEnv  = "DISABLE_ML"
)

// Config holds every setting the CLI and server need.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Training TrainingConfig `yaml:"training"`
}

// ModelConfig locates the artifact and carries the disable switch.
type ModelConfig struct {
	Dir       string `yaml:"dir"`
	ModelFile string `yaml:"model_file"`
	MetaFile  string `yaml:"meta_file"`
	Disabled  bool   `yaml:"disabled"`
}

// DatabaseConfig points at the SQLite feedback store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// TrainingConfig tunes the classifier fit. C follows the inverse
// regularization strength convention.
type TrainingConfig struct {
	MaxIter         int     `yaml:"max_iter"`
	C               float64 `yaml:"c"`
	Balanced        bool    `yaml:"balanced"`
	Tolerance       float64 `yaml:"tolerance"`
	RecommendedRows int     `yaml:"recommended_rows"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	clf := classifier.DefaultOptions()
	return Config{
		Model: ModelConfig{
			Dir:       "ml",
			ModelFile: artifact.DefaultModelFile,
			MetaFile:  artifact.DefaultMetaFile,
		},
		Database: DatabaseConfig{Path: filepath.Join(home, ".calmcompass", "feedback.db")},
		Server:   ServerConfig{Addr: ":8080"},
		Logging:  LoggingConfig{Level: "info"},
		Training: TrainingConfig{
			MaxIter:         clf.MaxIter,
			C:               clf.C,
			Balanced:        clf.Balanced,
			Tolerance:       clf.Tolerance,
			RecommendedRows: trainer.DefaultOptions().RecommendedRows,
		},
	}
}

// Load reads the YAML file at path (or $CALMCOMPASS_CONFIG when path is
// empty) over the defaults, then applies environment overrides. A missing
// file is only an error when a path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(configPathEnv)
		explicit = path != ""
	}
	if path != "" {
		raw, err := os.ReadFile(expandHome(path))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case explicit:
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Model.Dir = expandHome(cfg.Model.Dir)
	cfg.Database.Path = expandHome(cfg.Database.Path)
	return cfg, cfg.Validate()
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dbPathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(modelDirEnv); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv(addrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if truthy(os.Getenv(disableMLEnv)) {
		c.Model.Disabled = true
	}
}

// Validate rejects settings the trainer or server cannot run with.
func (c Config) Validate() error {
	t := c.Training
	switch {
	case t.MaxIter <= 0:
		return fmt.Errorf("training.max_iter must be positive, got %d", t.MaxIter)
	case t.C <= 0:
		return fmt.Errorf("training.c must be positive, got %v", t.C)
	case t.Tolerance < 0:
		return fmt.Errorf("training.tolerance must not be negative, got %v", t.Tolerance)
	case c.Model.Dir == "":
		return fmt.Errorf("model.dir is required")
	}
	return nil
}

// ArtifactPaths locates the model pair.
func (c Config) ArtifactPaths() artifact.Paths {
	return artifact.Paths{Dir: c.Model.Dir, ModelFile: c.Model.ModelFile, MetaFile: c.Model.MetaFile}
}

// TrainerOptions maps the training section onto trainer options.
func (c Config) TrainerOptions() trainer.Options {
	opts := trainer.DefaultOptions()
	opts.Classifier = classifier.Options{
		MaxIter:   c.Training.MaxIter,
		C:         c.Training.C,
		Balanced:  c.Training.Balanced,
		Tolerance: c.Training.Tolerance,
	}
	opts.RecommendedRows = c.Training.RecommendedRows
	return opts
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
