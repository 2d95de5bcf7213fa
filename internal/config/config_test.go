package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/calmcompass/internal/artifact"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{configPathEnv, dbPathEnv, modelDirEnv, addrEnv, logLevelEnv, disableMLEnv} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ml", cfg.Model.Dir)
	assert.False(t, cfg.Model.Disabled)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 200, cfg.Training.RecommendedRows)
	assert.True(t, cfg.Training.Balanced)
	assert.Equal(t, artifact.DefaultModelFile, cfg.ArtifactPaths().ModelFile)
}

func TestLoadFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "calm.yaml")
	raw := `
model:
  dir: /srv/models
server:
  addr: "127.0.0.1:9000"
training:
  c: 0.5
  max_iter: 300
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/models", cfg.Model.Dir)
	assert.Equal(t, artifact.DefaultMetaFile, cfg.Model.MetaFile)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	opts := cfg.TrainerOptions()
	assert.Equal(t, 0.5, opts.Classifier.C)
	assert.Equal(t, 300, opts.Classifier.MaxIter)
	assert.True(t, opts.Classifier.Balanced)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "calm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /from/file.db\n"), 0o644))
	t.Setenv(configPathEnv, path)
	t.Setenv(dbPathEnv, "/from/env.db")
	t.Setenv(disableMLEnv, "1")
	t.Setenv(logLevelEnv, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.Database.Path)
	assert.True(t, cfg.Model.Disabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDisableFlagValues(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, truthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "off", "nope"} {
		assert.False(t, truthy(v), v)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("training:\n  c: -1\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	garbled := filepath.Join(t.TempDir(), "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("model: [unclosed"), 0o644))
	_, err = Load(garbled)
	assert.Error(t, err)
}

func TestMissingEnvConfigFileIsAnError(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "gone.yaml"))
	_, err := Load("")
	assert.Error(t, err)
}
