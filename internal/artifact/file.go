package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Save writes the pipeline and metadata. Both files are staged next to
// their targets and renamed into place only after both are fully written;
// the pipeline digest recorded in the metadata lets Load reject a
// half-replaced pair.
func Save(p Paths, a *Artifact) error {
	pipe, err := json.Marshal(a.Pipeline)
	if err != nil {
		return fmt.Errorf("marshal pipeline: %w", err)
	}
	sum := sha256.Sum256(pipe)
	a.Meta.PipelineSHA256 = hex.EncodeToString(sum[:])

	meta, err := json.MarshalIndent(a.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid artifact: %w", err)
	}
	if err := validateMetaJSON(meta); err != nil {
		return fmt.Errorf("refusing to save invalid metadata: %w", err)
	}

	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	pipeTmp, err := stage(p.Dir, ".tmp_model_*.json", pipe)
	if err != nil {
		return fmt.Errorf("stage pipeline: %w", err)
	}
	defer func() { _ = os.Remove(pipeTmp) }()
	metaTmp, err := stage(p.Dir, ".tmp_meta_*.json", meta)
	if err != nil {
		return fmt.Errorf("stage meta: %w", err)
	}
	defer func() { _ = os.Remove(metaTmp) }()

	if err := os.Rename(pipeTmp, p.Model()); err != nil {
		return fmt.Errorf("install pipeline: %w", err)
	}
	if err := os.Rename(metaTmp, p.MetaPath()); err != nil {
		return fmt.Errorf("install meta: %w", err)
	}
	return nil
}

func stage(dir, pattern string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return name, err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return name, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return name, err
	}
	return name, tmp.Close()
}

// Load reads and validates an artifact. Every failure wraps ErrUnavailable.
func Load(p Paths) (*Artifact, error) {
	pipe, err := os.ReadFile(p.Model())
	if err != nil {
		return nil, unavailable("read pipeline", err)
	}
	meta, err := os.ReadFile(p.MetaPath())
	if err != nil {
		return nil, unavailable("read meta", err)
	}
	if err := validateMetaJSON(meta); err != nil {
		return nil, unavailable("meta", err)
	}

	a := &Artifact{}
	if err := json.Unmarshal(meta, &a.Meta); err != nil {
		return nil, unavailable("decode meta", err)
	}
	sum := sha256.Sum256(pipe)
	if hex.EncodeToString(sum[:]) != a.Meta.PipelineSHA256 {
		return nil, unavailable("pair", errors.New("pipeline digest does not match metadata"))
	}
	if err := json.Unmarshal(pipe, &a.Pipeline); err != nil {
		return nil, unavailable("decode pipeline", err)
	}
	if err := a.Validate(); err != nil {
		return nil, unavailable("validate", err)
	}
	return a, nil
}

// Exists reports whether either file of the pair is present.
func Exists(p Paths) bool {
	for _, f := range []string{p.Model(), p.MetaPath()} {
		if _, err := os.Stat(f); err == nil || !errors.Is(err, fs.ErrNotExist) {
			return true
		}
	}
	return false
}

func unavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, what, err)
}

// Loader produces an artifact on demand.
type Loader interface {
	Load() (*Artifact, error)
}

// FileLoader loads from disk.
type FileLoader struct {
	Paths Paths
}

func (l FileLoader) Load() (*Artifact, error) {
	return Load(l.Paths)
}
