package deployment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// ReadManifest reads the ingestion manifest of the production directory.
func ReadManifest(prodDir string) (models.Manifest, error) {
	path := filepath.Join(prodDir, models.ManifestFile)
	manifest, err := models.ReadManifest(path)
	if err != nil {
		return nil, &utils.MissingStateError{Artifact: "ingestion manifest", Path: path, Err: err}
	}
	return manifest, nil
}

// LoadState inspects the production directory. Manifest and score are
// required; the model decides between Undeployed and Deployed.
func LoadState(prodDir string) (models.ProductionState, error) {
	manifest, err := ReadManifest(prodDir)
	if err != nil {
		return nil, err
	}
	scorePath := filepath.Join(prodDir, models.ScoreFile)
	score, err := models.ReadScore(scorePath)
	if err != nil {
		return nil, &utils.MissingStateError{Artifact: "deployed score", Path: scorePath, Err: err}
	}

	modelPath := filepath.Join(prodDir, models.ModelFile)
	info, err := os.Stat(modelPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return models.Undeployed{Manifest: manifest, Score: score}, nil
	case err != nil:
		return nil, fmt.Errorf("stat deployed model: %w", err)
	case !info.Mode().IsRegular():
		return nil, fmt.Errorf("deployed model %s is not a regular file", modelPath)
	}
	return models.Deployed{ModelPath: modelPath, Manifest: manifest, Score: score}, nil
}

// Bootstrap prepares an empty production directory: an empty manifest and a
// zero score. Existing files are left untouched. It reports whether anything
// was written.
func Bootstrap(prodDir string) (bool, error) {
	if err := os.MkdirAll(prodDir, 0o755); err != nil {
		return false, fmt.Errorf("create production folder: %w", err)
	}
	wrote := false
	manifestPath := filepath.Join(prodDir, models.ManifestFile)
	if _, err := os.Stat(manifestPath); errors.Is(err, fs.ErrNotExist) {
		if err := models.WriteManifest(manifestPath, nil); err != nil {
			return wrote, fmt.Errorf("write manifest: %w", err)
		}
		wrote = true
	}
	scorePath := filepath.Join(prodDir, models.ScoreFile)
	if _, err := os.Stat(scorePath); errors.Is(err, fs.ErrNotExist) {
		if err := models.WriteScore(scorePath, 0); err != nil {
			return wrote, fmt.Errorf("write score: %w", err)
		}
		wrote = true
	}
	return wrote, nil
}
