package deployment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-drift/internal/utils"
)

// Artifacts names the three files promoted together.
type Artifacts struct {
	Model    string
	Score    string
	Manifest string
}

func (a Artifacts) paths() []string {
	return []string{a.Model, a.Score, a.Manifest}
}

// Deployer promotes artifacts into the production directory.
type Deployer struct {
	logger *slog.Logger
	target string
}

// NewDeployer constructs a Deployer for the production directory target.
func NewDeployer(logger *slog.Logger, target string) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{logger: logger, target: target}
}

// Target returns the production directory.
func (d *Deployer) Target() string { return d.target }

// Deploy copies the model, score and manifest into the production directory,
// overwriting files of the same name. The new directory content is assembled
// in a sibling staging directory (the three artifacts plus whatever else
// production already held) and swapped in with renames, so readers see either
// the previous set or the new one.
func (d *Deployer) Deploy(ctx context.Context, a Artifacts) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, src := range a.paths() {
		if src == "" {
			return utils.NewAppError("deployment", "artifact path is empty", nil)
		}
		if _, err := os.Stat(src); err != nil {
			return utils.NewAppError("deployment", "stat "+src, err)
		}
	}

	parent := filepath.Dir(d.target)
	base := filepath.Base(d.target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return utils.NewAppError("deployment", "create parent folder", err)
	}

	id := uuid.NewString()
	staging := filepath.Join(parent, fmt.Sprintf(".%s.staging-%s", base, id))
	if err := os.Mkdir(staging, 0o755); err != nil {
		return utils.NewAppError("deployment", "create staging folder", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	promoted := make(map[string]struct{}, 3)
	for _, src := range a.paths() {
		promoted[filepath.Base(src)] = struct{}{}
	}

	exists, err := dirExists(d.target)
	if err != nil {
		return utils.NewAppError("deployment", "inspect production folder", err)
	}
	if exists {
		if err := carryOver(d.target, staging, promoted); err != nil {
			return utils.NewAppError("deployment", "stage existing production files", err)
		}
	}
	for _, src := range a.paths() {
		if err := copyFile(src, filepath.Join(staging, filepath.Base(src))); err != nil {
			return utils.NewAppError("deployment", "stage "+filepath.Base(src), err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	backup := ""
	if exists {
		backup = filepath.Join(parent, fmt.Sprintf(".%s.previous-%s", base, id))
		if err := os.Rename(d.target, backup); err != nil {
			return utils.NewAppError("deployment", "move current production aside", err)
		}
	}
	if err := os.Rename(staging, d.target); err != nil {
		if backup != "" {
			if rerr := os.Rename(backup, d.target); rerr != nil {
				d.logger.Error("failed to restore previous production folder",
					slog.String("backup", backup), slog.Any("error", rerr))
			}
		}
		return utils.NewAppError("deployment", "swap in staged production", err)
	}
	committed = true
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			d.logger.Warn("failed to remove previous production folder", slog.String("path", backup), slog.Any("error", err))
		}
	}

	d.logger.Info("model deployed",
		slog.String("target", d.target),
		slog.String("model", a.Model),
		slog.String("score", a.Score),
		slog.String("manifest", a.Manifest),
	)
	return nil
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s is not a directory", path)
	}
	return true, nil
}

// carryOver copies every file of src into dst except the top-level names in skip.
func carryOver(src, dst string, skip map[string]struct{}) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if _, ok := skip[rel]; ok {
			return nil
		}
		out := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		return copyFile(path, out)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
