// Package diagnostics inspects the deployed model and the consolidated data:
// predictions, summary statistics, missing values, step timings and the
// freshness of the modules the binary was built with.
package diagnostics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/miradorstack/mirador-drift/internal/config"
	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/ingestion"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/repo"
	"github.com/miradorstack/mirador-drift/internal/training"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// VersionSource resolves the latest published version of a module.
type VersionSource interface {
	Latest(ctx context.Context, modulePath string) (string, error)
}

// Options locates the data and settings the diagnostics read.
type Options struct {
	InputDir    string
	DatasetPath string
	ProdDir     string
	Training    config.TrainingConfig
	// ScratchDir is where timing runs write their throwaway outputs. Empty
	// means the system temp directory.
	ScratchDir string
}

// Diagnostics runs the model and data checks.
type Diagnostics struct {
	logger   *slog.Logger
	opts     Options
	versions VersionSource
	modules  func() []models.ModuleVersion
}

// New constructs Diagnostics. versions may be nil, in which case every
// module reports its current version as latest.
func New(logger *slog.Logger, opts Options, versions VersionSource) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{
		logger:   logger,
		opts:     opts,
		versions: versions,
		modules:  BuildModules,
	}
}

// ModelPredictions labels the dataset at dataPath with the deployed model.
func (d *Diagnostics) ModelPredictions(ctx context.Context, dataPath string) ([]int, error) {
	d.logger.Info("calculating model predictions", slog.String("data", dataPath))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := models.LoadModel(d.DeployedModelPath())
	if err != nil {
		return nil, utils.NewAppError("diagnostics", "load deployed model", err)
	}
	ds, err := dataset.ReadFile(dataPath)
	if err != nil {
		return nil, utils.NewAppError("diagnostics", "read dataset", err)
	}
	preds, err := Predict(model, ds)
	if err != nil {
		return nil, utils.NewAppError("diagnostics", "predict", err)
	}
	return preds, nil
}

// DeployedModelPath returns the path of the production model.
func (d *Diagnostics) DeployedModelPath() string {
	return filepath.Join(d.opts.ProdDir, models.ModelFile)
}

// DataSummary summarises the consolidated dataset.
func (d *Diagnostics) DataSummary(ctx context.Context) (map[string]models.ColumnSummary, error) {
	d.logger.Info("calculating summary statistics", slog.String("data", d.opts.DatasetPath))
	ds, err := d.readConsolidated(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := Summary(ds)
	if err != nil {
		return nil, utils.NewAppError("diagnostics", "summarise dataset", err)
	}
	return summary, nil
}

// MissingRatios reports the missing-value fraction of every column of the
// consolidated dataset.
func (d *Diagnostics) MissingRatios(ctx context.Context) (map[string]float64, error) {
	d.logger.Info("checking for missing data", slog.String("data", d.opts.DatasetPath))
	ds, err := d.readConsolidated(ctx)
	if err != nil {
		return nil, err
	}
	return MissingData(ds), nil
}

func (d *Diagnostics) readConsolidated(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := dataset.ReadFile(d.opts.DatasetPath)
	if err != nil {
		return nil, utils.NewAppError("diagnostics", "read consolidated dataset", err)
	}
	return ds, nil
}

// ExecutionTime times an ingestion pass and a training pass, in seconds. Both
// write into a scratch directory that is removed afterwards, so the pipeline
// outputs are left untouched.
func (d *Diagnostics) ExecutionTime(ctx context.Context) ([]float64, error) {
	d.logger.Info("timing ingestion and training")
	scratch, err := os.MkdirTemp(d.opts.ScratchDir, "mirador-drift-timing-*")
	if err != nil {
		return nil, utils.NewAppError("diagnostics", "create scratch folder", err)
	}
	defer os.RemoveAll(scratch)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingester := ingestion.NewIngester(quiet, d.opts.InputDir, scratch)
	start := time.Now()
	if _, err := ingester.Merge(ctx); err != nil {
		return nil, err
	}
	ingestionSeconds := time.Since(start).Seconds()

	trainer := training.NewTrainer(quiet, ingester.DatasetPath(), scratch, d.opts.Training)
	start = time.Now()
	if _, err := trainer.Train(ctx); err != nil {
		return nil, err
	}
	trainingSeconds := time.Since(start).Seconds()

	return []float64{ingestionSeconds, trainingSeconds}, nil
}

// OutdatedModules lists every module the binary depends on with its current
// and latest version. When the latest version cannot be resolved, or is not
// newer, latest equals current.
func (d *Diagnostics) OutdatedModules(ctx context.Context) ([]models.ModuleVersion, error) {
	d.logger.Info("checking dependency versions")
	modules := d.modules()
	out := make([]models.ModuleVersion, 0, len(modules))
	for _, mod := range modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := models.ModuleVersion{Module: mod.Module, Current: mod.Current, Latest: mod.Current}
		if d.versions != nil {
			latest, err := d.versions.Latest(ctx, mod.Module)
			switch {
			case err == nil:
				entry.Latest = repo.Newer(mod.Current, latest)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				d.logger.Debug("latest version lookup timed out", slog.String("module", mod.Module))
			default:
				d.logger.Debug("latest version lookup failed", slog.String("module", mod.Module), slog.Any("error", err))
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// BuildModules returns the dependencies recorded in the running binary, with
// replacements applied. It is empty when build information is unavailable.
func BuildModules() []models.ModuleVersion {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	out := make([]models.ModuleVersion, 0, len(info.Deps))
	for _, dep := range info.Deps {
		mod := dep
		if dep.Replace != nil {
			mod = dep.Replace
		}
		out = append(out, models.ModuleVersion{Module: dep.Path, Current: mod.Version, Latest: mod.Version})
	}
	return out
}
