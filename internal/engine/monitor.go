package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-drift/internal/cache"
	"github.com/miradorstack/mirador-drift/internal/deployment"
	"github.com/miradorstack/mirador-drift/internal/ingestion"
	"github.com/miradorstack/mirador-drift/internal/metrics"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// Ingester rebuilds the consolidated dataset and its manifest.
type Ingester interface {
	Merge(ctx context.Context) (ingestion.Result, error)
}

// Trainer fits a new model and returns the path it was saved to.
type Trainer interface {
	Train(ctx context.Context) (string, error)
}

// Scorer computes the F1 score of a model on a dataset.
type Scorer interface {
	Score(ctx context.Context, dataPath, modelPath string, persist bool) (float64, error)
}

// Deployer promotes the model, score and manifest to production.
type Deployer interface {
	Deploy(ctx context.Context, artifacts deployment.Artifacts) error
}

// Reporter gathers diagnostics once a model has been deployed.
type Reporter interface {
	Collect(ctx context.Context) error
}

// Paths locates everything the monitor reads or hands to its steps.
type Paths struct {
	InputDir     string
	ProdDir      string
	DatasetPath  string
	ManifestPath string
	ModelDir     string
}

// Stop reasons reported in RunResult.
const (
	StopNone      = ""
	StopNoNewData = "no_new_data"
	StopNoDrift   = "no_drift"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("another run is in progress")

// RunResult summarises one monitor run.
type RunResult struct {
	RunID               string
	TestingMode         bool
	NewData             []string
	Ingested            bool
	FirstImplementation bool
	LatestScore         float64
	NewScore            float64
	Drift               bool
	Retrained           bool
	Deployed            bool
	Stopped             string
}

// Monitor checks for new data and model drift and retrains and redeploys when
// either warrants it.
type Monitor struct {
	logger   *slog.Logger
	paths    Paths
	ingester Ingester
	trainer  Trainer
	scorer   Scorer
	deployer Deployer
	reporter Reporter
	locker   cache.Provider
	lockTTL  time.Duration
}

// NewMonitor constructs a monitor. The reporter may be nil.
func NewMonitor(
	logger *slog.Logger,
	paths Paths,
	ingester Ingester,
	trainer Trainer,
	scorer Scorer,
	deployer Deployer,
	reporter Reporter,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:   logger,
		paths:    paths,
		ingester: ingester,
		trainer:  trainer,
		scorer:   scorer,
		deployer: deployer,
		reporter: reporter,
	}
}

// WithLock guards runs with a lock held in provider for at most ttl.
func (m *Monitor) WithLock(provider cache.Provider, ttl time.Duration) *Monitor {
	m.locker = provider
	m.lockTTL = ttl
	return m
}

// Run performs one monitor pass. testingMode never skips a step: it only
// disables the two early exits.
func (m *Monitor) Run(ctx context.Context, testingMode bool) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString(), TestingMode: testingMode}
	logger := m.logger.With(slog.String("run_id", res.RunID))
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		metrics.ObserveRun(time.Since(start), outcome)
	}()

	logger.Info("running full process", slog.Bool("testing_mode", testingMode))

	if m.locker != nil {
		release, err := cache.AcquireLock(ctx, m.locker, m.lockKey(), res.RunID, m.lockTTL)
		if err != nil {
			if errors.Is(err, cache.ErrLocked) {
				return res, fmt.Errorf("%w: %v", ErrRunInProgress, err)
			}
			return res, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release run lock", slog.Any("error", err))
			}
		}()
	}

	res, err := m.run(ctx, logger, res)
	switch {
	case err != nil:
		logger.Error("full process failed", slog.Any("error", err))
	case res.Stopped == StopNoNewData:
		outcome = metrics.OutcomeNoNewData
	case res.Stopped == StopNoDrift:
		outcome = metrics.OutcomeNoDrift
	default:
		outcome = metrics.OutcomeDeployed
	}
	return res, err
}

func (m *Monitor) run(ctx context.Context, logger *slog.Logger, res RunResult) (RunResult, error) {
	logger.Info("checking for new data")
	manifest, err := deployment.ReadManifest(m.paths.ProdDir)
	if err != nil {
		return res, err
	}
	current, err := ingestion.ListFiles(m.paths.InputDir)
	if err != nil {
		return res, utils.NewAppError("monitor", "list input folder", err)
	}
	res.NewData = manifest.NewFiles(current)

	switch {
	case len(res.NewData) > 0:
		logger.Info("new data found, ingesting", slog.Any("files", res.NewData))
		if err := m.step(ctx, "ingestion", func() error {
			_, err := m.ingester.Merge(ctx)
			return err
		}); err != nil {
			return res, err
		}
		res.Ingested = true
	case !res.TestingMode:
		logger.Info("no new file found, stopping")
		res.Stopped = StopNoNewData
		return res, nil
	default:
		logger.Info("no new file found, continuing in testing mode")
	}

	logger.Info("checking for model drift")
	state, err := deployment.LoadState(m.paths.ProdDir)
	if err != nil {
		return res, err
	}
	res.LatestScore = state.LatestScore()
	deployed, isDeployed := state.(models.Deployed)
	res.FirstImplementation = !isDeployed
	if err := os.MkdirAll(m.paths.ModelDir, 0o755); err != nil {
		return res, utils.NewAppError("monitor", "create model folder", err)
	}

	if isDeployed {
		if err := m.step(ctx, "scoring", func() error {
			score, err := m.scorer.Score(ctx, m.paths.DatasetPath, deployed.ModelPath, true)
			res.NewScore = score
			return err
		}); err != nil {
			return res, err
		}
		metrics.SetScores(res.LatestScore, res.NewScore)
	} else {
		logger.Info("no model deployed yet, first implementation")
	}

	res.Drift = res.NewScore < res.LatestScore && !res.FirstImplementation
	switch {
	case !res.Drift && !res.TestingMode && !res.FirstImplementation:
		logger.Info("no drift found, stopping",
			slog.Float64("latest_score", res.LatestScore),
			slog.Float64("new_score", res.NewScore))
		res.Stopped = StopNoDrift
		return res, nil
	case res.Drift:
		metrics.IncDrift()
		logger.Info("model drift found, retraining",
			slog.Float64("latest_score", res.LatestScore),
			slog.Float64("new_score", res.NewScore))
	case res.FirstImplementation:
		logger.Info("first deployment of the model")
	default:
		logger.Info("no drift found, continuing in testing mode")
	}

	var modelPath string
	if err := m.step(ctx, "training", func() error {
		path, err := m.trainer.Train(ctx)
		modelPath = path
		return err
	}); err != nil {
		return res, err
	}
	res.Retrained = true

	if res.FirstImplementation {
		if err := m.step(ctx, "scoring", func() error {
			score, err := m.scorer.Score(ctx, m.paths.DatasetPath, modelPath, true)
			res.NewScore = score
			return err
		}); err != nil {
			return res, err
		}
		metrics.SetScores(res.LatestScore, res.NewScore)
	}

	artifacts := deployment.Artifacts{
		Model:    modelPath,
		Score:    filepath.Join(m.paths.ModelDir, models.ScoreFile),
		Manifest: m.paths.ManifestPath,
	}
	if err := m.step(ctx, "deployment", func() error {
		return m.deployer.Deploy(ctx, artifacts)
	}); err != nil {
		return res, err
	}
	res.Deployed = true
	metrics.IncDeployments()

	if m.reporter != nil {
		logger.Info("running diagnostics and reporting")
		if err := m.step(ctx, "reporting", func() error { return m.reporter.Collect(ctx) }); err != nil {
			logger.Warn("reporting failed, deployment kept", slog.Any("error", err))
		}
	}

	logger.Info("full process complete", slog.Float64("new_score", res.NewScore), slog.Bool("drift", res.Drift))
	return res, nil
}

// step runs fn unless the run was cancelled since the previous step.
func (m *Monitor) step(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return utils.NewAppError("monitor", "cancelled before "+name, err)
	}
	start := time.Now()
	err := fn()
	metrics.ObserveStep(name, time.Since(start))
	return err
}

func (m *Monitor) lockKey() string {
	return "mirador-drift:run-lock:" + filepath.Clean(m.paths.ProdDir)
}
