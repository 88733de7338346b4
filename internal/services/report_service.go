package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/miradorstack/mirador-drift/internal/deployment"
	"github.com/miradorstack/mirador-drift/internal/metrics"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

var (
	// ErrInvalidRequest marks a request the caller has to fix.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrForbiddenPath marks a data path outside the configured data folders.
	ErrForbiddenPath = errors.New("data path outside the configured data folders")
)

// Diagnoser runs the model and data diagnostics.
type Diagnoser interface {
	ModelPredictions(ctx context.Context, dataPath string) ([]int, error)
	DataSummary(ctx context.Context) (map[string]models.ColumnSummary, error)
	MissingRatios(ctx context.Context) (map[string]float64, error)
	ExecutionTime(ctx context.Context) ([]float64, error)
	OutdatedModules(ctx context.Context) ([]models.ModuleVersion, error)
}

// ModelScorer computes the F1 score of a model on a dataset.
type ModelScorer interface {
	Score(ctx context.Context, dataPath, modelPath string, persist bool) (float64, error)
}

// ReportOptions locates the production deployment and the data the API may read.
type ReportOptions struct {
	ProdDir      string
	TestDataPath string
	DataDirs     []string
}

// ReportService backs the reporting API endpoints.
type ReportService struct {
	logger    *slog.Logger
	diag      Diagnoser
	scorer    ModelScorer
	opts      ReportOptions
	latencies *utils.EndpointLatencies
}

// NewReportService constructs the reporting service facade.
func NewReportService(logger *slog.Logger, diag Diagnoser, scorer ModelScorer, opts ReportOptions) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		logger:    logger,
		diag:      diag,
		scorer:    scorer,
		opts:      opts,
		latencies: utils.NewEndpointLatencies(256),
	}
}

// Predict returns the deployed model's predictions for the dataset at dataPath.
func (s *ReportService) Predict(ctx context.Context, dataPath string) (preds []int, err error) {
	defer s.observe("prediction", time.Now(), &err)
	if strings.TrimSpace(dataPath) == "" {
		return nil, fmt.Errorf("%w: datapath is required", ErrInvalidRequest)
	}
	resolved, err := s.allowedPath(dataPath)
	if err != nil {
		return nil, err
	}
	return s.diag.ModelPredictions(ctx, resolved)
}

// Score returns the F1 score of the deployed model on the test data. The
// score record of the model workspace is left untouched.
func (s *ReportService) Score(ctx context.Context) (f1 float64, err error) {
	defer s.observe("scoring", time.Now(), &err)
	return s.scorer.Score(ctx, s.opts.TestDataPath, filepath.Join(s.opts.ProdDir, models.ModelFile), false)
}

// SummaryStats returns per-column statistics of the consolidated dataset.
func (s *ReportService) SummaryStats(ctx context.Context) (stats map[string]models.ColumnSummary, err error) {
	defer s.observe("summarystats", time.Now(), &err)
	return s.diag.DataSummary(ctx)
}

// Diagnostics gathers missing-data ratios, step timings and module versions.
func (s *ReportService) Diagnostics(ctx context.Context) (report models.DiagnosticsReport, err error) {
	defer s.observe("diagnostics", time.Now(), &err)
	if report.Missing, err = s.diag.MissingRatios(ctx); err != nil {
		return models.DiagnosticsReport{}, err
	}
	if report.TimeCheck, err = s.diag.ExecutionTime(ctx); err != nil {
		return models.DiagnosticsReport{}, err
	}
	if report.Outdated, err = s.diag.OutdatedModules(ctx); err != nil {
		return models.DiagnosticsReport{}, err
	}
	return report, nil
}

// Health reports the production state. A missing manifest or score is an error.
func (s *ReportService) Health() (models.HealthResponse, error) {
	state, err := deployment.LoadState(s.opts.ProdDir)
	if err != nil {
		return models.HealthResponse{Status: "unavailable"}, err
	}
	resp := models.HealthResponse{
		Status:       "ok",
		State:        models.StateName(state),
		LatencyP95MS: s.latencies.Snapshot(95),
	}
	if _, ok := state.(models.Deployed); !ok {
		resp.Status = "waiting"
	}
	return resp, nil
}

// LatencyP95 returns the p95 latency of one endpoint's recent successful requests.
func (s *ReportService) LatencyP95(endpoint string) time.Duration {
	return s.latencies.Percentile(endpoint, 95)
}

func (s *ReportService) observe(endpoint string, start time.Time, errp *error) {
	duration := time.Since(start)
	failed := errp != nil && *errp != nil
	metrics.ObserveRequest(endpoint, duration, failed)
	if failed {
		s.logger.Error("report request failed", slog.String("endpoint", endpoint), slog.Any("error", *errp))
		return
	}
	if count := s.latencies.Observe(endpoint, duration); count%20 == 0 {
		s.logger.Info("report latency",
			slog.String("endpoint", endpoint),
			slog.Duration("p95", s.latencies.Percentile(endpoint, 95)),
			slog.Int("samples", count))
	}
}

// allowedPath resolves dataPath, following symlinks, and checks it lies inside
// one of the data folders.
func (s *ReportService) allowedPath(dataPath string) (string, error) {
	resolved, err := resolveLinks(dataPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for _, dir := range s.opts.DataDirs {
		if dir == "" {
			continue
		}
		root, err := resolveLinks(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, resolved)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return resolved, nil
	}
	return "", fmt.Errorf("%w: %s", ErrForbiddenPath, dataPath)
}

// resolveLinks returns the absolute path with every symlink evaluated. A
// missing tail is joined onto its nearest existing ancestor.
func resolveLinks(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}
	base, err := resolveLinks(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, filepath.Base(abs)), nil
}
