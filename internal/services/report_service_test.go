package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-drift/internal/deployment"
	"github.com/miradorstack/mirador-drift/internal/models"
)

type diagnoserStub struct {
	predictedPath string
	timingErr     error
}

func (d *diagnoserStub) ModelPredictions(_ context.Context, dataPath string) ([]int, error) {
	d.predictedPath = dataPath
	return []int{1, 0}, nil
}

func (d *diagnoserStub) DataSummary(context.Context) (map[string]models.ColumnSummary, error) {
	return map[string]models.ColumnSummary{"x": {Mean: 1}}, nil
}

func (d *diagnoserStub) MissingRatios(context.Context) (map[string]float64, error) {
	return map[string]float64{"x": 0.5}, nil
}

func (d *diagnoserStub) ExecutionTime(context.Context) ([]float64, error) {
	if d.timingErr != nil {
		return nil, d.timingErr
	}
	return []float64{0.1, 0.2}, nil
}

func (d *diagnoserStub) OutdatedModules(context.Context) ([]models.ModuleVersion, error) {
	return []models.ModuleVersion{{Module: "m", Current: "v1.0.0", Latest: "v1.1.0"}}, nil
}

type scorerStub struct {
	dataPath, modelPath string
	persist             bool
}

func (s *scorerStub) Score(_ context.Context, dataPath, modelPath string, persist bool) (float64, error) {
	s.dataPath, s.modelPath, s.persist = dataPath, modelPath, persist
	return 0.75, nil
}

func TestPredictRestrictsDataPath(t *testing.T) {
	dataDir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	diag := &diagnoserStub{}
	service := NewReportService(nil, diag, nil, ReportOptions{DataDirs: []string{dataDir}})

	inside := filepath.Join(dataDir, "testdata.csv")
	preds, err := service.Predict(context.Background(), inside)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(preds) != 2 || diag.predictedPath != inside {
		t.Fatalf("unexpected predictions %v for %s", preds, diag.predictedPath)
	}

	for _, path := range []string{
		filepath.Join(dataDir, "..", "secrets.csv"),
		"/etc/passwd",
		dataDir,
	} {
		if _, err := service.Predict(context.Background(), path); !errors.Is(err, ErrForbiddenPath) {
			t.Fatalf("expected forbidden path for %s, got %v", path, err)
		}
	}
	if _, err := service.Predict(context.Background(), " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestPredictRejectsSymlinkOutOfDataFolder(t *testing.T) {
	dataDir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "private.csv")
	if err := os.WriteFile(outside, []byte("id,x,label\n"), 0o600); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	link := filepath.Join(dataDir, "innocent.csv")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	linkedDir := filepath.Join(dataDir, "elsewhere")
	if err := os.Symlink(filepath.Dir(outside), linkedDir); err != nil {
		t.Fatalf("symlink dir: %v", err)
	}

	diag := &diagnoserStub{}
	service := NewReportService(nil, diag, nil, ReportOptions{DataDirs: []string{dataDir}})
	for _, path := range []string{link, filepath.Join(linkedDir, "private.csv"), filepath.Join(linkedDir, "absent.csv")} {
		if _, err := service.Predict(context.Background(), path); !errors.Is(err, ErrForbiddenPath) {
			t.Fatalf("expected forbidden path for %s, got %v", path, err)
		}
	}
	if diag.predictedPath != "" {
		t.Fatalf("diagnoser must not be reached, got %s", diag.predictedPath)
	}
}

func TestHealthReportsEndpointLatency(t *testing.T) {
	prod := t.TempDir()
	if _, err := deployment.Bootstrap(prod); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	service := NewReportService(nil, &diagnoserStub{}, &scorerStub{}, ReportOptions{ProdDir: prod})
	for i := 0; i < 3; i++ {
		if _, err := service.Score(context.Background()); err != nil {
			t.Fatalf("score: %v", err)
		}
	}
	if _, err := service.Predict(context.Background(), ""); err == nil {
		t.Fatalf("expected invalid request")
	}

	resp, err := service.Health()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := resp.LatencyP95MS["scoring"]; !ok || len(resp.LatencyP95MS) != 1 {
		t.Fatalf("expected only successful scoring latency, got %v", resp.LatencyP95MS)
	}
	if service.LatencyP95("prediction") != 0 {
		t.Fatalf("failed requests must not be tracked")
	}
}

func TestScoreUsesDeployedModelWithoutPersisting(t *testing.T) {
	scorer := &scorerStub{}
	service := NewReportService(nil, &diagnoserStub{}, scorer, ReportOptions{ProdDir: "prod", TestDataPath: "testdata/testdata.csv"})

	f1, err := service.Score(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f1 != 0.75 || scorer.persist {
		t.Fatalf("unexpected score %v persist=%v", f1, scorer.persist)
	}
	if scorer.modelPath != filepath.Join("prod", models.ModelFile) || scorer.dataPath != "testdata/testdata.csv" {
		t.Fatalf("unexpected score inputs %+v", scorer)
	}
}

func TestDiagnosticsCombinesChecks(t *testing.T) {
	service := NewReportService(nil, &diagnoserStub{}, nil, ReportOptions{})
	report, err := service.Diagnostics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Missing["x"] != 0.5 || len(report.TimeCheck) != 2 || report.Outdated[0].Latest != "v1.1.0" {
		t.Fatalf("unexpected report %+v", report)
	}

	failing := NewReportService(nil, &diagnoserStub{timingErr: errors.New("no input")}, nil, ReportOptions{})
	if _, err := failing.Diagnostics(context.Background()); err == nil {
		t.Fatalf("expected timing failure to surface")
	}
}

func TestHealthReflectsProductionState(t *testing.T) {
	prod := t.TempDir()
	service := NewReportService(nil, &diagnoserStub{}, nil, ReportOptions{ProdDir: prod})

	if _, err := service.Health(); err == nil {
		t.Fatalf("expected error for empty production folder")
	}

	if err := models.WriteManifest(filepath.Join(prod, models.ManifestFile), nil); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := models.WriteScore(filepath.Join(prod, models.ScoreFile), 0); err != nil {
		t.Fatalf("write score: %v", err)
	}
	resp, err := service.Health()
	if err != nil || resp.State != "undeployed" || resp.Status != "waiting" {
		t.Fatalf("unexpected health %+v (%v)", resp, err)
	}

	if err := os.WriteFile(filepath.Join(prod, models.ModelFile), []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	resp, err = service.Health()
	if err != nil || resp.State != "deployed" || resp.Status != "ok" {
		t.Fatalf("unexpected health %+v (%v)", resp, err)
	}
}
