package diagnostics

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-drift/internal/config"
	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/models"
)

const records = `corporation,lastmonth_activity,lastyear_activity,exited
a,1,10,0
b,2,,0
c,3,30,1
d,10,40,1
`

func mustRead(t *testing.T, data string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(data))
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	return ds
}

func TestSummary(t *testing.T) {
	summary, err := Summary(mustRead(t, records))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected feature columns only, got %v", summary)
	}
	month := summary["lastmonth_activity"]
	if month.Mean != 4 || month.Median != 2.5 {
		t.Fatalf("unexpected lastmonth summary %+v", month)
	}
	// sample standard deviation of 1,2,3,10
	if math.Abs(month.StdDev-math.Sqrt(50.0/3.0)) > 1e-9 {
		t.Fatalf("unexpected std dev %v", month.StdDev)
	}
	year := summary["lastyear_activity"]
	if year.Median != 30 || year.Mean != 80.0/3.0 {
		t.Fatalf("expected missing cell to be skipped, got %+v", year)
	}
}

func TestSummarySingleValue(t *testing.T) {
	summary, err := Summary(mustRead(t, "id,x,y\na,5,1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := summary["x"]; got.Mean != 5 || got.Median != 5 || got.StdDev != 0 {
		t.Fatalf("unexpected single value summary %+v", got)
	}
}

func TestMissingData(t *testing.T) {
	missing := MissingData(mustRead(t, records))
	if missing["lastyear_activity"] != 0.25 {
		t.Fatalf("expected 0.25 missing, got %v", missing["lastyear_activity"])
	}
	if missing["corporation"] != 0 || missing["exited"] != 0 {
		t.Fatalf("unexpected missing ratios %v", missing)
	}
	if len(missing) != 4 {
		t.Fatalf("expected every column, got %v", missing)
	}
}

func TestPredictChecksFeatures(t *testing.T) {
	model := &models.Model{Features: []string{"x"}, Weights: []float64{1}, Intercept: -2}
	preds, err := Predict(model, mustRead(t, "id,x,y\na,1,0\nb,3,1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(preds) != 2 || preds[0] != 0 || preds[1] != 1 {
		t.Fatalf("unexpected predictions %v", preds)
	}
	if _, err := Predict(model, mustRead(t, "id,z,y\na,1,0\n")); err == nil {
		t.Fatalf("expected feature mismatch error")
	}
}

func TestModelPredictionsUsesDeployedModel(t *testing.T) {
	prod := t.TempDir()
	model := &models.Model{Features: []string{"x"}, Weights: []float64{1}, Intercept: -2}
	if err := models.SaveModel(filepath.Join(prod, models.ModelFile), model); err != nil {
		t.Fatalf("save model: %v", err)
	}
	dataPath := filepath.Join(t.TempDir(), "testdata.csv")
	if err := os.WriteFile(dataPath, []byte("id,x,y\na,1,0\nb,3,1\nc,5,1\n"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}

	d := New(nil, Options{ProdDir: prod}, nil)
	preds, err := d.ModelPredictions(context.Background(), dataPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(preds) != 3 || preds[2] != 1 {
		t.Fatalf("unexpected predictions %v", preds)
	}
}

func TestExecutionTimeLeavesOutputsUntouched(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "input")
	if err := os.MkdirAll(input, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	complete := "corporation,lastmonth_activity,lastyear_activity,exited\na,1,10,0\nb,2,20,0\nc,30,300,1\nd,40,400,1\n"
	if err := os.WriteFile(filepath.Join(input, "a.csv"), []byte(complete), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	scratch := filepath.Join(root, "scratch")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	d := New(nil, Options{
		InputDir:    input,
		DatasetPath: filepath.Join(root, "ingesteddata", models.DatasetFile),
		Training:    config.TrainingConfig{C: 1, MaxIter: 100, Tol: 1e-4},
		ScratchDir:  scratch,
	}, nil)
	timings, err := d.ExecutionTime(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(timings) != 2 || timings[0] < 0 || timings[1] < 0 {
		t.Fatalf("unexpected timings %v", timings)
	}
	if _, err := os.Stat(filepath.Join(root, "ingesteddata")); !os.IsNotExist(err) {
		t.Fatalf("expected consolidated output folder to stay absent")
	}
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch run to be cleaned up, found %d entries", len(entries))
	}
}

type fakeVersions map[string]string

func (f fakeVersions) Latest(_ context.Context, module string) (string, error) {
	v, ok := f[module]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestOutdatedModules(t *testing.T) {
	d := New(nil, Options{}, fakeVersions{
		"github.com/spf13/cobra": "v1.9.0",
		"gonum.org/v1/gonum":     "v0.14.0",
		"github.com/google/uuid": "v1.6.0",
	})
	d.modules = func() []models.ModuleVersion {
		return []models.ModuleVersion{
			{Module: "github.com/spf13/cobra", Current: "v1.8.1"},
			{Module: "gonum.org/v1/gonum", Current: "v0.15.1"},
			{Module: "github.com/google/uuid", Current: "v1.6.0"},
			{Module: "example.com/unpublished", Current: "v0.0.1"},
		}
	}

	out, err := d.OutdatedModules(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		"github.com/spf13/cobra":  "v1.9.0",
		"gonum.org/v1/gonum":      "v0.15.1",
		"github.com/google/uuid":  "v1.6.0",
		"example.com/unpublished": "v0.0.1",
	}
	if len(out) != len(want) {
		t.Fatalf("unexpected module list %+v", out)
	}
	for _, m := range out {
		if m.Latest != want[m.Module] {
			t.Fatalf("module %s: expected latest %s, got %s", m.Module, want[m.Module], m.Latest)
		}
	}
}
