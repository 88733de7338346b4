package scoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-drift/internal/models"
)

func TestF1(t *testing.T) {
	truth := []int{1, 1, 0, 0, 1}
	pred := []int{1, 0, 1, 0, 1}
	// tp=2 fp=1 fn=1
	if got := F1(truth, pred); got != 4.0/6.0 {
		t.Fatalf("unexpected f1 %v", got)
	}
	if got := F1([]int{0, 0}, []int{0, 0}); got != 0 {
		t.Fatalf("expected zero f1 when undefined, got %v", got)
	}
}

func TestCount(t *testing.T) {
	c := Count([]int{1, 0, 1, 0}, []int{1, 1, 0, 0})
	if c != (Confusion{TP: 1, FP: 1, TN: 1, FN: 1}) {
		t.Fatalf("unexpected confusion %+v", c)
	}
}

func setup(t *testing.T) (dataPath, modelPath, modelDir string) {
	t.Helper()
	dir := t.TempDir()
	dataPath = filepath.Join(dir, "testdata.csv")
	content := "id,a,b,label\nr1,1,0,1\nr2,0,1,0\nr3,2,0,1\nr4,0,2,1\n"
	if err := os.WriteFile(dataPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	modelPath = filepath.Join(dir, models.ModelFile)
	model := &models.Model{Features: []string{"a", "b"}, Weights: []float64{1, -1}}
	if err := models.SaveModel(modelPath, model); err != nil {
		t.Fatalf("save model: %v", err)
	}
	return dataPath, modelPath, filepath.Join(dir, "models")
}

func TestScoreDeterministicAndPersisted(t *testing.T) {
	dataPath, modelPath, modelDir := setup(t)
	scorer := NewScorer(nil, modelDir)

	first, err := scorer.Score(context.Background(), dataPath, modelPath, true)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// predictions 1,0,1,0 against 1,0,1,1: tp=2 fn=1
	if first != 0.8 {
		t.Fatalf("unexpected score %v", first)
	}
	second, err := scorer.Score(context.Background(), dataPath, modelPath, false)
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if first != second {
		t.Fatalf("scoring not deterministic: %v vs %v", first, second)
	}

	stored, err := models.ReadScore(scorer.ScorePath())
	if err != nil {
		t.Fatalf("read score: %v", err)
	}
	if stored != first {
		t.Fatalf("persisted %v, expected %v", stored, first)
	}
}

func TestScoreRejectsSchemaMismatch(t *testing.T) {
	dataPath, _, modelDir := setup(t)
	modelPath := filepath.Join(t.TempDir(), models.ModelFile)
	if err := models.SaveModel(modelPath, &models.Model{Features: []string{"b", "a"}, Weights: []float64{1, 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := NewScorer(nil, modelDir).Score(context.Background(), dataPath, modelPath, false); err == nil {
		t.Fatalf("expected feature mismatch error")
	}
}
