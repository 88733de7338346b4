package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// Scorer computes the F1 score of a model on a dataset.
type Scorer struct {
	logger   *slog.Logger
	modelDir string
}

// NewScorer constructs a Scorer persisting score records into modelDir.
func NewScorer(logger *slog.Logger, modelDir string) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger, modelDir: modelDir}
}

// ScorePath returns where persisted score records are written.
func (s *Scorer) ScorePath() string { return filepath.Join(s.modelDir, models.ScoreFile) }

// Score loads the model and dataset and returns the F1 score of the model's
// predictions. When persist is set the score record is written to ScorePath.
func (s *Scorer) Score(ctx context.Context, dataPath, modelPath string, persist bool) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ds, err := dataset.ReadFile(dataPath)
	if err != nil {
		return 0, utils.NewAppError("scoring", "read dataset", err)
	}
	model, err := models.LoadModel(modelPath)
	if err != nil {
		return 0, utils.NewAppError("scoring", "load model", err)
	}

	f1, err := Evaluate(model, ds)
	if err != nil {
		return 0, utils.NewAppError("scoring", "evaluate", err)
	}
	s.logger.Info("model scored", slog.Float64("f1", f1), slog.String("data", dataPath), slog.String("model", modelPath))

	if !persist {
		return f1, nil
	}
	if err := os.MkdirAll(s.modelDir, 0o755); err != nil {
		return 0, utils.NewAppError("scoring", "create model folder", err)
	}
	if err := models.WriteScore(s.ScorePath(), f1); err != nil {
		return 0, utils.NewAppError("scoring", "write score", err)
	}
	s.logger.Info("f1 score saved", slog.String("path", s.ScorePath()))
	return f1, nil
}

// Evaluate predicts the dataset with the model and returns the F1 score.
func Evaluate(model *models.Model, ds *dataset.Dataset) (float64, error) {
	if err := CheckFeatures(model, ds); err != nil {
		return 0, err
	}
	x, err := ds.Features()
	if err != nil {
		return 0, err
	}
	y, err := ds.Labels()
	if err != nil {
		return 0, err
	}
	pred, err := model.Predict(x)
	if err != nil {
		return 0, err
	}
	return F1(y, pred), nil
}

// CheckFeatures verifies the dataset carries the model's feature columns in order.
func CheckFeatures(model *models.Model, ds *dataset.Dataset) error {
	got := ds.FeatureColumns()
	if len(got) != len(model.Features) {
		return fmt.Errorf("dataset has %d feature columns, model expects %d", len(got), len(model.Features))
	}
	for i, name := range model.Features {
		if got[i] != name {
			return fmt.Errorf("feature %d is %q, model expects %q", i+1, got[i], name)
		}
	}
	return nil
}

// Confusion counts binary outcomes with 1 as the positive class.
type Confusion struct {
	TP, FP, TN, FN int
}

// Count builds the confusion counts of predictions against truth.
func Count(truth, pred []int) Confusion {
	var c Confusion
	for i := range truth {
		switch {
		case truth[i] == 1 && pred[i] == 1:
			c.TP++
		case truth[i] == 0 && pred[i] == 1:
			c.FP++
		case truth[i] == 1 && pred[i] == 0:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

// F1 is the harmonic mean of precision and recall; zero when undefined.
func F1(truth, pred []int) float64 {
	c := Count(truth, pred)
	denom := 2*c.TP + c.FP + c.FN
	if denom == 0 {
		return 0
	}
	return float64(2*c.TP) / float64(denom)
}
