package training

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/miradorstack/mirador-drift/internal/config"
	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// Trainer fits a model on the consolidated dataset and stores it in the model
// workspace.
type Trainer struct {
	logger      *slog.Logger
	datasetPath string
	modelDir    string
	params      models.Hyperparameters
	now         func() time.Time
}

// NewTrainer constructs a Trainer from the fixed training settings.
func NewTrainer(logger *slog.Logger, datasetPath, modelDir string, cfg config.TrainingConfig) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		logger:      logger,
		datasetPath: datasetPath,
		modelDir:    modelDir,
		params: models.Hyperparameters{
			C:       cfg.C,
			MaxIter: cfg.MaxIter,
			Tol:     cfg.Tol,
			Seed:    cfg.Seed,
		},
		now: time.Now,
	}
}

// ModelPath returns where the trained model is written.
func (t *Trainer) ModelPath() string { return filepath.Join(t.modelDir, models.ModelFile) }

// Train fits the classifier on the whole consolidated dataset and persists it.
func (t *Trainer) Train(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ds, err := dataset.ReadFile(t.datasetPath)
	if err != nil {
		return "", utils.NewAppError("training", "read dataset", err)
	}

	model, err := Fit(ds, t.params)
	if err != nil {
		return "", utils.NewAppError("training", "fit model", err)
	}
	model.TrainedAt = t.now().UTC()

	if err := os.MkdirAll(t.modelDir, 0o755); err != nil {
		return "", utils.NewAppError("training", "create model folder", err)
	}
	if err := models.SaveModel(t.ModelPath(), model); err != nil {
		return "", utils.NewAppError("training", "save model", err)
	}

	t.logger.Info("model trained",
		slog.Int("rows", model.TrainingRows),
		slog.Int("iterations", model.Iterations),
		slog.String("path", t.ModelPath()),
	)
	return t.ModelPath(), nil
}
