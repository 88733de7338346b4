package models

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"
)

// Hyperparameters records how a model was fitted.
type Hyperparameters struct {
	C       float64
	MaxIter int
	Tol     float64
	Seed    int64
	Solver  string
}

// Model is a fitted L2-regularised logistic regression.
type Model struct {
	Features     []string
	Weights      []float64
	Intercept    float64
	Params       Hyperparameters
	TrainingRows int
	Iterations   int
	TrainedAt    time.Time
}

// Decision returns wᵀx + b.
func (m *Model) Decision(x []float64) float64 {
	sum := m.Intercept
	for i, w := range m.Weights {
		sum += w * x[i]
	}
	return sum
}

// Predict returns the positive class when the decision value is above zero.
func (m *Model) Predict(x [][]float64) ([]int, error) {
	out := make([]int, len(x))
	for i, row := range x {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i+1, len(row), len(m.Weights))
		}
		if m.Decision(row) > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

// SaveModel gob-encodes the model to path.
func SaveModel(path string, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	return f.Close()
}

// LoadModel decodes a model written by SaveModel.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if len(m.Weights) != len(m.Features) {
		return nil, fmt.Errorf("model %s: %d weights for %d features", path, len(m.Weights), len(m.Features))
	}
	return &m, nil
}
