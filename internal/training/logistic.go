package training

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/models"
)

// SolverName is recorded in every fitted model.
const SolverName = "lbfgs-primal"

// ErrSingleClass is returned when the labels hold only one class.
var ErrSingleClass = errors.New("training data contains a single class")

// Fit solves the L2-regularised logistic regression primal
//
//	min ½‖w‖² + C Σ log(1 + exp(−yᵢ wᵀxᵢ))
//
// with the intercept folded in as a constant feature of value 1, so it is
// regularised like every other weight. The start point is zero, which makes
// the fit deterministic for a given dataset.
func Fit(ds *dataset.Dataset, params models.Hyperparameters) (*models.Model, error) {
	x, err := ds.Features()
	if err != nil {
		return nil, err
	}
	labels, err := ds.Labels()
	if err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("training data is empty")
	}
	if !hasBothClasses(labels) {
		return nil, ErrSingleClass
	}

	dim := len(x[0]) + 1
	augmented := make([][]float64, len(x))
	for i, row := range x {
		aug := make([]float64, dim)
		copy(aug, row)
		aug[dim-1] = 1
		augmented[i] = aug
	}
	y := make([]float64, len(labels))
	for i, l := range labels {
		y[i] = -1
		if l == 1 {
			y[i] = 1
		}
	}

	c := params.C
	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			loss := 0.5 * floats.Dot(w, w)
			for i, row := range augmented {
				loss += c * softplus(-y[i]*floats.Dot(w, row))
			}
			return loss
		},
		Grad: func(grad, w []float64) {
			copy(grad, w)
			for i, row := range augmented {
				coef := -c * y[i] * sigmoid(-y[i]*floats.Dot(w, row))
				floats.AddScaled(grad, coef, row)
			}
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: params.Tol,
		MajorIterations:   params.MaxIter,
	}
	result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.LBFGS{})
	if err != nil {
		// A line search that stalls after making progress leaves the best
		// location found so far, which is kept like an iteration limit.
		start := c * float64(len(augmented)) * math.Ln2
		if result == nil || (result.Status != optimize.IterationLimit && !(result.F < start)) {
			return nil, fmt.Errorf("optimise: %w", err)
		}
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("optimise: diverged to non-finite weights")
		}
	}

	params.Solver = SolverName
	return &models.Model{
		Features:     ds.FeatureColumns(),
		Weights:      append([]float64(nil), result.X[:dim-1]...),
		Intercept:    result.X[dim-1],
		Params:       params,
		TrainingRows: len(x),
		Iterations:   result.MajorIterations,
	}, nil
}

func hasBothClasses(labels []int) bool {
	var pos, neg bool
	for _, l := range labels {
		if l == 1 {
			pos = true
		} else {
			neg = true
		}
		if pos && neg {
			return true
		}
	}
	return false
}

// softplus computes log(1 + exp(t)) without overflow.
func softplus(t float64) float64 {
	if t > 0 {
		return t + math.Log1p(math.Exp(-t))
	}
	return math.Log1p(math.Exp(t))
}

func sigmoid(t float64) float64 {
	if t >= 0 {
		return 1 / (1 + math.Exp(-t))
	}
	e := math.Exp(t)
	return e / (1 + e)
}
