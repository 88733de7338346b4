package diagnostics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/scoring"
)

// Predict labels every record of ds with model.
func Predict(model *models.Model, ds *dataset.Dataset) ([]int, error) {
	if err := scoring.CheckFeatures(model, ds); err != nil {
		return nil, err
	}
	x, err := ds.Features()
	if err != nil {
		return nil, err
	}
	return model.Predict(x)
}

// Summary computes mean, median and sample standard deviation of every
// feature column, skipping missing cells. Statistics that are undefined for
// the number of values present are reported as zero.
func Summary(ds *dataset.Dataset) (map[string]models.ColumnSummary, error) {
	out := make(map[string]models.ColumnSummary)
	for _, name := range ds.FeatureColumns() {
		values, err := ds.NumericColumn(ds.Column(name))
		if err != nil {
			return nil, err
		}
		var summary models.ColumnSummary
		if len(values) > 0 {
			summary.Mean = stat.Mean(values, nil)
			summary.Median = median(values)
		}
		if len(values) > 1 {
			summary.StdDev = stat.StdDev(values, nil)
		}
		out[name] = summary
	}
	return out, nil
}

// MissingData returns, for every column, the fraction of records whose cell
// is missing.
func MissingData(ds *dataset.Dataset) map[string]float64 {
	out := make(map[string]float64, len(ds.Columns))
	n := ds.Len()
	for idx, name := range ds.Columns {
		if n == 0 {
			out[name] = 0
			continue
		}
		missing := 0
		for _, row := range ds.Rows {
			if idx >= len(row) || dataset.IsMissing(row[idx]) {
				missing++
			}
		}
		out[name] = float64(missing) / float64(n)
	}
	return out
}

// median averages the two middle values of an even-length sample.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
