package reporting

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/diagnostics"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/scoring"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// ConfusionMatrix scores the model at modelPath on the test data and writes
// the confusion matrix to outPath.
func ConfusionMatrix(ctx context.Context, modelPath, testDataPath, outPath string) (scoring.Confusion, error) {
	if err := ctx.Err(); err != nil {
		return scoring.Confusion{}, err
	}
	model, err := models.LoadModel(modelPath)
	if err != nil {
		return scoring.Confusion{}, utils.NewAppError("reporting", "load model", err)
	}
	ds, err := dataset.ReadFile(testDataPath)
	if err != nil {
		return scoring.Confusion{}, utils.NewAppError("reporting", "read test data", err)
	}
	truth, err := ds.Labels()
	if err != nil {
		return scoring.Confusion{}, utils.NewAppError("reporting", "read labels", err)
	}
	pred, err := diagnostics.Predict(model, ds)
	if err != nil {
		return scoring.Confusion{}, utils.NewAppError("reporting", "predict", err)
	}
	c := scoring.Count(truth, pred)

	f, err := os.Create(outPath)
	if err != nil {
		return c, utils.NewAppError("reporting", "create confusion matrix", err)
	}
	defer f.Close()
	if err := RenderConfusion(f, c); err != nil {
		return c, utils.NewAppError("reporting", "write confusion matrix", err)
	}
	return c, f.Close()
}

// RenderConfusion writes the matrix with actual values as rows and predicted
// values as columns.
func RenderConfusion(w io.Writer, c scoring.Confusion) error {
	fmt.Fprintln(w, "Confusion matrix")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "actual \\ predicted\tFalse\tTrue\t\n")
	fmt.Fprintf(tw, "False\t%d\t%d\t\n", c.TN, c.FP)
	fmt.Fprintf(tw, "True\t%d\t%d\t\n", c.FN, c.TP)
	return tw.Flush()
}
