// Package reporting collects the reporting API answers into a text report
// and renders the confusion matrix of the deployed model.
package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// Client is the subset of the reporting API the collector calls.
type Client interface {
	Predictions(ctx context.Context, dataPath string) ([]int, error)
	Scoring(ctx context.Context) (float64, error)
	SummaryStats(ctx context.Context) (map[string]models.ColumnSummary, error)
	Diagnostics(ctx context.Context) (models.DiagnosticsReport, error)
}

// Report holds the combined endpoint answers.
type Report struct {
	Predictions []int
	F1          float64
	Stats       map[string]models.ColumnSummary
	Diagnostics models.DiagnosticsReport
}

// Collector calls every reporting endpoint and writes the combined report.
type Collector struct {
	logger       *slog.Logger
	client       Client
	testDataPath string
	modelDir     string
}

// NewCollector constructs a Collector writing into modelDir.
func NewCollector(logger *slog.Logger, client Client, testDataPath, modelDir string) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger, client: client, testDataPath: testDataPath, modelDir: modelDir}
}

// ReportPath returns where the combined report is written.
func (c *Collector) ReportPath() string { return filepath.Join(c.modelDir, models.ReportFile) }

// Collect calls the endpoints in order and writes the report. Any endpoint
// failure aborts before the file is touched.
func (c *Collector) Collect(ctx context.Context) error {
	var (
		report Report
		err    error
	)
	if report.Predictions, err = c.client.Predictions(ctx, c.testDataPath); err != nil {
		return utils.NewAppError("reporting", "predictions", err)
	}
	if report.F1, err = c.client.Scoring(ctx); err != nil {
		return utils.NewAppError("reporting", "scoring", err)
	}
	if report.Stats, err = c.client.SummaryStats(ctx); err != nil {
		return utils.NewAppError("reporting", "summary stats", err)
	}
	if report.Diagnostics, err = c.client.Diagnostics(ctx); err != nil {
		return utils.NewAppError("reporting", "diagnostics", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, report); err != nil {
		return utils.NewAppError("reporting", "render report", err)
	}
	if err := os.MkdirAll(c.modelDir, 0o755); err != nil {
		return utils.NewAppError("reporting", "create model folder", err)
	}
	if err := os.WriteFile(c.ReportPath(), buf.Bytes(), 0o644); err != nil {
		return utils.NewAppError("reporting", "write report", err)
	}
	c.logger.Info("api report written", slog.String("path", c.ReportPath()))
	return nil
}

const rule = "--------------------------------------------------\n"

// Render writes the human-readable report.
func Render(w io.Writer, r Report) error {
	var b strings.Builder
	b.WriteString(rule)
	b.WriteString(heading("** Model reporting **"))
	b.WriteString(rule + "\n")

	b.WriteString(heading("Predictions:") + "\n")
	b.WriteString(formatInts(r.Predictions) + "\n")
	b.WriteString(rule)

	b.WriteString(heading("F1 score:") + "\n")
	b.WriteString(strconv.FormatFloat(r.F1, 'g', -1, 64) + "\n")
	b.WriteString(rule)

	b.WriteString(heading("Statistics:") + "\n")
	if err := statsTable(&b, r.Stats); err != nil {
		return err
	}
	b.WriteString(rule)

	b.WriteString(heading("Diagnostics:") + "\n")
	b.WriteString("missing data per column (%):\n")
	missing, err := json.MarshalIndent(r.Diagnostics.Missing, "", "    ")
	if err != nil {
		return fmt.Errorf("encode missing data: %w", err)
	}
	b.Write(missing)
	b.WriteString("\n\n")

	b.WriteString("Ingestion and training execution time:\n")
	b.WriteString(formatFloats(r.Diagnostics.TimeCheck) + "\n\n")

	b.WriteString("outdated packages:\n")
	if err := modulesTable(&b, r.Diagnostics.Outdated); err != nil {
		return err
	}
	b.WriteString("\n" + rule)

	_, err = io.WriteString(w, b.String())
	return err
}

func heading(title string) string {
	return strings.Repeat(" ", 10) + title + "\n"
}

func statsTable(w io.Writer, stats map[string]models.ColumnSummary) error {
	columns := make([]string, 0, len(stats))
	for name := range stats {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\tmean\tmedian\tstd_dev\t\n")
	for _, name := range columns {
		s := stats[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", name, formatFloat(s.Mean), formatFloat(s.Median), formatFloat(s.StdDev))
	}
	return tw.Flush()
}

func modulesTable(w io.Writer, modules []models.ModuleVersion) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "module\tcurrent\tlatest\n")
	for _, m := range modules {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Module, m.Current, m.Latest)
	}
	return tw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
