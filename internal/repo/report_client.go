package repo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/miradorstack/mirador-drift/internal/models"
)

// ReportClient calls the reporting API.
type ReportClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewReportClient constructs a client targeting the reporting API at baseURL.
func NewReportClient(baseURL string, timeout time.Duration) *ReportClient {
	return &ReportClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predictions asks the deployed model to label the dataset at dataPath.
func (c *ReportClient) Predictions(ctx context.Context, dataPath string) ([]int, error) {
	var resp models.PredictionResponse
	if err := postJSON(ctx, c.httpClient, resolvePath(c.baseURL, "/prediction"), models.PredictionRequest{DataPath: dataPath}, &resp); err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	return resp.Predictions, nil
}

// Scoring returns the F1 score of the deployed model on the test data.
func (c *ReportClient) Scoring(ctx context.Context) (float64, error) {
	var resp models.ScoreResponse
	if err := getJSON(ctx, c.httpClient, resolvePath(c.baseURL, "/scoring"), &resp); err != nil {
		return 0, fmt.Errorf("scoring request failed: %w", err)
	}
	return resp.F1, nil
}

// SummaryStats returns the per-column statistics of the consolidated dataset.
func (c *ReportClient) SummaryStats(ctx context.Context) (map[string]models.ColumnSummary, error) {
	resp := make(map[string]models.ColumnSummary)
	if err := getJSON(ctx, c.httpClient, resolvePath(c.baseURL, "/summarystats"), &resp); err != nil {
		return nil, fmt.Errorf("summary stats request failed: %w", err)
	}
	return resp, nil
}

// Diagnostics returns missing-data ratios, step timings and module versions.
func (c *ReportClient) Diagnostics(ctx context.Context) (models.DiagnosticsReport, error) {
	var resp models.DiagnosticsReport
	if err := getJSON(ctx, c.httpClient, resolvePath(c.baseURL, "/diagnostics"), &resp); err != nil {
		return models.DiagnosticsReport{}, fmt.Errorf("diagnostics request failed: %w", err)
	}
	return resp, nil
}
