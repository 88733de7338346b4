package models

// ColumnSummary holds the summary statistics of one feature column.
type ColumnSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// ModuleVersion compares the version of a dependency built into the binary
// with the latest version published for it.
type ModuleVersion struct {
	Module  string `json:"module"`
	Current string `json:"current"`
	Latest  string `json:"latest"`
}

// DiagnosticsReport is the body of the diagnostics endpoint.
type DiagnosticsReport struct {
	Missing   map[string]float64 `json:"missing"`
	TimeCheck []float64          `json:"time_check"`
	Outdated  []ModuleVersion    `json:"outdated"`
}

// PredictionRequest asks for predictions of the deployed model on a dataset.
type PredictionRequest struct {
	DataPath string `json:"datapath"`
}

// PredictionResponse carries one predicted label per record.
type PredictionResponse struct {
	Predictions []int `json:"predictions"`
}

// ScoreResponse carries the F1 score of the deployed model on the test data.
type ScoreResponse struct {
	F1 float64 `json:"f1"`
}

// HealthResponse reports which production state the deployment is in.
type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`

	// LatencyP95MS is the p95 of recent successful requests per endpoint.
	LatencyP95MS map[string]float64 `json:"latency_p95_ms,omitempty"`
}
