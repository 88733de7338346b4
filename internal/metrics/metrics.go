package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeNoNewData = "no_new_data"
	OutcomeNoDrift   = "no_drift"
	OutcomeDeployed  = "deployed"
	OutcomeError     = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_drift",
			Name:      "runs_total",
			Help:      "Total number of monitor runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_drift",
			Name:      "run_seconds",
			Help:      "Monitor run latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	stepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_drift",
			Name:      "step_seconds",
			Help:      "Pipeline step latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	scoreGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mirador_drift",
			Name:      "f1_score",
			Help:      "Most recent F1 scores: the deployed record and the freshly computed one.",
		},
		[]string{"kind"},
	)

	driftTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_drift",
			Name:      "drift_detected_total",
			Help:      "Number of runs where the deployed model scored below its production record.",
		},
	)

	deploymentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_drift",
			Name:      "deployments_total",
			Help:      "Number of models copied into the production folder.",
		},
	)

	apiRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_drift",
			Name:      "api_request_seconds",
			Help:      "Reporting API latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "outcome"},
	)
)

// Collectors returns every collector owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		stepDurationSeconds,
		scoreGauge,
		driftTotal,
		deploymentsTotal,
		apiRequestSeconds,
	}
}

// Register attaches mirador-drift collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	for _, collector := range Collectors() {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeNoNewData, OutcomeNoDrift, OutcomeDeployed:
	default:
		outcome = OutcomeError
	}
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.Observe(nonNegative(duration).Seconds())
}

// ObserveStep records how long a pipeline step took.
func ObserveStep(step string, duration time.Duration) {
	stepDurationSeconds.WithLabelValues(step).Observe(nonNegative(duration).Seconds())
}

// SetScores publishes the deployed score record and the fresh score.
func SetScores(latest, current float64) {
	scoreGauge.WithLabelValues("latest").Set(latest)
	scoreGauge.WithLabelValues("current").Set(current)
}

// IncDrift counts a drift detection.
func IncDrift() {
	driftTotal.Inc()
}

// IncDeployments counts a completed deployment.
func IncDeployments() {
	deploymentsTotal.Inc()
}

// ObserveRequest records a reporting API call.
func ObserveRequest(endpoint string, duration time.Duration, failed bool) {
	outcome := "success"
	if failed {
		outcome = "error"
	}
	apiRequestSeconds.WithLabelValues(endpoint, outcome).Observe(nonNegative(duration).Seconds())
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
