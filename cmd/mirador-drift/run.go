package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-drift/internal/metrics"
)

var testingMode bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check for new data and drift; retrain and redeploy when needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, runErr := a.monitor().Run(cmd.Context(), testingMode)

		if a.cfg.Metrics.PushgatewayURL != "" {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
			defer cancel()
			if err := metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, prometheus.DefaultGatherer); err != nil {
				a.logger.Warn("metrics push failed", slog.Any("error", err))
			}
		}
		if runErr != nil {
			return runErr
		}

		a.logger.Info("run finished",
			slog.String("run_id", res.RunID),
			slog.Any("new_data", res.NewData),
			slog.Bool("first_implementation", res.FirstImplementation),
			slog.Float64("latest_score", res.LatestScore),
			slog.Float64("new_score", res.NewScore),
			slog.Bool("drift", res.Drift),
			slog.Bool("deployed", res.Deployed),
			slog.String("stopped", res.Stopped),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&testingMode, "testing", false, "never stop early: retrain and redeploy even without new data or drift")
}
