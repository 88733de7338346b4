package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-drift/internal/deployment"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/reporting"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an empty manifest and a zero score into the production folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		wrote, err := deployment.Bootstrap(a.cfg.Paths.ProdDeployment)
		if err != nil {
			return err
		}
		if wrote {
			a.logger.Info("production folder bootstrapped", slog.String("path", a.cfg.Paths.ProdDeployment))
		} else {
			a.logger.Info("production folder already initialised", slog.String("path", a.cfg.Paths.ProdDeployment))
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Merge every input file into the consolidated dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = a.ingester().Merge(cmd.Context())
		return err
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifier on the consolidated dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = a.trainer().Train(cmd.Context())
		return err
	},
}

var (
	scoreData  string
	scoreModel string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute and save the F1 score of the trained model on the test data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dataPath := scoreData
		if dataPath == "" {
			dataPath = a.testDataPath()
		}
		modelPath := scoreModel
		if modelPath == "" {
			modelPath = a.trainer().ModelPath()
		}
		f1, err := a.scorer().Score(cmd.Context(), dataPath, modelPath, true)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(f1, 'g', -1, 64))
		return nil
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Copy the trained model, its score and the manifest to production",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.deployer().Deploy(cmd.Context(), deployment.Artifacts{
			Model:    a.trainer().ModelPath(),
			Score:    a.scorer().ScorePath(),
			Manifest: a.ingester().ManifestPath(),
		})
	},
}

var reportSkipAPI bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the confusion matrix and collect the reporting API answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := filepath.Join(a.cfg.Paths.OutputModel, models.ConfusionMatrixFile)
		modelPath := filepath.Join(a.cfg.Paths.ProdDeployment, models.ModelFile)
		c, err := reporting.ConfusionMatrix(cmd.Context(), modelPath, a.testDataPath(), out)
		if err != nil {
			return err
		}
		a.logger.Info("confusion matrix written", slog.String("path", out),
			slog.Int("tp", c.TP), slog.Int("fp", c.FP), slog.Int("tn", c.TN), slog.Int("fn", c.FN))

		if reportSkipAPI {
			return nil
		}
		return a.collector().Collect(cmd.Context())
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreData, "data", "", "dataset to score (default: the test data)")
	scoreCmd.Flags().StringVar(&scoreModel, "model", "", "model to score (default: the trained model)")
	reportCmd.Flags().BoolVar(&reportSkipAPI, "skip-api", false, "only write the confusion matrix")
}
