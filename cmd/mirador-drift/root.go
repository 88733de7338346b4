package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-drift/internal/cache"
	"github.com/miradorstack/mirador-drift/internal/config"
	"github.com/miradorstack/mirador-drift/internal/deployment"
	"github.com/miradorstack/mirador-drift/internal/diagnostics"
	"github.com/miradorstack/mirador-drift/internal/engine"
	"github.com/miradorstack/mirador-drift/internal/ingestion"
	"github.com/miradorstack/mirador-drift/internal/metrics"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/reporting"
	"github.com/miradorstack/mirador-drift/internal/repo"
	"github.com/miradorstack/mirador-drift/internal/scoring"
	"github.com/miradorstack/mirador-drift/internal/services"
	"github.com/miradorstack/mirador-drift/internal/training"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mirador-drift",
	Short: "Model monitoring, retraining and redeployment pipeline",
	Long: `mirador-drift ingests CSV data, trains a binary classifier, scores it and
deploys it. The run command checks for new data and model drift and retrains
and redeploys when needed; serve exposes the reporting API.`,
	Example: `  # Prepare an empty production folder
  $ mirador-drift init

  # Check for new data and drift, redeploy when needed
  $ mirador-drift run

  # Serve the reporting API
  $ mirador-drift serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (default $MIRADOR_DRIFT_CONFIG)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

// app holds everything a subcommand needs, built once from the config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	logClose io.Closer
	cache    cache.Provider
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, closer, err := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		closer.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		logClose: closer,
		cache:    cache.New(cfg.Cache, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("close cache", slog.Any("error", err))
	}
	_ = a.logClose.Close()
}

func (a *app) testDataPath() string {
	return filepath.Join(a.cfg.Paths.TestData, models.TestDataFile)
}

func (a *app) ingester() *ingestion.Ingester {
	return ingestion.NewIngester(a.logger, a.cfg.Paths.InputFolder, a.cfg.Paths.OutputFolder)
}

func (a *app) trainer() *training.Trainer {
	return training.NewTrainer(a.logger, a.ingester().DatasetPath(), a.cfg.Paths.OutputModel, a.cfg.Training)
}

func (a *app) scorer() *scoring.Scorer {
	return scoring.NewScorer(a.logger, a.cfg.Paths.OutputModel)
}

func (a *app) deployer() *deployment.Deployer {
	return deployment.NewDeployer(a.logger, a.cfg.Paths.ProdDeployment)
}

func (a *app) collector() *reporting.Collector {
	client := repo.NewReportClient(a.cfg.Reporting.BaseURL, a.cfg.Reporting.Timeout)
	return reporting.NewCollector(a.logger, client, a.testDataPath(), a.cfg.Paths.OutputModel)
}

func (a *app) monitor() *engine.Monitor {
	ingester := a.ingester()
	var reporter engine.Reporter
	if a.cfg.Reporting.Enabled {
		reporter = a.collector()
	}
	m := engine.NewMonitor(
		a.logger,
		engine.Paths{
			InputDir:     a.cfg.Paths.InputFolder,
			ProdDir:      a.cfg.Paths.ProdDeployment,
			DatasetPath:  ingester.DatasetPath(),
			ManifestPath: ingester.ManifestPath(),
			ModelDir:     a.cfg.Paths.OutputModel,
		},
		ingester,
		a.trainer(),
		a.scorer(),
		a.deployer(),
		reporter,
	)
	return m.WithLock(a.cache, a.cfg.Cache.LockTTL)
}

func (a *app) reportService() *services.ReportService {
	proxy := repo.NewModProxyClient(a.cfg.Diagnostics.ModuleProxy, a.cfg.Diagnostics.Timeout, a.cache, a.cfg.Diagnostics.OutdatedTTL)
	diag := diagnostics.New(a.logger, diagnostics.Options{
		InputDir:    a.cfg.Paths.InputFolder,
		DatasetPath: a.ingester().DatasetPath(),
		ProdDir:     a.cfg.Paths.ProdDeployment,
		Training:    a.cfg.Training,
	}, proxy)
	return services.NewReportService(a.logger, diag, a.scorer(), services.ReportOptions{
		ProdDir:      a.cfg.Paths.ProdDeployment,
		TestDataPath: a.testDataPath(),
		DataDirs: []string{
			a.cfg.Paths.InputFolder,
			a.cfg.Paths.OutputFolder,
			a.cfg.Paths.TestData,
		},
	})
}
