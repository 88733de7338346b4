package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting the pipeline, the reporting API and the CLI need.
// It is built once in main and passed down explicitly.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Training    TrainingConfig    `yaml:"training"`
	Server      ServerConfig      `yaml:"server"`
	Reporting   ReportingConfig   `yaml:"reporting"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Cache       CacheConfig       `yaml:"cache"`
}

// PathsConfig locates the data folders and the production deployment.
type PathsConfig struct {
	InputFolder    string `yaml:"inputFolder"`
	OutputFolder   string `yaml:"outputFolder"`
	TestData       string `yaml:"testData"`
	OutputModel    string `yaml:"outputModel"`
	ProdDeployment string `yaml:"prodDeployment"`
}

// TrainingConfig holds the fixed classifier hyperparameters.
type TrainingConfig struct {
	C       float64 `yaml:"c"`
	MaxIter int     `yaml:"maxIter"`
	Tol     float64 `yaml:"tol"`
	Seed    int64   `yaml:"seed"`
}

// ServerConfig controls the reporting API listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ReportingConfig controls the terminal reporting step of a run.
type ReportingConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// DiagnosticsConfig configures the dependency freshness check.
type DiagnosticsConfig struct {
	ModuleProxy string        `yaml:"moduleProxy"`
	Timeout     time.Duration `yaml:"timeout"`
	OutdatedTTL time.Duration `yaml:"outdatedTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// MetricsConfig controls Prometheus exposure for batch runs.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayURL"`
	Job            string `yaml:"job"`
}

// CacheConfig controls the Valkey-backed cache and run lock.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	LockTTL      time.Duration `yaml:"lockTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_DRIFT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the pipeline cannot run without.
func (c Config) Validate() error {
	missing := make([]string, 0)
	if c.Paths.InputFolder == "" {
		missing = append(missing, "paths.inputFolder")
	}
	if c.Paths.OutputFolder == "" {
		missing = append(missing, "paths.outputFolder")
	}
	if c.Paths.OutputModel == "" {
		missing = append(missing, "paths.outputModel")
	}
	if c.Paths.ProdDeployment == "" {
		missing = append(missing, "paths.prodDeployment")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Training.C <= 0 {
		return fmt.Errorf("config: training.c must be positive, got %v", c.Training.C)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			InputFolder:    "practicedata",
			OutputFolder:   "ingesteddata",
			TestData:       "testdata",
			OutputModel:    "practicemodels",
			ProdDeployment: "production_deployment",
		},
		Training: TrainingConfig{
			C:       1.0,
			MaxIter: 100,
			Tol:     1e-4,
			Seed:    0,
		},
		Server: ServerConfig{
			Address:         ":8000",
			GracefulTimeout: 10 * time.Second,
		},
		Reporting: ReportingConfig{
			Enabled: true,
			BaseURL: "http://127.0.0.1:8000",
			Timeout: 2 * time.Minute,
		},
		Diagnostics: DiagnosticsConfig{
			ModuleProxy: "https://proxy.golang.org",
			Timeout:     5 * time.Second,
			OutdatedTTL: time.Hour,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Metrics: MetricsConfig{Job: "mirador_drift"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			LockTTL:      30 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_DRIFT_INPUT_FOLDER"); v != "" {
		cfg.Paths.InputFolder = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_OUTPUT_FOLDER"); v != "" {
		cfg.Paths.OutputFolder = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_TEST_DATA"); v != "" {
		cfg.Paths.TestData = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_OUTPUT_MODEL"); v != "" {
		cfg.Paths.OutputModel = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_PROD_DEPLOYMENT"); v != "" {
		cfg.Paths.ProdDeployment = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_REPORTING_URL"); v != "" {
		cfg.Reporting.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_REPORTING_ENABLED"); v != "" {
		cfg.Reporting.Enabled = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_DRIFT_MODULE_PROXY"); v != "" {
		cfg.Diagnostics.ModuleProxy = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_DRIFT_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_DRIFT_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_DRIFT_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_DRIFT_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MIRADOR_DRIFT_CACHE_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.LockTTL = d
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
