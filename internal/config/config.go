// Package config loads pipeline settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataDir      string
	GeneratedDir string
	AppDataDir   string
	DatasetsFile string

	CountryNamesPath     string
	ClusterNamesPath     string
	ObjTemplatePath      string
	ClusterShapefilePath string

	SimplifyTolerance   float64
	CoordinatePrecision int

	HTTPAddr        string
	WebRoot         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	MetricsTextfile string

	// Artifact announcements are disabled when no broker is set.
	KafkaBrokers []string
	KafkaTopic   string
}

// KafkaEnabled reports whether artifacts are announced after a run.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// LoadDotEnv reads a .env file into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tolerance, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("SIMPLIFY_TOLERANCE", "0.005"), 64)
	if err != nil || tolerance <= 0 {
		return nil, errors.New("invalid SIMPLIFY_TOLERANCE: must be a positive number")
	}

	precision, err := strconv.Atoi(sharedcfg.EnvOrDefault("COORDINATE_PRECISION", "3"))
	if err != nil || precision < 0 || precision > 15 {
		return nil, errors.New("invalid COORDINATE_PRECISION: must be between 0 and 15")
	}

	dataDir := sharedcfg.EnvOrDefault("ECEM_DATA_DIR", "data")
	cfg := &Config{
		DataDir:      dataDir,
		GeneratedDir: sharedcfg.EnvOrDefault("ECEM_GENERATED_DIR", "generated"),
		AppDataDir:   sharedcfg.EnvOrDefault("ECEM_APP_DATA_DIR", filepath.Join("public", "app", "data")),
		DatasetsFile: sharedcfg.EnvOrDefault("ECEM_DATASETS_FILE", filepath.Join(dataDir, "timeseries", "datasets.yaml")),

		CountryNamesPath:     sharedcfg.EnvOrDefault("ECEM_COUNTRY_NAMES", filepath.Join(dataDir, "ECEM_countrynames.csv")),
		ClusterNamesPath:     sharedcfg.EnvOrDefault("ECEM_CLUSTER_NAMES", filepath.Join(dataDir, "ECEM_cluster_names.csv")),
		ObjTemplatePath:      filepath.Join(dataDir, "obj.js_template"),
		ClusterShapefilePath: filepath.Join(dataDir, "cluster_borders", "Clusters_Borders.shp"),

		SimplifyTolerance:   tolerance,
		CoordinatePrecision: precision,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		WebRoot:         sharedcfg.EnvOrDefault("ECEM_WEB_ROOT", "public"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "ecem-artifacts"),
	}

	if cfg.GeneratedDir == cfg.AppDataDir {
		return nil, errors.New("ECEM_GENERATED_DIR and ECEM_APP_DATA_DIR must differ")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}
