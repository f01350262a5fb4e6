package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "generated", cfg.GeneratedDir)
	assert.Equal(t, filepath.Join("public", "app", "data"), cfg.AppDataDir)
	assert.Equal(t, filepath.Join("data", "timeseries", "datasets.yaml"), cfg.DatasetsFile)
	assert.Equal(t, filepath.Join("data", "ECEM_countrynames.csv"), cfg.CountryNamesPath)
	assert.Equal(t, filepath.Join("data", "ECEM_cluster_names.csv"), cfg.ClusterNamesPath)
	assert.Equal(t, filepath.Join("data", "obj.js_template"), cfg.ObjTemplatePath)
	assert.Equal(t, filepath.Join("data", "cluster_borders", "Clusters_Borders.shp"), cfg.ClusterShapefilePath)
	assert.InDelta(t, 0.005, cfg.SimplifyTolerance, 1e-12)
	assert.Equal(t, 3, cfg.CoordinatePrecision)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "public", cfg.WebRoot)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.MetricsTextfile)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "ecem-artifacts", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ECEM_DATA_DIR", "/srv/ecem")
	t.Setenv("ECEM_GENERATED_DIR", "/tmp/gen")
	t.Setenv("ECEM_APP_DATA_DIR", "/srv/www/data")
	t.Setenv("ECEM_COUNTRY_NAMES", "/srv/ecem/countries.xlsx")
	t.Setenv("SIMPLIFY_TOLERANCE", "0.01")
	t.Setenv("COORDINATE_PRECISION", "5")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("METRICS_TEXTFILE", "/var/lib/node_exporter/ecem.prom")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "artifacts")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/ecem", cfg.DataDir)
	assert.Equal(t, "/tmp/gen", cfg.GeneratedDir)
	assert.Equal(t, "/srv/www/data", cfg.AppDataDir)
	assert.Equal(t, "/srv/ecem/timeseries/datasets.yaml", cfg.DatasetsFile)
	assert.Equal(t, "/srv/ecem/countries.xlsx", cfg.CountryNamesPath)
	assert.Equal(t, "/srv/ecem/ECEM_cluster_names.csv", cfg.ClusterNamesPath)
	assert.InDelta(t, 0.01, cfg.SimplifyTolerance, 1e-12)
	assert.Equal(t, 5, cfg.CoordinatePrecision)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/var/lib/node_exporter/ecem.prom", cfg.MetricsTextfile)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "artifacts", cfg.KafkaTopic)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"SIMPLIFY_TOLERANCE", "0"},
		{"SIMPLIFY_TOLERANCE", "abc"},
		{"COORDINATE_PRECISION", "-1"},
		{"COORDINATE_PRECISION", "16"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_SameOutputDirs(t *testing.T) {
	t.Setenv("ECEM_GENERATED_DIR", "out")
	t.Setenv("ECEM_APP_DATA_DIR", "out")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ECEM_DATA_DIR=/from/dotenv\nLOG_LEVEL=warn\n"), 0o600))
	t.Setenv("ECEM_DATA_DIR", "")
	t.Setenv("LOG_LEVEL", "error")
	require.NoError(t, os.Unsetenv("ECEM_DATA_DIR"))

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "/from/dotenv", os.Getenv("ECEM_DATA_DIR"))
	assert.Equal(t, "error", os.Getenv("LOG_LEVEL"), "existing variables win")
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
