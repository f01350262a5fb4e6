package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.StepsRun.WithLabelValues("countries-js").Inc()
	a.ArtifactsWritten.Add(2)

	assert.InDelta(t, 1, testutil.ToFloat64(a.StepsRun.WithLabelValues("countries-js")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(a.ArtifactsWritten), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.ArtifactsWritten), 0)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	m.mustRegister(reg)
	m.LayerFeatures.WithLabelValues("clusters").Add(7)
	m.PipelineRunning.Set(0)

	path := filepath.Join(t.TempDir(), "ecem.prom")
	require.NoError(t, writeTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ecem_preprocess_layer_features_total{layer="clusters"} 7`)
	assert.Contains(t, string(data), "ecem_preprocess_pipeline_running 0")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := writeTextfile(filepath.Join(t.TempDir(), "missing", "ecem.prom"), prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write metrics textfile")
}
