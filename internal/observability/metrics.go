package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ecem_preprocess"

// Metrics holds the Prometheus counters, histograms, and gauges for the preprocessing pipeline.
type Metrics struct {
	StepsRun        *prometheus.CounterVec   // labels: step
	StepsFailed     *prometheus.CounterVec   // labels: step
	StepDuration    *prometheus.HistogramVec // labels: step
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Output metrics.
	ArtifactsWritten prometheus.Counter
	BytesWritten     prometheus.Counter
	LayerFeatures    *prometheus.CounterVec // labels: layer
	SkippedFeatures  *prometheus.CounterVec // labels: layer
}

func newMetrics() *Metrics {
	return &Metrics{
		StepsRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_run_total",
			Help:      "Pipeline steps started, by step.",
		}, []string{"step"}),
		StepsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_failed_total",
			Help:      "Pipeline steps that returned an error, by step.",
		}, []string{"step"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of a single pipeline step.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without error.",
		}),
		ArtifactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Output files written and published.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_written_total",
			Help:      "Bytes of output written, counted once per artifact.",
		}),
		LayerFeatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_features_total",
			Help:      "GeoJSON features written, by layer.",
		}, []string{"layer"}),
		SkippedFeatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_features_skipped_total",
			Help:      "Shapefile features left out of a layer because their cluster is unknown.",
		}, []string{"layer"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.mustRegister(prometheus.DefaultRegisterer)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.mustRegister(prometheus.NewRegistry())
	return m
}

func (m *Metrics) mustRegister(r prometheus.Registerer) {
	r.MustRegister(
		m.StepsRun,
		m.StepsFailed,
		m.StepDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.ArtifactsWritten,
		m.BytesWritten,
		m.LayerFeatures,
		m.SkippedFeatures,
	)
}

// WriteTextfile dumps the default registry in the node-exporter textfile
// format, for runs that exit before anything can scrape them.
func WriteTextfile(path string) error {
	return writeTextfile(path, prometheus.DefaultGatherer)
}

func writeTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
