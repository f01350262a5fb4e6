// Command etl is the ecem-preprocess CLI: it builds the web app's data files
// and can serve the app together with health and metrics endpoints.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ecem-data-etl/internal/adapter/fsstore"
	"github.com/couchcryptid/ecem-data-etl/internal/adapter/gdal"
	kafkaadapter "github.com/couchcryptid/ecem-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ecem-data-etl/internal/adapter/tabular"
	"github.com/couchcryptid/ecem-data-etl/internal/config"
	"github.com/couchcryptid/ecem-data-etl/internal/domain"
	"github.com/couchcryptid/ecem-data-etl/internal/observability"
	"github.com/couchcryptid/ecem-data-etl/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "ecem-preprocess",
		Short:         "Build the ECEM web app data files from the source datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")

	root.AddCommand(newRunCmd(), newListCmd(), newServeCmd())
	return root
}

// app bundles what every subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
	}, nil
}

// newPipeline wires the adapters. The returned close function releases the
// Kafka writer when announcements are enabled.
func (a *app) newPipeline() (*pipeline.Pipeline, func(), error) {
	datasets, err := config.LoadDatasets(a.cfg.DatasetsFile)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var announcer pipeline.Announcer
	if a.cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(a.cfg, a.logger)
		announcer = writer
		closeFn = func() {
			if err := writer.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}
		a.logger.Info("artifact announcements enabled", "topic", a.cfg.KafkaTopic)
	}

	p := pipeline.New(
		pipeline.InputsFromConfig(a.cfg, datasets),
		domain.LayerOptions{SimplifyTolerance: a.cfg.SimplifyTolerance, Precision: a.cfg.CoordinatePrecision},
		tabular.NewReader(),
		gdal.NewShapefileSource(a.cfg.ClusterShapefilePath, a.logger),
		fsstore.NewStore(a.cfg.GeneratedDir, a.cfg.AppDataDir, a.logger),
		announcer,
		a.logger,
		a.metrics,
	)
	return p, closeFn, nil
}
