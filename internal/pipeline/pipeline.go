// Package pipeline runs the preprocessing steps that turn the source tables,
// shapefile and time series into the web app's data files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/ecem-data-etl/internal/config"
	"github.com/couchcryptid/ecem-data-etl/internal/domain"
	"github.com/couchcryptid/ecem-data-etl/internal/observability"
)

// ErrUnknownStep is returned by Run for a step name that does not exist.
var ErrUnknownStep = errors.New("unknown step")

// TableReader reads a CSV or spreadsheet table into rows.
type TableReader interface {
	ReadTable(path string) ([][]string, error)
}

// FeatureSource reads the cluster borders. Each call returns a fresh set.
type FeatureSource interface {
	ReadClusterFeatures(ctx context.Context) (*domain.FeatureSet, error)
}

// ArtifactStore writes and publishes output files.
type ArtifactStore interface {
	Save(ctx context.Context, step, name string, data []byte) (domain.Artifact, error)
	WriteManifest(ctx context.Context, m domain.Manifest) (string, error)
}

// Announcer tells downstream consumers about freshly published artifacts.
type Announcer interface {
	Announce(ctx context.Context, artifacts []domain.Artifact) error
}

// Inputs locates the source files of a run.
type Inputs struct {
	CountryNames string
	ClusterNames string
	ObjTemplate  string
	Datasets     []config.Dataset
}

// InputsFromConfig collects the input paths from cfg and the given datasets.
func InputsFromConfig(cfg *config.Config, datasets []config.Dataset) Inputs {
	return Inputs{
		CountryNames: cfg.CountryNamesPath,
		ClusterNames: cfg.ClusterNamesPath,
		ObjTemplate:  cfg.ObjTemplatePath,
		Datasets:     datasets,
	}
}

// Pipeline runs the preprocessing steps in a fixed order.
type Pipeline struct {
	inputs    Inputs
	layer     domain.LayerOptions
	tables    TableReader
	features  FeatureSource
	store     ArtifactStore
	announcer Announcer
	readFile  func(string) ([]byte, error)
	logger    *slog.Logger
	metrics   *observability.Metrics
	steps     []step
}

// New creates a Pipeline. announcer may be nil to skip announcements.
func New(inputs Inputs, layer domain.LayerOptions, tables TableReader, features FeatureSource, store ArtifactStore, announcer Announcer, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	p := &Pipeline{
		inputs:    inputs,
		layer:     layer,
		tables:    tables,
		features:  features,
		store:     store,
		announcer: announcer,
		readFile:  os.ReadFile,
		logger:    logger,
		metrics:   metrics,
	}
	p.steps = p.buildSteps()
	return p
}

// StepNames lists every step in run order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.name
	}
	return names
}

// OutputNames lists the file written by each step, in run order.
func (p *Pipeline) OutputNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.output
	}
	return names
}

// Run executes the named steps, or all of them when none are given, always
// in pipeline order. The first failing step aborts the run. On success the
// manifest is written and the artifacts are announced.
func (p *Pipeline) Run(ctx context.Context, only ...string) (domain.Manifest, error) {
	selected, err := p.selectSteps(only)
	if err != nil {
		return domain.Manifest{}, err
	}

	p.logger.Info("pipeline started", "steps", len(selected))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	start := time.Now()

	refs, err := p.loadReferences()
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("load reference tables: %w", err)
	}

	artifacts := make([]domain.Artifact, 0, len(selected))
	for _, s := range selected {
		if err := ctx.Err(); err != nil {
			return domain.Manifest{}, err
		}
		art, err := p.runStep(ctx, s, refs)
		if err != nil {
			return domain.Manifest{}, fmt.Errorf("step %s: %w", s.name, err)
		}
		artifacts = append(artifacts, art)
	}

	manifest := domain.NewManifest(artifacts)
	path, err := p.store.WriteManifest(ctx, manifest)
	if err != nil {
		return domain.Manifest{}, err
	}
	p.logger.Info("manifest written", "path", path, "artifacts", len(artifacts))

	if p.announcer != nil {
		if err := p.announcer.Announce(ctx, artifacts); err != nil {
			return manifest, err
		}
	}

	p.metrics.LastSuccess.SetToCurrentTime()
	p.logger.Info("pipeline finished", "artifacts", len(artifacts), "duration", time.Since(start))
	return manifest, nil
}

func (p *Pipeline) runStep(ctx context.Context, s step, refs *domain.References) (domain.Artifact, error) {
	start := time.Now()
	p.metrics.StepsRun.WithLabelValues(s.name).Inc()
	p.logger.Info("step started", "step", s.name, "artifact", s.output)

	data, err := s.build(ctx, refs)
	if err == nil {
		var art domain.Artifact
		art, err = p.store.Save(ctx, s.name, s.output, data)
		if err == nil {
			elapsed := time.Since(start)
			p.metrics.StepDuration.WithLabelValues(s.name).Observe(elapsed.Seconds())
			p.metrics.ArtifactsWritten.Inc()
			p.metrics.BytesWritten.Add(float64(art.Bytes))
			p.logger.Info("step finished", "step", s.name, "artifact", s.output, "bytes", art.Bytes, "duration", elapsed)
			return art, nil
		}
	}

	p.metrics.StepsFailed.WithLabelValues(s.name).Inc()
	p.logger.Error("step failed", "step", s.name, "error", err)
	return domain.Artifact{}, err
}

func (p *Pipeline) selectSteps(only []string) ([]step, error) {
	if len(only) == 0 {
		return p.steps, nil
	}
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}
	selected := make([]step, 0, len(only))
	for _, s := range p.steps {
		if want[s.name] {
			selected = append(selected, s)
			delete(want, s.name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for _, name := range only {
			if want[name] {
				unknown = append(unknown, name)
			}
		}
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownStep,
			strings.Join(unknown, ", "), strings.Join(p.StepNames(), ", "))
	}
	return selected, nil
}

// loadReferences reads both reference tables once per run.
func (p *Pipeline) loadReferences() (*domain.References, error) {
	countryRows, err := p.tables.ReadTable(p.inputs.CountryNames)
	if err != nil {
		return nil, err
	}
	countries, err := domain.ParseCountries(countryRows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.inputs.CountryNames, err)
	}

	clusterRows, err := p.tables.ReadTable(p.inputs.ClusterNames)
	if err != nil {
		return nil, err
	}
	clusters, err := domain.ParseClusters(clusterRows, countries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.inputs.ClusterNames, err)
	}

	p.logger.Debug("reference tables loaded", "countries", countries.Len(), "clusters", clusters.Len())
	return &domain.References{Countries: countries, Clusters: clusters}, nil
}
