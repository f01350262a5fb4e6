package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/ecem-data-etl/internal/config"
	"github.com/couchcryptid/ecem-data-etl/internal/domain"
)

// Fixed step names. Time-series steps are named TimeseriesStepPrefix + dataset name.
const (
	StepCountriesJS      = "countries-js"
	StepClustersJS       = "clusters-js"
	StepCountriesGeoJSON = "countries-geojson"
	StepClustersGeoJSON  = "clusters-geojson"
	TimeseriesStepPrefix = "timeseries:"
)

// step builds the bytes of one output file.
type step struct {
	name   string
	output string
	build  func(ctx context.Context, refs *domain.References) ([]byte, error)
}

func (p *Pipeline) buildSteps() []step {
	steps := []step{
		{name: StepCountriesJS, output: "countries.js", build: p.countriesJS},
		{name: StepClustersJS, output: "clusters.js", build: p.clustersJS},
		{name: StepCountriesGeoJSON, output: "countries.geojson", build: p.countriesGeoJSON},
		{name: StepClustersGeoJSON, output: "clusters.geojson", build: p.clustersGeoJSON},
	}
	for _, ds := range p.inputs.Datasets {
		steps = append(steps, step{
			name:   TimeseriesStepPrefix + ds.Name,
			output: ds.Output,
			build: func(ctx context.Context, refs *domain.References) ([]byte, error) {
				return p.timeseries(ctx, ds, refs)
			},
		})
	}
	return steps
}

func (p *Pipeline) objTemplate() (string, error) {
	tmpl, err := p.readFile(p.inputs.ObjTemplate)
	if err != nil {
		return "", fmt.Errorf("read js template: %w", err)
	}
	return string(tmpl), nil
}

func (p *Pipeline) countriesJS(_ context.Context, refs *domain.References) ([]byte, error) {
	tmpl, err := p.objTemplate()
	if err != nil {
		return nil, err
	}
	return domain.RenderObjectModule(tmpl, refs.Countries.Names())
}

func (p *Pipeline) clustersJS(_ context.Context, refs *domain.References) ([]byte, error) {
	tmpl, err := p.objTemplate()
	if err != nil {
		return nil, err
	}
	return domain.RenderObjectModule(tmpl, refs.Clusters.Owners())
}

func (p *Pipeline) countriesGeoJSON(ctx context.Context, refs *domain.References) ([]byte, error) {
	set, err := p.features.ReadClusterFeatures(ctx)
	if err != nil {
		return nil, err
	}
	defer set.Close()

	fc, err := domain.BuildCountryLayer(set, refs.Clusters, p.layer)
	if err != nil {
		return nil, err
	}
	p.metrics.LayerFeatures.WithLabelValues(fc.Name).Add(float64(len(fc.Features)))
	return domain.MarshalLayer(fc)
}

func (p *Pipeline) clustersGeoJSON(ctx context.Context, refs *domain.References) ([]byte, error) {
	set, err := p.features.ReadClusterFeatures(ctx)
	if err != nil {
		return nil, err
	}
	defer set.Close()

	fc, skipped, err := domain.BuildClusterLayer(set, refs.Clusters, p.layer)
	if err != nil {
		return nil, err
	}
	for _, code := range skipped {
		p.logger.Debug("cluster not in reference table, skipped", "cluster", code)
	}
	p.metrics.LayerFeatures.WithLabelValues(fc.Name).Add(float64(len(fc.Features)))
	p.metrics.SkippedFeatures.WithLabelValues(fc.Name).Add(float64(len(skipped)))
	return domain.MarshalLayer(fc)
}

func (p *Pipeline) timeseries(ctx context.Context, ds config.Dataset, refs *domain.References) ([]byte, error) {
	raw, err := p.readFile(ds.Template)
	if err != nil {
		return nil, fmt.Errorf("read covjson template: %w", err)
	}
	cov, err := domain.ParseCoverageTemplate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Template, err)
	}

	params := make([]domain.ParameterSeries, 0, len(ds.Parameters))
	for _, param := range ds.Parameters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := p.tables.ReadTable(param.CSV)
		if err != nil {
			return nil, err
		}
		series, err := domain.ParseTimeseries(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", param.CSV, err)
		}
		params = append(params, domain.ParameterSeries{Key: param.Key, Series: series})
	}

	label := refs.CountryLabel
	if ds.Area == config.AreaCluster {
		label = refs.ClusterLabel
	}
	if err := domain.FillCoverage(cov, ds.Area, params, label); err != nil {
		return nil, err
	}
	return domain.MarshalCoverage(cov)
}
