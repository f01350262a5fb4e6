package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Area axes a dataset can be indexed by.
const (
	AreaCountry = "country"
	AreaCluster = "cluster"
)

// DefaultDatasetName is the dataset produced when no manifest exists.
const DefaultDatasetName = "ERA_Tmean_countries_sample"

// ReservedOutputs are the published file names owned by the fixed pipeline
// steps and the publish manifest. No dataset may write to them.
var ReservedOutputs = []string{"countries.js", "clusters.js", "countries.geojson", "clusters.geojson", "manifest.json"}

var datasetName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Dataset describes one CovJSON time-series output.
type Dataset struct {
	Name       string      `yaml:"name"`
	Area       string      `yaml:"area"`
	Template   string      `yaml:"template"`
	Output     string      `yaml:"output"`
	Parameters []Parameter `yaml:"parameters"`
}

// Parameter binds a CovJSON range key to the CSV that fills it.
type Parameter struct {
	Key string `yaml:"key"`
	CSV string `yaml:"csv"`
}

type datasetManifest struct {
	Datasets []Dataset `yaml:"datasets"`
}

// DefaultDatasets returns the built-in country temperature sample, with
// paths relative to dir.
func DefaultDatasets(dir string) []Dataset {
	return []Dataset{{
		Name:     DefaultDatasetName,
		Area:     AreaCountry,
		Template: filepath.Join(dir, "timeseries_country.covjson_template"),
		Output:   DefaultDatasetName + ".covjson",
		Parameters: []Parameter{
			{Key: "TEMP", CSV: filepath.Join(dir, DefaultDatasetName+".csv")},
		},
	}}
}

// LoadDatasets reads the YAML dataset manifest at path. Relative template and
// CSV paths are resolved against the manifest's directory. A missing manifest
// yields DefaultDatasets for that directory.
func LoadDatasets(path string) ([]Dataset, error) {
	dir := filepath.Dir(path)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultDatasets(dir), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset manifest: %w", err)
	}

	var m datasetManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse dataset manifest %s: %w", path, err)
	}
	if len(m.Datasets) == 0 {
		return nil, fmt.Errorf("dataset manifest %s: no datasets", path)
	}

	seen := make(map[string]struct{}, len(m.Datasets))
	outputs := make(map[string]string, len(m.Datasets))
	for i := range m.Datasets {
		ds := &m.Datasets[i]
		if err := ds.validate(); err != nil {
			return nil, fmt.Errorf("dataset manifest %s: entry %d: %w", path, i+1, err)
		}
		if _, dup := seen[ds.Name]; dup {
			return nil, fmt.Errorf("dataset manifest %s: duplicate dataset %q", path, ds.Name)
		}
		seen[ds.Name] = struct{}{}
		if slices.Contains(ReservedOutputs, ds.Output) {
			return nil, fmt.Errorf("dataset manifest %s: dataset %s: output %q is reserved", path, ds.Name, ds.Output)
		}
		if other, dup := outputs[ds.Output]; dup {
			return nil, fmt.Errorf("dataset manifest %s: datasets %s and %s both write %q", path, other, ds.Name, ds.Output)
		}
		outputs[ds.Output] = ds.Name
		ds.resolve(dir)
	}
	return m.Datasets, nil
}

func (d *Dataset) validate() error {
	if !datasetName.MatchString(d.Name) {
		return fmt.Errorf("invalid dataset name %q", d.Name)
	}
	switch d.Area {
	case AreaCountry, AreaCluster:
	case "":
		d.Area = AreaCountry
	default:
		return fmt.Errorf("dataset %s: area must be %q or %q, got %q", d.Name, AreaCountry, AreaCluster, d.Area)
	}
	if d.Template == "" {
		return fmt.Errorf("dataset %s: template is required", d.Name)
	}
	if d.Output == "" {
		d.Output = d.Name + ".covjson"
	}
	if filepath.Base(d.Output) != d.Output {
		return fmt.Errorf("dataset %s: output %q must be a file name", d.Name, d.Output)
	}
	if len(d.Parameters) == 0 {
		return fmt.Errorf("dataset %s: at least one parameter is required", d.Name)
	}
	keys := make(map[string]struct{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Key == "" || p.CSV == "" {
			return fmt.Errorf("dataset %s: parameters need a key and a csv", d.Name)
		}
		if _, dup := keys[p.Key]; dup {
			return fmt.Errorf("dataset %s: duplicate parameter %q", d.Name, p.Key)
		}
		keys[p.Key] = struct{}{}
	}
	return nil
}

func (d *Dataset) resolve(dir string) {
	d.Template = resolvePath(dir, d.Template)
	for i := range d.Parameters {
		d.Parameters[i].CSV = resolvePath(dir, d.Parameters[i].CSV)
	}
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
