package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/couchcryptid/ecem-data-etl/internal/adapter/fsstore"
	"github.com/couchcryptid/ecem-data-etl/internal/domain"
)

// ── Manifest ──

func validateManifest(dir string) *phase {
	p := &phase{name: "Manifest matches published files"}

	m, err := fsstore.ReadManifest(dir)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(m.Artifacts) == 0 {
		p.errorf("manifest lists no artifacts")
	}
	for _, art := range m.Artifacts {
		data, err := os.ReadFile(filepath.Join(dir, art.Name))
		if err != nil {
			p.errorf("%s: %v", art.Name, err)
			continue
		}
		if int64(len(data)) != art.Bytes {
			p.errorf("%s: %d bytes on disk, manifest says %d", art.Name, len(data), art.Bytes)
		}
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != art.SHA256 {
			p.errorf("%s: sha256 %s, manifest says %s", art.Name, got, art.SHA256)
		}
	}
	return p
}

// ── JS modules ──

func validateJSModules(dir string, refs *domain.References) *phase {
	p := &phase{name: "JS modules list the reference keys"}

	countries, err := readModuleObject[domain.I18n](filepath.Join(dir, "countries.js"))
	if err != nil {
		p.errorf("countries.js: %v", err)
	} else {
		checkKeys(p, "countries.js", keys(countries), refs.Countries.Codes())
		for pair := countries.Oldest(); pair != nil; pair = pair.Next() {
			if want, ok := refs.CountryLabel(pair.Key); ok && pair.Value["en"] != want["en"] {
				p.errorf("countries.js: %s is %q, table says %q", pair.Key, pair.Value["en"], want["en"])
			}
		}
	}

	clusters, err := readModuleObject[string](filepath.Join(dir, "clusters.js"))
	if err != nil {
		p.errorf("clusters.js: %v", err)
	} else {
		checkKeys(p, "clusters.js", keys(clusters), refs.Clusters.Codes())
		for pair := clusters.Oldest(); pair != nil; pair = pair.Next() {
			if owner, ok := refs.Clusters.CountryOf(pair.Key); ok && owner != pair.Value {
				p.errorf("clusters.js: %s belongs to %s, table says %s", pair.Key, pair.Value, owner)
			}
		}
	}
	return p
}

// readModuleObject decodes the object literal embedded in a generated JS module.
func readModuleObject[V any](path string) (*orderedmap.OrderedMap[string, V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	start, end := bytes.IndexByte(data, '{'), bytes.LastIndexByte(data, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no object literal")
	}
	obj := orderedmap.New[string, V]()
	if err := json.Unmarshal(data[start:end+1], obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func keys[V any](m *orderedmap.OrderedMap[string, V]) []string {
	out := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func checkKeys(p *phase, file string, got, want []string) {
	if slices.Equal(got, want) {
		return
	}
	before := len(p.errors)
	for _, k := range want {
		if !slices.Contains(got, k) {
			p.errorf("%s: missing %s", file, k)
		}
	}
	for _, k := range got {
		if !slices.Contains(want, k) {
			p.errorf("%s: unexpected %s", file, k)
		}
	}
	if len(p.errors) == before {
		p.errorf("%s: keys are not in table order", file)
	}
}

// ── GeoJSON ──

type layerFeature struct {
	Properties struct {
		ClusterCode string `json:"cluster_code"`
		CountryCode string `json:"country_code"`
	} `json:"properties"`
	Geometry json.RawMessage `json:"geometry"`
}

type layer struct {
	Type     string         `json:"type"`
	Features []layerFeature `json:"features"`
}

func readLayer(path string) (layer, error) {
	var l layer
	data, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := json.Unmarshal(data, &l); err != nil {
		return l, err
	}
	if l.Type != "FeatureCollection" {
		return l, fmt.Errorf("type is %q, want FeatureCollection", l.Type)
	}
	return l, nil
}

func validateLayers(dir string, refs *domain.References) *phase {
	p := &phase{name: "GeoJSON layers carry known codes"}

	if countries, err := readLayer(filepath.Join(dir, "countries.geojson")); err != nil {
		p.errorf("countries.geojson: %v", err)
	} else {
		seen := map[string]int{}
		for i, f := range countries.Features {
			code := f.Properties.CountryCode
			seen[code]++
			if _, ok := refs.Countries.Get(code); !ok {
				p.errorf("countries.geojson: feature %d has unknown country %q", i, code)
			}
			if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
				p.errorf("countries.geojson: feature %d (%s) has no geometry", i, code)
			}
		}
		for _, code := range refs.Clusters.CountryCodes() {
			if seen[code] != 1 {
				p.errorf("countries.geojson: %d features for %s, want 1", seen[code], code)
			}
		}
	}

	if clusters, err := readLayer(filepath.Join(dir, "clusters.geojson")); err != nil {
		p.errorf("clusters.geojson: %v", err)
	} else {
		for i, f := range clusters.Features {
			owner, ok := refs.Clusters.CountryOf(f.Properties.ClusterCode)
			if !ok {
				p.errorf("clusters.geojson: feature %d has unknown cluster %q", i, f.Properties.ClusterCode)
				continue
			}
			if owner != f.Properties.CountryCode {
				p.errorf("clusters.geojson: cluster %s has country %s, table says %s",
					f.Properties.ClusterCode, f.Properties.CountryCode, owner)
			}
		}
	}
	return p
}

// ── CovJSON ──

func validateCoverages(dir string, refs *domain.References) *phase {
	p := &phase{name: "CovJSON ranges match their axes"}

	paths, err := filepath.Glob(filepath.Join(dir, "*.covjson"))
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(paths) == 0 {
		p.errorf("no .covjson files in %s", dir)
	}
	for _, path := range paths {
		name := filepath.Base(path)
		data, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}
		cov, err := domain.ParseCoverageTemplate(data)
		if err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}
		checkCoverage(p, name, cov, refs)
	}
	return p
}

func checkCoverage(p *phase, name string, cov *domain.Coverage, refs *domain.References) {
	t, ok := cov.Domain.Axes.Get("t")
	if !ok {
		p.errorf("%s: no t axis", name)
		return
	}

	var (
		areaName string
		area     *domain.Axis
		label    domain.Labeler
	)
	if a, ok := cov.Domain.Axes.Get(domain.AreaCountry); ok {
		areaName, area, label = domain.AreaCountry, a, refs.CountryLabel
	} else if a, ok := cov.Domain.Axes.Get(domain.AreaCluster); ok {
		areaName, area, label = domain.AreaCluster, a, refs.ClusterLabel
	} else {
		p.errorf("%s: no country or cluster axis", name)
		return
	}

	for _, code := range area.Values {
		if _, ok := label(code); !ok {
			p.errorf("%s: unknown %s %q", name, areaName, code)
		}
	}

	want := []int{len(t.Values), len(area.Values)}
	for pair := cov.Ranges.Oldest(); pair != nil; pair = pair.Next() {
		rng := pair.Value
		if !slices.Equal(rng.Shape, want) {
			p.errorf("%s: range %s has shape %v, want %v", name, pair.Key, rng.Shape, want)
		}
		if len(rng.Values) != want[0]*want[1] {
			p.errorf("%s: range %s has %d values, want %d", name, pair.Key, len(rng.Values), want[0]*want[1])
		}
	}
}
