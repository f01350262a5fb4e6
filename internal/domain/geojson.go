package domain

import (
	"encoding/json"
	"fmt"
)

// Property names of the published layers, read by the web app.
const (
	PropClusterCode = "cluster_code"
	PropCountryCode = "country_code"
	PropColorIdx    = "color_idx"
)

// crs84 is the OGC name for WGS84 with longitude/latitude axis order.
const crs84 = "urn:ogc:def:crs:OGC:1.3:CRS84"

// Geometry is a polygonal shape backed by an external geometry engine.
// Methods returning a Geometry allocate a new one owned by the caller.
type Geometry interface {
	// Buffer grows the shape by distance; Buffer(0) repairs invalid polygons.
	Buffer(distance float64) (Geometry, error)
	Union(other Geometry) (Geometry, error)
	// ToLonLat reprojects the shape in place to WGS84 longitude/latitude.
	ToLonLat() error
	// Simplify reduces vertices while preserving topology.
	Simplify(tolerance float64) (Geometry, error)
	// GeoJSON encodes the geometry with the given number of decimals.
	GeoJSON(precision int) (json.RawMessage, error)
	Close()
}

// ClusterFeature is one feature of the cluster borders shapefile.
type ClusterFeature struct {
	ClusterCode string
	ColorIdx    int
	Geometry    Geometry
}

// FeatureSet holds the features read from one pass over the shapefile.
// Builders may reproject feature geometries in place, so a set serves a single layer.
type FeatureSet struct {
	Features []ClusterFeature
	release  func()
}

// NewFeatureSet wraps features; release, if non-nil, runs after the geometries are closed.
func NewFeatureSet(features []ClusterFeature, release func()) *FeatureSet {
	return &FeatureSet{Features: features, release: release}
}

// Close frees every feature geometry.
func (s *FeatureSet) Close() {
	for _, f := range s.Features {
		if f.Geometry != nil {
			f.Geometry.Close()
		}
	}
	s.Features = nil
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// LayerOptions controls geometry post-processing.
type LayerOptions struct {
	SimplifyTolerance float64
	Precision         int
}

// FeatureCollection is a GeoJSON FeatureCollection as written by OGR's GeoJSON driver.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	CRS      CRS       `json:"crs"`
	Features []Feature `json:"features"`
}

// CRS is the legacy named-CRS member of a GeoJSON document.
type CRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// Feature is a GeoJSON Feature with pre-encoded geometry.
type Feature struct {
	Type       string          `json:"type"`
	Properties any             `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ClusterProperties are the properties of a clusters.geojson feature.
type ClusterProperties struct {
	ClusterCode string `json:"cluster_code"`
	CountryCode string `json:"country_code"`
	ColorIdx    int    `json:"color_idx"`
}

// CountryProperties are the properties of a countries.geojson feature.
type CountryProperties struct {
	CountryCode string `json:"country_code"`
}

func newFeatureCollection(name string) FeatureCollection {
	return FeatureCollection{
		Type: "FeatureCollection",
		Name: name,
		CRS: CRS{
			Type:       "name",
			Properties: map[string]string{"name": crs84},
		},
		Features: []Feature{},
	}
}

// BuildClusterLayer creates the clusters layer: every shapefile feature whose
// cluster is in the reference table, reprojected, simplified and tagged with
// its cluster code, country code and colour index. Unknown clusters are
// returned in skipped.
func BuildClusterLayer(set *FeatureSet, clusters *Clusters, opts LayerOptions) (fc FeatureCollection, skipped []string, err error) {
	fc = newFeatureCollection("clusters")
	for _, f := range set.Features {
		country, ok := clusters.CountryOf(f.ClusterCode)
		if !ok {
			skipped = append(skipped, f.ClusterCode)
			continue
		}
		geometry, err := finishGeometry(f.Geometry, opts)
		if err != nil {
			return FeatureCollection{}, nil, fmt.Errorf("cluster %s: %w", f.ClusterCode, err)
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Properties: ClusterProperties{
				ClusterCode: f.ClusterCode,
				CountryCode: country,
				ColorIdx:    f.ColorIdx,
			},
			Geometry: geometry,
		})
	}
	return fc, skipped, nil
}

// BuildCountryLayer creates the countries layer by merging the cluster
// geometries of each country. Each cluster geometry is repaired with a zero
// buffer before the union since some source polygons self-intersect.
func BuildCountryLayer(set *FeatureSet, clusters *Clusters, opts LayerOptions) (FeatureCollection, error) {
	fc := newFeatureCollection("countries")
	for _, country := range clusters.CountryCodes() {
		members := make(map[string]struct{})
		for _, code := range clusters.ClustersOf(country) {
			members[code] = struct{}{}
		}

		merged, err := mergeGeometries(set.Features, members)
		if err != nil {
			return FeatureCollection{}, fmt.Errorf("country %s: %w", country, err)
		}
		if merged == nil {
			return FeatureCollection{}, fmt.Errorf("country %s: %w: no cluster geometry in shapefile", country, ErrTableMismatch)
		}

		geometry, err := finishGeometry(merged, opts)
		merged.Close()
		if err != nil {
			return FeatureCollection{}, fmt.Errorf("country %s: %w", country, err)
		}
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Properties: CountryProperties{CountryCode: country},
			Geometry:   geometry,
		})
	}
	return fc, nil
}

// mergeGeometries folds the repaired geometries of the member features with
// Union, in feature order. Returns nil when no feature matches.
func mergeGeometries(features []ClusterFeature, members map[string]struct{}) (Geometry, error) {
	var merged Geometry
	for _, f := range features {
		if _, ok := members[f.ClusterCode]; !ok {
			continue
		}
		repaired, err := f.Geometry.Buffer(0)
		if err != nil {
			closeGeometry(merged)
			return nil, fmt.Errorf("repair cluster %s: %w", f.ClusterCode, err)
		}
		if merged == nil {
			merged = repaired
			continue
		}
		union, err := merged.Union(repaired)
		merged.Close()
		repaired.Close()
		if err != nil {
			return nil, fmt.Errorf("union cluster %s: %w", f.ClusterCode, err)
		}
		merged = union
	}
	return merged, nil
}

// finishGeometry reprojects g in place, simplifies it and encodes the result.
func finishGeometry(g Geometry, opts LayerOptions) (json.RawMessage, error) {
	if err := g.ToLonLat(); err != nil {
		return nil, fmt.Errorf("reproject: %w", err)
	}
	simplified, err := g.Simplify(opts.SimplifyTolerance)
	if err != nil {
		return nil, fmt.Errorf("simplify: %w", err)
	}
	defer simplified.Close()

	encoded, err := simplified.GeoJSON(opts.Precision)
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	return encoded, nil
}

func closeGeometry(g Geometry) {
	if g != nil {
		g.Close()
	}
}

// MarshalLayer serializes a feature collection without whitespace.
func MarshalLayer(fc FeatureCollection) ([]byte, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("serialize %s layer: %w", fc.Name, err)
	}
	return data, nil
}
