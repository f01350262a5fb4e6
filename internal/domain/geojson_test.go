package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGeometry records the operations applied to it in its name.
type fakeGeometry struct {
	name      string
	lonLat    bool
	closed    *int
	unionErr  error
	simplifyN int
}

func (g *fakeGeometry) derive(name string) *fakeGeometry {
	return &fakeGeometry{name: name, lonLat: g.lonLat, closed: g.closed, unionErr: g.unionErr}
}

func (g *fakeGeometry) Buffer(distance float64) (Geometry, error) {
	return g.derive(fmt.Sprintf("buffer(%s,%g)", g.name, distance)), nil
}

func (g *fakeGeometry) Union(other Geometry) (Geometry, error) {
	if g.unionErr != nil {
		return nil, g.unionErr
	}
	return g.derive(g.name + "+" + other.(*fakeGeometry).name), nil
}

func (g *fakeGeometry) ToLonLat() error {
	g.lonLat = true
	return nil
}

func (g *fakeGeometry) Simplify(tolerance float64) (Geometry, error) {
	return g.derive(fmt.Sprintf("simplify(%s,%g)", g.name, tolerance)), nil
}

func (g *fakeGeometry) GeoJSON(precision int) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"type":      "Polygon",
		"source":    g.name,
		"lonlat":    g.lonLat,
		"precision": precision,
	})
}

func (g *fakeGeometry) Close() {
	if g.closed != nil {
		*g.closed++
	}
}

type geometrySummary struct {
	Source    string `json:"source"`
	LonLat    bool   `json:"lonlat"`
	Precision int    `json:"precision"`
}

func decodeGeometry(t *testing.T, raw json.RawMessage) geometrySummary {
	t.Helper()
	var s geometrySummary
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func testFeatureSet(closed *int, codes ...string) *FeatureSet {
	features := make([]ClusterFeature, 0, len(codes))
	for i, code := range codes {
		features = append(features, ClusterFeature{
			ClusterCode: code,
			ColorIdx:    i + 1,
			Geometry:    &fakeGeometry{name: code, closed: closed},
		})
	}
	return NewFeatureSet(features, nil)
}

var testLayerOptions = LayerOptions{SimplifyTolerance: 0.005, Precision: 3}

func TestBuildClusterLayer(t *testing.T) {
	refs := testReferences(t)
	set := testFeatureSet(nil, "01AT", "31DE", "99ZZ", "32DE", "40FR")

	fc, skipped, err := BuildClusterLayer(set, refs.Clusters, testLayerOptions)
	require.NoError(t, err)

	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, "clusters", fc.Name)
	assert.Equal(t, crs84, fc.CRS.Properties["name"])
	assert.Equal(t, []string{"99ZZ"}, skipped)
	require.Len(t, fc.Features, 4)

	props := make([]ClusterProperties, 0, len(fc.Features))
	for _, f := range fc.Features {
		props = append(props, f.Properties.(ClusterProperties))
	}
	expected := []ClusterProperties{
		{ClusterCode: "01AT", CountryCode: "AT", ColorIdx: 1},
		{ClusterCode: "31DE", CountryCode: "DE", ColorIdx: 2},
		{ClusterCode: "32DE", CountryCode: "DE", ColorIdx: 4},
		{ClusterCode: "40FR", CountryCode: "FR", ColorIdx: 5},
	}
	if diff := cmp.Diff(expected, props); diff != "" {
		t.Fatalf("properties mismatch (-want +got):\n%s", diff)
	}

	geom := decodeGeometry(t, fc.Features[1].Geometry)
	assert.Equal(t, geometrySummary{Source: "simplify(31DE,0.005)", LonLat: true, Precision: 3}, geom)
}

func TestBuildCountryLayer(t *testing.T) {
	refs := testReferences(t)
	closed := 0
	set := testFeatureSet(&closed, "31DE", "01AT", "40FR", "32DE")

	fc, err := BuildCountryLayer(set, refs.Clusters, testLayerOptions)
	require.NoError(t, err)

	assert.Equal(t, "countries", fc.Name)
	require.Len(t, fc.Features, 3)

	var codes []string
	for _, f := range fc.Features {
		codes = append(codes, f.Properties.(CountryProperties).CountryCode)
	}
	assert.Equal(t, []string{"AT", "DE", "FR"}, codes)

	de := decodeGeometry(t, fc.Features[1].Geometry)
	assert.Equal(t, "simplify(buffer(31DE,0)+buffer(32DE,0),0.005)", de.Source)
	assert.True(t, de.LonLat)

	at := decodeGeometry(t, fc.Features[0].Geometry)
	assert.Equal(t, "simplify(buffer(01AT,0),0.005)", at.Source)

	// Intermediates are released: the two DE buffers after their union, then
	// the merged and simplified geometry of each of the three countries.
	assert.Equal(t, 2+3*2, closed)

	set.Close()
	assert.Equal(t, 2+3*2+4, closed)
}

func TestBuildCountryLayer_MissingCountryGeometry(t *testing.T) {
	refs := testReferences(t)
	set := testFeatureSet(nil, "01AT", "31DE")

	_, err := BuildCountryLayer(set, refs.Clusters, testLayerOptions)
	require.ErrorIs(t, err, ErrTableMismatch)
	assert.Contains(t, err.Error(), "country FR")
}

func TestBuildCountryLayer_UnionError(t *testing.T) {
	refs := testReferences(t)
	set := testFeatureSet(nil, "01AT", "31DE", "32DE", "40FR")
	for _, f := range set.Features {
		f.Geometry.(*fakeGeometry).unionErr = errors.New("topology exception")
	}

	_, err := BuildCountryLayer(set, refs.Clusters, testLayerOptions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country DE")
	assert.Contains(t, err.Error(), "topology exception")
}

func TestMarshalLayer(t *testing.T) {
	fc := newFeatureCollection("countries")
	fc.Features = append(fc.Features, Feature{
		Type:       "Feature",
		Properties: CountryProperties{CountryCode: "AT"},
		Geometry:   json.RawMessage(`{ "type": "Point", "coordinates": [ 16.373, 48.208 ] }`),
	})

	data, err := MarshalLayer(fc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"FeatureCollection","name":"countries","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:OGC:1.3:CRS84"}},`+
			`"features":[{"type":"Feature","properties":{"country_code":"AT"},"geometry":{"type":"Point","coordinates":[16.373,48.208]}}]}`,
		string(data))
}
