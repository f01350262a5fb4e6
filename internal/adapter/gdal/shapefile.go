// Package gdal reads the cluster borders shapefile and implements
// domain.Geometry on top of GDAL/OGR.
package gdal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/twpayne/go-geos"

	"github.com/couchcryptid/ecem-data-etl/internal/domain"
)

// LonLatProj4 is the WGS84 longitude/latitude target of every published layer.
const LonLatProj4 = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

// Attribute names in the cluster borders shapefile.
const (
	ClusterCodeField = "Clusters_c"
	ColorIdxField    = "Couleur"
)

// bufferSegments matches OGR's default quadrant segments.
const bufferSegments = 30

var registerOnce sync.Once

// Register loads the GDAL drivers. Safe to call more than once.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// ShapefileSource reads cluster features from an ESRI shapefile.
type ShapefileSource struct {
	path   string
	logger *slog.Logger
}

// NewShapefileSource creates a source for the shapefile at path.
func NewShapefileSource(path string, logger *slog.Logger) *ShapefileSource {
	return &ShapefileSource{path: path, logger: logger}
}

// ReadClusterFeatures opens the shapefile and returns every feature with its
// cluster code, colour index and geometry. Geometries keep the source
// projection until ToLonLat is called. The caller must Close the set.
func (s *ShapefileSource) ReadClusterFeatures(ctx context.Context) (*domain.FeatureSet, error) {
	Register()

	ds, err := godal.Open(s.path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", s.path, err)
	}
	defer ds.Close() //nolint:errcheck // read-only dataset

	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("shapefile %s: no layers", s.path)
	}
	layer := layers[0]

	src := layer.SpatialRef()
	if src == nil {
		return nil, fmt.Errorf("shapefile %s: layer has no spatial reference", s.path)
	}
	trn, err := newLonLatTransform(src)
	if err != nil {
		return nil, fmt.Errorf("shapefile %s: %w", s.path, err)
	}

	var (
		features []domain.ClusterFeature
		handles  []*godal.Feature
	)
	// OGR features own their geometries, so they stay open until the set is closed.
	release := func() {
		for _, h := range handles {
			h.Close()
		}
		trn.Close()
	}
	closeAll := func() {
		domain.NewFeatureSet(features, release).Close()
	}

	layer.ResetReading()
	for {
		if err := ctx.Err(); err != nil {
			closeAll()
			return nil, err
		}
		feat := layer.NextFeature()
		if feat == nil {
			break
		}
		handles = append(handles, feat)
		f, err := toClusterFeature(feat, trn)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("shapefile %s: %w", s.path, err)
		}
		features = append(features, f)
	}

	s.logger.Debug("shapefile read", "path", s.path, "features", len(features))
	return domain.NewFeatureSet(features, release), nil
}

func toClusterFeature(feat *godal.Feature, trn *lonLatTransform) (domain.ClusterFeature, error) {
	fields := feat.Fields()
	code, ok := fields[ClusterCodeField]
	if !ok {
		return domain.ClusterFeature{}, fmt.Errorf("feature has no %s attribute", ClusterCodeField)
	}
	color, ok := fields[ColorIdxField]
	if !ok {
		return domain.ClusterFeature{}, fmt.Errorf("feature has no %s attribute", ColorIdxField)
	}
	g := feat.Geometry()
	if g == nil || g.Empty() {
		return domain.ClusterFeature{}, fmt.Errorf("cluster %s has no geometry", code.String())
	}
	return domain.ClusterFeature{
		ClusterCode: code.String(),
		ColorIdx:    int(color.Int()),
		Geometry:    &Geometry{g: g, trn: trn},
	}, nil
}

// lonLatTransform is a coordinate transformation to LonLatProj4 together with
// the spatial reference it owns.
type lonLatTransform struct {
	trn  *godal.Transform
	dst  *godal.SpatialRef
	once sync.Once
}

func newLonLatTransform(src *godal.SpatialRef) (*lonLatTransform, error) {
	dst, err := godal.NewSpatialRefFromProj4(LonLatProj4)
	if err != nil {
		return nil, fmt.Errorf("create WGS84 spatial reference: %w", err)
	}
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		dst.Close()
		return nil, fmt.Errorf("create coordinate transformation: %w", err)
	}
	return &lonLatTransform{trn: trn, dst: dst}, nil
}

// Close releases the transformation; geometries using it must not be
// reprojected afterwards.
func (t *lonLatTransform) Close() {
	t.once.Do(func() {
		t.trn.Close()
		t.dst.Close()
	})
}

// Geometry adapts an OGR geometry to domain.Geometry.
type Geometry struct {
	g   *godal.Geometry
	trn *lonLatTransform
}

var errForeignGeometry = errors.New("geometry does not come from the GDAL adapter")

// Buffer returns the geometry grown by distance.
func (g *Geometry) Buffer(distance float64) (domain.Geometry, error) {
	out, err := g.g.Buffer(distance, bufferSegments)
	if err != nil {
		return nil, err
	}
	return g.derive(out), nil
}

// Union returns the union of both geometries.
func (g *Geometry) Union(other domain.Geometry) (domain.Geometry, error) {
	o, ok := other.(*Geometry)
	if !ok {
		return nil, errForeignGeometry
	}
	out, err := g.g.Union(o.g)
	if err != nil {
		return nil, err
	}
	return g.derive(out), nil
}

// ToLonLat reprojects the geometry in place.
func (g *Geometry) ToLonLat() error {
	if g.trn == nil {
		return errors.New("geometry has no source projection")
	}
	return g.g.Transform(g.trn.trn)
}

// Simplify runs GEOS's topology preserving simplifier. Rings keep at least
// four points and never cross each other, so small polygons survive.
func (g *Geometry) Simplify(tolerance float64) (domain.Geometry, error) {
	wkb, err := g.g.WKB()
	if err != nil {
		return nil, err
	}
	src, err := geos.NewGeomFromWKB(wkb)
	if err != nil {
		return nil, fmt.Errorf("read geometry into geos: %w", err)
	}
	defer src.Destroy()

	simplified := src.TopologyPreserveSimplify(tolerance)
	defer simplified.Destroy()

	out, err := godal.NewGeometryFromWKB(simplified.ToWKB(), g.g.SpatialRef())
	if err != nil {
		return nil, err
	}
	return g.derive(out), nil
}

// GeoJSON exports the geometry with precision digits after the decimal point.
func (g *Geometry) GeoJSON(precision int) (json.RawMessage, error) {
	s, err := g.g.GeoJSON(godal.SignificantDigits(precision))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(s), nil
}

// Close frees the OGR geometry. Geometries borrowed from a feature are
// freed with the feature instead.
func (g *Geometry) Close() {
	g.g.Close()
}

func (g *Geometry) derive(out *godal.Geometry) *Geometry {
	return &Geometry{g: out, trn: g.trn}
}
