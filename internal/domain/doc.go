// Package domain models the ECEM (European Climatic Energy Mixes) reference
// data and the web formats the visualization app consumes.
//
// # Reference Tables
//
// Two small CSV tables drive every transformation:
//
//	ECEM_countrynames.csv    header, then "<id>,<English name>,<code>"
//	ECEM_cluster_names.csv   header, then "<country code>,<name>,<cluster code>,..."
//
// Country codes are two upper-case letters ("DE"). Cluster codes are
// e-Highway 2050 market zones, e.g. "31DE", each owned by exactly one
// country. Both tables keep file order; the generated files list entries in
// that same order so diffs between runs stay readable.
//
// # Outputs
//
//	countries.js        export default {"AT":{"en":"Austria"},...}
//	clusters.js         export default {"01AT":"AT",...}
//	countries.geojson   one (Multi)Polygon per country, union of its clusters
//	clusters.geojson    one (Multi)Polygon per cluster with its colour index
//	<dataset>.covjson   CovJSON Coverage with axes t x country|cluster
//
// The JS modules are produced from a template containing a $obj placeholder.
//
// # Geometry
//
// Geometry work (repair, union, reprojection, simplification, GeoJSON
// export) happens behind the [Geometry] interface; the production
// implementation is GDAL/OGR. Country shapes are merged in the source
// projection before being reprojected to WGS84 longitude/latitude and
// simplified with a topology preserving algorithm.
//
// Known issue: some German clusters share sliver polygons, so the merged
// DE outline keeps a few inner boundaries.
//
// # Time Series
//
// Time-series CSVs have a "year,month,<code>,<code>,..." header. Rows become
// entries of the t axis ("YYYY-MM") and the values are laid out row-major in
// the range's NdArray with shape [len(t), len(codes)]. Missing cells (empty,
// NaN, NA) are encoded as null.
package domain
