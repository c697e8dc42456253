package geometry

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// metresPerDegree is the length of one degree of latitude in WGS84, also used
// as an approximation for longitude (differences are irrelevant at the scale
// of a search buffer)
const metresPerDegree = 111320.0

// ParseROI interprets a region-of-interest expression and returns its geometry.
// Accepted forms:
//
//	"latmin,lonmin,latmax,lonmax"  a bounding box
//	"lat,lon"                      a point (requires a buffer)
//	path to a GeoJSON file         any polygonal geometry
//
// All coordinates are WGS84 (EPSG:4326). bufferMetres, if non-zero, is applied
// to the resulting geometry.
func ParseROI(roi string, bufferMetres float64) (*geos.Geometry, error) {
	var g *geos.Geometry
	var err error

	if vals, ok := parseFloats(roi); ok {
		switch len(vals) {
		case 4:
			if g, err = bbox(vals[0], vals[1], vals[2], vals[3]); err != nil {
				return nil, fmt.Errorf("ParseROI: %w", err)
			}
		case 2:
			if bufferMetres <= 0 {
				return nil, fmt.Errorf("ParseROI: a point region requires a buffer")
			}
			if err = checkLatLon(vals[0], vals[1]); err != nil {
				return nil, fmt.Errorf("ParseROI: %w", err)
			}
			if g, err = geos.FromWKT(fmt.Sprintf("POINT (%g %g)", vals[1], vals[0])); err != nil {
				return nil, fmt.Errorf("ParseROI.FromWKT: %w", err)
			}
		default:
			return nil, fmt.Errorf("ParseROI: expected 'latmin,lonmin,latmax,lonmax' or 'lat,lon', got %q", roi)
		}
	} else {
		if g, err = fromGeoJSONFile(roi); err != nil {
			return nil, fmt.Errorf("ParseROI: %w", err)
		}
	}

	if bufferMetres > 0 {
		if g, err = g.Buffer(bufferMetres / metresPerDegree); err != nil {
			return nil, fmt.Errorf("ParseROI.Buffer: %w", err)
		}
	}
	return g, nil
}

func parseFloats(s string) ([]float64, bool) {
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		vals = append(vals, v)
	}
	return vals, true
}

func checkLatLon(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range: %g", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude out of range: %g", lon)
	}
	return nil
}

func bbox(latmin, lonmin, latmax, lonmax float64) (*geos.Geometry, error) {
	if err := checkLatLon(latmin, lonmin); err != nil {
		return nil, err
	}
	if err := checkLatLon(latmax, lonmax); err != nil {
		return nil, err
	}
	if latmin >= latmax || lonmin >= lonmax {
		return nil, fmt.Errorf("degenerate bounding box: %g,%g,%g,%g", latmin, lonmin, latmax, lonmax)
	}
	return geos.FromWKT(fmt.Sprintf("POLYGON ((%g %g, %g %g, %g %g, %g %g, %g %g))",
		lonmin, latmin, lonmax, latmin, lonmax, latmax, lonmin, latmax, lonmin, latmin))
}

func fromGeoJSONFile(path string) (*geos.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadFile: %w", err)
	}
	g, err := UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("UnmarshalGeometry: %w", err)
	}
	w, err := wkt.EncodeString(g)
	if err != nil {
		return nil, fmt.Errorf("EncodeString: %w", err)
	}
	return geos.FromWKT(w)
}

// UnmarshalGeometry, merging featureCollections and geometryCollections into a multipolygon
func UnmarshalGeometry(data []byte) (_ geom.Geometry, err error) {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return g.Geometry, err
	}
	switch geo := g.Geometry.(type) {
	case geojson.FeatureCollection:
		var mp geom.MultiPolygon
		for _, f := range geo.Features {
			if err := mergeMultiPolygons(f.Geometry.Geometry, &mp); err != nil {
				return nil, err
			}
		}
		return mp, nil
	case geojson.Feature:
		return geo.Geometry.Geometry, nil
	default:
		return g.Geometry, nil
	}
}

func mergeMultiPolygons(g geom.Geometry, mp *geom.MultiPolygon) error {
	switch g := g.(type) {
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.Collection:
		for _, g := range g.Geometries() {
			if err := mergeMultiPolygons(g, mp); err != nil {
				return err
			}
		}
	}
	return nil
}

// GeosToGeom converts a geos geometry to a geom one through its WKT representation
func GeosToGeom(g *geos.Geometry) (geom.Geometry, error) {
	w, err := g.ToWKT()
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.ToWKT: %w", err)
	}
	geo, err := wkt.DecodeString(w)
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.DecodeString: %w", err)
	}
	return geo, nil
}
