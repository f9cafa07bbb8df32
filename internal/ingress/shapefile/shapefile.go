// Package shapefile converts ESRI Shapefiles into the
// geojson.FeatureCollection shape region cache ingestion expects,
// stamping regioncache.FeatureIDAttr onto every feature so the result
// can be handed directly to RegionCache.GetFromFeatures.
package shapefile

import (
	"fmt"
	"strconv"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/civicgrid/regioncache/internal/regioncache"
)

// Convert reads every record in the shapefile at path and returns a
// FeatureCollection with one feature per non-null shape. Unsupported
// shape types are skipped, matching the source converter's behavior.
func Convert(path string) (*geojson.FeatureCollection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shapefile: open %s: %w", path, err)
	}
	defer reader.Close()

	fields := reader.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = f.String()
	}

	fc := geojson.NewFeatureCollection()
	for reader.Next() {
		n, shape := reader.Shape()

		var geom orb.Geometry
		switch s := shape.(type) {
		case *shp.Null:
			continue
		case *shp.Point:
			geom = orb.Point{s.X, s.Y}
		case *shp.PolyLine:
			geom = convertPolyLine(s)
		case *shp.Polygon:
			geom = convertPolygon(s)
		default:
			continue
		}

		f := geojson.NewFeature(geom)
		for i, name := range fieldNames {
			f.Properties[name] = reader.ReadAttribute(n, i)
		}
		// Feature ids are positive digit strings, so record n is id n+1.
		f.Properties[regioncache.FeatureIDAttr] = strconv.Itoa(n + 1)
		fc.Append(f)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("shapefile: iterate %s: %w", path, err)
	}
	return fc, nil
}

func convertPolyLine(s *shp.PolyLine) orb.MultiLineString {
	var multiline orb.MultiLineString
	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}
		var line orb.LineString
		for j := start; j < end; j++ {
			line = append(line, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		multiline = append(multiline, line)
	}
	return multiline
}

func convertPolygon(s *shp.Polygon) orb.Polygon {
	var poly orb.Polygon
	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}
		var ring orb.Ring
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		poly = append(poly, ring)
	}
	return poly
}
