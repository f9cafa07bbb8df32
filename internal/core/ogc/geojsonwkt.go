package ogc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GeoJSONToWKT parses a GeoJSON Polygon or MultiPolygon geometry
// literal and renders it as WKT.
func GeoJSONToWKT(geojson string) (string, error) {
	var v struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal([]byte(geojson), &v); err != nil {
		return "", fmt.Errorf("parse geojson: %w", err)
	}
	switch strings.TrimSpace(v.Type) {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(v.Coordinates, &rings); err != nil {
			return "", fmt.Errorf("parse polygon coords: %w", err)
		}
		return PolygonToWKT(rings)
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(v.Coordinates, &polys); err != nil {
			return "", fmt.Errorf("parse multipolygon coords: %w", err)
		}
		return MultiPolygonToWKT(polys)
	default:
		return "", fmt.Errorf("unsupported type %q", v.Type)
	}
}

// PolygonToWKT renders raw GeoJSON polygon coordinates (rings of
// [x,y] pairs, exterior ring first) as WKT POLYGON(...).
func PolygonToWKT(rings [][][]float64) (string, error) {
	if len(rings) == 0 {
		return "", errors.New("empty polygon")
	}
	outRings := make([]string, 0, len(rings))
	for _, ring := range rings {
		if len(ring) < 4 {
			return "", errors.New("polygon ring has <4 points")
		}
		var pts []string
		for _, xy := range ring {
			if len(xy) != 2 {
				return "", errors.New("coordinate must be [x,y]")
			}
			pts = append(pts, fmt.Sprintf("%.8f %.8f", xy[0], xy[1]))
		}
		outRings = append(outRings, fmt.Sprintf("(%s)", strings.Join(pts, ", ")))
	}
	return fmt.Sprintf("POLYGON(%s)", strings.Join(outRings, ", ")), nil
}

// MultiPolygonToWKT renders raw GeoJSON multipolygon coordinates as WKT
// MULTIPOLYGON(...). The region cache's SoQL envelope clause requires
// this wrapper even for a single-polygon envelope (spec.md §6).
func MultiPolygonToWKT(polys [][][][]float64) (string, error) {
	if len(polys) == 0 {
		return "", errors.New("empty multipolygon")
	}
	parts := make([]string, 0, len(polys))
	for _, poly := range polys {
		wkt, err := PolygonToWKT(poly)
		if err != nil {
			return "", err
		}
		// strip "POLYGON" wrapper to embed into MULTIPOLYGON
		body := strings.TrimPrefix(wkt, "POLYGON")
		parts = append(parts, body)
	}
	return fmt.Sprintf("MULTIPOLYGON(%s)", strings.Join(parts, ", ")), nil
}
