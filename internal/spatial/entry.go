// Package spatial implements an immutable, bulk-loaded spatial index over
// (geometry, value) pairs, built once per cache entry and queried many
// times for point/shape-in-polygon containment.
package spatial

import "github.com/paulmach/orb"

// Entry pairs an indexed geometry with its cached value. Build rejects
// entries whose geometry is nil; value is fixed at build time.
type Entry[T any] struct {
	Geom  orb.Geometry
	Value T
}

// NewEntry builds an Entry. It does not validate geom; a nil or
// degenerate geometry is reported by Build as ErrDegenerateGeometry.
func NewEntry[T any](geom orb.Geometry, value T) Entry[T] {
	return Entry[T]{Geom: geom, Value: value}
}

// coordinateCount returns the total number of coordinate pairs in geom,
// used as the size metric for spatial cache entries (spec.md §4.1,
// numCoordinates).
func coordinateCount(geom orb.Geometry) int {
	if geom == nil {
		return 0
	}
	switch g := geom.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(g)
	case orb.LineString:
		return len(g)
	case orb.MultiLineString:
		n := 0
		for _, ls := range g {
			n += len(ls)
		}
		return n
	case orb.Ring:
		return len(g)
	case orb.Polygon:
		n := 0
		for _, ring := range g {
			n += len(ring)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, poly := range g {
			for _, ring := range poly {
				n += len(ring)
			}
		}
		return n
	case orb.Collection:
		n := 0
		for _, sub := range g {
			n += coordinateCount(sub)
		}
		return n
	default:
		return 0
	}
}
