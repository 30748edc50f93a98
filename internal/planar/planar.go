// Package planar provides point membership and distance predicates over
// go-geom geometries in a projected (planar) CRS.
package planar

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// PointInPolygon reports whether c lies inside the polygon (outer ring minus
// holes). Boundary points count as inside.
func PointInPolygon(c geom.Coord, p *geom.Polygon) bool {
	if p == nil || p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), c, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), c, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// PointInGeom reports whether c lies inside a polygonal geometry. Non-areal
// geometries never contain a point.
func PointInGeom(c geom.Coord, g geom.T) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return PointInPolygon(c, t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if PointInPolygon(c, t.Polygon(i)) {
				return true
			}
		}
	}
	return false
}

// DistanceToGeom returns the minimum Euclidean distance from c to the
// geometry. Points inside a polygonal geometry are at distance zero.
func DistanceToGeom(c geom.Coord, g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Point:
		return dist(c, t.Coords())
	case *geom.MultiPoint:
		min := math.Inf(1)
		for i := 0; i < t.NumPoints(); i++ {
			if d := dist(c, t.Point(i).Coords()); d < min {
				min = d
			}
		}
		return min
	case *geom.LineString:
		return xy.DistanceFromPointToLineString(t.Layout(), c, t.FlatCoords())
	case *geom.MultiLineString:
		min := math.Inf(1)
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			if d := xy.DistanceFromPointToLineString(ls.Layout(), c, ls.FlatCoords()); d < min {
				min = d
			}
		}
		return min
	case *geom.LinearRing:
		return xy.DistanceFromPointToLineString(t.Layout(), c, t.FlatCoords())
	case *geom.Polygon:
		if PointInPolygon(c, t) {
			return 0
		}
		min := math.Inf(1)
		for i := 0; i < t.NumLinearRings(); i++ {
			r := t.LinearRing(i)
			if d := xy.DistanceFromPointToLineString(r.Layout(), c, r.FlatCoords()); d < min {
				min = d
			}
		}
		return min
	case *geom.MultiPolygon:
		min := math.Inf(1)
		for i := 0; i < t.NumPolygons(); i++ {
			if d := DistanceToGeom(c, t.Polygon(i)); d < min {
				min = d
			}
			if min == 0 {
				return 0
			}
		}
		return min
	}
	return math.Inf(1)
}

// Area returns the planar area of a polygonal geometry, zero otherwise.
func Area(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.Area()
	case *geom.MultiPolygon:
		return t.Area()
	}
	return 0
}

func dist(a, b geom.Coord) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}
