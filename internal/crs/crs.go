// Package crs provides coordinate reference system transforms between the
// EPSG codes that appear in municipal GIS deliveries: geographic WGS84 and
// the UTM zone 32/33 projections on the GRS80 (ETRS89) and WGS84 ellipsoids.
//
// The transverse Mercator forward/inverse series are the standard USGS
// formulas. ETRS89 and WGS84 differ at the centimeter level, far below the
// planar tolerance of this pipeline, so the datum shift is treated as
// identity.
package crs

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

const (
	falseEasting = 500000.0
	scaleFactor  = 0.9996

	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563
	grs80A = 6378137.0
	grs80F = 1.0 / 298.257222101
)

type system struct {
	geographic bool
	zone       int // UTM zone, 0 when geographic
	a, f       float64
}

var registry = map[int]system{
	4326:  {geographic: true, a: wgs84A, f: wgs84F},
	25832: {zone: 32, a: grs80A, f: grs80F},
	25833: {zone: 33, a: grs80A, f: grs80F},
	32632: {zone: 32, a: wgs84A, f: wgs84F},
	32633: {zone: 33, a: wgs84A, f: wgs84F},
}

// Supported reports whether the EPSG code is in the transform registry.
func Supported(epsg int) bool {
	_, ok := registry[epsg]
	return ok
}

// Transform converts a single coordinate between two EPSG codes. Geographic
// coordinates are (lon, lat) in degrees; projected coordinates are
// (easting, northing) in meters.
func Transform(c geom.Coord, from, to int) (geom.Coord, error) {
	if from == to {
		return geom.Coord{c[0], c[1]}, nil
	}
	src, ok := registry[from]
	if !ok {
		return nil, eris.Errorf("crs: unsupported source EPSG %d", from)
	}
	dst, ok := registry[to]
	if !ok {
		return nil, eris.Errorf("crs: unsupported target EPSG %d", to)
	}

	lon, lat := c[0], c[1]
	if !src.geographic {
		lon, lat = inverse(c[0], c[1], src)
	}
	if dst.geographic {
		return geom.Coord{lon, lat}, nil
	}
	x, y := forward(lon, lat, dst)
	return geom.Coord{x, y}, nil
}

// Reproject returns a copy of g with every coordinate transformed from one
// EPSG code to another. The input geometry is not modified.
func Reproject(g geom.T, from, to int) (geom.T, error) {
	if g == nil {
		return nil, nil
	}
	layout := g.Layout()
	stride := layout.Stride()
	flat := g.FlatCoords()

	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i+1 < len(out); i += stride {
		c, err := Transform(geom.Coord{out[i], out[i+1]}, from, to)
		if err != nil {
			return nil, err
		}
		out[i], out[i+1] = c[0], c[1]
	}

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(layout, out).SetSRID(to), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(layout, out).SetSRID(to), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(layout, out).SetSRID(to), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(layout, out, append([]int(nil), t.Ends()...)).SetSRID(to), nil
	case *geom.LinearRing:
		return geom.NewLinearRingFlat(layout, out).SetSRID(to), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(layout, out, append([]int(nil), t.Ends()...)).SetSRID(to), nil
	case *geom.MultiPolygon:
		endss := make([][]int, len(t.Endss()))
		for i, ends := range t.Endss() {
			endss[i] = append([]int(nil), ends...)
		}
		return geom.NewMultiPolygonFlat(layout, out, endss).SetSRID(to), nil
	default:
		return nil, eris.Errorf("crs: unsupported geometry type %T", g)
	}
}

// centralMeridian returns the UTM zone central meridian in degrees.
func centralMeridian(zone int) float64 {
	return float64(zone)*6 - 183
}

// forward projects geographic (lon, lat) degrees to UTM (easting, northing).
func forward(lonDeg, latDeg float64, s system) (x, y float64) {
	a := s.a
	e2 := s.f * (2 - s.f)
	ep2 := e2 / (1 - e2)

	phi := latDeg * math.Pi / 180
	lam := lonDeg * math.Pi / 180
	lam0 := centralMeridian(s.zone) * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	tanPhi := sinPhi / cosPhi

	n := a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	A := (lam - lam0) * cosPhi

	m := meridianArc(a, e2, phi)

	x = falseEasting + scaleFactor*n*(A+
		(1-t+c)*A*A*A/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(A, 5)/120)
	y = scaleFactor * (m + n*tanPhi*(A*A/2+
		(5-t+9*c+4*c*c)*math.Pow(A, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(A, 6)/720))
	return x, y
}

// inverse unprojects UTM (easting, northing) to geographic (lon, lat) degrees.
func inverse(x, y float64, s system) (lonDeg, latDeg float64) {
	a := s.a
	e2 := s.f * (2 - s.f)
	ep2 := e2 / (1 - e2)
	lam0 := centralMeridian(s.zone) * math.Pi / 180

	m := y / scaleFactor
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sin(phi1), math.Cos(phi1)
	tanPhi1 := sinPhi1 / cosPhi1

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := a / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := a * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := (x - falseEasting) / (n1 * scaleFactor)

	phi := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lam := lam0 + (d-
		(1+2*t1+c1)*math.Pow(d, 3)/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi1

	return lam * 180 / math.Pi, phi * 180 / math.Pi
}

// meridianArc returns the meridional arc length from the equator to latitude
// phi (radians).
func meridianArc(a, e2, phi float64) float64 {
	return a * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))
}
