package planar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func unitSquare(t *testing.T) *geom.Polygon {
	t.Helper()
	return geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
	}, []int{10})
}

func squareWithHole(t *testing.T) *geom.Polygon {
	t.Helper()
	// Shell counter-clockwise, hole clockwise.
	return geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		4, 4, 4, 6, 6, 6, 6, 4, 4, 4,
	}, []int{10, 20})
}

func TestPointInPolygon(t *testing.T) {
	sq := unitSquare(t)
	assert.True(t, PointInPolygon(geom.Coord{5, 5}, sq))
	assert.False(t, PointInPolygon(geom.Coord{11, 5}, sq))
	assert.False(t, PointInPolygon(geom.Coord{-1, -1}, sq))
}

func TestPointInPolygonHole(t *testing.T) {
	p := squareWithHole(t)
	assert.True(t, PointInPolygon(geom.Coord{2, 2}, p))
	assert.False(t, PointInPolygon(geom.Coord{5, 5}, p), "point inside hole")
}

func TestPointInPolygonEmpty(t *testing.T) {
	assert.False(t, PointInPolygon(geom.Coord{0, 0}, nil))
	assert.False(t, PointInPolygon(geom.Coord{0, 0}, geom.NewPolygon(geom.XY)))
}

func TestPointInGeom(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(unitSquare(t)))
	far := geom.NewPolygonFlat(geom.XY, []float64{
		100, 100, 110, 100, 110, 110, 100, 110, 100, 100,
	}, []int{10})
	require.NoError(t, mp.Push(far))

	assert.True(t, PointInGeom(geom.Coord{105, 105}, mp))
	assert.False(t, PointInGeom(geom.Coord{50, 50}, mp))

	// Non-areal geometries never contain a point.
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0})
	assert.False(t, PointInGeom(geom.Coord{5, 0}, ls))
}

func TestDistanceToGeom(t *testing.T) {
	tests := []struct {
		name string
		g    geom.T
		c    geom.Coord
		want float64
	}{
		{
			name: "point",
			g:    geom.NewPointFlat(geom.XY, []float64{3, 4}),
			c:    geom.Coord{0, 0},
			want: 5,
		},
		{
			name: "multipoint nearest",
			g:    geom.NewMultiPointFlat(geom.XY, []float64{100, 0, 3, 4}),
			c:    geom.Coord{0, 0},
			want: 5,
		},
		{
			name: "linestring perpendicular",
			g:    geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0}),
			c:    geom.Coord{5, 7},
			want: 7,
		},
		{
			name: "multilinestring nearest part",
			g: geom.NewMultiLineStringFlat(geom.XY,
				[]float64{0, 0, 10, 0, 0, 100, 10, 100}, []int{4, 8}),
			c:    geom.Coord{5, 3},
			want: 3,
		},
		{
			name: "polygon outside",
			g:    unitSquare(t),
			c:    geom.Coord{15, 5},
			want: 5,
		},
		{
			name: "polygon inside is zero",
			g:    unitSquare(t),
			c:    geom.Coord{5, 5},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DistanceToGeom(tt.c, tt.g), 1e-9)
		})
	}
}

func TestDistanceToGeomInHole(t *testing.T) {
	// Inside the hole counts as outside the polygon: distance to hole ring.
	d := DistanceToGeom(geom.Coord{5, 5}, squareWithHole(t))
	assert.InDelta(t, 1, d, 1e-9)
}

func TestDistanceToGeomMultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(unitSquare(t)))
	assert.InDelta(t, 0, DistanceToGeom(geom.Coord{5, 5}, mp), 1e-9)
	assert.InDelta(t, 10, DistanceToGeom(geom.Coord{20, 5}, mp), 1e-9)
}

func TestDistanceToGeomUnsupported(t *testing.T) {
	assert.True(t, math.IsInf(DistanceToGeom(geom.Coord{0, 0}, nil), 1))
}

func TestArea(t *testing.T) {
	assert.InDelta(t, 100, Area(unitSquare(t)), 1e-9)
	assert.InDelta(t, 96, Area(squareWithHole(t)), 1e-9)

	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(unitSquare(t)))
	assert.InDelta(t, 100, Area(mp), 1e-9)

	assert.Equal(t, 0.0, Area(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})))
}
