// Package candidate derives the planting-eligible area: the union of open or
// green polygon layers minus the exclusion region.
package candidate

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbanroots/plantsite/internal/constraint"
	"github.com/urbanroots/plantsite/internal/layer"
	"github.com/urbanroots/plantsite/internal/planar"
)

// ErrEmptyArea signals that subtraction left no plantable area. It is a
// recoverable terminal state: the pipeline may continue and produce zero
// output, or the operator may relax constraints.
var ErrEmptyArea = eris.New("candidate: empty candidate area")

const (
	rtreeMinChildren = 8
	rtreeMaxChildren = 16
	rtreeDims        = 2
)

type indexedGeom struct {
	g    geom.T
	rect *rtreego.Rect
}

func (ig *indexedGeom) Bounds() *rtreego.Rect { return ig.rect }

// Area is the read-only candidate planting area. Membership is evaluated
// pointwise: a point is inside when it lies in an eligible polygon and is not
// covered by the exclusion region.
type Area struct {
	index  *rtreego.Rtree
	count  int
	region *constraint.Region
	bounds *geom.Bounds
}

// Extract builds the candidate area from eligible layers and the exclusion
// region. It probes the eligible extent at probeResolution; when no probe
// point survives the subtraction, the area is returned together with
// ErrEmptyArea so the caller can decide how to proceed.
func Extract(eligible []*layer.Layer, region *constraint.Region, probeResolution float64) (*Area, error) {
	if probeResolution <= 0 {
		return nil, eris.Errorf("candidate: probe resolution must be > 0, got %.3f", probeResolution)
	}

	a := &Area{
		index:  rtreego.NewTree(rtreeDims, rtreeMinChildren, rtreeMaxChildren),
		region: region,
	}

	for _, l := range eligible {
		if l.Empty() {
			continue
		}
		for _, g := range l.Geoms() {
			if planar.Area(g) <= 0 {
				continue
			}
			rect, err := boundsToRect(g.Bounds())
			if err != nil {
				continue
			}
			a.index.Insert(&indexedGeom{g: g, rect: rect})
			a.count++
			if a.bounds == nil {
				a.bounds = geom.NewBounds(geom.XY)
			}
			a.bounds.Extend(g)
		}
	}

	if a.count == 0 {
		zap.L().Warn("candidate: no eligible polygons")
		return a, eris.Wrap(ErrEmptyArea, "no eligible polygons")
	}

	if !a.probe(probeResolution) {
		zap.L().Warn("candidate: exclusions cover the entire eligible area",
			zap.Float64("probe_resolution", probeResolution),
		)
		return a, eris.Wrap(ErrEmptyArea, "exclusions cover the eligible area")
	}

	return a, nil
}

// Contains reports whether the point is inside the candidate area.
func (a *Area) Contains(c geom.Coord) bool {
	if a == nil || a.count == 0 {
		return false
	}
	probe, err := pointRect(c)
	if err != nil {
		return false
	}
	var inEligible bool
	for _, hit := range a.index.SearchIntersect(probe) {
		if planar.PointInGeom(c, hit.(*indexedGeom).g) {
			inEligible = true
			break
		}
	}
	if !inEligible {
		return false
	}
	return !a.region.Covers(c)
}

// Bounds returns the extent of the eligible polygons, or nil when empty. The
// candidate area is a subset of this extent.
func (a *Area) Bounds() *geom.Bounds {
	if a == nil || a.count == 0 {
		return nil
	}
	return a.bounds
}

// probe reports whether any cell-centroid sample at the given resolution lies
// inside the candidate area. Samples sit on the resolution-snapped lattice
// the grid generator anchors its cells to, so the area is declared empty only
// when grid generation would also retain no centroid.
func (a *Area) probe(resolution float64) bool {
	b := a.bounds
	x0 := math.Floor(b.Min(0)/resolution)*resolution + resolution/2
	y0 := math.Floor(b.Min(1)/resolution)*resolution + resolution/2
	for y := y0; y < b.Max(1); y += resolution {
		for x := x0; x < b.Max(0); x += resolution {
			if a.Contains(geom.Coord{x, y}) {
				return true
			}
		}
	}
	return false
}

func boundsToRect(b *geom.Bounds) (*rtreego.Rect, error) {
	const minExtent = 1e-9
	dx := math.Max(b.Max(0)-b.Min(0), minExtent)
	dy := math.Max(b.Max(1)-b.Min(1), minExtent)
	return rtreego.NewRect(rtreego.Point{b.Min(0), b.Min(1)}, []float64{dx, dy})
}

func pointRect(c geom.Coord) (*rtreego.Rect, error) {
	const minExtent = 1e-9
	return rtreego.NewRect(rtreego.Point{c[0] - minExtent/2, c[1] - minExtent/2}, []float64{minExtent, minExtent})
}
