// Package constraint builds the unsuitable-region model from buffered
// exclusion layers (buildings, roads, fire zones).
//
// The region is represented implicitly: a point is covered when its distance
// to any exclusion geometry is at most that layer's buffer distance. This is
// exactly the union of the buffered geometries evaluated pointwise, so
// overlapping buffers are never double-counted. An R-tree over the source
// geometries keeps membership tests cheap.
package constraint

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbanroots/plantsite/internal/layer"
	"github.com/urbanroots/plantsite/internal/planar"
)

const (
	rtreeMinChildren = 8
	rtreeMaxChildren = 16
	rtreeDims        = 2
)

// Input is one exclusion layer with its required buffer distance, in the
// linear unit of the working CRS.
type Input struct {
	Layer  *layer.Layer
	Buffer float64
}

// indexedGeom adapts a geometry to the rtreego Spatial interface.
type indexedGeom struct {
	g    geom.T
	rect *rtreego.Rect
}

func (ig *indexedGeom) Bounds() *rtreego.Rect { return ig.rect }

// source is one buffered exclusion layer.
type source struct {
	name   string
	buffer float64
	index  *rtreego.Rtree
	count  int
}

// Region is the immutable union of all buffered exclusion geometries.
// Consumers only test point membership and measure approximate area.
type Region struct {
	sources []source
	bounds  *geom.Bounds
	tol     float64
}

// Build assembles a Region from exclusion inputs. Empty layers contribute
// nothing; a negative buffer is rejected. The tolerance widens every
// membership test so points within it of a buffered geometry count as
// covered: subtraction errs on the side of exclusion.
func Build(inputs []Input, tolerance float64) (*Region, error) {
	if tolerance < 0 {
		return nil, eris.Errorf("constraint: tolerance must be >= 0, got %.6f", tolerance)
	}
	r := &Region{tol: tolerance}

	for _, in := range inputs {
		if in.Layer == nil || in.Layer.Empty() {
			continue
		}
		if in.Buffer < 0 {
			return nil, eris.Errorf("constraint: layer %s has negative buffer %.3f", in.Layer.Name, in.Buffer)
		}

		idx := rtreego.NewTree(rtreeDims, rtreeMinChildren, rtreeMaxChildren)
		var count int
		for _, g := range in.Layer.Geoms() {
			if g == nil {
				continue
			}
			rect, err := boundsToRect(g.Bounds(), 0)
			if err != nil {
				continue
			}
			idx.Insert(&indexedGeom{g: g, rect: rect})
			count++

			if r.bounds == nil {
				r.bounds = geom.NewBounds(geom.XY)
			}
			b := g.Bounds()
			pad := in.Buffer + tolerance
			r.bounds.Extend(geom.NewPointFlat(geom.XY, []float64{b.Min(0) - pad, b.Min(1) - pad}))
			r.bounds.Extend(geom.NewPointFlat(geom.XY, []float64{b.Max(0) + pad, b.Max(1) + pad}))
		}
		if count == 0 {
			continue
		}

		r.sources = append(r.sources, source{
			name:   in.Layer.Name,
			buffer: in.Buffer,
			index:  idx,
			count:  count,
		})
		zap.L().Debug("constraint: indexed exclusion layer",
			zap.String("layer", in.Layer.Name),
			zap.Int("geometries", count),
			zap.Float64("buffer", in.Buffer),
		)
	}

	return r, nil
}

// Empty reports whether the region excludes nothing.
func (r *Region) Empty() bool {
	return r == nil || len(r.sources) == 0
}

// Covers reports whether the point lies inside the buffered exclusion union.
func (r *Region) Covers(c geom.Coord) bool {
	if r.Empty() {
		return false
	}
	for i := range r.sources {
		s := &r.sources[i]
		reach := s.buffer + r.tol
		probe, err := pointRect(c, reach)
		if err != nil {
			continue
		}
		for _, hit := range s.index.SearchIntersect(probe) {
			ig := hit.(*indexedGeom)
			if planar.DistanceToGeom(c, ig.g) <= reach {
				return true
			}
		}
	}
	return false
}

// Bounds returns the buffered extent of all exclusion geometries, or nil when
// the region is empty.
func (r *Region) Bounds() *geom.Bounds {
	if r.Empty() {
		return nil
	}
	return r.bounds
}

// ApproxArea measures the region's area by sampling a regular grid at the
// given resolution. The measure respects union semantics: overlap between
// buffered layers is counted once.
func (r *Region) ApproxArea(resolution float64) float64 {
	if r.Empty() || resolution <= 0 {
		return 0
	}
	b := r.bounds
	var covered int
	for y := b.Min(1) + resolution/2; y < b.Max(1); y += resolution {
		for x := b.Min(0) + resolution/2; x < b.Max(0); x += resolution {
			if r.Covers(geom.Coord{x, y}) {
				covered++
			}
		}
	}
	return float64(covered) * resolution * resolution
}

// boundsToRect converts a go-geom bounds to an rtreego rect, expanded by pad.
// Degenerate extents (points, axis-parallel lines) get a minimal thickness so
// rtreego accepts them.
func boundsToRect(b *geom.Bounds, pad float64) (*rtreego.Rect, error) {
	const minExtent = 1e-9
	dx := math.Max(b.Max(0)-b.Min(0)+2*pad, minExtent)
	dy := math.Max(b.Max(1)-b.Min(1)+2*pad, minExtent)
	return rtreego.NewRect(rtreego.Point{b.Min(0) - pad, b.Min(1) - pad}, []float64{dx, dy})
}

// pointRect builds the search window around a probe point.
func pointRect(c geom.Coord, pad float64) (*rtreego.Rect, error) {
	const minExtent = 1e-9
	side := math.Max(2*pad, minExtent)
	return rtreego.NewRect(rtreego.Point{c[0] - pad, c[1] - pad}, []float64{side, side})
}
