package grid

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"

	"github.com/urbanroots/plantsite/internal/config"
	"github.com/urbanroots/plantsite/internal/landuse"
	"github.com/urbanroots/plantsite/internal/layer"
	"github.com/urbanroots/plantsite/internal/planar"
)

const (
	rtreeMinChildren = 8
	rtreeMaxChildren = 16
	rtreeDims        = 2

	// nearestCandidates is the initial number of R-tree hits refined with
	// exact distances. The search widens while the farthest hit's
	// bounding-box lower bound could still beat the best exact distance.
	nearestCandidates = 8
)

// FeatureInputs are the read-only layers feature computation draws from. All
// layers must already be in the working CRS.
type FeatureInputs struct {
	Trees     *layer.Layer
	Roads     *layer.Layer
	LandUse   *layer.Layer // polygons carrying a land-use attribute
	Greens    *layer.Layer // green-space polygons carrying a class attribute
	FireZones *layer.Layer

	// Attribute field names holding the categorical class text.
	LandUseField string
	GreenField   string
}

type indexedFeature struct {
	g     geom.T
	attrs map[string]string
	order int
	rect  *rtreego.Rect
}

func (f *indexedFeature) Bounds() *rtreego.Rect { return f.rect }

// featureComputer holds the spatial indexes for per-cell feature lookup. It
// is immutable after build, so parallel cell computation needs no locking.
type featureComputer struct {
	trees        *rtreego.Rtree
	hasTrees     bool
	roads        *rtreego.Rtree
	hasRoads     bool
	landUse      *rtreego.Rtree
	hasLandUse   bool
	greens       *rtreego.Rtree
	hasGreens    bool
	fire         *rtreego.Rtree
	hasFire      bool
	landUseField string
	greenField   string
	classScores  map[string]float64
}

func newFeatureComputer(in FeatureInputs, classScores map[string]float64) *featureComputer {
	fc := &featureComputer{
		landUseField: in.LandUseField,
		greenField:   in.GreenField,
		classScores:  classScores,
	}
	fc.trees, fc.hasTrees = indexLayer(in.Trees)
	fc.roads, fc.hasRoads = indexLayer(in.Roads)
	fc.landUse, fc.hasLandUse = indexLayer(in.LandUse)
	fc.greens, fc.hasGreens = indexLayer(in.Greens)
	fc.fire, fc.hasFire = indexLayer(in.FireZones)
	return fc
}

func indexLayer(l *layer.Layer) (*rtreego.Rtree, bool) {
	if l.Empty() {
		return nil, false
	}
	idx := rtreego.NewTree(rtreeDims, rtreeMinChildren, rtreeMaxChildren)
	var count int
	for i, f := range l.Features {
		if f.Geom == nil {
			continue
		}
		rect, err := boundsToRect(f.Geom.Bounds())
		if err != nil {
			continue
		}
		idx.Insert(&indexedFeature{g: f.Geom, attrs: f.Attrs, order: i, rect: rect})
		count++
	}
	if count == 0 {
		return nil, false
	}
	return idx, true
}

// compute fills in the cell's feature values.
func (fc *featureComputer) compute(cell *Cell) {
	treeDist := math.Inf(1)
	if fc.hasTrees {
		treeDist = nearestDistance(fc.trees, cell.Centroid)
	}
	roadDist := math.Inf(1)
	if fc.hasRoads {
		roadDist = nearestDistance(fc.roads, cell.Centroid)
	}

	cell.LandUse = landuse.Unknown
	if fc.hasLandUse {
		cell.LandUse = fc.classifyCell(fc.landUse, fc.landUseField, cell)
	}
	cell.GreenClass = landuse.Unknown
	if fc.hasGreens {
		cell.GreenClass = fc.classifyCell(fc.greens, fc.greenField, cell)
	}

	cell.FireRestricted = false
	if fc.hasFire {
		cell.FireRestricted = anyContains(fc.fire, cell.Centroid)
	}

	cell.Values[config.FeatureTreeDistance] = treeDist
	cell.Values[config.FeatureRoadDistance] = roadDist
	cell.Values[config.FeatureLandUse] = fc.classScore(cell.LandUse)
	cell.Values[config.FeatureGreenClass] = fc.classScore(cell.GreenClass)
	if cell.FireRestricted {
		cell.Values[config.FeatureFireFlag] = 1
	} else {
		cell.Values[config.FeatureFireFlag] = 0
	}
}

// classScore maps a land-use class to its configured raw score in [0, 1].
// Unconfigured classes score zero.
func (fc *featureComputer) classScore(c landuse.Class) float64 {
	if fc.classScores == nil {
		return 0
	}
	return fc.classScores[string(c)]
}

// nearestDistance returns the exact minimum distance from the point to any
// indexed geometry. Bounding-box distance only lower-bounds the exact
// distance, so the R-tree candidate set is widened until no unseen geometry
// can beat the best exact distance found so far.
func nearestDistance(idx *rtreego.Rtree, c geom.Coord) float64 {
	best := math.Inf(1)
	for k := nearestCandidates; ; k *= 2 {
		hits := idx.NearestNeighbors(k, rtreego.Point{c[0], c[1]})
		for _, hit := range hits {
			if hit == nil {
				continue
			}
			if d := planar.DistanceToGeom(c, hit.(*indexedFeature).g); d < best {
				best = d
			}
		}
		// Fewer hits than asked for means the whole tree was refined.
		if len(hits) < k {
			return best
		}
		// Hits come back ordered by box distance; every unseen geometry
		// is at least as far as the last one.
		last, ok := hits[len(hits)-1].(*indexedFeature)
		if !ok || bboxDistance(c, last.g.Bounds()) >= best {
			return best
		}
	}
}

// bboxDistance is the distance from the point to the bounding box, a lower
// bound on the distance to the geometry inside it.
func bboxDistance(c geom.Coord, b *geom.Bounds) float64 {
	dx := math.Max(0, math.Max(b.Min(0)-c[0], c[0]-b.Max(0)))
	dy := math.Max(0, math.Max(b.Min(1)-c[1], c[1]-b.Max(1)))
	return math.Hypot(dx, dy)
}

// anyContains reports whether any indexed polygon contains the point.
func anyContains(idx *rtreego.Rtree, c geom.Coord) bool {
	probe, err := pointRect(c)
	if err != nil {
		return false
	}
	for _, hit := range idx.SearchIntersect(probe) {
		if planar.PointInGeom(c, hit.(*indexedFeature).g) {
			return true
		}
	}
	return false
}

// classifyCell resolves the cell's class from the enclosing polygons.
//
// Tie-break for a cell overlapping several differently-classified polygons
// (left open by the source material): the cell footprint is sampled at its
// centroid and quarter points, the polygon containing the most samples wins
// (largest-overlap approximation); remaining ties go to the larger polygon,
// then to input order.
func (fc *featureComputer) classifyCell(idx *rtreego.Rtree, field string, cell *Cell) landuse.Class {
	samples := footprintSamples(cell)

	type hitCount struct {
		f     *indexedFeature
		count int
	}
	counts := map[*indexedFeature]*hitCount{}

	for _, s := range samples {
		probe, err := pointRect(s)
		if err != nil {
			continue
		}
		for _, hit := range idx.SearchIntersect(probe) {
			f := hit.(*indexedFeature)
			if !planar.PointInGeom(s, f.g) {
				continue
			}
			hc, ok := counts[f]
			if !ok {
				hc = &hitCount{f: f}
				counts[f] = hc
			}
			hc.count++
		}
	}
	if len(counts) == 0 {
		return landuse.Unknown
	}

	ordered := make([]*hitCount, 0, len(counts))
	for _, hc := range counts {
		ordered = append(ordered, hc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		ai, aj := planar.Area(ordered[i].f.g), planar.Area(ordered[j].f.g)
		if ai != aj {
			return ai > aj
		}
		return ordered[i].f.order < ordered[j].f.order
	})

	winner := ordered[0].f
	return landuse.Classify(winner.attrs[field])
}

// footprintSamples returns the centroid and the four quarter points of the
// cell.
func footprintSamples(cell *Cell) []geom.Coord {
	q := cell.Size / 4
	cx, cy := cell.Centroid[0], cell.Centroid[1]
	return []geom.Coord{
		{cx, cy},
		{cx - q, cy - q},
		{cx + q, cy - q},
		{cx + q, cy + q},
		{cx - q, cy + q},
	}
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
