package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/urbanroots/plantsite/internal/config"
	"github.com/urbanroots/plantsite/internal/landuse"
	"github.com/urbanroots/plantsite/internal/layer"
)

func classifiedPolygon(flat []float64, field, value string) layer.Feature {
	return layer.Feature{
		Geom:  geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}),
		Attrs: map[string]string{field: value},
	}
}

func testCell(minX, minY, size float64) *Cell {
	return &Cell{
		MinX: minX, MinY: minY, Size: size,
		Centroid: geom.Coord{minX + size/2, minY + size/2},
		Values:   make(map[string]float64),
	}
}

func TestComputeDistances(t *testing.T) {
	trees := &layer.Layer{Name: "trees", Features: []layer.Feature{
		{Geom: geom.NewPointFlat(geom.XY, []float64{0, 5})},
		{Geom: geom.NewPointFlat(geom.XY, []float64{100, 100})},
	}}
	roads := &layer.Layer{Name: "roads", Features: []layer.Feature{
		{Geom: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 100, 0})},
	}}

	fc := newFeatureComputer(FeatureInputs{Trees: trees, Roads: roads}, nil)
	cell := testCell(0, 0, 10) // centroid (5, 5)
	fc.compute(cell)

	assert.InDelta(t, 5, cell.Values[config.FeatureTreeDistance], 1e-9)
	assert.InDelta(t, 5, cell.Values[config.FeatureRoadDistance], 1e-9)
	assert.Equal(t, landuse.Unknown, cell.LandUse)
	assert.False(t, cell.FireRestricted)
	assert.Equal(t, 0.0, cell.Values[config.FeatureFireFlag])
}

func TestComputeMissingLayers(t *testing.T) {
	fc := newFeatureComputer(FeatureInputs{}, nil)
	cell := testCell(0, 0, 10)
	fc.compute(cell)

	assert.True(t, math.IsInf(cell.Values[config.FeatureTreeDistance], 1))
	assert.True(t, math.IsInf(cell.Values[config.FeatureRoadDistance], 1))
	assert.Equal(t, landuse.Unknown, cell.LandUse)
	assert.Equal(t, landuse.Unknown, cell.GreenClass)
}

func TestComputeFireRestriction(t *testing.T) {
	fire := &layer.Layer{Name: "fire_zones", Features: []layer.Feature{
		classifiedPolygon(square(0, 0, 10), "ZONE", "1"),
	}}
	fc := newFeatureComputer(FeatureInputs{FireZones: fire}, nil)

	inside := testCell(0, 0, 10)
	fc.compute(inside)
	assert.True(t, inside.FireRestricted)
	assert.Equal(t, 1.0, inside.Values[config.FeatureFireFlag])

	outside := testCell(20, 20, 10)
	fc.compute(outside)
	assert.False(t, outside.FireRestricted)
}

func TestComputeClassScores(t *testing.T) {
	lu := &layer.Layer{Name: "landuse", Features: []layer.Feature{
		classifiedPolygon(square(0, 0, 10), "NUTZUNG", "Parkanlage"),
	}}
	scores := map[string]float64{string(landuse.Park): 0.9}
	fc := newFeatureComputer(FeatureInputs{LandUse: lu, LandUseField: "NUTZUNG"}, scores)

	cell := testCell(0, 0, 10)
	fc.compute(cell)
	assert.Equal(t, landuse.Park, cell.LandUse)
	assert.Equal(t, 0.9, cell.Values[config.FeatureLandUse])

	// Unconfigured classes score zero.
	outside := testCell(50, 50, 10)
	fc.compute(outside)
	assert.Equal(t, landuse.Unknown, outside.LandUse)
	assert.Equal(t, 0.0, outside.Values[config.FeatureLandUse])
}

func TestClassifyCellMajorityWins(t *testing.T) {
	// The cell straddles two classified polygons; the one containing more
	// footprint samples wins.
	lu := &layer.Layer{Name: "landuse", Features: []layer.Feature{
		// Left strip covers the centroid and both left quarter points.
		classifiedPolygon([]float64{0, 0, 6, 0, 6, 10, 0, 10, 0, 0}, "NUTZUNG", "Parkanlage"),
		// Right strip covers only the two right quarter points.
		classifiedPolygon([]float64{6, 0, 10, 0, 10, 10, 6, 10, 6, 0}, "NUTZUNG", "Friedhof"),
	}}
	fc := newFeatureComputer(FeatureInputs{LandUse: lu, LandUseField: "NUTZUNG"}, nil)

	cell := testCell(0, 0, 10)
	fc.compute(cell)
	assert.Equal(t, landuse.Park, cell.LandUse)
}

func TestClassifyCellAreaTieBreak(t *testing.T) {
	// Both polygons contain every sample; the larger polygon wins.
	lu := &layer.Layer{Name: "landuse", Features: []layer.Feature{
		classifiedPolygon(square(0, 0, 10), "NUTZUNG", "Friedhof"),
		classifiedPolygon(square(-10, -10, 40), "NUTZUNG", "Parkanlage"),
	}}
	fc := newFeatureComputer(FeatureInputs{LandUse: lu, LandUseField: "NUTZUNG"}, nil)

	cell := testCell(0, 0, 10)
	fc.compute(cell)
	assert.Equal(t, landuse.Park, cell.LandUse)
}

func TestClassifyCellInputOrderTieBreak(t *testing.T) {
	// Identical footprints: input order decides.
	lu := &layer.Layer{Name: "landuse", Features: []layer.Feature{
		classifiedPolygon(square(0, 0, 10), "NUTZUNG", "Friedhof"),
		classifiedPolygon(square(0, 0, 10), "NUTZUNG", "Parkanlage"),
	}}
	fc := newFeatureComputer(FeatureInputs{LandUse: lu, LandUseField: "NUTZUNG"}, nil)

	cell := testCell(0, 0, 10)
	fc.compute(cell)
	assert.Equal(t, landuse.Cemetery, cell.LandUse)
}

func TestComputeGreenClass(t *testing.T) {
	greens := &layer.Layer{Name: "greens", Features: []layer.Feature{
		classifiedPolygon(square(0, 0, 10), "KLASSE", "Liegewiese"),
	}}
	scores := map[string]float64{string(landuse.Meadow): 0.6}
	fc := newFeatureComputer(FeatureInputs{Greens: greens, GreenField: "KLASSE"}, scores)

	cell := testCell(0, 0, 10)
	fc.compute(cell)
	assert.Equal(t, landuse.Meadow, cell.GreenClass)
	assert.Equal(t, 0.6, cell.Values[config.FeatureGreenClass])
}

func TestNearestDistanceRefinesBeyondBBox(t *testing.T) {
	// The diagonal's bounding box touches the centroid's neighborhood more
	// closely than the horizontal line's, but the true distances disagree:
	// exact refinement must pick the horizontal line at distance 7 over the
	// diagonal whose nearest vertex (10, 10) is sqrt(50) away.
	roads := &layer.Layer{Name: "roads", Features: []layer.Feature{
		{Geom: geom.NewLineStringFlat(geom.XY, []float64{10, 10, 100, 100})},
		{Geom: geom.NewLineStringFlat(geom.XY, []float64{0, 12, 100, 12})},
	}}
	fc := newFeatureComputer(FeatureInputs{Roads: roads}, nil)

	cell := testCell(0, 0, 10) // centroid (5, 5)
	fc.compute(cell)

	assert.InDelta(t, 7.0, cell.Values[config.FeatureRoadDistance], 1e-9)
}

func TestNearestDistanceCrowdedBoundingBoxes(t *testing.T) {
	// Twelve long diagonal segments whose bounding boxes all contain the
	// query point, so every box distance is zero, plus one short segment
	// that is the true nearest at distance 5. The candidate set must widen
	// past the initial batch of zero-box-distance diagonals to find it.
	roads := &layer.Layer{Name: "roads"}
	for i := 0; i < 12; i++ {
		c := 20.0 + float64(i) // segment on the line x + y = c
		roads.Features = append(roads.Features, layer.Feature{
			Geom: geom.NewLineStringFlat(geom.XY, []float64{-50, c + 50, c + 50, -50}),
		})
	}
	roads.Features = append(roads.Features, layer.Feature{
		Geom: geom.NewLineStringFlat(geom.XY, []float64{3, 4, 10, 4}),
	})

	idx, ok := indexLayer(roads)
	require.True(t, ok)

	assert.InDelta(t, 5.0, nearestDistance(idx, geom.Coord{0, 0}), 1e-9)
}
