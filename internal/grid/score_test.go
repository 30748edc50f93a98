package grid

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/urbanroots/plantsite/internal/candidate"
	"github.com/urbanroots/plantsite/internal/config"
	"github.com/urbanroots/plantsite/internal/constraint"
	"github.com/urbanroots/plantsite/internal/layer"
)

func TestLinearSaturation(t *testing.T) {
	n := LinearSaturation{Saturation: map[string]float64{config.FeatureTreeDistance: 50}}

	assert.InDelta(t, 0.5, n.Normalize(config.FeatureTreeDistance, 25), 1e-12)
	assert.InDelta(t, 1.0, n.Normalize(config.FeatureTreeDistance, 50), 1e-12)
	assert.InDelta(t, 1.0, n.Normalize(config.FeatureTreeDistance, 500), 1e-12, "capped at 1")
	assert.InDelta(t, 0.0, n.Normalize(config.FeatureTreeDistance, 0), 1e-12)

	// No nearby geometry at all is maximal distance.
	assert.Equal(t, 1.0, n.Normalize(config.FeatureTreeDistance, math.Inf(1)))

	// Missing saturation defaults to maximal contribution.
	assert.Equal(t, 1.0, n.Normalize(config.FeatureRoadDistance, 25))

	// Non-distance features pass through clamped.
	assert.Equal(t, 0.7, n.Normalize(config.FeatureLandUse, 0.7))
	assert.Equal(t, 1.0, n.Normalize(config.FeatureLandUse, 3.0))
	assert.Equal(t, 0.0, n.Normalize(config.FeatureLandUse, -1))
	assert.Equal(t, 0.0, n.Normalize(config.FeatureLandUse, math.NaN()))
}

func TestExponentialDecay(t *testing.T) {
	n := ExponentialDecay{Scale: map[string]float64{config.FeatureTreeDistance: 50}}

	assert.InDelta(t, 0, n.Normalize(config.FeatureTreeDistance, 0), 1e-12)
	assert.InDelta(t, 1-math.Exp(-1), n.Normalize(config.FeatureTreeDistance, 50), 1e-12)
	assert.Equal(t, 1.0, n.Normalize(config.FeatureTreeDistance, math.Inf(1)))

	// Monotone increasing in distance.
	assert.Less(t,
		n.Normalize(config.FeatureTreeDistance, 10),
		n.Normalize(config.FeatureTreeDistance, 20),
	)

	assert.Equal(t, 0.5, n.Normalize(config.FeatureGreenClass, 0.5))
}

func TestNewNormalizer(t *testing.T) {
	n, err := NewNormalizer(config.ScoringConfig{Normalization: config.NormLinear})
	require.NoError(t, err)
	assert.IsType(t, LinearSaturation{}, n)

	n, err = NewNormalizer(config.ScoringConfig{Normalization: config.NormExponential})
	require.NoError(t, err)
	assert.IsType(t, ExponentialDecay{}, n)

	_, err = NewNormalizer(config.ScoringConfig{Normalization: "sigmoid"})
	assert.Error(t, err)
}

// scorerFor builds a scorer over one eligible square with a single tree.
func scorerFor(t *testing.T, workers int) *Scorer {
	t.Helper()
	region, err := constraint.Build(nil, 0)
	require.NoError(t, err)
	a, err := candidate.Extract([]*layer.Layer{polygonLayer("greens", square(0, 0, 20))}, region, 5)
	require.NoError(t, err)

	trees := &layer.Layer{
		Name: "trees",
		Features: []layer.Feature{
			{Geom: geom.NewPointFlat(geom.XY, []float64{-5, 5})},
		},
	}

	norm := LinearSaturation{Saturation: map[string]float64{config.FeatureTreeDistance: 50}}
	return NewScorer(a, FeatureInputs{Trees: trees}, nil, norm, Params{
		CellSize: 10,
		CellTest: config.CellTestCentroid,
		Weights:  map[string]float64{config.FeatureTreeDistance: 1},
		Workers:  workers,
	})
}

func TestScoreRanksByTreeDistance(t *testing.T) {
	// One 20x20 eligible square, cell size 10, a single tree 5 units west of
	// the area: four cells, ranked by distance from the tree.
	scored, err := scorerFor(t, 1).Score(context.Background())
	require.NoError(t, err)
	require.Len(t, scored, 4)

	// Farthest centroid from the tree wins.
	assert.Equal(t, 1, scored[0].Rank)
	assert.Equal(t, geom.Coord{15, 15}, scored[0].Centroid)
	assert.Equal(t, geom.Coord{15, 5}, scored[1].Centroid)
	assert.Equal(t, geom.Coord{5, 15}, scored[2].Centroid)
	assert.Equal(t, geom.Coord{5, 5}, scored[3].Centroid)
	assert.Equal(t, 4, scored[3].Rank)

	// Distance 10 at saturation 50 scores 0.2.
	assert.InDelta(t, 0.2, scored[3].Score, 1e-9)
	assert.InDelta(t, 10.0, scored[3].Values[config.FeatureTreeDistance], 1e-9)

	// Scores descend.
	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].Score, scored[i].Score)
	}
}

func TestScoreDeterministic(t *testing.T) {
	first, err := scorerFor(t, 4).Score(context.Background())
	require.NoError(t, err)
	second, err := scorerFor(t, 4).Score(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Parallel and sequential passes agree.
	sequential, err := scorerFor(t, 1).Score(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sequential, first)
}

func TestScoreTieBreakByRowCol(t *testing.T) {
	// No weighted features vary across cells: every score ties, and the
	// ordering falls back to (row, col) ascending.
	region, err := constraint.Build(nil, 0)
	require.NoError(t, err)
	a, err := candidate.Extract([]*layer.Layer{polygonLayer("greens", square(0, 0, 20))}, region, 5)
	require.NoError(t, err)

	norm := LinearSaturation{}
	s := NewScorer(a, FeatureInputs{}, nil, norm, Params{
		CellSize: 10,
		CellTest: config.CellTestCentroid,
		Weights:  map[string]float64{config.FeatureLandUse: 1},
		Workers:  1,
	})
	scored, err := s.Score(context.Background())
	require.NoError(t, err)
	require.Len(t, scored, 4)

	for i := 1; i < len(scored); i++ {
		prev, cur := scored[i-1], scored[i]
		assert.Equal(t, prev.Score, cur.Score)
		assert.True(t, prev.Row < cur.Row || (prev.Row == cur.Row && prev.Col < cur.Col))
	}
}

func TestScoreEmptyAreaYieldsEmptySequence(t *testing.T) {
	region, err := constraint.Build(nil, 0)
	require.NoError(t, err)
	a, _ := candidate.Extract(nil, region, 1) // empty area, recoverable

	s := NewScorer(a, FeatureInputs{}, nil, LinearSaturation{}, Params{
		CellSize: 10,
		CellTest: config.CellTestCentroid,
		Weights:  map[string]float64{config.FeatureTreeDistance: 1},
		Workers:  1,
	})
	scored, err := s.Score(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestScoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scorerFor(t, 1).Score(ctx)
	assert.Error(t, err)
}

func TestScoreSkipsZeroWeights(t *testing.T) {
	region, err := constraint.Build(nil, 0)
	require.NoError(t, err)
	a, err := candidate.Extract([]*layer.Layer{polygonLayer("greens", square(0, 0, 20))}, region, 5)
	require.NoError(t, err)

	norm := LinearSaturation{Saturation: map[string]float64{config.FeatureTreeDistance: 50}}
	s := NewScorer(a, FeatureInputs{}, nil, norm, Params{
		CellSize: 10,
		CellTest: config.CellTestCentroid,
		// No trees layer: raw distance is +Inf and would normalize to 1,
		// but the zero weight keeps it out of the score.
		Weights: map[string]float64{
			config.FeatureTreeDistance: 0,
			config.FeatureLandUse:      1,
		},
		Workers: 1,
	})
	scored, err := s.Score(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, scored)
	assert.Equal(t, 0.0, scored[0].Score)
}
