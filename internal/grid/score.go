package grid

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanroots/plantsite/internal/candidate"
	"github.com/urbanroots/plantsite/internal/config"
)

// distanceFeatures are the raw features measured in CRS linear units; all
// other features are already in [0, 1].
var distanceFeatures = map[string]bool{
	config.FeatureTreeDistance: true,
	config.FeatureRoadDistance: true,
}

// Normalizer turns a raw feature value into a score contribution in [0, 1].
// It is a pure, swappable strategy: scoring policy changes without touching
// grid generation or candidate extraction.
type Normalizer interface {
	Normalize(feature string, raw float64) float64
}

// LinearSaturation normalizes distances as raw/saturation capped at 1, so
// larger distances increase the contribution up to the configured saturation
// point. Non-distance features pass through clamped.
type LinearSaturation struct {
	Saturation map[string]float64
}

// Normalize implements Normalizer.
func (n LinearSaturation) Normalize(feature string, raw float64) float64 {
	if !distanceFeatures[feature] {
		return clamp01(raw)
	}
	sat := n.Saturation[feature]
	if sat <= 0 || math.IsInf(raw, 1) {
		return 1
	}
	return clamp01(raw / sat)
}

// ExponentialDecay normalizes distances as 1-exp(-raw/scale): a smooth
// saturation with the configured scale as the e-folding distance.
type ExponentialDecay struct {
	Scale map[string]float64
}

// Normalize implements Normalizer.
func (n ExponentialDecay) Normalize(feature string, raw float64) float64 {
	if !distanceFeatures[feature] {
		return clamp01(raw)
	}
	scale := n.Scale[feature]
	if scale <= 0 || math.IsInf(raw, 1) {
		return 1
	}
	return 1 - math.Exp(-raw/scale)
}

// NewNormalizer builds the configured normalization strategy.
func NewNormalizer(cfg config.ScoringConfig) (Normalizer, error) {
	switch cfg.Normalization {
	case config.NormLinear:
		return LinearSaturation{Saturation: cfg.Saturation}, nil
	case config.NormExponential:
		return ExponentialDecay{Scale: cfg.Saturation}, nil
	default:
		return nil, eris.Errorf("grid: unknown normalization policy %q", cfg.Normalization)
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Params configures one scoring pass.
type Params struct {
	CellSize float64
	CellTest string
	Weights  map[string]float64
	// Workers > 1 enables parallel per-cell feature computation. Cells read
	// only immutable inputs and each writes one result slot, so ordering is
	// unaffected.
	Workers int
}

// Scorer produces the ordered ScoredCell sequence for a candidate area. The
// result is recomputable: identical inputs and configuration yield an
// identical sequence.
type Scorer struct {
	area     *candidate.Area
	computer *featureComputer
	norm     Normalizer
	params   Params
	// weight keys in sorted order, so the floating-point sum is
	// order-stable across runs.
	features []string
}

// NewScorer wires a scorer from immutable inputs.
func NewScorer(area *candidate.Area, inputs FeatureInputs, classScores map[string]float64, norm Normalizer, params Params) *Scorer {
	features := make([]string, 0, len(params.Weights))
	for f := range params.Weights {
		features = append(features, f)
	}
	sort.Strings(features)

	return &Scorer{
		area:     area,
		computer: newFeatureComputer(inputs, classScores),
		norm:     norm,
		params:   params,
		features: features,
	}
}

// Score runs one full pass: generate cells, compute features, score, order.
// Ordering is score descending with (row, col) ascending tie-break, so the
// output is deterministic and reproducible. A zero-area candidate yields an
// empty sequence, not an error.
func (s *Scorer) Score(ctx context.Context) ([]ScoredCell, error) {
	cells := generate(s.area, s.params.CellSize, s.params.CellTest)
	if len(cells) == 0 {
		return nil, nil
	}

	scored := make([]ScoredCell, len(cells))

	workers := s.params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers == 1 {
		for i := range cells {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "grid: scoring canceled")
			}
			scored[i] = s.scoreCell(cells[i])
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range cells {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scored[i] = s.scoreCell(cells[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "grid: scoring canceled")
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Row != scored[j].Row {
			return scored[i].Row < scored[j].Row
		}
		return scored[i].Col < scored[j].Col
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	zap.L().Debug("grid: scoring pass complete",
		zap.Int("cells", len(scored)),
		zap.Float64("cell_size", s.params.CellSize),
	)
	return scored, nil
}

// scoreCell computes features and the weighted suitability score for one
// cell.
func (s *Scorer) scoreCell(cell Cell) ScoredCell {
	s.computer.compute(&cell)

	var score float64
	for _, f := range s.features {
		w := s.params.Weights[f]
		if w == 0 {
			continue
		}
		score += w * s.norm.Normalize(f, cell.Values[f])
	}
	return ScoredCell{Cell: cell, Score: score}
}
