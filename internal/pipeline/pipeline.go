// Package pipeline orchestrates one scoring run: load layers, build the
// exclusion region, extract the candidate area, score the grid, export, and
// persist. The pass is all-or-nothing: fatal errors produce no output, and an
// empty candidate area is a recorded terminal state rather than a failure.
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/urbanroots/plantsite/internal/candidate"
	"github.com/urbanroots/plantsite/internal/config"
	"github.com/urbanroots/plantsite/internal/constraint"
	"github.com/urbanroots/plantsite/internal/export"
	"github.com/urbanroots/plantsite/internal/grid"
	"github.com/urbanroots/plantsite/internal/layer"
	"github.com/urbanroots/plantsite/internal/store"
)

// classField is the canonical attribute every eligible feature's land-use
// text is copied into, so layers with differing schemas merge cleanly.
const classField = "__class"

// Result summarizes one completed run.
type Result struct {
	RunID     string
	Empty     bool
	Cells     []grid.ScoredCell
	Top       []grid.ScoredCell
	Outputs   []string
	StartedAt time.Time
}

// Run executes the full pipeline. The store is optional; passing nil skips
// persistence.
func Run(ctx context.Context, cfg *config.Config, st store.Store) (*Result, error) {
	// Configuration errors are fatal and surface before any geometric work.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	norm, err := grid.NewNormalizer(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "pipeline"))
	res := &Result{RunID: uuid.New().String(), StartedAt: time.Now().UTC()}
	target := cfg.Pipeline.TargetEPSG

	// Load layers.
	trees, err := loadOptional(cfg.Layers.Trees, "trees", target)
	if err != nil {
		return nil, err
	}
	trees = trees.Sample(cfg.Pipeline.MaxTrees)

	buildings, err := loadOptional(cfg.Layers.Buildings, "buildings", target)
	if err != nil {
		return nil, err
	}
	roads, err := loadOptional(cfg.Layers.Roads, "roads", target)
	if err != nil {
		return nil, err
	}
	fireZones, err := loadOptional(cfg.Layers.FireZones, "fire_zones", target)
	if err != nil {
		return nil, err
	}
	greens, err := loadOptional(cfg.Layers.Greens, "greens", target)
	if err != nil {
		return nil, err
	}

	eligible := make([]*layer.Layer, 0, len(cfg.Layers.Eligible)+1)
	for _, lc := range cfg.Layers.Eligible {
		l, lerr := loadOptional(lc, "eligible", target)
		if lerr != nil {
			return nil, lerr
		}
		if l != nil {
			eligible = append(eligible, canonicalizeClass(l, lc.ClassField))
		}
	}
	if greens != nil {
		eligible = append(eligible, canonicalizeClass(greens, cfg.Layers.Greens.ClassField))
	}

	// Exclusion region.
	region, err := constraint.Build(exclusionInputs(cfg, buildings, roads, fireZones), cfg.Pipeline.Tolerance)
	if err != nil {
		return nil, err
	}

	// Candidate area. Emptiness is a warning-level terminal state: the run
	// continues and produces zero cells.
	area, err := candidate.Extract(eligible, region, cfg.Pipeline.CellSize)
	if err != nil {
		if !eris.Is(err, candidate.ErrEmptyArea) {
			return nil, err
		}
		log.Warn("pipeline: candidate area is empty; producing zero output")
		res.Empty = true
	}

	// Grid scoring.
	if !res.Empty {
		scorer := grid.NewScorer(area, grid.FeatureInputs{
			Trees:        trees,
			Roads:        roads,
			LandUse:      mergeEligible(eligible),
			Greens:       canonicalizeClass(greens, cfg.Layers.Greens.ClassField),
			FireZones:    fireZones,
			LandUseField: classField,
			GreenField:   classField,
		}, cfg.Scoring.LandUseScores, norm, grid.Params{
			CellSize: cfg.Pipeline.CellSize,
			CellTest: cfg.Pipeline.CellTest,
			Weights:  cfg.Scoring.Weights,
			Workers:  cfg.Pipeline.Workers,
		})
		res.Cells, err = scorer.Score(ctx)
		if err != nil {
			return nil, err
		}
	}
	if len(res.Cells) == 0 {
		res.Empty = true
	}

	n := cfg.Pipeline.TopN
	if n > len(res.Cells) {
		n = len(res.Cells)
	}
	res.Top = res.Cells[:n]

	log.Info("pipeline: scoring complete",
		zap.String("run_id", res.RunID),
		zap.Int("cells", len(res.Cells)),
		zap.Int("top_n", len(res.Top)),
		zap.Bool("empty", res.Empty),
	)

	// Export.
	if err := runExports(cfg, res); err != nil {
		return nil, err
	}

	// Persist.
	if st != nil {
		if err := persist(ctx, cfg, st, res); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// loadOptional loads a configured layer, or returns nil when no path is set.
func loadOptional(lc config.LayerConfig, name string, targetEPSG int) (*layer.Layer, error) {
	if lc.Path == "" {
		return nil, nil
	}
	return layer.Load(lc.Path, name, layer.Options{
		TargetEPSG: targetEPSG,
		AssumeEPSG: lc.AssumeEPSG,
	})
}

// canonicalizeClass copies the layer's configured class attribute into the
// canonical field. The input layer is not modified.
func canonicalizeClass(l *layer.Layer, field string) *layer.Layer {
	if l == nil || field == "" {
		return l
	}
	out := &layer.Layer{Name: l.Name, EPSG: l.EPSG, Features: make([]layer.Feature, len(l.Features))}
	for i, f := range l.Features {
		attrs := make(map[string]string, len(f.Attrs)+1)
		for k, v := range f.Attrs {
			attrs[k] = v
		}
		if v, ok := f.Attrs[field]; ok {
			attrs[classField] = v
		}
		out.Features[i] = layer.Feature{Geom: f.Geom, Attrs: attrs}
	}
	return out
}

// mergeEligible flattens the eligible layers into one land-use layer.
func mergeEligible(eligible []*layer.Layer) *layer.Layer {
	merged := &layer.Layer{Name: "land_use"}
	for _, l := range eligible {
		if l.Empty() {
			continue
		}
		merged.EPSG = l.EPSG
		merged.Features = append(merged.Features, l.Features...)
	}
	return merged
}

// exclusionInputs collects the layers carved out of the candidate area. Fire
// zones join only when a buffer is configured; without one they merely set the
// per-cell restriction flag during scoring.
func exclusionInputs(cfg *config.Config, buildings, roads, fireZones *layer.Layer) []constraint.Input {
	var inputs []constraint.Input
	add := func(l *layer.Layer, buf *float64) {
		if l == nil || buf == nil {
			return
		}
		inputs = append(inputs, constraint.Input{Layer: l, Buffer: *buf})
	}
	add(buildings, cfg.Layers.Buildings.Buffer)
	add(roads, cfg.Layers.Roads.Buffer)
	add(fireZones, cfg.Layers.FireZones.Buffer)
	return inputs
}

// runExports writes the configured artifacts. Output is written only after
// the scoring pass has fully completed.
func runExports(cfg *config.Config, res *Result) error {
	dir := cfg.Export.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create export dir %s", dir)
	}
	epsg := cfg.Pipeline.TargetEPSG

	gridPath := filepath.Join(dir, "grid.geojson")
	if err := export.WriteGridGeoJSON(gridPath, res.Cells, epsg, cfg.Export.WGS84); err != nil {
		return err
	}
	res.Outputs = append(res.Outputs, gridPath)

	var topPath string
	switch cfg.Export.TopFormat {
	case "shapefile":
		topPath = filepath.Join(dir, "top.shp")
		if err := export.WriteTopShapefile(topPath, res.Top); err != nil {
			return err
		}
	case "xlsx":
		topPath = filepath.Join(dir, "top.xlsx")
		if err := export.WriteTopXLSX(topPath, res.Top); err != nil {
			return err
		}
	default:
		topPath = filepath.Join(dir, "top.geojson")
		if err := export.WriteTopGeoJSON(topPath, res.Top, epsg, cfg.Export.WGS84); err != nil {
			return err
		}
	}
	res.Outputs = append(res.Outputs, topPath)

	if cfg.Export.Raster && len(res.Cells) > 0 {
		rasterPath := filepath.Join(dir, "score.png")
		if err := export.WriteScoreRaster(rasterPath, res.Cells, cfg.Pipeline.CellSize); err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, rasterPath)
	}

	if cfg.Export.Manifest {
		manifestPath := filepath.Join(dir, "manifest.yaml")
		if err := export.WriteManifest(manifestPath, export.Manifest{
			RunID:      res.RunID,
			CreatedAt:  res.StartedAt,
			TargetEPSG: epsg,
			CellSize:   cfg.Pipeline.CellSize,
			CellCount:  len(res.Cells),
			TopN:       len(res.Top),
			Weights:    cfg.Scoring.Weights,
			Outputs:    res.Outputs,
		}); err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, manifestPath)
	}

	return nil
}

// persist records the run and its top candidates.
func persist(ctx context.Context, cfg *config.Config, st store.Store, res *Result) error {
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal config")
	}

	status := store.StatusComplete
	if res.Empty {
		status = store.StatusEmpty
	}
	var topScore float64
	if len(res.Cells) > 0 {
		topScore = res.Cells[0].Score
	}

	run := store.Run{
		ID:         res.RunID,
		CreatedAt:  res.StartedAt,
		Status:     status,
		TargetEPSG: cfg.Pipeline.TargetEPSG,
		CellSize:   cfg.Pipeline.CellSize,
		CellCount:  len(res.Cells),
		TopScore:   topScore,
		ConfigJSON: string(cfgJSON),
	}

	top := make([]store.TopCell, 0, len(res.Top))
	for _, c := range res.Top {
		pt := geom.NewPointFlat(geom.XY, []float64{c.Centroid[0], c.Centroid[1]}).SetSRID(cfg.Pipeline.TargetEPSG)
		wkb, werr := ewkb.Marshal(pt, ewkb.NDR)
		if werr != nil {
			return eris.Wrap(werr, "pipeline: encode top cell geometry")
		}
		top = append(top, store.TopCell{
			RunID: res.RunID,
			Rank:  c.Rank,
			Row:   c.Row,
			Col:   c.Col,
			Score: c.Score,
			Geom:  wkb,
		})
	}

	if err := st.SaveRun(ctx, run, top); err != nil {
		return err
	}
	zap.L().Info("pipeline: run persisted", zap.String("run_id", res.RunID))
	return nil
}
