// Package grid overlays a regular cell grid on the candidate area, computes
// per-cell features, and applies a weighted suitability score.
package grid

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/urbanroots/plantsite/internal/candidate"
	"github.com/urbanroots/plantsite/internal/config"
	"github.com/urbanroots/plantsite/internal/landuse"
)

// Cell is one unit of the scoring partition. Its (Row, Col) identity is
// stable across runs: the grid origin is snapped to a multiple of the cell
// size, so identical inputs yield identical cell identities.
type Cell struct {
	Row int
	Col int
	// MinX/MinY is the lower-left corner; the cell spans one cell size in
	// each axis.
	MinX float64
	MinY float64
	Size float64
	// Centroid is the cell center in the working CRS.
	Centroid geom.Coord
	// Values maps feature name to its raw numeric value.
	Values map[string]float64
	// Typed views of the categorical features, for export.
	LandUse        landuse.Class
	GreenClass     landuse.Class
	FireRestricted bool
}

// Polygon returns the cell footprint as a closed ring.
func (c Cell) Polygon() *geom.Polygon {
	x0, y0 := c.MinX, c.MinY
	x1, y1 := c.MinX+c.Size, c.MinY+c.Size
	flat := []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}
	p := geom.NewPolygon(geom.XY)
	_ = p.Push(geom.NewLinearRingFlat(geom.XY, flat))
	return p
}

// ScoredCell is a Cell plus its computed score and 1-based rank.
type ScoredCell struct {
	Cell
	Score float64
	Rank  int
}

// generate lays a regular grid over the candidate extent and keeps the cells
// that pass the retention test. Cells come out in (row, col) ascending order.
func generate(area *candidate.Area, cellSize float64, mode string) []Cell {
	b := area.Bounds()
	if b == nil || cellSize <= 0 {
		return nil
	}

	// Snap the origin to the cell lattice so (row, col) identities do not
	// depend on the extent's exact minimum.
	originX := math.Floor(b.Min(0)/cellSize) * cellSize
	originY := math.Floor(b.Min(1)/cellSize) * cellSize
	cols := int(math.Ceil((b.Max(0) - originX) / cellSize))
	rows := int(math.Ceil((b.Max(1) - originY) / cellSize))

	var cells []Cell
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			minX := originX + float64(col)*cellSize
			minY := originY + float64(row)*cellSize
			centroid := geom.Coord{minX + cellSize/2, minY + cellSize/2}

			if !retain(area, centroid, minX, minY, cellSize, mode) {
				continue
			}
			cells = append(cells, Cell{
				Row:      row,
				Col:      col,
				MinX:     minX,
				MinY:     minY,
				Size:     cellSize,
				Centroid: centroid,
				Values:   make(map[string]float64, len(config.KnownFeatures)),
			})
		}
	}
	return cells
}

// retain applies the configured cell test: centroid membership, or the full
// footprint (centroid plus all four corners inset by a hair to avoid boundary
// ambiguity).
func retain(area *candidate.Area, centroid geom.Coord, minX, minY, size float64, mode string) bool {
	if !area.Contains(centroid) {
		return false
	}
	if mode != config.CellTestFootprint {
		return true
	}
	eps := size * 1e-9
	corners := []geom.Coord{
		{minX + eps, minY + eps},
		{minX + size - eps, minY + eps},
		{minX + size - eps, minY + size - eps},
		{minX + eps, minY + size - eps},
	}
	for _, c := range corners {
		if !area.Contains(c) {
			return false
		}
	}
	return true
}
