package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/rotisserie/eris"

	"github.com/urbanroots/plantsite/internal/grid"
)

// WriteScoreRaster renders the scored grid as a one-pixel-per-cell PNG
// heatmap plus an ESRI world file (.pgw) side-car carrying the
// georeferencing, so GIS tools can place the raster in the working CRS.
//
// Scores are linearly stretched to the green channel over the observed
// min/max; cells outside the candidate area stay transparent.
func WriteScoreRaster(path string, cells []grid.ScoredCell, cellSize float64) error {
	if len(cells) == 0 {
		return eris.New("export: no cells to rasterize")
	}

	minRow, maxRow := cells[0].Row, cells[0].Row
	minCol, maxCol := cells[0].Col, cells[0].Col
	minScore, maxScore := cells[0].Score, cells[0].Score
	for _, c := range cells {
		if c.Row < minRow {
			minRow = c.Row
		}
		if c.Row > maxRow {
			maxRow = c.Row
		}
		if c.Col < minCol {
			minCol = c.Col
		}
		if c.Col > maxCol {
			maxCol = c.Col
		}
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	// All cells share one lattice, so any cell determines the grid origin.
	originX := cells[0].MinX - float64(cells[0].Col-minCol)*cellSize
	originY := cells[0].MinY - float64(cells[0].Row-minRow)*cellSize

	width := maxCol - minCol + 1
	height := maxRow - minRow + 1

	dc := gg.NewContext(width, height)
	span := maxScore - minScore
	for _, c := range cells {
		var t float64 = 1
		if span > 0 {
			t = (c.Score - minScore) / span
		}
		px := c.Col - minCol
		// Image rows grow downward; grid rows grow northward.
		py := maxRow - c.Row
		dc.SetRGBA(0.1, 0.3+0.6*t, 0.1, 1)
		dc.SetPixel(px, py)
	}

	if err := dc.SavePNG(path); err != nil {
		return eris.Wrapf(err, "export: save raster %s", path)
	}
	if err := writeWorldFile(path, originX, originY, cellSize, height); err != nil {
		return err
	}
	return nil
}

// writeWorldFile writes the six-line ESRI world file next to the PNG. The
// anchor is the center of the upper-left pixel.
func writeWorldFile(pngPath string, originX, originY, cellSize float64, heightPx int) error {
	ulCenterX := originX + cellSize/2
	ulCenterY := originY + (float64(heightPx)-0.5)*cellSize

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n0.0\n0.0\n%s\n%s\n%s\n",
		formatWorld(cellSize),
		formatWorld(-cellSize),
		formatWorld(ulCenterX),
		formatWorld(ulCenterY),
	)

	ext := filepath.Ext(pngPath)
	worldPath := strings.TrimSuffix(pngPath, ext) + ".pgw"
	if err := os.WriteFile(worldPath, []byte(sb.String()), 0o644); err != nil {
		return eris.Wrapf(err, "export: write world file %s", worldPath)
	}
	return nil
}

func formatWorld(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.6f", v)
}
