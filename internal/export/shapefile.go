package export

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/urbanroots/plantsite/internal/grid"
)

// WriteTopShapefile writes the top-N cell centroids as a point shapefile with
// rank, row/col identity, score, and class attributes. Coordinates stay in
// the working CRS; shapefiles carry no CRS of their own, so callers ship the
// matching .prj alongside when needed.
func WriteTopShapefile(path string, cells []grid.ScoredCell) error {
	if err := writeTopPoints(path, cells); err != nil {
		return err
	}

	// go-shp's writer names the attribute table by appending "dbf" to the
	// basename without the dot, so it lands next to top.shp as "topdbf"
	// where no reader finds it. Move it to <base>.dbf.
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return eris.Wrapf(err, "export: rename attribute table for %s", path)
		}
	}
	return nil
}

func writeTopPoints(path string, cells []grid.ScoredCell) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.NumberField("RANK", 10),
		shp.NumberField("ROW", 10),
		shp.NumberField("COL", 10),
		shp.FloatField("SCORE", 16, 6),
		shp.StringField("LANDUSE", 24),
		shp.StringField("GREENCLASS", 24),
		shp.StringField("FIREZONE", 1),
	}
	if err := w.SetFields(fields); err != nil {
		return eris.Wrapf(err, "export: set shapefile fields for %s", path)
	}

	for i, c := range cells {
		w.Write(&shp.Point{X: c.Centroid[0], Y: c.Centroid[1]})

		fire := "N"
		if c.FireRestricted {
			fire = "Y"
		}
		values := []interface{}{c.Rank, c.Row, c.Col, c.Score, string(c.LandUse), string(c.GreenClass), fire}
		for col, v := range values {
			if err := w.WriteAttribute(i, col, v); err != nil {
				return eris.Wrapf(err, "export: write attribute %d of record %d", col, i)
			}
		}
	}
	return nil
}
