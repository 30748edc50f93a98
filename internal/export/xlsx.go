package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/urbanroots/plantsite/internal/grid"
)

// WriteTopXLSX writes the top-N candidates as a spreadsheet for review by
// non-GIS staff.
func WriteTopXLSX(path string, cells []grid.ScoredCell) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("top_candidates")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"rank", "row", "col", "easting", "northing", "score", "land_use", "green_class", "fire_restricted"} {
		header.AddCell().Value = h
	}

	for _, c := range cells {
		row := sheet.AddRow()
		row.AddCell().SetInt(c.Rank)
		row.AddCell().SetInt(c.Row)
		row.AddCell().SetInt(c.Col)
		row.AddCell().SetFloat(c.Centroid[0])
		row.AddCell().SetFloat(c.Centroid[1])
		row.AddCell().SetFloat(c.Score)
		row.AddCell().Value = string(c.LandUse)
		row.AddCell().Value = string(c.GreenClass)
		row.AddCell().SetBool(c.FireRestricted)
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save xlsx %s", path)
	}
	return nil
}
