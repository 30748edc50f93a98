// Package export serializes scored grids and top-N candidate points to
// vector and raster formats. It is a pure serializer: scores are written as
// computed, never transformed.
package export

import (
	"encoding/json"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/urbanroots/plantsite/internal/crs"
	"github.com/urbanroots/plantsite/internal/grid"
	"github.com/urbanroots/plantsite/internal/landuse"
)

// Property names carried on every exported cell.
const (
	propScore = "score"
	propRank  = "rank"
	propRow   = "row"
	propCol   = "col"
)

// WriteGridGeoJSON writes the full scored grid as a FeatureCollection of cell
// polygons. When wgs84 is set, geometries are converted from the working CRS
// for web consumption; properties are unaffected either way.
func WriteGridGeoJSON(path string, cells []grid.ScoredCell, epsg int, wgs84 bool) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(cells))}

	for _, c := range cells {
		var g geom.T = c.Polygon()
		if wgs84 && epsg != 4326 {
			var err error
			g, err = crs.Reproject(g, epsg, 4326)
			if err != nil {
				return eris.Wrap(err, "export: reproject cell")
			}
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   g,
			Properties: cellProperties(c),
		})
	}

	return writeJSON(path, &fc)
}

// WriteTopGeoJSON writes the top-N cell centroids as a point
// FeatureCollection.
func WriteTopGeoJSON(path string, cells []grid.ScoredCell, epsg int, wgs84 bool) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(cells))}

	for _, c := range cells {
		var g geom.T = geom.NewPointFlat(geom.XY, []float64{c.Centroid[0], c.Centroid[1]})
		if wgs84 && epsg != 4326 {
			var err error
			g, err = crs.Reproject(g, epsg, 4326)
			if err != nil {
				return eris.Wrap(err, "export: reproject centroid")
			}
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   g,
			Properties: cellProperties(c),
		})
	}

	return writeJSON(path, &fc)
}

// cellProperties builds the sanitized attribute set for one cell. Non-finite
// feature values (for example tree distance with no trees loaded) are
// dropped: JSON has no representation for them.
func cellProperties(c grid.ScoredCell) map[string]interface{} {
	props := map[string]interface{}{
		propScore:          c.Score,
		propRank:           c.Rank,
		propRow:            c.Row,
		propCol:            c.Col,
		"land_use_class":   string(c.LandUse),
		"green_class_name": string(c.GreenClass),
		"fire_restricted":  c.FireRestricted,
	}
	for name, v := range c.Values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		props[name] = v
	}
	return props
}

// ReadScoredGrid loads a previously exported grid GeoJSON back into scored
// cells. Score and (row, col) identity round-trip exactly; ordering follows
// the file.
func ReadScoredGrid(path string) ([]grid.ScoredCell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "export: parse %s", path)
	}

	cells := make([]grid.ScoredCell, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		sc := grid.ScoredCell{Cell: grid.Cell{Values: map[string]float64{}}}

		var ok bool
		if sc.Score, ok = propFloat(f.Properties, propScore); !ok {
			return nil, eris.Errorf("export: feature %d missing score", i)
		}
		rank, ok := propFloat(f.Properties, propRank)
		if !ok {
			return nil, eris.Errorf("export: feature %d missing rank", i)
		}
		row, ok := propFloat(f.Properties, propRow)
		if !ok {
			return nil, eris.Errorf("export: feature %d missing row", i)
		}
		col, ok := propFloat(f.Properties, propCol)
		if !ok {
			return nil, eris.Errorf("export: feature %d missing col", i)
		}
		sc.Rank, sc.Row, sc.Col = int(rank), int(row), int(col)

		if s, ok := f.Properties["land_use_class"].(string); ok {
			sc.LandUse = landuse.Parse(s)
		}
		if s, ok := f.Properties["green_class_name"].(string); ok {
			sc.GreenClass = landuse.Parse(s)
		}
		if b, ok := f.Properties["fire_restricted"].(bool); ok {
			sc.FireRestricted = b
		}
		for _, name := range []string{"tree_distance", "road_distance", "land_use", "green_class", "fire_restriction"} {
			if v, ok := propFloat(f.Properties, name); ok {
				sc.Values[name] = v
			}
		}
		if f.Geometry != nil {
			b := f.Geometry.Bounds()
			sc.MinX, sc.MinY = b.Min(0), b.Min(1)
			sc.Size = b.Max(0) - b.Min(0)
			sc.Centroid = geom.Coord{(b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2}
		}

		cells = append(cells, sc)
	}
	return cells, nil
}

func propFloat(props map[string]interface{}, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "export: marshal GeoJSON")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
