package layer

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// readShapefile reads every record of a shapefile into features. Attribute
// values are decoded from the DBF's single-byte encoding (municipal cadastre
// exports carry Latin-1 umlauts) and trimmed of padding.
func readShapefile(path, name string) ([]Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = strings.TrimRight(f.String(), "\x00")
	}

	decoder := charmap.Windows1252.NewDecoder()

	var features []Feature
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(fieldNames))
		for i, fn := range fieldNames {
			raw := strings.TrimRight(reader.Attribute(i), "\x00")
			decoded, decErr := decoder.String(raw)
			if decErr != nil {
				decoded = raw
			}
			val := strings.TrimSpace(decoded)
			if val != "" {
				attrs[fn] = val
			}
		}

		features = append(features, Feature{Geom: g, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("layer: skipped shapefile records",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}

	return features, nil
}

// shapeToGeom converts a go-shp geometry to go-geom. Returns nil for null or
// unsupported shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	case *shp.Polygon:
		return polygonToMultiPolygon((*shp.PolyLine)(s))
	default:
		return nil
	}
}

// polyLineToMultiLineString converts a shapefile PolyLine to a MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)

	for i := int32(0); i < pl.NumParts; i++ {
		flat := partFlatCoords(pl.Parts, pl.Points, i, pl.NumParts)
		if len(flat) < 4 {
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("layer: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon converts a shapefile Polygon to a MultiPolygon. Each
// part becomes its own single-ring polygon, matching how cadastre exports
// split multipart records.
func polygonToMultiPolygon(p *shp.PolyLine) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		flat := partFlatCoords(p.Parts, p.Points, i, p.NumParts)
		if len(flat) < 8 {
			continue
		}
		// Rings must close.
		if flat[0] != flat[len(flat)-2] || flat[1] != flat[len(flat)-1] {
			flat = append(flat, flat[0], flat[1])
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("layer: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("layer: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// partFlatCoords extracts the flat XY coordinates of one part of a multipart
// shape.
func partFlatCoords(parts []int32, points []shp.Point, i, numParts int32) []float64 {
	start := parts[i]
	end := int32(len(points))
	if i+1 < numParts {
		end = parts[i+1]
	}
	flat := make([]float64, 0, (end-start)*2)
	for j := start; j < end; j++ {
		flat = append(flat, points[j].X, points[j].Y)
	}
	return flat
}
