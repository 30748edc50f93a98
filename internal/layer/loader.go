package layer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/urbanroots/plantsite/internal/crs"
)

// Options controls how a layer is loaded.
type Options struct {
	// TargetEPSG is the working CRS every geometry is reprojected into.
	TargetEPSG int
	// AssumeEPSG is the operator-confirmed source CRS, used only when the
	// dataset itself declares none.
	AssumeEPSG int
}

// Load reads a vector dataset and returns a Layer in the target CRS.
//
// The source CRS is taken from the dataset (a .prj side-car for shapefiles,
// the WGS84 convention for GeoJSON). When the source declares nothing,
// Options.AssumeEPSG is used; if that is also unset, the load fails with
// ErrCRSMismatch rather than silently assuming a projection.
func Load(path, name string, opts Options) (*Layer, error) {
	if !crs.Supported(opts.TargetEPSG) {
		return nil, eris.Errorf("layer: unsupported target EPSG %d", opts.TargetEPSG)
	}

	var features []Feature
	var srcEPSG int
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		features, err = readShapefile(path, name)
		if err != nil {
			return nil, err
		}
		srcEPSG = inferEPSG(path)
	case ".geojson", ".json":
		features, err = readGeoJSON(path)
		if err != nil {
			return nil, err
		}
		// GeoJSON carries WGS84 by convention (RFC 7946).
		srcEPSG = 4326
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	if opts.AssumeEPSG != 0 {
		srcEPSG = opts.AssumeEPSG
	}
	if srcEPSG == 0 {
		return nil, eris.Wrapf(ErrCRSMismatch, "layer %s (%s) declares no CRS and none was assumed", name, path)
	}
	if !crs.Supported(srcEPSG) {
		return nil, eris.Wrapf(ErrCRSMismatch, "layer %s declares unsupported EPSG %d", name, srcEPSG)
	}

	if srcEPSG != opts.TargetEPSG {
		for i, f := range features {
			g, rerr := crs.Reproject(f.Geom, srcEPSG, opts.TargetEPSG)
			if rerr != nil {
				return nil, eris.Wrapf(rerr, "layer: reproject %s feature %d", name, i)
			}
			features[i].Geom = g
		}
	}

	l := &Layer{Name: name, EPSG: opts.TargetEPSG, Features: features}
	if l.Empty() {
		zap.L().Warn("layer: empty layer", zap.String("layer", name), zap.String("path", path))
	} else {
		zap.L().Debug("layer: loaded",
			zap.String("layer", name),
			zap.Int("features", len(features)),
			zap.Int("source_epsg", srcEPSG),
			zap.Int("target_epsg", opts.TargetEPSG),
		)
	}
	return l, nil
}

// DeclaredEPSG reports the CRS a dataset declares, without loading features.
// Returns 0 when nothing is declared.
func DeclaredEPSG(path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return inferEPSG(path), nil
	case ".geojson", ".json":
		return 4326, nil
	default:
		return 0, eris.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}

// readGeoJSON reads a GeoJSON FeatureCollection into features. Property
// values become their string form in the attribute table.
func readGeoJSON(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(ErrUnsupportedFormat, "%s: not a GeoJSON feature collection", path)
	}

	features := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		attrs := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			if v == nil {
				continue
			}
			attrs[k] = fmt.Sprintf("%v", v)
		}
		features = append(features, Feature{Geom: f.Geometry, Attrs: attrs})
	}
	return features, nil
}
