// Package layer loads municipal vector datasets into a common geometry model
// and normalizes them to a single working coordinate reference system.
package layer

import (
	"math/rand"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Error taxonomy for the loader.
//
// ErrUnsupportedFormat: the source path is not a recognized vector format.
// ErrCRSMismatch: the source declares no CRS and none was supplied by the
// operator; silent assumption is not allowed.
var (
	ErrUnsupportedFormat = eris.New("layer: unsupported format")
	ErrCRSMismatch       = eris.New("layer: ambiguous or missing CRS")
)

// Feature is one geometry plus its attribute row.
type Feature struct {
	Geom  geom.T
	Attrs map[string]string
}

// Layer is a named collection of features sharing one CRS. Every layer used
// in scoring must be in the working CRS before combination; the loader
// guarantees this by reprojecting on load.
type Layer struct {
	Name     string
	EPSG     int
	Features []Feature
}

// Empty reports whether the layer has no features.
func (l *Layer) Empty() bool {
	return l == nil || len(l.Features) == 0
}

// Geoms returns the layer's geometries in feature order.
func (l *Layer) Geoms() []geom.T {
	if l == nil {
		return nil
	}
	gs := make([]geom.T, 0, len(l.Features))
	for _, f := range l.Features {
		gs = append(gs, f.Geom)
	}
	return gs
}

// Bounds returns the extent of all features, or nil for an empty layer.
func (l *Layer) Bounds() *geom.Bounds {
	if l.Empty() {
		return nil
	}
	b := geom.NewBounds(geom.XY)
	for _, f := range l.Features {
		b = b.Extend(f.Geom)
	}
	return b
}

// sampleSeed keeps subsampled runs reproducible.
const sampleSeed = 42

// Sample returns the layer unchanged when it has at most n features, or a
// copy holding a deterministic random sample of n features otherwise.
// n <= 0 disables sampling.
func (l *Layer) Sample(n int) *Layer {
	if l == nil || n <= 0 || len(l.Features) <= n {
		return l
	}
	rng := rand.New(rand.NewSource(sampleSeed))
	idx := rng.Perm(len(l.Features))[:n]

	out := &Layer{Name: l.Name, EPSG: l.EPSG, Features: make([]Feature, 0, n)}
	for _, i := range idx {
		out.Features = append(out.Features, l.Features[i])
	}
	return out
}
