// Package landuse maps free-form municipal land-use attributes to a closed
// set of classes used by the grid scorer.
package landuse

import "strings"

// Class is a land-use / green-space classification.
type Class string

// Known classes. Unknown is the explicit fallback; scoring never consumes the
// raw attribute text.
const (
	Park        Class = "park"
	Meadow      Class = "meadow"
	Forest      Class = "forest"
	Cemetery    Class = "cemetery"
	Playground  Class = "playground"
	Agriculture Class = "agriculture"
	Plaza       Class = "plaza"
	Unknown     Class = "unknown"
)

// Classes lists every known class, Unknown last.
var Classes = []Class{Park, Meadow, Forest, Cemetery, Playground, Agriculture, Plaza, Unknown}

// keywords maps lowercase attribute substrings to classes. German cadastre
// vocabulary (Grünflächenkataster, ALKIS Nutzung) plus English equivalents.
var keywords = []struct {
	substr string
	class  Class
}{
	{"friedhof", Cemetery},
	{"cemetery", Cemetery},
	{"spielplatz", Playground},
	{"spielfl", Playground},
	{"playground", Playground},
	{"wald", Forest},
	{"forst", Forest},
	{"forest", Forest},
	{"gehölz", Forest},
	{"gehoelz", Forest},
	{"wiese", Meadow},
	{"rasen", Meadow},
	{"meadow", Meadow},
	{"gruenland", Meadow},
	{"grünland", Meadow},
	{"acker", Agriculture},
	{"landwirtschaft", Agriculture},
	{"agricult", Agriculture},
	{"platz", Plaza},
	{"plaza", Plaza},
	{"park", Park},
	{"gruenanlage", Park},
	{"grünanlage", Park},
	{"gruenfl", Park},
	{"grünfl", Park},
	{"green", Park},
}

// Classify maps a free-form land-use attribute value to a Class. Matching is
// case-insensitive by substring, first match wins in the order above (more
// specific vocabulary before generic terms). Empty or unmatched values are
// Unknown.
func Classify(value string) Class {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Unknown
	}
	for _, kw := range keywords {
		if strings.Contains(v, kw.substr) {
			return kw.class
		}
	}
	return Unknown
}

// Parse returns the Class with the given name, or Unknown.
func Parse(name string) Class {
	for _, c := range Classes {
		if string(c) == strings.ToLower(strings.TrimSpace(name)) {
			return c
		}
	}
	return Unknown
}
