package layer

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

var epsgAuthorityRe = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// inferEPSG determines the EPSG code declared by a shapefile's .prj side-car.
// Returns 0 when no side-car exists or the WKT is not recognized.
func inferEPSG(shpPath string) int {
	base := strings.TrimSuffix(shpPath, ".shp")
	data, err := os.ReadFile(base + ".prj")
	if err != nil {
		return 0
	}
	return parsePrjWKT(string(data))
}

// parsePrjWKT extracts an EPSG code from ESRI WKT. The trailing AUTHORITY
// node wins when present; otherwise common German cadastre projection names
// are matched by keyword.
func parsePrjWKT(wkt string) int {
	matches := epsgAuthorityRe.FindAllStringSubmatch(wkt, -1)
	if len(matches) > 0 {
		code, err := strconv.Atoi(matches[len(matches)-1][1])
		if err == nil {
			return code
		}
	}

	u := strings.ToUpper(wkt)
	etrs := strings.Contains(u, "ETRS")
	wgs := strings.Contains(u, "WGS_1984") || strings.Contains(u, "WGS 84") || strings.Contains(u, "WGS84")

	switch {
	case strings.Contains(u, "ZONE_32") || strings.Contains(u, "ZONE 32"):
		if etrs {
			return 25832
		}
		if wgs {
			return 32632
		}
	case strings.Contains(u, "ZONE_33") || strings.Contains(u, "ZONE 33"):
		if etrs {
			return 25833
		}
		if wgs {
			return 32633
		}
	case strings.HasPrefix(u, "GEOGCS") && wgs:
		return 4326
	}
	return 0
}
