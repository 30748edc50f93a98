package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const etrs32WKT = `PROJCS["ETRS89_UTM_Zone_32N",GEOGCS["GCS_ETRS_1989",DATUM["D_ETRS_1989",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["Central_Meridian",9.0],UNIT["Meter",1.0]]`

func TestParsePrjWKT(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
		want int
	}{
		{
			name: "authority node wins",
			wkt:  `PROJCS["ETRS89 / UTM zone 32N",GEOGCS["ETRS89",AUTHORITY["EPSG","4258"]],AUTHORITY["EPSG","25832"]]`,
			want: 25832,
		},
		{
			name: "authority without quotes on code",
			wkt:  `PROJCS["x",AUTHORITY["EPSG",32633]]`,
			want: 32633,
		},
		{
			name: "esri etrs zone 32 keywords",
			wkt:  etrs32WKT,
			want: 25832,
		},
		{
			name: "esri wgs zone 33 keywords",
			wkt:  `PROJCS["WGS_1984_UTM_Zone_33N",GEOGCS["GCS_WGS_1984"],PROJECTION["Transverse_Mercator"]]`,
			want: 32633,
		},
		{
			name: "geographic wgs84",
			wkt:  `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]]]`,
			want: 4326,
		},
		{
			name: "unrecognized",
			wkt:  `PROJCS["DHDN / 3-degree Gauss-Kruger zone 3"]`,
			want: 0,
		},
		{
			name: "empty",
			wkt:  "",
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePrjWKT(tt.wkt))
		})
	}
}
