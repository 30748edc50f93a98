package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	m := Manifest{
		RunID:      "7d1f3c9a-0000-0000-0000-000000000000",
		CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		TargetEPSG: 25832,
		CellSize:   10,
		CellCount:  4,
		TopN:       2,
		Weights:    map[string]float64{"tree_distance": 0.6, "land_use": 0.4},
		Outputs:    []string{"grid.geojson", "top.geojson"},
	}
	require.NoError(t, WriteManifest(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Manifest
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, m.RunID, got.RunID)
	assert.Equal(t, m.TargetEPSG, got.TargetEPSG)
	assert.Equal(t, m.Weights, got.Weights)
	assert.Equal(t, m.Outputs, got.Outputs)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
}
