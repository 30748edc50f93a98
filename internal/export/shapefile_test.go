package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTopShapefile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "top.shp")
	cells := sampleCells()
	require.NoError(t, WriteTopShapefile(path, cells))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var count int
	for r.Next() {
		_, shape := r.Shape()
		p, ok := shape.(*shp.Point)
		require.True(t, ok)
		assert.Equal(t, cells[count].Centroid[0], p.X)
		assert.Equal(t, cells[count].Centroid[1], p.Y)
		count++
	}
	assert.Equal(t, 2, count)
	assert.Len(t, r.Fields(), 7)
}

func TestWriteTopShapefileAttributeSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "top.shp")
	require.NoError(t, WriteTopShapefile(path, sampleCells()))

	// The attribute table must sit where readers look for it.
	_, err := os.Stat(filepath.Join(dir, "top.dbf"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "topdbf"))
	assert.True(t, os.IsNotExist(err))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	attr := func(row, field int) string {
		return strings.TrimRight(r.ReadAttribute(row, field), "\x00")
	}
	assert.Equal(t, "1", attr(0, 0))
	assert.Equal(t, "1", attr(0, 1))
	assert.Equal(t, "2", attr(0, 2))
	assert.Equal(t, "0.812500", attr(0, 3))
	assert.Equal(t, "park", attr(0, 4))
	assert.Equal(t, "meadow", attr(0, 5))
	assert.Equal(t, "Y", attr(0, 6))
	assert.Equal(t, "N", attr(1, 6))
}
