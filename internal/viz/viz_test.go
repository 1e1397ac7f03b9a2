package viz_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/parallel"
	"github.com/born-ml/gridenc/internal/viz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantPlane is a 2-D tiled geometry whose table holds value in every
// channel 0 entry and -value in channel 1.
func constantPlane(t *testing.T, value float32) (*grid.Geometry, grid.Table) {
	t.Helper()
	g, err := grid.NewGeometry(grid.Config{
		InputDim:        2,
		NumLevels:       2,
		LevelDim:        2,
		PerLevelScale:   2,
		BaseResolution:  4,
		Log2HashmapSize: 19,
		Kind:            grid.Tiled,
	})
	require.NoError(t, err)

	data := make([]float32, g.NumParams())
	for i := range data {
		if i%2 == 0 {
			data[i] = value
		} else {
			data[i] = -value
		}
	}
	table, err := grid.TableFromFloat32(data, g.NumRows(), g.LevelDim())
	require.NoError(t, err)
	return g, table
}

func TestSampleSlice(t *testing.T) {
	g, table := constantPlane(t, 2)
	k := grid.NewKernel(parallel.Sequential())

	s, err := viz.SampleSlice(k, g, table, 1, 1, 8)
	require.NoError(t, err)

	c, r := s.Dims()
	assert.Equal(t, 8, c)
	assert.Equal(t, 8, r)
	assert.InDelta(t, 0.0625, s.X(0), 1e-12)
	assert.InDelta(t, 0.9375, s.Y(7), 1e-12)
	for _, v := range s.Values {
		assert.InDelta(t, -2.0, v, 1e-6)
	}
}

func TestSampleSlice_Errors(t *testing.T) {
	g, table := constantPlane(t, 1)
	k := grid.NewKernel(parallel.Sequential())

	_, err := viz.SampleSlice(k, g, table, 2, 0, 8)
	require.Error(t, err)
	_, err = viz.SampleSlice(k, g, table, 0, 2, 8)
	require.Error(t, err)
	_, err = viz.SampleSlice(k, g, table, 0, 0, 1)
	require.Error(t, err)
}

func TestWriteHeatmap(t *testing.T) {
	g, table := constantPlane(t, 1)
	// A constant slice has no range; vary one cell.
	s, err := viz.SampleSlice(grid.NewKernel(parallel.Sequential()), g, table, 0, 0, 4)
	require.NoError(t, err)
	s.Values[0] = 0

	var buf bytes.Buffer
	require.NoError(t, viz.WriteHeatmap(&buf, s))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	path := filepath.Join(t.TempDir(), "slice.png")
	require.NoError(t, viz.SaveHeatmap(path, s))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestLevelChart(t *testing.T) {
	g, table := constantPlane(t, 1)
	stats, err := grid.TableStats(g, table)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, viz.LevelChart(&buf, g, stats))
	html := buf.String()
	assert.Contains(t, html, "Rows per level")
	assert.Contains(t, html, "Embedding statistics")
	assert.Contains(t, html, "echarts")

	buf.Reset()
	require.NoError(t, viz.LevelChart(&buf, g, nil))
	assert.NotContains(t, buf.String(), "Embedding statistics")
}
