package grid_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/parallel"
	"github.com/born-ml/gridenc/internal/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/diff/fd"
)

// rampGeometry is a single 4x4 aligned tiled level whose table holds each
// row's own index, so the encoding of a point is its dense vertex index
// x + 4y interpolated.
func rampGeometry(t *testing.T) (*grid.Geometry, grid.Table) {
	t.Helper()
	g, err := grid.NewGeometry(grid.Config{
		InputDim:        2,
		NumLevels:       1,
		LevelDim:        1,
		PerLevelScale:   2,
		BaseResolution:  4,
		Log2HashmapSize: 19,
		Kind:            grid.Tiled,
		AlignCorners:    true,
	})
	require.NoError(t, err)
	require.Equal(t, 16, g.NumRows())

	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i)
	}
	table, err := grid.TableFromFloat32(data, 16, 1)
	require.NoError(t, err)
	return g, table
}

func randomTable(t *testing.T, g *grid.Geometry, seed int64) grid.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float32, g.NumParams())
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	table, err := grid.TableFromFloat32(data, g.NumRows(), g.LevelDim())
	require.NoError(t, err)
	return table
}

func TestForward_Bilinear(t *testing.T) {
	g, table := rampGeometry(t)
	k := grid.NewKernel(parallel.Sequential())

	ctx, err := k.Forward(g, []float32{0.5, 0.5, 0, 0, 1, 1}, table, false)
	require.NoError(t, err)

	// (0.5, 0.5) averages rows 5, 6, 9, 10; the corners hit rows 0 and 15.
	assert.InDeltaSlice(t, []float32{7.5, 0, 15}, ctx.Output, 1e-6)
	assert.Nil(t, ctx.DyDx)
}

func TestForward_BoundaryVerticesAtEveryLevel(t *testing.T) {
	g, err := grid.NewGeometry(grid.Config{
		InputDim:        2,
		NumLevels:       3,
		LevelDim:        1,
		PerLevelScale:   1.5,
		BaseResolution:  4,
		Log2HashmapSize: 19,
		Kind:            grid.Tiled,
		AlignCorners:    true,
	})
	require.NoError(t, err)

	// Each row holds its own index, so a feature equal to a row index means
	// exactly that row was read.
	data := make([]float32, g.NumParams())
	for i := range data {
		data[i] = float32(i)
	}
	table, err := grid.TableFromFloat32(data, g.NumRows(), g.LevelDim())
	require.NoError(t, err)

	ctx, err := grid.NewKernel(parallel.Sequential()).Forward(g, []float32{0, 0, 1, 1}, table, false)
	require.NoError(t, err)

	for _, lv := range g.Levels() {
		last := lv.Vertices - 1
		assert.Equal(t, float32(lv.Row(0, 0)), ctx.Output[lv.Index*2], "level %d origin", lv.Index)
		assert.Equal(t, float32(lv.Row(last, last)), ctx.Output[lv.Index*2+1], "level %d far corner", lv.Index)
	}
}

func TestForward_DyDx(t *testing.T) {
	g, table := rampGeometry(t)
	k := grid.NewKernel(parallel.Sequential())

	ctx, err := k.Forward(g, []float32{0.5, 0.5}, table, true)
	require.NoError(t, err)

	// d/dx of x+4y in grid units is 1 and 4, times the Jacobian res-1 = 3.
	assert.InDeltaSlice(t, []float32{3, 12}, ctx.DyDx, 1e-5)
}

func TestForward_ClampsOutOfRange(t *testing.T) {
	g, table := rampGeometry(t)
	k := grid.NewKernel(parallel.Sequential())

	ctx, err := k.Forward(g, []float32{1.5, 0, -2, -2, float32(math.NaN()), 0}, table, true)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float32{3, 0, 0}, ctx.Output, 1e-6)
	// The clamped x axis has zero derivative; y is still live.
	assert.InDeltaSlice(t, []float32{0, 12, 0, 0, 0, 12}, ctx.DyDx, 1e-5)
}

func TestForward_Idempotent(t *testing.T) {
	g, err := grid.NewGeometry(smallConfig())
	require.NoError(t, err)
	table := randomTable(t, g, 1)
	coords := grid.RandomCoords(64, 2, rand.New(rand.NewSource(2)))

	first, err := grid.NewKernel(parallel.Sequential()).Forward(g, coords, table, true)
	require.NoError(t, err)
	second, err := grid.NewKernel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}).Forward(g, coords, table, true)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Output, second.Output); diff != "" {
		t.Errorf("output differs between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.DyDx, second.DyDx); diff != "" {
		t.Errorf("dydx differs between runs (-first +second):\n%s", diff)
	}
}

func TestForward_DyDxMatchesFiniteDifference(t *testing.T) {
	g, err := grid.NewGeometry(grid.Config{
		InputDim:        3,
		NumLevels:       3,
		LevelDim:        2,
		PerLevelScale:   1.5,
		BaseResolution:  4,
		Log2HashmapSize: 19,
		Kind:            grid.Hash,
	})
	require.NoError(t, err)
	table := randomTable(t, g, 3)
	k := grid.NewKernel(parallel.Sequential())

	// Chosen away from cell boundaries at resolutions 4, 6 and 9.
	point := []float64{0.37, 0.55, 0.2}
	coords := []float32{0.37, 0.55, 0.2}

	ctx, err := k.Forward(g, coords, table, true)
	require.NoError(t, err)

	L, D, C := g.NumLevels(), g.InputDim(), g.LevelDim()
	for l := 0; l < L; l++ {
		for c := 0; c < C; c++ {
			feature := func(x []float64) float64 {
				in := []float32{float32(x[0]), float32(x[1]), float32(x[2])}
				out, err := k.Forward(g, in, table, false)
				require.NoError(t, err)
				return float64(out.Output[l*C+c])
			}
			numeric := fd.Gradient(nil, feature, point, &fd.Settings{Formula: fd.Central, Step: 1e-3})
			for d := 0; d < D; d++ {
				analytic := float64(ctx.DyDx[(l*D+d)*C+c])
				assert.InDelta(t, numeric[d], analytic, 1e-2, "level %d axis %d channel %d", l, d, c)
			}
		}
	}
}

func TestForward_HalfPrecisionTable(t *testing.T) {
	g, err := grid.NewGeometry(smallConfig())
	require.NoError(t, err)
	full := randomTable(t, g, 4)

	half := make([]float16.Float16, len(full.F32))
	rounded := make([]float32, len(full.F32))
	for i, v := range full.F32 {
		half[i] = tensor.HalfFromFloat32(v)
		rounded[i] = half[i].Float32()
	}
	halfTable, err := grid.TableFromFloat16(half, g.NumRows(), g.LevelDim())
	require.NoError(t, err)
	assert.True(t, halfTable.Half())
	roundedTable, err := grid.TableFromFloat32(rounded, g.NumRows(), g.LevelDim())
	require.NoError(t, err)

	coords := grid.RandomCoords(16, 2, rand.New(rand.NewSource(5)))
	k := grid.NewKernel(parallel.Sequential())
	a, err := k.Forward(g, coords, halfTable, false)
	require.NoError(t, err)
	b, err := k.Forward(g, coords, roundedTable, false)
	require.NoError(t, err)

	assert.Equal(t, b.Output, a.Output)
}

func TestForward_ShapeErrors(t *testing.T) {
	g, table := rampGeometry(t)
	k := grid.NewKernel(parallel.Sequential())

	_, err := k.Forward(g, []float32{0.1, 0.2, 0.3}, table, false)
	require.ErrorIs(t, err, grid.ErrShapeMismatch)

	short, err := grid.TableFromFloat32(make([]float32, 8), 8, 1)
	require.NoError(t, err)
	_, err = k.Forward(g, []float32{0.1, 0.2}, short, false)
	require.ErrorIs(t, err, grid.ErrShapeMismatch)

	_, err = grid.TableFromFloat32(make([]float32, 5), 2, 2)
	require.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestTableFromRaw(t *testing.T) {
	raw, err := tensor.RawFromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
	require.NoError(t, err)
	table, err := grid.TableFromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Rows)
	assert.Equal(t, 2, table.Cols)
	assert.False(t, table.Half())

	flat, err := tensor.RawFromFloat32([]float32{1, 2}, tensor.Shape{2}, tensor.CPU)
	require.NoError(t, err)
	_, err = grid.TableFromRaw(flat)
	require.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestPermute(t *testing.T) {
	// [L=2, B=3, C=1]
	src := []float32{1, 2, 3, 10, 20, 30}
	got := grid.Permute(src, 2, 3, 1)
	assert.Equal(t, []float32{1, 10, 2, 20, 3, 30}, got)
	assert.Equal(t, src, grid.Unpermute(got, 2, 3, 1))
}
