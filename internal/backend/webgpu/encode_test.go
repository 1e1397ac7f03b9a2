//go:build windows

package webgpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchSize(t *testing.T) {
	x, y := dispatchSize(100)
	assert.Equal(t, uint32(2), x)
	assert.Equal(t, uint32(1), y)

	x, y = dispatchSize(encodeWorkgroupSize*maxWorkgroupsPerDim + 1)
	assert.Equal(t, uint32(maxWorkgroupsPerDim), x)
	assert.Equal(t, uint32(2), y)
}

func TestForward_MatchesCPU(t *testing.T) {
	backend, err := New(parallel.Sequential())
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	defer backend.Release()

	for _, kind := range []grid.GridKind{grid.Hash, grid.Tiled} {
		t.Run(kind.String(), func(t *testing.T) {
			cfg := grid.DefaultConfig()
			cfg.NumLevels = 4
			cfg.Log2HashmapSize = 12
			cfg.Kind = kind
			g, err := grid.NewGeometry(cfg)
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(1))
			values := make([]float32, g.NumParams())
			for i := range values {
				values[i] = rng.Float32()*2 - 1
			}
			table, err := grid.TableFromFloat32(values, g.NumRows(), g.LevelDim())
			require.NoError(t, err)

			coords := grid.RandomCoords(257, g.InputDim(), rng)
			want, err := grid.NewKernel(parallel.Sequential()).Forward(g, coords, table, false)
			require.NoError(t, err)
			got, err := backend.Forward(g, coords, table, false)
			require.NoError(t, err)

			assert.InDeltaSlice(t, want.Output, got.Output, 1e-4)
			assert.Nil(t, got.DyDx)
		})
	}
}

func TestForward_FallsBackForInputGrad(t *testing.T) {
	backend, err := New(parallel.Sequential())
	if err != nil {
		t.Skip("WebGPU not available on this system")
	}
	defer backend.Release()

	cfg := grid.DefaultConfig()
	cfg.NumLevels = 2
	g, err := grid.NewGeometry(cfg)
	require.NoError(t, err)
	table, err := grid.TableFromFloat32(make([]float32, g.NumParams()), g.NumRows(), g.LevelDim())
	require.NoError(t, err)

	ctx, err := backend.Forward(g, []float32{0.5, 0.5, 0.5}, table, true)
	require.NoError(t, err)
	assert.Len(t, ctx.DyDx, g.NumLevels()*g.InputDim()*g.LevelDim())
}
