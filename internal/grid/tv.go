package grid

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/gridenc/internal/parallel"
)

// DefaultTVSamples is the number of random points drawn by a total-variation
// pass when no coordinates are given.
const DefaultTVSamples = 1 << 20

// TVWarmupSteps is the number of steps over which TVWeight ramps up.
const TVWarmupSteps = 1000

// TVWeight ramps lambda linearly from zero over the first TVWarmupSteps steps.
func TVWeight(step int, lambda float64) float64 {
	return min(1, float64(step)/TVWarmupSteps) * lambda
}

// RandomCoords draws n points uniformly from [0, 1)^dim.
func RandomCoords(n, dim int, rng *rand.Rand) []float32 {
	coords := make([]float32, n*dim)
	for i := range coords {
		coords[i] = rng.Float32()
	}
	return coords
}

// TotalVariation adds the gradient of an L2 total-variation penalty into grad,
// which has the table's shape. For every (sample, level) the vertex nearest
// below the sample is pulled toward its axis neighbors with strength
// weight/(2D). Samples with any coordinate outside [0, 1] are skipped.
func (k *Kernel) TotalVariation(g *Geometry, coords []float32, table Table, grad []float32, weight float64) error {
	if err := table.CheckGeometry(g); err != nil {
		return err
	}
	if len(grad) != table.Rows*table.Cols {
		return fmt.Errorf("%w: gradient has %d values, table has %d", ErrShapeMismatch, len(grad), table.Rows*table.Cols)
	}
	dim, channels := g.InputDim(), g.LevelDim()
	if len(coords)%dim != 0 {
		return fmt.Errorf("%w: %d coordinates is not a multiple of input_dim %d", ErrShapeMismatch, len(coords), dim)
	}
	batch := len(coords) / dim
	scale := weight / float64(2*dim)

	parallel.ForUnits(batch, g.NumLevels(), func(b, l int) {
		point := coords[b*dim : (b+1)*dim]
		for _, x := range point {
			if !(x >= 0 && x <= 1) {
				return
			}
		}

		lv := &g.levels[l]
		var vertex, neighbor [MaxInputDim]int
		for d, x := range point {
			vertex[d] = lv.nearestVertex(x)
		}
		base := lv.row(vertex[:dim]) * channels

		var diff [MaxLevelDim]float64
		for d := 0; d < dim; d++ {
			for _, step := range [2]int{-1, 1} {
				n := vertex[d] + step
				if n < 0 || n >= lv.Vertices {
					continue
				}
				copy(neighbor[:dim], vertex[:dim])
				neighbor[d] = n
				nb := lv.row(neighbor[:dim]) * channels
				for c := 0; c < channels; c++ {
					diff[c] += table.at(base+c) - table.at(nb+c)
				}
			}
		}

		for c := 0; c < channels; c++ {
			if diff[c] != 0 {
				atomicAddFloat32(&grad[base+c], float32(scale*diff[c]))
			}
		}
	}, k.par)

	return nil
}
