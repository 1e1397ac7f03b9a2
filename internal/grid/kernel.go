package grid

import "github.com/born-ml/gridenc/internal/parallel"

// Forwarder runs Encode Forward. The CPU Kernel is the reference
// implementation; GPU backends provide their own and fall back to it for
// features they do not cover.
type Forwarder interface {
	Forward(g *Geometry, coords []float32, table Table, calcInputGrad bool) (*Context, error)
	Name() string
}

// Kernel is the CPU encode kernel. Work is split over (sample, level) units.
type Kernel struct {
	par parallel.Config
}

// NewKernel creates a CPU kernel using cfg for fan-out.
func NewKernel(cfg parallel.Config) *Kernel {
	return &Kernel{par: cfg}
}

// Name returns "cpu".
func (k *Kernel) Name() string {
	return "cpu"
}

// corners holds the per-unit interpolation state shared by forward, backward
// and the derivative pass.
type corners struct {
	dim      int
	lower    [MaxInputDim]int
	frac     [MaxInputDim]float64
	jacobian [MaxInputDim]float64
}

func (c *corners) locate(lv *Level, coord []float32) {
	c.dim = len(coord)
	for d, x := range coord {
		c.lower[d], c.frac[d], c.jacobian[d] = lv.gridPosition(x)
	}
}

// count is 2^D.
func (c *corners) count() int {
	return 1 << c.dim
}

// vertex fills v with the coordinates of corner mask and returns its
// multilinear weight. Bit d of mask selects the upper neighbor on axis d.
func (c *corners) vertex(lv *Level, mask int, v []int) float64 {
	w := 1.0
	for d := 0; d < c.dim; d++ {
		if mask&(1<<d) != 0 {
			v[d] = min(c.lower[d]+1, lv.Vertices-1)
			w *= c.frac[d]
		} else {
			v[d] = c.lower[d]
			w *= 1 - c.frac[d]
		}
	}
	return w
}

// partial is the derivative of the corner weight along axis d, in grid units.
func (c *corners) partial(mask, d int) float64 {
	w := -1.0
	if mask&(1<<d) != 0 {
		w = 1
	}
	for k := 0; k < c.dim; k++ {
		if k == d {
			continue
		}
		if mask&(1<<k) != 0 {
			w *= c.frac[k]
		} else {
			w *= 1 - c.frac[k]
		}
	}
	return w
}
