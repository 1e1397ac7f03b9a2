package grid

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/parallel"
)

// Context is what a forward pass leaves for its backward pass.
type Context struct {
	Geometry *Geometry
	Coords   []float32 // [B, D] normalized
	Table    Table
	Batch    int

	// Output is the encoding laid out [L, B, C].
	Output []float32

	// DyDx is [B, L*D*C], indexed ((b*L+l)*D+d)*C+c. Nil unless input
	// gradients were requested.
	DyDx []float32
}

// Forward encodes coords [B, D] against table. With calcInputGrad it also
// records the derivative of every output feature with respect to each
// coordinate.
func (k *Kernel) Forward(g *Geometry, coords []float32, table Table, calcInputGrad bool) (*Context, error) {
	if err := table.CheckGeometry(g); err != nil {
		return nil, err
	}
	dim := g.InputDim()
	if len(coords)%dim != 0 {
		return nil, fmt.Errorf("%w: %d coordinates is not a multiple of input_dim %d", ErrShapeMismatch, len(coords), dim)
	}

	batch := len(coords) / dim
	levels := g.NumLevels()
	channels := g.LevelDim()

	ctx := &Context{
		Geometry: g,
		Coords:   coords,
		Table:    table,
		Batch:    batch,
		Output:   make([]float32, levels*batch*channels),
	}
	if calcInputGrad {
		ctx.DyDx = make([]float32, batch*levels*dim*channels)
	}

	parallel.ForUnits(batch, levels, func(b, l int) {
		encodeUnit(ctx, b, l)
	}, k.par)

	return ctx, nil
}

func encodeUnit(ctx *Context, b, l int) {
	g := ctx.Geometry
	lv := &g.levels[l]
	dim := g.InputDim()
	channels := g.LevelDim()
	levels := g.NumLevels()

	var cs corners
	cs.locate(lv, ctx.Coords[b*dim:(b+1)*dim])

	var (
		out    [MaxLevelDim]float64
		dydx   [MaxInputDim][MaxLevelDim]float64
		vertex [MaxInputDim]int
	)
	for mask := 0; mask < cs.count(); mask++ {
		w := cs.vertex(lv, mask, vertex[:dim])
		base := lv.row(vertex[:dim]) * channels
		for c := 0; c < channels; c++ {
			out[c] += w * ctx.Table.at(base+c)
		}
		if ctx.DyDx == nil {
			continue
		}
		for d := 0; d < dim; d++ {
			p := cs.partial(mask, d)
			for c := 0; c < channels; c++ {
				dydx[d][c] += p * ctx.Table.at(base+c)
			}
		}
	}

	dst := ctx.Output[(l*ctx.Batch+b)*channels:]
	for c := 0; c < channels; c++ {
		dst[c] = float32(out[c])
	}

	if ctx.DyDx != nil {
		for d := 0; d < dim; d++ {
			row := ctx.DyDx[((b*levels+l)*dim+d)*channels:]
			for c := 0; c < channels; c++ {
				row[c] = float32(dydx[d][c] * cs.jacobian[d])
			}
		}
	}
}

// Permute converts an [L, B, C] encoding to the [B, L*C] layout callers consume.
func Permute(src []float32, levels, batch, channels int) []float32 {
	dst := make([]float32, len(src))
	for l := 0; l < levels; l++ {
		for b := 0; b < batch; b++ {
			copy(dst[(b*levels+l)*channels:(b*levels+l+1)*channels],
				src[(l*batch+b)*channels:(l*batch+b+1)*channels])
		}
	}
	return dst
}

// Unpermute is the inverse of Permute: [B, L*C] back to [L, B, C].
func Unpermute(src []float32, levels, batch, channels int) []float32 {
	dst := make([]float32, len(src))
	for l := 0; l < levels; l++ {
		for b := 0; b < batch; b++ {
			copy(dst[(l*batch+b)*channels:(l*batch+b+1)*channels],
				src[(b*levels+l)*channels:(b*levels+l+1)*channels])
		}
	}
	return dst
}
