package grid

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/gridenc/internal/parallel"
)

// Gradients holds the result of a backward pass.
type Gradients struct {
	// Embeddings has the table's shape and is always float32.
	Embeddings []float32
	// Inputs is [B, D]; nil unless the forward pass recorded DyDx.
	Inputs []float32
}

// Backward propagates gradOutput [L, B, C] to the embedding table and, when
// the forward pass recorded DyDx, to the coordinates.
//
// Table gradients are scattered with atomic adds, so the summation order and
// hence the low bits of the result vary between runs.
func (k *Kernel) Backward(ctx *Context, gradOutput []float32) (*Gradients, error) {
	g := ctx.Geometry
	levels, channels, dim := g.NumLevels(), g.LevelDim(), g.InputDim()
	if want := levels * ctx.Batch * channels; len(gradOutput) != want {
		return nil, fmt.Errorf("%w: grad output has %d values, want [%d, %d, %d]",
			ErrShapeMismatch, len(gradOutput), levels, ctx.Batch, channels)
	}

	grads := &Gradients{Embeddings: make([]float32, ctx.Table.Rows*ctx.Table.Cols)}

	parallel.ForUnits(ctx.Batch, levels, func(b, l int) {
		lv := &g.levels[l]
		var cs corners
		cs.locate(lv, ctx.Coords[b*dim:(b+1)*dim])

		upstream := gradOutput[(l*ctx.Batch+b)*channels : (l*ctx.Batch+b+1)*channels]
		var vertex [MaxInputDim]int
		for mask := 0; mask < cs.count(); mask++ {
			w := cs.vertex(lv, mask, vertex[:dim])
			base := lv.row(vertex[:dim]) * channels
			for c, up := range upstream {
				atomicAddFloat32(&grads.Embeddings[base+c], float32(w*float64(up)))
			}
		}
	}, k.par)

	if ctx.DyDx != nil {
		grads.Inputs = make([]float32, ctx.Batch*dim)
		parallel.For(ctx.Batch, func(b int) {
			for d := 0; d < dim; d++ {
				var sum float64
				for l := 0; l < levels; l++ {
					up := gradOutput[(l*ctx.Batch+b)*channels:]
					dd := ctx.DyDx[((b*levels+l)*dim+d)*channels:]
					for c := 0; c < channels; c++ {
						sum += float64(up[c]) * float64(dd[c])
					}
				}
				grads.Inputs[b*dim+d] = float32(sum)
			}
		}, k.par)
	}

	return grads, nil
}

// atomicAddFloat32 adds delta to *addr with a compare-and-swap loop on the
// value's bits.
func atomicAddFloat32(addr *float32, delta float32) {
	bits := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(bits)
		next := math.Float32bits(math.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(bits, old, next) {
			return
		}
	}
}
