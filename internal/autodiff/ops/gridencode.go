package ops

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/tensor"
)

// GridEncodeOp records one grid encoding.
//
// Forward: output [*, L*C] = encode((coords+bound)/(2*bound), embeddings)
//
// Backward:
//   - d_embeddings: scatter of the interpolation weights (grid.Kernel.Backward)
//   - d_coords: DyDx contracted with the output gradient, times 1/(2*bound);
//     nil when the forward pass did not record DyDx
type GridEncodeOp struct {
	kernel     *grid.Kernel
	ctx        *grid.Context
	coords     *tensor.RawTensor
	embeddings *tensor.RawTensor
	output     *tensor.RawTensor
	inputScale float64
}

// NewGridEncodeOp creates a GridEncodeOp. inputScale is the derivative of the
// normalized coordinate with respect to the raw one.
func NewGridEncodeOp(kernel *grid.Kernel, ctx *grid.Context, coords, embeddings, output *tensor.RawTensor, inputScale float64) *GridEncodeOp {
	return &GridEncodeOp{
		kernel:     kernel,
		ctx:        ctx,
		coords:     coords,
		embeddings: embeddings,
		output:     output,
		inputScale: inputScale,
	}
}

// Backward computes gradients for [coords, embeddings].
func (op *GridEncodeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	if outputGrad.DType() != tensor.Float32 {
		panic(fmt.Sprintf("grid encode backward: unsupported dtype %s", outputGrad.DType()))
	}
	g := op.ctx.Geometry
	upstream := grid.Unpermute(outputGrad.AsFloat32(), g.NumLevels(), op.ctx.Batch, g.LevelDim())

	grads, err := op.kernel.Backward(op.ctx, upstream)
	if err != nil {
		panic(fmt.Sprintf("grid encode backward: %v", err))
	}

	gradTable, err := tensor.RawFromFloat32(grads.Embeddings, op.embeddings.Shape(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("grid encode backward: %v", err))
	}

	var gradCoords *tensor.RawTensor
	if grads.Inputs != nil {
		for i := range grads.Inputs {
			grads.Inputs[i] *= float32(op.inputScale)
		}
		gradCoords, err = tensor.RawFromFloat32(grads.Inputs, op.coords.Shape(), backend.Device())
		if err != nil {
			panic(fmt.Sprintf("grid encode backward: %v", err))
		}
	}

	return []*tensor.RawTensor{gradCoords, gradTable}
}

// Inputs returns [coords, embeddings].
func (op *GridEncodeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.coords, op.embeddings}
}

// Output returns the encoded features.
func (op *GridEncodeOp) Output() *tensor.RawTensor {
	return op.output
}

// Context returns the saved forward state.
func (op *GridEncodeOp) Context() *grid.Context {
	return op.ctx
}
