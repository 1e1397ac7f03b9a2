package ops

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/tensor"
)

// SumOp records the reduction of a tensor to a scalar.
//
// Backward: every input element receives the scalar output gradient.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("sum backward: %v", err))
	}

	switch op.input.DType() {
	case tensor.Float32:
		fill(grad.AsFloat32(), outputGrad.AsFloat32()[0])
	case tensor.Float64:
		fill(grad.AsFloat64(), outputGrad.AsFloat64()[0])
	default:
		panic(fmt.Sprintf("sum backward: unsupported dtype %s", op.input.DType()))
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensor.
func (op *SumOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar output.
func (op *SumOp) Output() *tensor.RawTensor {
	return op.output
}

func fill[T float32 | float64](dst []T, v T) {
	for i := range dst {
		dst[i] = v
	}
}
