package cpu

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/tensor"
)

// Sum computes the total sum of all elements in the tensor (scalar result).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumOf(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumOf(x.AsFloat64())
	case tensor.Int32:
		result.AsInt32()[0] = sumOf(x.AsInt32())
	case tensor.Int64:
		result.AsInt64()[0] = sumOf(x.AsInt64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}
