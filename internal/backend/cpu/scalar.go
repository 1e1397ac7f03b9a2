package cpu

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/tensor"
)

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s, err := scalarValue(scalar)
	if err != nil {
		panic(fmt.Sprintf("mulScalar: %v", err))
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mulScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		scaleInto(result.AsFloat32(), x.AsFloat32(), s)
	case tensor.Float64:
		scaleInto(result.AsFloat64(), x.AsFloat64(), s)
	case tensor.Int32:
		scaleInto(result.AsInt32(), x.AsInt32(), s)
	case tensor.Int64:
		scaleInto(result.AsInt64(), x.AsInt64(), s)
	default:
		panic(fmt.Sprintf("mulScalar: unsupported dtype %v", x.DType()))
	}

	return result
}

func scalarValue(scalar any) (float64, error) {
	switch v := scalar.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", scalar)
	}
}
