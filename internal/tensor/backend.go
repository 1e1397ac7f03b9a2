package tensor

// Backend defines the operations a compute backend provides to the grid encoder
// pipeline. Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - CPU: pure Go (internal/backend/cpu)
//   - Autodiff: decorator recording operations on a gradient tape (internal/autodiff)
//
// The encode kernels themselves live in internal/grid; a backend only carries the
// element-wise arithmetic a loss needs around them.
type Backend interface {
	// Element-wise binary operations on equal shapes.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by scalar (float32 or float64).
	MulScalar(x *RawTensor, scalar any) *RawTensor

	// Sum reduces all elements to a 0-D tensor.
	Sum(x *RawTensor) *RawTensor

	// Reshape returns a tensor with the same data and a new shape.
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	// Cast converts to a different data type (float32, float64 and float16).
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
