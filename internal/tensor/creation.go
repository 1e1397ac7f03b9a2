package tensor

import "math/rand"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return New[T, B](raw, b)
}

// Uniform creates a float32 tensor with values drawn from U(low, high).
// A nil rng uses the global math/rand source.
//
// Example:
//
//	table := tensor.Uniform(Shape{rows, 2}, -1e-4, 1e-4, nil, backend)
func Uniform[B Backend](shape Shape, low, high float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	draw := rand.Float64 //nolint:gosec // G404: ML uses math/rand intentionally
	if rng != nil {
		draw = rng.Float64
	}
	for i := range data {
		data[i] = float32(low + (high-low)*draw())
	}
	return t
}
