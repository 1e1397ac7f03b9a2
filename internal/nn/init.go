package nn

import (
	"math/rand"

	"github.com/born-ml/gridenc/internal/tensor"
)

// EmbeddingInitStd is the half-width of the uniform embedding initialization.
const EmbeddingInitStd = 1e-4

// Uniform creates a tensor with values drawn from U(-std, std).
//
// A nil rng uses the global math/rand source.
func Uniform[B tensor.Backend](shape tensor.Shape, std float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return tensor.Uniform(shape, -std, std, rng, backend)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
