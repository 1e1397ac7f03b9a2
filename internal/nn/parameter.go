package nn

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/tensor"
)

// Parameter represents a trainable parameter.
//
// Example:
//
//	table := nn.NewParameter("embeddings", tableTensor)
//	grads := autodiff.Backward(loss, backend)
//	table.AccumulateGrad(grads[table.Tensor().Raw()])
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "embeddings")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	grad   *tensor.Tensor[float32, B] // Gradient tensor, nil until first accumulated
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been accumulated yet.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ensureGrad returns the gradient buffer, allocating zeros if absent.
func (p *Parameter[B]) ensureGrad() *tensor.Tensor[float32, B] {
	if p.grad == nil {
		p.grad = tensor.Zeros[float32](p.tensor.Shape(), p.tensor.Backend())
	}
	return p.grad
}

// AccumulateGrad adds raw into the parameter's gradient buffer. A nil raw is
// ignored so a gradient map lookup can be passed directly.
func (p *Parameter[B]) AccumulateGrad(raw *tensor.RawTensor) error {
	if raw == nil {
		return nil
	}
	if !raw.Shape().Equal(p.tensor.Shape()) || raw.DType() != tensor.Float32 {
		return fmt.Errorf("parameter %s: gradient %s%v does not match %v", p.name, raw.DType(), raw.Shape(), p.tensor.Shape())
	}
	dst := p.ensureGrad().Raw().AsFloat32()
	for i, g := range raw.AsFloat32() {
		dst[i] += g
	}
	return nil
}

// ZeroGrad clears the gradient tensor.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}
