// Package optim implements the optimizers that update a grid encoder's
// embedding table between training steps.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Gradients come either from the map returned by autodiff.Backward or, when a
// parameter has no entry there, from the gradient buffer on the parameter
// itself. The second path carries contributions such as the total-variation
// gradient, which is added outside the tape.
//
// Example usage:
//
//	optimizer := optim.NewAdam(encoder.Parameters(), optim.AdamConfig{LR: 1e-2}, backend)
//
//	for step := range steps {
//	    backend.Tape().StartRecording()
//	    features, _ := encoder.Forward(points, 1)
//	    loss := mse.Forward(features, targets)
//	    grads := autodiff.Backward(loss, backend)
//	    backend.Tape().StopRecording()
//	    backend.Tape().Clear()
//
//	    encoder.Embeddings.AccumulateGrad(grads[encoder.Embeddings.Tensor().Raw()])
//	    encoder.GradTotalVariation(grid.TVWeight(step, 1e-6), nil, 1)
//
//	    optimizer.Step(nil)
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/gridenc/internal/nn"
	"github.com/born-ml/gridenc/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	//
	// grads maps a parameter's RawTensor to its gradient. Parameters absent
	// from grads (or all of them, for a nil map) fall back to Parameter.Grad.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// getGradient retrieves the gradient for a parameter.
//
// Returns nil if the parameter has neither a map entry nor an accumulated
// gradient buffer.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	if param == nil {
		return nil
	}
	if g, ok := grads[param.Tensor().Raw()]; ok && g != nil {
		return g.AsFloat32()
	}
	if g := param.Grad(); g != nil {
		return g.Raw().AsFloat32()
	}
	return nil
}
