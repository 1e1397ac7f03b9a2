// Package nn implements the trainable modules of the grid encoder stack.
//
// This package provides:
//   - Module interface: Base interface for trainable components
//   - Parameter: Trainable tensors with gradient tracking
//   - GridEncoder: Multiresolution hash/tiled grid encoding
//   - MSELoss: Reconstruction loss for fitting encoders
//   - SaveGridEncoder / LoadGridEncoder: SafeTensors checkpoints
package nn

import (
	"github.com/born-ml/gridenc/internal/tensor"
)

// Module is the base interface for trainable components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter[B]

	// StateDict returns the tensors needed to restore the module, keyed by name.
	StateDict() map[string]*tensor.RawTensor
}
