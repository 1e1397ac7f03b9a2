//go:build !windows

package webgpu

import (
	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/parallel"
)

// NewForwarder returns ErrUnavailable on this platform.
func NewForwarder(parallel.Config) (grid.Forwarder, error) {
	return nil, ErrUnavailable
}

// IsAvailable reports false on this platform.
func IsAvailable() bool {
	return false
}
