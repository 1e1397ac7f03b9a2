// Package webgpu runs the grid encode forward pass as a WGSL compute shader.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// The GPU path covers float32 tables without input gradients. Everything else
// (half-precision tables, passes that need DyDx, backward, total variation)
// runs on the CPU kernel. Like the bindings it wraps, the backend is only
// built on Windows; elsewhere NewForwarder reports ErrUnavailable.
package webgpu

import "errors"

// ErrUnavailable is returned when no WebGPU device can be used.
var ErrUnavailable = errors.New("webgpu: not available")
