// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gridenc provides a multiresolution hash/tiled grid encoder for Born.
//
// The encoder maps coordinates in [-bound, bound]^D to NumLevels*LevelDim
// features by multilinear interpolation of a learnable embedding table laid
// out over a pyramid of grids. Coarse levels are stored densely; fine levels
// share a fixed-size table through a spatial hash.
//
// Example:
//
//	backend := gridenc.NewAutodiff(gridenc.NewCPU())
//	enc, err := gridenc.NewGridEncoder(gridenc.DefaultConfig(), backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	backend.Tape().StartRecording()
//	features, _ := enc.Forward(points, 1) // [N, 3] -> [N, 32]
//	loss := gridenc.NewMSELoss(backend).Forward(features, targets)
//	grads := gridenc.Backward(loss, backend)
package gridenc

import (
	"github.com/born-ml/gridenc/internal/autodiff"
	"github.com/born-ml/gridenc/internal/backend/cpu"
	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/nn"
	"github.com/born-ml/gridenc/internal/optim"
	"github.com/born-ml/gridenc/internal/tensor"
)

// Configuration

// Config describes a grid encoder.
type Config = grid.Config

// GridKind selects hashed or tiled storage for the fine levels.
type GridKind = grid.GridKind

// Grid kinds.
const (
	Hash  = grid.Hash
	Tiled = grid.Tiled
)

// DefaultConfig returns the conventional 3D hash-grid configuration.
func DefaultConfig() Config {
	return grid.DefaultConfig()
}

// LoadConfig reads a Config from a JSON file.
func LoadConfig(path string) (Config, error) {
	return grid.LoadConfig(path)
}

// ParseGridKind parses "hash" or "tiled".
func ParseGridKind(s string) (GridKind, error) {
	return grid.ParseGridKind(s)
}

// Geometry is the resolved per-level layout of a Config.
type Geometry = grid.Geometry

// NewGeometry computes the level layout of cfg.
func NewGeometry(cfg Config) (*Geometry, error) {
	return grid.NewGeometry(cfg)
}

// Encoder

// GridEncoder is the encoder module.
type GridEncoder[B tensor.Backend] = nn.GridEncoder[B]

// Parameter is a trainable tensor such as the embedding table.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// GridEncoderOption configures a GridEncoder.
type GridEncoderOption = nn.GridEncoderOption

// Forwarder runs the encode forward pass (CPU kernel or a GPU backend).
type Forwarder = grid.Forwarder

// NewGridEncoder creates an encoder with a freshly initialized table.
func NewGridEncoder[B tensor.Backend](cfg Config, backend B, opts ...GridEncoderOption) (*GridEncoder[B], error) {
	return nn.NewGridEncoder(cfg, backend, opts...)
}

// Encoder options.
var (
	WithParallel  = nn.WithParallel
	WithForwarder = nn.WithForwarder
	WithRand      = nn.WithRand
	WithTVSamples = nn.WithTVSamples
)

// TVWeight ramps a total-variation coefficient in over the first steps.
func TVWeight(step int, lambda float64) float64 {
	return grid.TVWeight(step, lambda)
}

// SaveGridEncoder writes enc to a SafeTensors checkpoint and returns its run ID.
func SaveGridEncoder[B tensor.Backend](path string, enc *GridEncoder[B]) (string, error) {
	return nn.SaveGridEncoder(path, enc)
}

// LoadGridEncoder restores an encoder from a checkpoint.
func LoadGridEncoder[B tensor.Backend](path string, backend B, opts ...GridEncoderOption) (*GridEncoder[B], error) {
	return nn.LoadGridEncoder(path, backend, opts...)
}

// Errors returned by the encoder.
var (
	ErrInvalidConfig     = grid.ErrInvalidConfig
	ErrShapeMismatch     = grid.ErrShapeMismatch
	ErrOffsetsMismatch   = nn.ErrOffsetsMismatch
	ErrNotGridCheckpoint = nn.ErrNotGridCheckpoint
)

// Tensors and training

// Tensor is a typed tensor on backend B.
type Tensor[B tensor.Backend] = tensor.Tensor[float32, B]

// Shape is a tensor shape.
type Shape = tensor.Shape

// FromSlice creates a float32 tensor from data.
func FromSlice[B tensor.Backend](data []float32, shape Shape, backend B) (*Tensor[B], error) {
	return tensor.FromSlice(data, shape, backend)
}

// CPU is the CPU backend.
type CPU = cpu.CPUBackend

// NewCPU creates a CPU backend.
func NewCPU() *CPU {
	return cpu.New()
}

// Autodiff is a backend that records operations for backpropagation.
type Autodiff[B tensor.Backend] = autodiff.AutodiffBackend[B]

// NewAutodiff wraps backend with a gradient tape.
func NewAutodiff[B tensor.Backend](backend B) *Autodiff[B] {
	return autodiff.New(backend)
}

// Backward computes gradients of loss for every tensor on the backend's tape.
func Backward[B autodiff.BackwardCapable](loss *Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(loss, backend)
}

// MSELoss is the mean squared error loss.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates an MSE loss.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// Adam is the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over the encoder's parameters.
func NewAdam[B tensor.Backend](params []*Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}
