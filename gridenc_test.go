// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package gridenc_test

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/born-ml/gridenc"
	"github.com/born-ml/gridenc/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacade_TrainStepAndCheckpoint(t *testing.T) {
	monitoring.SetLogger(nil)

	cfg := gridenc.DefaultConfig()
	cfg.NumLevels = 4
	cfg.Log2HashmapSize = 10

	backend := gridenc.NewAutodiff(gridenc.NewCPU())
	enc, err := gridenc.NewGridEncoder(cfg, backend, gridenc.WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	assert.Equal(t, 8, enc.OutputDim())

	points, err := gridenc.FromSlice([]float32{0.1, 0.2, 0.3, -0.4, -0.5, 0.6}, gridenc.Shape{2, 3}, backend)
	require.NoError(t, err)
	targets, err := gridenc.FromSlice(make([]float32, 16), gridenc.Shape{2, 8}, backend)
	require.NoError(t, err)
	for i := range targets.Data() {
		targets.Data()[i] = 1
	}

	opt := gridenc.NewAdam(enc.Parameters(), gridenc.AdamConfig{LR: 1e-2}, backend)
	backend.Tape().StartRecording()
	features, err := enc.Forward(points, 1)
	require.NoError(t, err)
	loss := gridenc.NewMSELoss(backend).Forward(features, targets)
	grads := gridenc.Backward(loss, backend)
	backend.Tape().StopRecording()

	require.NoError(t, enc.Embeddings.AccumulateGrad(grads[enc.Embeddings.Tensor().Raw()]))
	require.NoError(t, enc.GradTotalVariation(gridenc.TVWeight(1000, 1e-6), points, 1))
	opt.Step(nil)
	assert.Equal(t, 1, opt.GetTimestep())

	path := filepath.Join(t.TempDir(), "enc.safetensors")
	_, err = gridenc.SaveGridEncoder(path, enc)
	require.NoError(t, err)
	loaded, err := gridenc.LoadGridEncoder(path, gridenc.NewCPU())
	require.NoError(t, err)
	assert.Equal(t, enc.Embeddings.Tensor().Data(), loaded.Embeddings.Tensor().Data())
}

func TestFacade_ParseGridKind(t *testing.T) {
	kind, err := gridenc.ParseGridKind("tiled")
	require.NoError(t, err)
	assert.Equal(t, gridenc.Tiled, kind)

	_, err = gridenc.ParseGridKind("octree")
	require.Error(t, err)
}
