package autodiff_test

import (
	"testing"

	"github.com/born-ml/gridenc/internal/autodiff"
	"github.com/born-ml/gridenc/internal/backend/cpu"
	"github.com/born-ml/gridenc/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutodiffBackend_Name(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestTape_NotRecordingByDefault(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	_ = x.Add(x)
	assert.Equal(t, 0, backend.Tape().NumOps())
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{2, -3}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	loss := x.Mul(x).Sum()

	grads := autodiff.Backward(loss, backend)
	require.Contains(t, grads, x.Raw())
	assert.InDeltaSlice(t, []float32{4, -6}, grads[x.Raw()].AsFloat32(), 1e-6)
}

func TestBackward_SubAndScale(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	b, err := tensor.FromSlice([]float32{0, 1, 0, 1}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	// loss = sum(0.5 * reshape(a - b))
	loss := a.Sub(b).Reshape(4).MulScalar(0.5).Sum()
	assert.InDelta(t, 4.0, float64(loss.Item()), 1e-6)

	grads := autodiff.Backward(loss, backend)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5, 0.5}, grads[a.Raw()].AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{-0.5, -0.5, -0.5, -0.5}, grads[b.Raw()].AsFloat32(), 1e-6)
	assert.Equal(t, tensor.Shape{2, 2}, grads[a.Raw()].Shape())
}

func TestBackward_AccumulatesReusedTensor(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	// y = (x + x) * x = 2x², dy/dx = 4x
	y := x.Add(x).Mul(x).Sum()

	grads := autodiff.Backward(y, backend)
	assert.InDeltaSlice(t, []float32{4, 8, 12}, grads[x.Raw()].AsFloat32(), 1e-6)
}

func TestBackward_PanicsWithoutRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x, err := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	require.NoError(t, err)

	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}

func TestTape_Clear(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	x, err := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	_ = x.MulScalar(2)
	assert.Equal(t, 1, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording())
}
