package optim_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/gridenc/internal/autodiff"
	"github.com/born-ml/gridenc/internal/backend/cpu"
	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/monitoring"
	"github.com/born-ml/gridenc/internal/nn"
	"github.com/born-ml/gridenc/internal/optim"
	"github.com/born-ml/gridenc/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func scalarParam(t *testing.T, backend adBackend, v float32) *nn.Parameter[adBackend] {
	t.Helper()
	x, err := tensor.FromSlice([]float32{v}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func gradMap(param *nn.Parameter[adBackend], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	grad, _ := tensor.RawFromFloat32(values, param.Tensor().Shape(), tensor.CPU)
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): grad}
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 2.0)

	optimizer := optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.1}, backend)
	optimizer.Step(gradMap(param, 1.0))

	// x_new = 2.0 - 0.1 * 1.0
	if actual := param.Tensor().Data()[0]; !floatEqual(actual, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want 1.9", actual)
	}
	assert.Equal(t, 0, backend.Tape().NumOps())
}

// TestSGD_WithMomentum tests SGD with momentum.
func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 1.0)

	optimizer := optim.NewSGD([]*nn.Parameter[adBackend]{param},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9},
		backend,
	)

	// v1 = 1, x1 = 1 - 0.1 = 0.9
	optimizer.Step(gradMap(param, 1.0))
	if actual := param.Tensor().Data()[0]; !floatEqual(actual, 0.9, 1e-6) {
		t.Errorf("SGD momentum step 1: got %f, want 0.9", actual)
	}

	// v2 = 0.9 + 1 = 1.9, x2 = 0.9 - 0.19 = 0.71
	optimizer.Step(gradMap(param, 1.0))
	if actual := param.Tensor().Data()[0]; !floatEqual(actual, 0.71, 1e-6) {
		t.Errorf("SGD momentum step 2: got %f, want 0.71", actual)
	}
}

func TestSGD_FallsBackToParameterGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 1.0)
	grad, err := tensor.RawFromFloat32([]float32{2}, tensor.Shape{1}, tensor.CPU)
	require.NoError(t, err)
	require.NoError(t, param.AccumulateGrad(grad))

	optimizer := optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.5}, backend)
	optimizer.Step(nil)
	assert.InDelta(t, 0.0, float64(param.Tensor().Data()[0]), 1e-6)

	optimizer.ZeroGrad()
	assert.Nil(t, param.Grad())
	optimizer.Step(nil)
	assert.InDelta(t, 0.0, float64(param.Tensor().Data()[0]), 1e-6, "no gradient, no update")
}

func TestSGD_GetSetLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	optimizer := optim.NewSGD([]*nn.Parameter[adBackend]{scalarParam(t, backend, 0)}, optim.SGDConfig{}, backend)

	assert.InDelta(t, 0.01, float64(optimizer.GetLR()), 1e-9)
	optimizer.SetLR(0.5)
	assert.InDelta(t, 0.5, float64(optimizer.GetLR()), 1e-9)
}

func TestSGD_StateDict(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 1.0)
	optimizer := optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	optimizer.Step(gradMap(param, 1.0))

	state := optimizer.StateDict()
	require.Contains(t, state, "velocity.0")

	restored := optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, state["velocity.0"].AsFloat32(), restored.StateDict()["velocity.0"].AsFloat32())

	bad, err := tensor.RawFromFloat32([]float32{1, 2}, tensor.Shape{2}, tensor.CPU)
	require.NoError(t, err)
	require.Error(t, restored.LoadStateDict(map[string]*tensor.RawTensor{"velocity.0": bad}))
}

// TestAdam_SimpleUpdate tests the first Adam step.
func TestAdam_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 1.0)

	optimizer := optim.NewAdam([]*nn.Parameter[adBackend]{param},
		optim.AdamConfig{LR: 0.001, Betas: [2]float32{0.9, 0.999}, Eps: 1e-8},
		backend,
	)
	optimizer.Step(gradMap(param, 1.0))

	// After bias correction m_hat = v_hat = 1, so the first step moves by lr.
	if actual := param.Tensor().Data()[0]; !floatEqual(actual, 0.999, 1e-5) {
		t.Errorf("Adam first step: got %f, want 0.999", actual)
	}
}

func TestAdam_StateDict(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 1.0)
	cfg := optim.AdamConfig{LR: 0.01}

	optimizer := optim.NewAdam([]*nn.Parameter[adBackend]{param}, cfg, backend)
	for range 3 {
		optimizer.Step(gradMap(param, 1.0))
	}
	state := optimizer.StateDict()
	require.Contains(t, state, "m.0")
	require.Contains(t, state, "v.0")
	assert.Equal(t, []int32{3}, state["step"].AsInt32())

	restored := optim.NewAdam([]*nn.Parameter[adBackend]{param}, cfg, backend)
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, 3, restored.GetTimestep())

	// Identical state, identical next step.
	other := scalarParam(t, backend, param.Tensor().Data()[0])
	twin := optim.NewAdam([]*nn.Parameter[adBackend]{other}, cfg, backend)
	require.NoError(t, twin.LoadStateDict(cloneState(state)))

	restored.Step(gradMap(param, 0.5))
	twin.Step(gradMap(other, 0.5))
	assert.InDelta(t, float64(param.Tensor().Data()[0]), float64(other.Tensor().Data()[0]), 1e-7)
}

func cloneState(state map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(state))
	for k, v := range state {
		out[k] = v.DeepCopy()
	}
	return out
}

func TestAdam_ZeroGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, 1.0)
	grad, _ := tensor.FromSlice([]float32{5.0}, tensor.Shape{1}, backend)
	param.SetGrad(grad)

	optimizer := optim.NewAdam([]*nn.Parameter[adBackend]{param}, optim.AdamConfig{LR: 0.001}, backend)
	optimizer.ZeroGrad()

	if param.Grad() != nil {
		t.Error("Adam ZeroGrad should clear gradients")
	}
}

// TestConvergence_SimpleQuadratic tests optimizer convergence on f(x) = x².
func TestConvergence_SimpleQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	run := func(t *testing.T, optimizer optim.Optimizer, param *nn.Parameter[adBackend]) {
		for range 100 {
			x := param.Tensor().Data()[0]
			optimizer.Step(gradMap(param, 2*x))
		}
		if final := param.Tensor().Data()[0]; math.Abs(float64(final)) > 0.1 {
			t.Errorf("convergence: x = %f, expected close to 0", final)
		}
	}

	t.Run("SGD", func(t *testing.T) {
		param := scalarParam(t, backend, 3.0)
		run(t, optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend), param)
	})

	t.Run("Adam", func(t *testing.T) {
		param := scalarParam(t, backend, 3.0)
		run(t, optim.NewAdam([]*nn.Parameter[adBackend]{param},
			optim.AdamConfig{LR: 0.1, Betas: [2]float32{0.9, 0.999}, Eps: 1e-8}, backend), param)
	})
}

// TestAdam_FitsGridEncoder fits an encoder to features produced by another
// encoder with the same geometry, so the target is exactly representable.
func TestAdam_FitsGridEncoder(t *testing.T) {
	monitoring.SetLogger(nil)

	cfg := grid.Config{
		InputDim:        2,
		NumLevels:       2,
		LevelDim:        2,
		PerLevelScale:   2,
		BaseResolution:  4,
		Log2HashmapSize: 19,
		Kind:            grid.Tiled,
	}

	ref, err := nn.NewGridEncoder(cfg, cpu.New())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(11))
	for i, data := 0, ref.Embeddings.Tensor().Data(); i < len(data); i++ {
		data[i] = rng.Float32()*2 - 1
	}

	points := make([]float32, 128*2)
	for i := range points {
		points[i] = rng.Float32()*2 - 1
	}

	backend := autodiff.New(cpu.New())
	inputs, err := tensor.FromSlice(points, tensor.Shape{128, 2}, backend)
	require.NoError(t, err)

	refInputs, err := tensor.FromSlice(points, tensor.Shape{128, 2}, ref.Embeddings.Tensor().Backend())
	require.NoError(t, err)
	refOut, err := ref.Forward(refInputs, 1)
	require.NoError(t, err)
	target, err := tensor.FromSlice(refOut.Data(), refOut.Shape(), backend)
	require.NoError(t, err)

	enc, err := nn.NewGridEncoder(cfg, backend, nn.WithRand(rand.New(rand.NewSource(12))))
	require.NoError(t, err)
	mse := nn.NewMSELoss(backend)
	optimizer := optim.NewAdam(enc.Parameters(), optim.AdamConfig{LR: 0.05, Betas: [2]float32{0.9, 0.99}, Eps: 1e-15}, backend)
	tape := backend.Tape()

	var first, last float32
	for step := range 200 {
		tape.StartRecording()
		out, err := enc.Forward(inputs, 1)
		require.NoError(t, err)
		loss := mse.Forward(out, target)
		grads := autodiff.Backward(loss, backend)
		tape.StopRecording()
		tape.Clear()

		if step == 0 {
			first = loss.Item()
		}
		last = loss.Item()

		require.NoError(t, enc.Embeddings.AccumulateGrad(grads[enc.Embeddings.Tensor().Raw()]))
		optimizer.Step(nil)
		optimizer.ZeroGrad()
	}

	assert.Less(t, last, first*0.1, "loss %v -> %v", first, last)
}
