package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/born-ml/gridenc/internal/autodiff"
	"github.com/born-ml/gridenc/internal/backend/cpu"
	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/monitoring"
	"github.com/born-ml/gridenc/internal/nn"
	"github.com/born-ml/gridenc/internal/optim"
	"github.com/born-ml/gridenc/internal/tensor"
)

type fitOptions struct {
	steps     int
	batch     int
	lr        float64
	tvLambda  float64
	tvSamples int
	seed      int64
	logEvery  int
	useGPU    bool
}

// image is the analytic target fitted by the fit command, defined on [-1, 1]^2.
func image(x, y float64) float32 {
	return float32(0.5 + 0.5*math.Sin(3*math.Pi*x)*math.Cos(2*math.Pi*y))
}

func handleFit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Grid config JSON file (input_dim must be 2)")
	outPath := fs.String("out", "grid.safetensors", "Checkpoint to write")
	var opts fitOptions
	fs.IntVar(&opts.steps, "steps", 1000, "Optimizer steps")
	fs.IntVar(&opts.batch, "batch", 4096, "Points per step")
	fs.Float64Var(&opts.lr, "lr", 1e-2, "Adam learning rate")
	fs.Float64Var(&opts.tvLambda, "tv", 1e-6, "Total-variation coefficient (hash grids only)")
	fs.IntVar(&opts.tvSamples, "tv-samples", 1<<16, "Random points per total-variation step")
	fs.Int64Var(&opts.seed, "seed", 1, "Random seed")
	fs.IntVar(&opts.logEvery, "log-every", 100, "Steps between progress lines")
	fs.BoolVar(&opts.useGPU, "gpu", false, "Run the forward pass on WebGPU when available")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := grid.DefaultConfig()
	cfg.InputDim = 2
	if *configPath != "" {
		var err error
		if cfg, err = grid.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if cfg.InputDim != 2 {
		return fmt.Errorf("fit needs input_dim 2, config has %d", cfg.InputDim)
	}
	if opts.steps < 1 || opts.batch < 1 {
		return errors.New("steps and batch must be positive")
	}

	loss, err := fit(cfg, *outPath, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "final loss %.6f, wrote %s\n", loss, *outPath)
	return nil
}

// fit trains every feature of every level towards the image value at each
// point, so each level ends up holding the image at its own resolution.
func fit(cfg grid.Config, path string, opts fitOptions) (float32, error) {
	defer monitoring.Since("fit", time.Now())

	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(opts.seed)) //nolint:gosec // G404: not security sensitive

	encOpts := []nn.GridEncoderOption{
		nn.WithRand(rand.New(rand.NewSource(opts.seed + 1))), //nolint:gosec // G404: not security sensitive
		nn.WithTVSamples(opts.tvSamples),
	}
	forwarder, release := newForwarder(opts.useGPU)
	defer release()
	encOpts = append(encOpts, nn.WithForwarder(forwarder))

	enc, err := nn.NewGridEncoder(cfg, backend, encOpts...)
	if err != nil {
		return 0, err
	}

	optimizer := optim.NewAdam(enc.Parameters(), optim.AdamConfig{
		LR:    float32(opts.lr),
		Betas: [2]float32{0.9, 0.99},
		Eps:   1e-15,
	}, backend)
	mse := nn.NewMSELoss(backend)
	tape := backend.Tape()
	useTV := cfg.Kind == grid.Hash && opts.tvLambda > 0

	var last float32
	for step := range opts.steps {
		points, target, err := sampleBatch(rng, opts.batch, enc.OutputDim(), backend)
		if err != nil {
			return 0, err
		}

		tape.StartRecording()
		features, err := enc.Forward(points, 1)
		if err != nil {
			tape.StopRecording()
			return 0, err
		}
		loss := mse.Forward(features, target)
		grads := autodiff.Backward(loss, backend)
		tape.StopRecording()
		tape.Clear()

		if err := enc.Embeddings.AccumulateGrad(grads[enc.Embeddings.Tensor().Raw()]); err != nil {
			return 0, err
		}
		if useTV {
			if err := enc.GradTotalVariation(grid.TVWeight(step, opts.tvLambda), nil, 1); err != nil {
				return 0, err
			}
		}
		optimizer.Step(nil)
		optimizer.ZeroGrad()

		last = loss.Item()
		if opts.logEvery > 0 && (step%opts.logEvery == 0 || step == opts.steps-1) {
			monitoring.Logf("step %d loss %.6f", step, last)
		}
	}

	if _, err := nn.SaveGridEncoder(path, enc); err != nil {
		return 0, err
	}
	return last, nil
}

// sampleBatch draws n points in [-1, 1]^2 and repeats the image value at each
// point across all width output features.
func sampleBatch[B tensor.Backend](rng *rand.Rand, n, width int, backend B) (points, target *tensor.Tensor[float32, B], err error) {
	xy := make([]float32, 2*n)
	values := make([]float32, n*width)
	for i := range n {
		x, y := rng.Float64()*2-1, rng.Float64()*2-1
		xy[2*i], xy[2*i+1] = float32(x), float32(y)
		v := image(x, y)
		for j := range width {
			values[i*width+j] = v
		}
	}
	if points, err = tensor.FromSlice(xy, tensor.Shape{n, 2}, backend); err != nil {
		return nil, nil, err
	}
	if target, err = tensor.FromSlice(values, tensor.Shape{n, width}, backend); err != nil {
		return nil, nil, err
	}
	return points, target, nil
}
