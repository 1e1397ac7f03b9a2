package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/gridenc/internal/autodiff"
	"github.com/born-ml/gridenc/internal/autodiff/ops"
	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/monitoring"
	"github.com/born-ml/gridenc/internal/parallel"
	"github.com/born-ml/gridenc/internal/tensor"
)

// GridEncoderOption configures a GridEncoder.
type GridEncoderOption func(*gridEncoderOptions)

type gridEncoderOptions struct {
	par       parallel.Config
	forwarder grid.Forwarder
	rng       *rand.Rand
	tvSamples int
}

// WithParallel sets the fan-out of the CPU kernel.
func WithParallel(cfg parallel.Config) GridEncoderOption {
	return func(o *gridEncoderOptions) {
		o.par = cfg
	}
}

// WithForwarder replaces the forward kernel, e.g. with a GPU implementation.
// Backward and total variation always run on the CPU kernel.
func WithForwarder(f grid.Forwarder) GridEncoderOption {
	return func(o *gridEncoderOptions) {
		o.forwarder = f
	}
}

// WithRand sets the source used for table initialization and TV sampling.
func WithRand(rng *rand.Rand) GridEncoderOption {
	return func(o *gridEncoderOptions) {
		o.rng = rng
	}
}

// WithTVSamples sets how many random points GradTotalVariation draws when it
// is given no coordinates.
func WithTVSamples(n int) GridEncoderOption {
	return func(o *gridEncoderOptions) {
		o.tvSamples = n
	}
}

// GridEncoder maps coordinates in [-bound, bound]^D to L*C features by
// interpolating a learnable multiresolution embedding table.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	enc, err := nn.NewGridEncoder(grid.DefaultConfig(), backend)
//	features, err := enc.Forward(points, 1) // [N, 3] -> [N, 32]
type GridEncoder[B tensor.Backend] struct {
	Embeddings *Parameter[B] // [offsets[L], C]

	cfg       grid.Config
	geometry  *grid.Geometry
	kernel    *grid.Kernel
	forwarder grid.Forwarder
	backend   B
	rng       *rand.Rand
	tvSamples int

	requiresInputGrad bool
}

// NewGridEncoder builds the level geometry for cfg and allocates an embedding
// table initialized from U(-1e-4, 1e-4).
func NewGridEncoder[B tensor.Backend](cfg grid.Config, backend B, opts ...GridEncoderOption) (*GridEncoder[B], error) {
	geometry, err := grid.NewGeometry(cfg)
	if err != nil {
		return nil, err
	}

	options := applyGridEncoderOptions(opts)
	table := Uniform(tensor.Shape{geometry.NumRows(), cfg.LevelDim}, EmbeddingInitStd, options.rng, backend)
	return newGridEncoder(geometry, table, backend, options), nil
}

func applyGridEncoderOptions(opts []GridEncoderOption) *gridEncoderOptions {
	options := &gridEncoderOptions{
		par:       parallel.DefaultConfig(),
		tvSamples: grid.DefaultTVSamples,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.rng == nil {
		options.rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // G404: not security sensitive
	}
	return options
}

func newGridEncoder[B tensor.Backend](
	geometry *grid.Geometry,
	table *tensor.Tensor[float32, B],
	backend B,
	options *gridEncoderOptions,
) *GridEncoder[B] {
	kernel := grid.NewKernel(options.par)
	forwarder := options.forwarder
	if forwarder == nil {
		forwarder = kernel
	}

	e := &GridEncoder[B]{
		Embeddings: NewParameter("embeddings", table),
		cfg:        geometry.Config(),
		geometry:   geometry,
		kernel:     kernel,
		forwarder:  forwarder,
		backend:    backend,
		rng:        options.rng,
		tvSamples:  options.tvSamples,
	}
	monitoring.Logf("gridenc: %s (kernel %s)", e, forwarder.Name())
	return e
}

// Config returns the encoder configuration.
func (e *GridEncoder[B]) Config() grid.Config {
	return e.cfg
}

// Geometry returns the level layout.
func (e *GridEncoder[B]) Geometry() *grid.Geometry {
	return e.geometry
}

// OutputDim returns L*C.
func (e *GridEncoder[B]) OutputDim() int {
	return e.geometry.OutputDim()
}

// NumParams returns the number of scalar embedding parameters.
func (e *GridEncoder[B]) NumParams() int {
	return e.geometry.NumParams()
}

// SetRequiresInputGrad controls whether recorded forward passes also compute
// gradients with respect to the input coordinates.
func (e *GridEncoder[B]) SetRequiresInputGrad(v bool) {
	e.requiresInputGrad = v
}

// Parameters returns the embedding table.
func (e *GridEncoder[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Embeddings}
}

// StateDict returns the embedding table and the level offsets.
func (e *GridEncoder[B]) StateDict() map[string]*tensor.RawTensor {
	offsets := e.geometry.Offsets()
	data := make([]int32, len(offsets))
	for i, o := range offsets {
		data[i] = int32(o) //nolint:gosec // G115: NewGeometry bounds offsets by MaxInt32
	}
	raw, err := tensor.RawFromInt32(data, tensor.Shape{len(data)}, e.backend.Device())
	if err != nil {
		panic(fmt.Sprintf("grid encoder: %v", err))
	}
	return map[string]*tensor.RawTensor{
		"embeddings": e.Embeddings.Tensor().Raw(),
		"offsets":    raw,
	}
}

// Forward encodes inputs [*, D] with coordinates in [-bound, bound] into
// [*, L*C] features.
//
// When the backend is an autodiff backend with a recording tape the encoding is
// recorded, so gradients flow to the embedding table and, if requested through
// SetRequiresInputGrad or inputs.RequireGrad, to the inputs.
func (e *GridEncoder[B]) Forward(inputs *tensor.Tensor[float32, B], bound float32) (*tensor.Tensor[float32, B], error) {
	coords, err := e.normalize(inputs, bound)
	if err != nil {
		return nil, err
	}

	table, err := e.readTable()
	if err != nil {
		return nil, err
	}

	tape := e.recordingTape()
	calcInputGrad := tape != nil && (e.requiresInputGrad || inputs.RequiresGrad())

	ctx, err := e.forwarder.Forward(e.geometry, coords, table, calcInputGrad)
	if err != nil {
		return nil, fmt.Errorf("grid encode: %w", err)
	}

	out := grid.Permute(ctx.Output, e.geometry.NumLevels(), ctx.Batch, e.geometry.LevelDim())
	raw, err := tensor.RawFromFloat32(out, inputs.Shape().WithLast(e.OutputDim()), e.backend.Device())
	if err != nil {
		return nil, fmt.Errorf("grid encode: %w", err)
	}

	if tape != nil {
		tape.Record(ops.NewGridEncodeOp(e.kernel, ctx, inputs.Raw(), e.Embeddings.Tensor().Raw(), raw, 1/(2*float64(bound))))
	}
	return tensor.New[float32, B](raw, e.backend), nil
}

// GradTotalVariation adds the gradient of an L2 total-variation penalty with
// coefficient weight directly into the embedding gradient buffer, allocating
// it if needed. With nil inputs it samples the configured number of random
// points; otherwise inputs [*, D] in [-bound, bound] are used.
func (e *GridEncoder[B]) GradTotalVariation(weight float64, inputs *tensor.Tensor[float32, B], bound float32) error {
	var coords []float32
	if inputs == nil {
		coords = grid.RandomCoords(e.tvSamples, e.geometry.InputDim(), e.rng)
	} else {
		var err error
		if coords, err = e.normalize(inputs, bound); err != nil {
			return err
		}
	}

	table, err := grid.TableFromRaw(e.Embeddings.Tensor().Raw())
	if err != nil {
		return err
	}
	grad := e.Embeddings.ensureGrad().Raw().AsFloat32()
	return e.kernel.TotalVariation(e.geometry, coords, table, grad, weight)
}

// String describes the encoder.
func (e *GridEncoder[B]) String() string {
	c := e.cfg
	finest := int(math.Round(float64(c.BaseResolution) * math.Pow(e.geometry.Scale(), float64(c.NumLevels-1))))
	return fmt.Sprintf("GridEncoder: input_dim=%d, num_levels=%d, level_dim=%d, resolution=%d -> %d, "+
		"per_level_scale=%.4f, params=(%d, %d), gridtype=%s, align_corners=%t",
		c.InputDim, c.NumLevels, c.LevelDim, c.BaseResolution, finest,
		e.geometry.Scale(), e.geometry.NumRows(), c.LevelDim, c.Kind, c.AlignCorners)
}

// normalize maps [-bound, bound] to [0, 1] and flattens to [B, D].
func (e *GridEncoder[B]) normalize(inputs *tensor.Tensor[float32, B], bound float32) ([]float32, error) {
	if inputs.DType() != tensor.Float32 {
		return nil, fmt.Errorf("%w: inputs must be float32, got %s", grid.ErrShapeMismatch, inputs.DType())
	}
	if d := inputs.Shape().Last(); len(inputs.Shape()) == 0 || d != e.geometry.InputDim() {
		return nil, fmt.Errorf("%w: inputs %v, want [*, %d]", grid.ErrShapeMismatch, inputs.Shape(), e.geometry.InputDim())
	}
	if !(bound > 0) {
		return nil, fmt.Errorf("bound must be positive, got %v", bound)
	}

	src := inputs.Raw().AsFloat32()
	coords := make([]float32, len(src))
	for i, x := range src {
		coords[i] = (x + bound) / (2 * bound)
	}
	return coords, nil
}

// readTable views the embedding parameter for the kernel, downcast to float16
// when half precision is in effect.
func (e *GridEncoder[B]) readTable() (grid.Table, error) {
	raw := e.Embeddings.Tensor().Raw()
	if e.cfg.UsesHalfPrecision() {
		raw = e.backend.Cast(raw, tensor.Float16)
	}
	return grid.TableFromRaw(raw)
}

// recordingTape returns the backend's tape when it is recording.
func (e *GridEncoder[B]) recordingTape() *autodiff.GradientTape {
	bc, ok := any(e.backend).(autodiff.BackwardCapable)
	if !ok {
		return nil
	}
	tape := bc.GetTape()
	if !tape.IsRecording() {
		return nil
	}
	return tape
}
