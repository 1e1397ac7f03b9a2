//go:build windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Forward implements grid.Forwarder. Half-precision tables and passes that
// need input derivatives run on the CPU kernel.
func (b *Backend) Forward(g *grid.Geometry, coords []float32, table grid.Table, calcInputGrad bool) (*grid.Context, error) {
	if calcInputGrad || table.Half() {
		return b.cpu.Forward(g, coords, table, calcInputGrad)
	}
	if err := table.CheckGeometry(g); err != nil {
		return nil, err
	}
	dim := g.InputDim()
	if len(coords)%dim != 0 {
		return nil, fmt.Errorf("%w: %d coordinates is not a multiple of input_dim %d", grid.ErrShapeMismatch, len(coords), dim)
	}
	batch := len(coords) / dim
	if batch == 0 {
		return b.cpu.Forward(g, coords, table, false)
	}

	out, err := b.runEncode(g, coords, table.F32, batch)
	if err != nil {
		return nil, fmt.Errorf("webgpu: grid encode: %w", err)
	}
	return &grid.Context{
		Geometry: g,
		Coords:   coords,
		Table:    table,
		Batch:    batch,
		Output:   out,
	}, nil
}

// levelParams flattens the per-level layout for the shader.
func levelParams(g *grid.Geometry) []uint32 {
	levels := g.Levels()
	out := make([]uint32, 0, levelStride*len(levels))
	for _, lv := range levels {
		dense := uint32(0)
		if lv.Addressing == grid.Dense {
			dense = 1
		}
		//nolint:gosec // G115: NewGeometry bounds offsets and rows by MaxInt32
		out = append(out, uint32(lv.Offset), uint32(lv.Rows), uint32(lv.Vertices), uint32(lv.Resolution), dense)
	}
	return out
}

// dispatchSize splits the workgroup count over x and y to stay under the
// per-dimension limit.
func dispatchSize(units int) (x, y uint32) {
	groups := (units + encodeWorkgroupSize - 1) / encodeWorkgroupSize
	if groups <= maxWorkgroupsPerDim {
		return uint32(groups), 1 //nolint:gosec // G115: bounded above
	}
	rows := (groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim
	return maxWorkgroupsPerDim, uint32(rows) //nolint:gosec // G115: bounded by units
}

func (b *Backend) runEncode(g *grid.Geometry, coords, table []float32, batch int) ([]float32, error) {
	levels := g.NumLevels()
	channels := g.LevelDim()

	shader := b.compileShader("grid_encode", gridEncodeShader)
	pipeline := b.getOrCreatePipeline("grid_encode", shader)

	coordBytes := float32Bytes(coords)
	bufferCoords := b.createBuffer(coordBytes, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferCoords.Release()

	tableBytes := float32Bytes(table)
	bufferTable := b.createBuffer(tableBytes, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferTable.Release()

	levelBytes := uint32Bytes(levelParams(g))
	bufferLevels := b.createBuffer(levelBytes, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferLevels.Release()

	resultSize := uint64(4 * levels * batch * channels) //nolint:gosec // G115: non-negative
	bufferResult := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  resultSize,
	})
	defer bufferResult.Release()

	align := uint32(0)
	if g.Config().AlignCorners {
		align = 1
	}
	//nolint:gosec // G115: dimensions are validated positive
	bufferParams, paramsSize := b.createUniformBuffer(uint32Bytes([]uint32{
		uint32(batch), uint32(levels), uint32(g.InputDim()), uint32(channels), align,
	}))
	defer bufferParams.Release()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferCoords, 0, uint64(len(coordBytes))),
		wgpu.BufferBindingEntry(1, bufferTable, 0, uint64(len(tableBytes))),
		wgpu.BufferBindingEntry(2, bufferLevels, 0, uint64(len(levelBytes))),
		wgpu.BufferBindingEntry(3, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(4, bufferParams, 0, paramsSize),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	x, y := dispatchSize(batch * levels)
	computePass.DispatchWorkgroups(x, y, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	data, err := b.readBuffer(bufferResult, resultSize)
	if err != nil {
		return nil, err
	}
	return bytesFloat32(data), nil
}
