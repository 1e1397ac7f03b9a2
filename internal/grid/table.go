package grid

import (
	"fmt"

	"github.com/born-ml/gridenc/internal/tensor"
	"github.com/x448/float16"
)

// Table is a read view over the embedding table [rows, cols]. Exactly one of
// F32 and F16 is set.
type Table struct {
	F32  []float32
	F16  []float16.Float16
	Rows int
	Cols int
}

// TableFromFloat32 wraps a float32 table without copying.
func TableFromFloat32(data []float32, rows, cols int) (Table, error) {
	if rows*cols != len(data) {
		return Table{}, fmt.Errorf("%w: table [%d, %d] needs %d values, got %d",
			ErrShapeMismatch, rows, cols, rows*cols, len(data))
	}
	return Table{F32: data, Rows: rows, Cols: cols}, nil
}

// TableFromFloat16 wraps a half precision table without copying.
func TableFromFloat16(data []float16.Float16, rows, cols int) (Table, error) {
	if rows*cols != len(data) {
		return Table{}, fmt.Errorf("%w: table [%d, %d] needs %d values, got %d",
			ErrShapeMismatch, rows, cols, rows*cols, len(data))
	}
	return Table{F16: data, Rows: rows, Cols: cols}, nil
}

// TableFromRaw views a 2-D Float32 or Float16 tensor as a table.
func TableFromRaw(raw *tensor.RawTensor) (Table, error) {
	shape := raw.Shape()
	if len(shape) != 2 {
		return Table{}, fmt.Errorf("%w: embedding table must be 2-D, got %v", ErrShapeMismatch, shape)
	}
	switch raw.DType() {
	case tensor.Float32:
		return TableFromFloat32(raw.AsFloat32(), shape[0], shape[1])
	case tensor.Float16:
		return TableFromFloat16(raw.AsFloat16(), shape[0], shape[1])
	default:
		return Table{}, fmt.Errorf("unsupported embedding dtype %s", raw.DType())
	}
}

// Half reports whether the table is stored in float16.
func (t Table) Half() bool {
	return t.F16 != nil
}

func (t Table) at(i int) float64 {
	if t.F16 != nil {
		return float64(t.F16[i].Float32())
	}
	return float64(t.F32[i])
}

// CheckGeometry verifies the table matches the layout of g.
func (t Table) CheckGeometry(g *Geometry) error {
	if t.Rows != g.NumRows() || t.Cols != g.LevelDim() {
		return fmt.Errorf("%w: table is [%d, %d], geometry needs [%d, %d]",
			ErrShapeMismatch, t.Rows, t.Cols, g.NumRows(), g.LevelDim())
	}
	return nil
}
