package tensor

import (
	"testing"

	"github.com/x448/float16"
)

func TestRawTensorAsInt32(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int32, CPU)
	data := raw.AsInt32()

	if len(data) != 6 {
		t.Errorf("AsInt32 length = %d, want 6", len(data))
	}

	data[0] = 42
	if raw.AsInt32()[0] != 42 {
		t.Error("AsInt32 should return zero-copy slice")
	}
}

func TestRawTensorAsFloat16(t *testing.T) {
	raw, err := NewRaw(Shape{4}, Float16, CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	if raw.ByteSize() != 8 {
		t.Errorf("ByteSize = %d, want 8", raw.ByteSize())
	}

	data := raw.AsFloat16()
	data[1] = float16.Fromfloat32(0.5)
	if got := raw.AsFloat16()[1].Float32(); got != 0.5 {
		t.Errorf("AsFloat16()[1] = %v, want 0.5", got)
	}
}

func TestRawTensorWrongDTypePanics(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Float32, CPU)
	defer func() {
		if recover() == nil {
			t.Error("AsInt32 on a float32 tensor should panic")
		}
	}()
	_ = raw.AsInt32()
}

func TestRawTensorView(t *testing.T) {
	raw, _ := RawFromFloat32([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU)

	v, err := raw.View(Shape{3, 2})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if !v.Shape().Equal(Shape{3, 2}) {
		t.Errorf("view shape = %v", v.Shape())
	}
	v.AsFloat32()[5] = 60
	if raw.AsFloat32()[5] != 60 {
		t.Error("view should share the buffer")
	}
	if raw.IsUnique() {
		t.Error("buffer shared by a view should not be unique")
	}

	if _, err := raw.View(Shape{4}); err == nil {
		t.Error("expected error for mismatched element count")
	}
}

func TestRawTensorDeepCopy(t *testing.T) {
	raw, _ := RawFromFloat32([]float32{1, 2}, Shape{2}, CPU)
	c := raw.DeepCopy()
	c.AsFloat32()[0] = 9
	if raw.AsFloat32()[0] != 1 {
		t.Error("DeepCopy must not share the buffer")
	}
	if !c.IsUnique() {
		t.Error("DeepCopy result should own its buffer")
	}
}

func TestRawTensorForceNonUnique(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Float32, CPU)
	restore := raw.ForceNonUnique()
	if raw.IsUnique() {
		t.Error("expected non-unique while forced")
	}
	restore()
	if !raw.IsUnique() {
		t.Error("expected unique after restore")
	}
}

func TestShapePrefixAndWithLast(t *testing.T) {
	s := Shape{4, 5, 3}
	if !s.Prefix().Equal(Shape{4, 5}) {
		t.Errorf("Prefix = %v", s.Prefix())
	}
	if s.Last() != 3 {
		t.Errorf("Last = %d", s.Last())
	}
	if got := s.WithLast(32); !got.Equal(Shape{4, 5, 32}) {
		t.Errorf("WithLast = %v", got)
	}
	if !s.Equal(Shape{4, 5, 3}) {
		t.Error("WithLast must not modify the receiver")
	}
}

func TestDataTypeSize(t *testing.T) {
	cases := map[DataType]int{Float32: 4, Float64: 8, Int32: 4, Int64: 8, Uint8: 1, Bool: 1, Float16: 2}
	for dt, want := range cases {
		if dt.Size() != want {
			t.Errorf("%s.Size() = %d, want %d", dt, dt.Size(), want)
		}
	}
	if !Float16.IsFloat() || Int32.IsFloat() {
		t.Error("IsFloat misclassifies types")
	}
}
