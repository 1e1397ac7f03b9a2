package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

type span struct {
	name       string
	start, end int64
}

// ValidateTensorOffsets checks for negative, overlapping and out-of-bounds
// tensor regions within a data section of dataSize bytes.
func ValidateTensorOffsets(tensors map[string]TensorInfo, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]span, 0, len(tensors))
	for name, info := range tensors {
		sorted = append(sorted, span{name: name, start: info.DataOffsets[0], end: info.DataOffsets[1]})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start == sorted[j].start {
			return sorted[i].name < sorted[j].name
		}
		return sorted[i].start < sorted[j].start
	})

	for i, t := range sorted {
		if t.start < 0 || t.end < t.start {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", t.start, t.end),
			}
		}
		if t.end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.name,
				Details: fmt.Sprintf("end %d > data_size %d", t.end, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.end > next.start {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.name,
					Tensor2: next.name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", t.start, t.end, next.start, next.end),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects names that could be abused as paths.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains '..', a path separator or a null byte",
		}
	}
	return nil
}

// validateInfo checks that an entry's byte length matches its dtype and shape.
func validateInfo(name string, info TensorInfo) error {
	dt, err := safeTensorsToDType(info.DType)
	if err != nil {
		return fmt.Errorf("tensor %s: %w", name, err)
	}
	n := int64(1)
	for _, d := range info.Shape {
		if d <= 0 {
			return &ValidationError{Type: "invalid_shape", Tensor: name, Details: fmt.Sprintf("shape %v", info.Shape)}
		}
		n *= d
	}
	if want := n * int64(dt.Size()); info.DataOffsets[1]-info.DataOffsets[0] != want {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  name,
			Details: fmt.Sprintf("%s%v needs %d bytes, entry spans %d", info.DType, info.Shape, want, info.DataOffsets[1]-info.DataOffsets[0]),
		}
	}
	return nil
}
