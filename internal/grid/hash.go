package grid

import "math"

// hashPrimes are the per-axis multipliers of the spatial hash. The first axis
// is left unscaled for memory coherence along x.
var hashPrimes = [MaxInputDim]uint32{
	1,
	2654435761,
	805459861,
	3674653429,
	2097192037,
	1434869437,
	2165219737,
}

// spatialHash XORs the per-axis products with uint32 wraparound.
func spatialHash(corner []int) uint32 {
	var h uint32
	for d, c := range corner {
		h ^= uint32(c) * hashPrimes[d] //nolint:gosec // G115: corners lie in [0, vertices) and vertices <= MaxResolution+1
	}
	return h
}

// row returns the absolute table row of a corner of this level.
// Corner coordinates must already lie in [0, Vertices).
func (lv *Level) row(corner []int) int {
	if lv.Addressing == Dense {
		idx, stride := 0, 1
		for _, c := range corner {
			idx += c * stride
			stride *= lv.Vertices
		}
		return lv.Offset + idx
	}
	return lv.Offset + int(spatialHash(corner)%uint32(lv.Rows)) //nolint:gosec // G115: Rows <= 2^31
}

// Row is the exported form of row for inspection and tests. Corner coordinates
// outside [0, Vertices) are clamped.
func (lv Level) Row(corner ...int) int {
	clamped := make([]int, len(corner))
	for d, c := range corner {
		clamped[d] = min(max(c, 0), lv.Vertices-1)
	}
	return lv.row(clamped)
}

// gridPosition maps a normalized coordinate to this level's continuous vertex
// position. It returns the lower corner index, the fractional offset from it and
// the derivative of the position with respect to the coordinate (zero where the
// position was clamped).
func (lv *Level) gridPosition(x float32) (lower int, frac, jacobian float64) {
	res := float64(lv.Resolution)
	var pos float64
	if lv.alignCorners {
		pos = float64(x) * (res - 1)
		jacobian = res - 1
	} else {
		pos = float64(x)*res - 0.5
		jacobian = res
	}

	hi := float64(lv.Vertices - 1)
	switch {
	case math.IsNaN(pos) || pos < 0:
		pos, jacobian = 0, 0
	case pos > hi:
		pos, jacobian = hi, 0
	}

	lower = min(int(math.Floor(pos)), lv.Vertices-2)
	lower = max(lower, 0)
	return lower, pos - float64(lower), jacobian
}

// nearestVertex is the vertex floor(pos) used by the total-variation pass.
func (lv *Level) nearestVertex(x float32) int {
	lower, frac, _ := lv.gridPosition(x)
	if frac >= 1 {
		return min(lower+1, lv.Vertices-1)
	}
	return lower
}
