// Package grid implements the multiresolution hash/tiled grid encoding.
//
// A Geometry is derived once from a Config and fixes, per level, the grid
// resolution, the number of table rows and the addressing strategy:
//
//	level i: resolution = ceil(H * S^i)
//	         vertices   = resolution (+1 unless AlignCorners)
//	         rows       = roundup8(min(2^Log2HashmapSize, vertices^D))
//	offsets[0] = 0, offsets[i+1] = offsets[i] + rows
//
// The embedding table is a dense [offsets[L], C] array. Kernel.Forward maps a
// [B, D] batch of coordinates in [0,1]^D to an [L, B, C] feature array by
// D-linear interpolation of the 2^D surrounding grid vertices, optionally also
// producing the [B, L*D*C] partial derivatives of every feature with respect to
// every input coordinate. Kernel.Backward scatters output gradients back into a
// table-shaped gradient and reduces the saved derivatives into input gradients.
//
// Tiled levels whose dense vertex count fits the table use direct mixed-radix
// addressing; every other level (and every Hash level) uses the XOR spatial hash.
//
// Coordinates outside [0,1] are clamped to the boundary vertex, so the encoding
// extrapolates flat and its input derivative is zero there.
package grid
