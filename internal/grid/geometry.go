package grid

import (
	"fmt"
	"math"
)

// Addressing is the per-level strategy resolved when the geometry is built.
type Addressing int

// Addressing strategies.
const (
	// Hashed maps vertices through the spatial hash modulo the level's rows.
	Hashed Addressing = iota
	// Dense maps vertices by mixed-radix index; collision free.
	Dense
)

// String returns a short name for the strategy.
func (a Addressing) String() string {
	if a == Dense {
		return "dense"
	}
	return "hashed"
}

// Level is the resolved layout of one resolution level.
type Level struct {
	Index      int
	Resolution int
	Vertices   int // grid vertices per axis
	DenseCount int // Vertices^D, saturated at the hashmap capacity
	Rows       int // table rows owned by the level, a multiple of 8
	Offset     int // first table row of the level
	Addressing Addressing

	inputDim     int
	alignCorners bool
}

// Geometry is the immutable level layout derived from a Config.
type Geometry struct {
	cfg     Config
	scale   float64
	levels  []Level
	offsets []int
}

// NewGeometry validates cfg and computes the per-level layout.
func NewGeometry(cfg Config) (*Geometry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scale := cfg.Scale()
	capacity := 1 << cfg.Log2HashmapSize

	g := &Geometry{
		cfg:     cfg,
		scale:   scale,
		levels:  make([]Level, cfg.NumLevels),
		offsets: make([]int, cfg.NumLevels+1),
	}

	offset := 0
	for i := 0; i < cfg.NumLevels; i++ {
		res := math.Ceil(float64(cfg.BaseResolution) * math.Pow(scale, float64(i)))
		if !(res >= 1 && res <= MaxResolution) {
			return nil, fmt.Errorf("%w: level %d resolution %g out of range [1, %d]", ErrInvalidConfig, i, res, MaxResolution)
		}
		resolution := int(res)
		vertices := resolution
		if !cfg.AlignCorners {
			vertices++
		}

		dense := saturatedPow(vertices, cfg.InputDim, capacity)
		rows := roundUp8(dense)

		addressing := Hashed
		if cfg.Kind == Tiled && denseFits(vertices, cfg.InputDim, rows) {
			addressing = Dense
		}

		g.levels[i] = Level{
			Index:        i,
			Resolution:   resolution,
			Vertices:     vertices,
			DenseCount:   dense,
			Rows:         rows,
			Offset:       offset,
			Addressing:   addressing,
			inputDim:     cfg.InputDim,
			alignCorners: cfg.AlignCorners,
		}
		g.offsets[i] = offset
		offset += rows
		if offset > math.MaxInt32 {
			return nil, fmt.Errorf("%w: table exceeds %d rows at level %d", ErrInvalidConfig, math.MaxInt32, i)
		}
	}
	g.offsets[cfg.NumLevels] = offset

	return g, nil
}

// saturatedPow returns min(base^exp, limit) without overflowing.
func saturatedPow(base, exp, limit int) int {
	n := 1
	for i := 0; i < exp; i++ {
		if n > limit/base {
			return limit
		}
		n *= base
	}
	return min(n, limit)
}

// denseFits reports whether vertices^dim rows fit in rows.
func denseFits(vertices, dim, rows int) bool {
	return saturatedPow(vertices, dim, rows+1) <= rows
}

func roundUp8(n int) int {
	return (n + 7) / 8 * 8
}

// Config returns the configuration the geometry was built from.
func (g *Geometry) Config() Config {
	return g.cfg
}

// Scale returns the resolved per-level growth factor.
func (g *Geometry) Scale() float64 {
	return g.scale
}

// InputDim returns D.
func (g *Geometry) InputDim() int {
	return g.cfg.InputDim
}

// NumLevels returns L.
func (g *Geometry) NumLevels() int {
	return len(g.levels)
}

// LevelDim returns C.
func (g *Geometry) LevelDim() int {
	return g.cfg.LevelDim
}

// OutputDim returns L*C.
func (g *Geometry) OutputDim() int {
	return g.cfg.OutputDim()
}

// NumRows returns offsets[L], the embedding table's row count.
func (g *Geometry) NumRows() int {
	return g.offsets[len(g.offsets)-1]
}

// NumParams returns the number of scalar table parameters.
func (g *Geometry) NumParams() int {
	return g.NumRows() * g.cfg.LevelDim
}

// Offsets returns a copy of the L+1 level offsets.
func (g *Geometry) Offsets() []int {
	return append([]int(nil), g.offsets...)
}

// Level returns the layout of level i.
func (g *Geometry) Level(i int) Level {
	return g.levels[i]
}

// Levels returns a copy of every level layout.
func (g *Geometry) Levels() []Level {
	return append([]Level(nil), g.levels...)
}

// MatchesOffsets reports whether offsets equals the computed layout.
func (g *Geometry) MatchesOffsets(offsets []int) bool {
	if len(offsets) != len(g.offsets) {
		return false
	}
	for i := range offsets {
		if offsets[i] != g.offsets[i] {
			return false
		}
	}
	return true
}
