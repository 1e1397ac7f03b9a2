package viz

import (
	"fmt"
	"io"
	"os"

	"github.com/born-ml/gridenc/internal/grid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Slice is one feature channel of one level sampled on an N x N lattice over
// the first two axes. Remaining axes are held at 0.5. It implements
// plotter.GridXYZ.
type Slice struct {
	N       int
	Level   int
	Channel int
	Values  []float64 // row-major, Values[r*N+c] at (X(c), Y(r))
}

// SampleSlice encodes the lattice with f and keeps the requested channel.
func SampleSlice(f grid.Forwarder, g *grid.Geometry, table grid.Table, level, channel, n int) (*Slice, error) {
	if level < 0 || level >= g.NumLevels() {
		return nil, fmt.Errorf("level %d out of range [0, %d)", level, g.NumLevels())
	}
	if channel < 0 || channel >= g.LevelDim() {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", channel, g.LevelDim())
	}
	if n < 2 {
		return nil, fmt.Errorf("slice needs at least 2 samples per side, got %d", n)
	}

	s := &Slice{N: n, Level: level, Channel: channel}
	dim := g.InputDim()
	coords := make([]float32, 0, n*n*dim)
	for r := range n {
		for c := range n {
			for d := range dim {
				switch d {
				case 0:
					coords = append(coords, float32(s.X(c)))
				case 1:
					coords = append(coords, float32(s.Y(r)))
				default:
					coords = append(coords, 0.5)
				}
			}
		}
	}

	ctx, err := f.Forward(g, coords, table, false)
	if err != nil {
		return nil, err
	}

	batch, channels := ctx.Batch, g.LevelDim()
	s.Values = make([]float64, batch)
	for b := range batch {
		s.Values[b] = float64(ctx.Output[(level*batch+b)*channels+channel])
	}
	return s, nil
}

// Dims returns the lattice size.
func (s *Slice) Dims() (c, r int) { return s.N, s.N }

// Z returns the feature at lattice cell (c, r).
func (s *Slice) Z(c, r int) float64 { return s.Values[r*s.N+c] }

// X returns the cell-centered coordinate of column c.
func (s *Slice) X(c int) float64 { return (float64(c) + 0.5) / float64(s.N) }

// Y returns the cell-centered coordinate of row r.
func (s *Slice) Y(r int) float64 { return (float64(r) + 0.5) / float64(s.N) }

// WriteHeatmap renders s as a PNG heat map.
func WriteHeatmap(w io.Writer, s *Slice) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Level %d - feature %d", s.Level, s.Channel)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	heat := plotter.NewHeatMap(s, palette.Heat(16, 1))
	p.Add(heat)

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render heat map: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write heat map: %w", err)
	}
	return nil
}

// SaveHeatmap writes the heat map of s to path.
func SaveHeatmap(path string, s *Slice) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return WriteHeatmap(f, s)
}
