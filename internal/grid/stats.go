package grid

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LevelStats summarizes the embedding values of one level.
type LevelStats struct {
	Level  int
	Rows   int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// TableStats computes per-level statistics over every feature of the table.
func TableStats(g *Geometry, table Table) ([]LevelStats, error) {
	if err := table.CheckGeometry(g); err != nil {
		return nil, err
	}
	out := make([]LevelStats, 0, g.NumLevels())
	for _, lv := range g.levels {
		n := lv.Rows * table.Cols
		values := make([]float64, n)
		start := lv.Offset * table.Cols
		for i := range values {
			values[i] = table.at(start + i)
		}
		mean, std := stat.MeanStdDev(values, nil)
		out = append(out, LevelStats{
			Level:  lv.Index,
			Rows:   lv.Rows,
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
		})
	}
	return out, nil
}
