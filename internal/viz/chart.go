package viz

import (
	"fmt"
	"io"
	"strconv"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// LevelChart renders an HTML page with the table rows of every level and,
// when stats are given, the spread of each level's embeddings.
func LevelChart(w io.Writer, g *grid.Geometry, stats []grid.LevelStats) error {
	levels := g.Levels()
	x := make([]string, len(levels))
	rows := make([]opts.BarData, len(levels))
	for i, lv := range levels {
		x[i] = strconv.Itoa(lv.Index)
		rows[i] = opts.BarData{Value: lv.Rows, Name: fmt.Sprintf("res %d (%s)", lv.Resolution, lv.Addressing)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Grid levels", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Rows per level",
			Subtitle: fmt.Sprintf("%s, %d params, scale %.4f", g.Config().Kind, g.NumParams(), g.Scale()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "level"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rows", Type: "log"}),
	)
	bar.SetXAxis(x).
		AddSeries("rows", rows,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)

	if len(stats) > 0 {
		std := make([]opts.LineData, len(stats))
		mean := make([]opts.LineData, len(stats))
		sx := make([]string, len(stats))
		for i, s := range stats {
			sx[i] = strconv.Itoa(s.Level)
			std[i] = opts.LineData{Value: s.StdDev}
			mean[i] = opts.LineData{Value: s.Mean}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
			charts.WithTitleOpts(opts.Title{Title: "Embedding statistics"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "level"}),
		)
		line.SetXAxis(sx).
			AddSeries("std", std).
			AddSeries("mean", mean)
		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render level chart: %w", err)
	}
	return nil
}
