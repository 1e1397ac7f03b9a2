package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/born-ml/gridenc/internal/backend/cpu"
	"github.com/born-ml/gridenc/internal/backend/webgpu"
	"github.com/born-ml/gridenc/internal/grid"
	"github.com/born-ml/gridenc/internal/monitoring"
	"github.com/born-ml/gridenc/internal/nn"
	"github.com/born-ml/gridenc/internal/parallel"
	"github.com/born-ml/gridenc/internal/viz"
)

func handleInfo(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Grid config JSON file")
	ckptPath := fs.String("ckpt", "", "Checkpoint to describe instead of a config")
	htmlPath := fs.String("html", "", "Also write an HTML level chart to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		geometry *grid.Geometry
		stats    []grid.LevelStats
	)
	switch {
	case *ckptPath != "":
		enc, err := nn.LoadGridEncoder(*ckptPath, cpu.New())
		if err != nil {
			return err
		}
		table, err := grid.TableFromRaw(enc.Embeddings.Tensor().Raw())
		if err != nil {
			return err
		}
		if stats, err = grid.TableStats(enc.Geometry(), table); err != nil {
			return err
		}
		geometry = enc.Geometry()
		fmt.Fprintln(out, enc)
	case *configPath != "":
		cfg, err := grid.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		if geometry, err = grid.NewGeometry(cfg); err != nil {
			return err
		}
	default:
		return errors.New("info needs -config or -ckpt")
	}

	if err := writeLevelTable(out, geometry, stats); err != nil {
		return err
	}
	if *htmlPath != "" {
		return writeFile(*htmlPath, func(w io.Writer) error {
			return viz.LevelChart(w, geometry, stats)
		})
	}
	return nil
}

func writeLevelTable(out io.Writer, g *grid.Geometry, stats []grid.LevelStats) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := "level\tresolution\tvertices\trows\toffset\taddressing\t"
	if len(stats) > 0 {
		header += "mean\tstd\t"
	}
	fmt.Fprintln(tw, header)
	for i, lv := range g.Levels() {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\t", lv.Index, lv.Resolution, lv.Vertices, lv.Rows, lv.Offset, lv.Addressing)
		if len(stats) > 0 {
			fmt.Fprintf(tw, "%.3g\t%.3g\t", stats[i].Mean, stats[i].StdDev)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintf(tw, "total\t\t\t%d\t\t%d params\t\n", g.NumRows(), g.NumParams())
	return tw.Flush()
}

func handlePlot(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	fs.SetOutput(out)
	ckptPath := fs.String("ckpt", "", "Checkpoint written by fit (required)")
	level := fs.Int("level", 0, "Level to render")
	channel := fs.Int("channel", 0, "Feature channel to render")
	size := fs.Int("size", 256, "Samples per side")
	outPath := fs.String("out", "level.png", "Output PNG")
	useGPU := fs.Bool("gpu", false, "Encode on WebGPU when available")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ckptPath == "" {
		return errors.New("plot needs -ckpt")
	}

	enc, err := nn.LoadGridEncoder(*ckptPath, cpu.New())
	if err != nil {
		return err
	}
	if enc.Geometry().InputDim() < 2 {
		return fmt.Errorf("plot needs input_dim >= 2, checkpoint has %d", enc.Geometry().InputDim())
	}
	table, err := grid.TableFromRaw(enc.Embeddings.Tensor().Raw())
	if err != nil {
		return err
	}

	forwarder, release := newForwarder(*useGPU)
	defer release()

	slice, err := viz.SampleSlice(forwarder, enc.Geometry(), table, *level, *channel, *size)
	if err != nil {
		return err
	}
	if err := viz.SaveHeatmap(*outPath, slice); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (level %d, channel %d, kernel %s)\n", *outPath, *level, *channel, forwarder.Name())
	return nil
}

// newForwarder returns the WebGPU kernel when asked for and available, the
// CPU kernel otherwise.
func newForwarder(useGPU bool) (grid.Forwarder, func()) {
	if useGPU {
		f, err := webgpu.NewForwarder(parallel.DefaultConfig())
		if err == nil {
			return f, func() {
				if c, ok := f.(io.Closer); ok {
					_ = c.Close()
				}
			}
		}
		monitoring.Logf("gridenc: %v, using cpu", err)
	}
	return grid.NewKernel(parallel.DefaultConfig()), func() {}
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return write(f)
}
