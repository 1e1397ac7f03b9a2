// Package main provides the gridenc command line tool.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	flag.Usage = func() { printUsage(os.Stdout) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "info":
		return handleInfo(args, out)
	case "fit":
		return handleFit(args, out)
	case "plot":
		return handlePlot(args, out)
	case "version":
		fmt.Fprintf(out, "gridenc %s\n", version)
		return nil
	case "help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `gridenc - multiresolution grid encoder tools

Usage: gridenc <command> [options]

Commands:
  info       Print the level layout of a config or checkpoint
  fit        Fit a 2D encoder to an analytic image and save a checkpoint
  plot       Render one level of a checkpoint as a PNG heat map
  version    Show gridenc version
  help       Show this help message

Examples:
  gridenc info -config grid.json -html levels.html
  gridenc fit -config grid.json -steps 2000 -out grid.safetensors
  gridenc plot -ckpt grid.safetensors -level 7 -out level7.png`)
}
