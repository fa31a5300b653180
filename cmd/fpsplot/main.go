// fpsplot renders a per-camera FPS chart from camera test logs.
//
// Usage:
//
//	fpsplot [flags] LOGFILE [LOGFILE...]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fps-visualizer/backend/internal/aggregate"
	"github.com/fps-visualizer/backend/internal/parser"
	"github.com/fps-visualizer/backend/internal/reader"
	"github.com/fps-visualizer/backend/internal/render"
)

func main() {
	var (
		resolutionFlag string
		outFlag        string
		widthFlag      int
		heightFlag     int
		titleFlag      string
		quietFlag      bool
	)

	flag.StringVar(&resolutionFlag, "resolution", "2Min", "bucket resolution (e.g. 30S, 2Min, 1H)")
	flag.StringVar(&resolutionFlag, "r", "2Min", "bucket resolution (shorthand)")
	flag.StringVar(&outFlag, "out", "fps_chart.html", "output HTML file")
	flag.StringVar(&outFlag, "o", "fps_chart.html", "output HTML file (shorthand)")
	flag.IntVar(&widthFlag, "width", render.DefaultWidth, "panel width in pixels")
	flag.IntVar(&heightFlag, "height", render.DefaultHeight, "panel height in pixels")
	flag.StringVar(&titleFlag, "title", "", "chart title")
	flag.BoolVar(&quietFlag, "q", false, "suppress per-line diagnostics")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] LOGFILE [LOGFILE...]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(os.Stdout, flag.Args(), resolutionFlag, outFlag, widthFlag, heightFlag, titleFlag, quietFlag); err != nil {
		fmt.Fprintf(os.Stderr, "fpsplot: %v\n", err)
		os.Exit(1)
	}
}

func run(stdout io.Writer, paths []string, resolutionStr, out string, width, height int, title string, quiet bool) error {
	resolution, err := parser.ParseResolution(resolutionStr)
	if err != nil {
		return fmt.Errorf("invalid resolution: %w", err)
	}

	lines, err := reader.NewScanner(paths...)
	if err != nil {
		return err
	}
	defer lines.Close()

	var diag io.Writer = os.Stderr
	if quiet {
		diag = io.Discard
	}
	samples, err := parser.NewSampleScanner(lines, diag).Collect()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no FPS samples found in %d file(s)", len(paths))
	}

	result := aggregate.Resample(samples, resolution)
	printBuckets(stdout, result)

	opts := render.Options{Width: width, Height: height, Title: title}
	if err := render.WriteHTMLFile(out, result.Panels(), opts); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%d samples from %d camera(s), %s buckets -> %s\n",
		len(samples), len(result.Cameras), resolution, out)
	return nil
}

// printBuckets writes the resampled table, one row per (camera, bucket).
func printBuckets(w io.Writer, result *aggregate.Result) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "camera\tbucket_start\tmean_fps")
	for _, panel := range result.Panels() {
		for _, b := range panel.Buckets {
			fmt.Fprintf(tw, "%s\t%s\t%.3f\n",
				b.CameraID, b.BucketStart.Format(time.RFC3339), b.MeanFPS)
		}
	}
	tw.Flush()
}
