// periodictester runs a camera test binary in timed cycles, capturing
// each cycle's output into a timestamped log file for later analysis
// with fpsplot.
//
// Usage:
//
//	periodictester --config cycle.yaml
//	periodictester --binary /usr/local/bin/camtest --run 45s --sleep 15s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fps-visualizer/backend/internal/producer"
)

func main() {
	var (
		configFlag string
		binaryFlag string
		runFlag    string
		sleepFlag  string
		cyclesFlag int
		prefixFlag string
	)

	flag.StringVar(&configFlag, "config", "", "YAML cycle config file")
	flag.StringVar(&binaryFlag, "binary", "", "camera test binary to run")
	flag.StringVar(&runFlag, "run", "", "run window per cycle (e.g. 45s)")
	flag.StringVar(&sleepFlag, "sleep", "", "idle time between cycles (e.g. 15s)")
	flag.IntVar(&cyclesFlag, "cycles", -1, "number of cycles, 0 means run until interrupted")
	flag.StringVar(&prefixFlag, "prefix", "", "log file name prefix (e.g. logs/cam_)")
	flag.Parse()

	cfg, err := loadConfig(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "periodictester: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file
	if binaryFlag != "" {
		cfg.Binary = binaryFlag
	}
	if flag.NArg() > 0 {
		cfg.Args = flag.Args()
	}
	if runFlag != "" {
		cfg.Run = runFlag
	}
	if sleepFlag != "" {
		cfg.Sleep = sleepFlag
	}
	if cyclesFlag >= 0 {
		cfg.Cycles = cyclesFlag
	}
	if prefixFlag != "" {
		cfg.LogPrefix = prefixFlag
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "periodictester: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := producer.NewRunner(cfg, os.Stdout).Loop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "periodictester: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*producer.Config, error) {
	if path == "" {
		return producer.DefaultConfig(), nil
	}
	return producer.LoadConfig(path)
}
