package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Runner repeatedly launches the configured binary with its output
// redirected into a fresh timestamped log file, kills it after the run
// window, and idles for the sleep window. The log files are what
// fpsplot later consumes.
type Runner struct {
	cfg *Config
	out io.Writer
}

// NewRunner creates a runner. out receives the cycle status lines; pass
// os.Stdout in the CLI.
func NewRunner(cfg *Config, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{cfg: cfg, out: out}
}

// Loop runs cycles until the configured count is reached or ctx is
// cancelled. A binary that cannot be started aborts the loop; a binary
// that exits early or dies under the kill is a normal cycle.
func (r *Runner) Loop(ctx context.Context) error {
	for cycle := 1; r.cfg.Cycles == 0 || cycle <= r.cfg.Cycles; cycle++ {
		logPath, err := r.RunCycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("cycle %d: %w", cycle, err)
		}
		fmt.Fprintf(r.out, "[Producer] cycle %d done, log %s\n", cycle, logPath)

		if r.cfg.Cycles != 0 && cycle == r.cfg.Cycles {
			break
		}

		fmt.Fprintf(r.out, "[Producer] sleeping %s\n", r.cfg.SleepDuration())
		select {
		case <-time.After(r.cfg.SleepDuration()):
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// RunCycle starts the binary with stdout+stderr appended to a new
// timestamped log file, waits out the run window, then kills it. The
// process exiting on its own before the window closes is not an error;
// test binaries sometimes finish their sweep early. Returns the log
// file path.
func (r *Runner) RunCycle(ctx context.Context) (string, error) {
	logPath := fmt.Sprintf("%s%s.log", r.cfg.LogPrefix, time.Now().Format("2006-01-02_15-04-05"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunDuration())
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.cfg.Binary, r.cfg.Args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	fmt.Fprintf(r.out, "[Producer] starting %s -> %s\n", r.cfg.Binary, logPath)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", r.cfg.Binary, err)
	}

	err = cmd.Wait()
	if runCtx.Err() == context.DeadlineExceeded {
		// Killed at the end of the run window as intended
		fmt.Fprintf(r.out, "[Producer] stopped %s after %s\n", r.cfg.Binary, r.cfg.RunDuration())
		return logPath, nil
	}
	if ctx.Err() != nil {
		return logPath, context.Canceled
	}
	if err != nil {
		fmt.Fprintf(r.out, "[Producer] %s exited early: %v\n", r.cfg.Binary, err)
	}
	return logPath, nil
}
