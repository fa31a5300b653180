// Package producer drives a camera test binary in timed cycles so that
// its logs accumulate FPS samples for later analysis.
package producer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one test cycle: which binary to run, how long to let
// it run, and how long to idle between runs.
type Config struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
	Run    string   `yaml:"run"`
	Sleep  string   `yaml:"sleep"`
	Cycles int      `yaml:"cycles"` // 0 means run until cancelled

	// LogPrefix is prepended to each cycle's timestamped log file name,
	// e.g. "logs/cam_" yields logs/cam_2026-08-31_10-00-00.log.
	LogPrefix string `yaml:"logPrefix"`

	runDuration   time.Duration
	sleepDuration time.Duration
}

// DefaultConfig returns a config with the standard cycle timing
func DefaultConfig() *Config {
	return &Config{
		Run:       "45s",
		Sleep:     "15s",
		Cycles:    0,
		LogPrefix: "camera_test_",
	}
}

// LoadConfig reads a YAML cycle description, applying defaults for
// fields the file omits. Callers validate after applying their own
// overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config and resolves the duration strings
func (c *Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("binary is required")
	}

	var err error
	c.runDuration, err = time.ParseDuration(c.Run)
	if err != nil {
		return fmt.Errorf("invalid run duration %q: %w", c.Run, err)
	}
	if c.runDuration <= 0 {
		return fmt.Errorf("run duration must be positive, got %q", c.Run)
	}

	c.sleepDuration, err = time.ParseDuration(c.Sleep)
	if err != nil {
		return fmt.Errorf("invalid sleep duration %q: %w", c.Sleep, err)
	}
	if c.sleepDuration < 0 {
		return fmt.Errorf("sleep duration must not be negative, got %q", c.Sleep)
	}

	if c.Cycles < 0 {
		return fmt.Errorf("cycles must not be negative, got %d", c.Cycles)
	}
	return nil
}

// RunDuration returns the resolved run duration. Validate must have
// been called first.
func (c *Config) RunDuration() time.Duration { return c.runDuration }

// SleepDuration returns the resolved sleep duration
func (c *Config) SleepDuration() time.Duration { return c.sleepDuration }
