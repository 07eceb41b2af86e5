package simctrl

import (
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"gopkg.in/yaml.v3"
)

// DefaultTraceFile is the trace written by --trace without a file name.
const DefaultTraceFile = "sim.vcd"

// DefaultStatsViewAddr is where --statsview serves runtime statistics.
const DefaultStatsViewAddr = "localhost:18066"

// Config holds the run parameters of a simulation.
type Config struct {
	// InitialResetDelayCycles is the number of cycles before reset is
	// asserted. Default: 2.
	InitialResetDelayCycles uint64 `yaml:"initial_reset_delay_cycles"`

	// ResetDurationCycles is the number of cycles reset stays asserted.
	// Default: 2.
	ResetDurationCycles uint64 `yaml:"reset_duration_cycles"`

	// TermAfterCycles stops the run as failed after this many cycles.
	// Zero means no limit.
	TermAfterCycles uint64 `yaml:"term_after_cycles"`

	// TraceFile enables VCD tracing into the named file.
	TraceFile string `yaml:"trace_file"`

	// ClockFreq is the frequency of the simulated clock, used for trace
	// timestamps and the speed report. Default: 100 MHz.
	ClockFreq sim.Freq `yaml:"clock_freq"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`

	// StatsView serves Go runtime statistics over HTTP during the run.
	StatsView bool `yaml:"statsview"`

	// StatsViewAddr is the listen address of the stats server.
	StatsViewAddr string `yaml:"statsview_addr"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		InitialResetDelayCycles: 2,
		ResetDurationCycles:     2,
		ClockFreq:               100 * sim.MHz,
		StatsViewAddr:           DefaultStatsViewAddr,
	}
}

// LoadConfig reads a YAML (or JSON) config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.merge(path); err != nil {
		return nil, err
	}
	return config, nil
}

// merge overwrites the fields present in the file at path.
func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the config can drive a run.
func (c *Config) Validate() error {
	if c.ResetDurationCycles == 0 {
		return fmt.Errorf("reset_duration_cycles must be > 0")
	}
	if c.ClockFreq <= 0 {
		return fmt.Errorf("clock_freq must be > 0")
	}
	if c.StatsView && c.StatsViewAddr == "" {
		return fmt.Errorf("statsview_addr must be set when statsview is enabled")
	}
	return nil
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// halfPeriodPS returns half a clock period in picoseconds, at least 1.
func (c *Config) halfPeriodPS() uint64 {
	hp := uint64(1e12 / (2 * float64(c.ClockFreq)))
	if hp == 0 {
		return 1
	}
	return hp
}
