package latency

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/rtlsim/timing/cache"
)

// TimingConfig holds the timing parameters of the stand-in OTBN core.
type TimingConfig struct {
	// NopLatency is the execution latency of an instruction the core does
	// not model. Default: 1 cycle.
	NopLatency uint64 `yaml:"nop_latency"`

	// LoopSetupLatency is the execution latency of LOOPI. Default: 1 cycle.
	LoopSetupLatency uint64 `yaml:"loop_setup_latency"`

	// EcallLatency is the execution latency of ECALL. Default: 1 cycle.
	EcallLatency uint64 `yaml:"ecall_latency"`

	// FetchHitLatency is the fetch cache hit latency. Default: 1 cycle.
	FetchHitLatency uint64 `yaml:"fetch_hit_latency"`

	// FetchMissLatency is the fetch latency on a miss, including the IMEM
	// read. Default: 4 cycles.
	FetchMissLatency uint64 `yaml:"fetch_miss_latency"`

	// FetchCacheSize is the fetch cache capacity in bytes. Default: 1KB.
	FetchCacheSize int `yaml:"fetch_cache_size"`

	// FetchCacheWays is the fetch cache associativity. Default: 2.
	FetchCacheWays int `yaml:"fetch_cache_ways"`

	// FetchCacheBlockSize is the fetch cache line size. Default: 32 bytes.
	FetchCacheBlockSize int `yaml:"fetch_cache_block_size"`

	// LoopStackDepth is the number of nested loops the core tracks.
	// Default: 8.
	LoopStackDepth int `yaml:"loop_stack_depth"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	fetch := cache.DefaultFetchConfig()
	return &TimingConfig{
		NopLatency:          1,
		LoopSetupLatency:    1,
		EcallLatency:        1,
		FetchHitLatency:     fetch.HitLatency,
		FetchMissLatency:    fetch.MissLatency,
		FetchCacheSize:      fetch.Size,
		FetchCacheWays:      fetch.Associativity,
		FetchCacheBlockSize: fetch.BlockSize,
		LoopStackDepth:      8,
	}
}

// LoadConfig loads a TimingConfig from a YAML (or JSON) file. Keys missing
// from the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a YAML file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all values are usable.
func (c *TimingConfig) Validate() error {
	if c.NopLatency == 0 {
		return fmt.Errorf("nop_latency must be > 0")
	}
	if c.LoopSetupLatency == 0 {
		return fmt.Errorf("loop_setup_latency must be > 0")
	}
	if c.EcallLatency == 0 {
		return fmt.Errorf("ecall_latency must be > 0")
	}
	if c.LoopStackDepth <= 0 {
		return fmt.Errorf("loop_stack_depth must be > 0")
	}
	if err := c.FetchCacheConfig().Validate(); err != nil {
		return fmt.Errorf("invalid fetch cache: %w", err)
	}
	return nil
}

// FetchCacheConfig returns the fetch cache part of the config.
func (c *TimingConfig) FetchCacheConfig() cache.Config {
	return cache.Config{
		Size:          c.FetchCacheSize,
		Associativity: c.FetchCacheWays,
		BlockSize:     c.FetchCacheBlockSize,
		HitLatency:    c.FetchHitLatency,
		MissLatency:   c.FetchMissLatency,
	}
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
