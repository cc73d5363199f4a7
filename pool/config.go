package pool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config fixes the pool's shape at initialization time. Caps never change for
// the lifetime of the pool.
type Config struct {
	// Containers is the number of pooled containers created up front.
	Containers int `yaml:"containers"`

	// TriangleCap and VertexCap bound every pooled container.
	TriangleCap int `yaml:"triangle_cap"`
	VertexCap   int `yaml:"vertex_cap"`

	// ScarcePrefix is the number of leading containers reserved for
	// round-robin placement of the scarce (precise) fidelity class.
	// ScarcePerContainer bounds how many scarce members each of them hosts.
	ScarcePrefix       int `yaml:"scarce_prefix"`
	ScarcePerContainer int `yaml:"scarce_per_container"`

	// ApplyPerTick bounds how many dirty containers a single Tick rebuilds.
	ApplyPerTick int `yaml:"apply_per_tick"`

	// ReclaimThreshold: when a removal leaves a container's vertex usage
	// above this fraction of VertexCap, the pool fires a best-effort
	// ReclaimUnused hint at the buffer.
	ReclaimThreshold float64 `yaml:"reclaim_threshold"`
}

// DefaultConfig returns the stock pool shape.
func DefaultConfig() Config {
	return Config{
		Containers:         8,
		TriangleCap:        20000,
		VertexCap:          60000,
		ScarcePrefix:       4,
		ScarcePerContainer: 2,
		ApplyPerTick:       2,
		ReclaimThreshold:   0.75,
	}
}

// LoadConfig reads a YAML config from path, layered over DefaultConfig. An
// empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading pool config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing pool config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("pool config %s: %w", path, err)
	}
	return cfg, nil
}

// Normalize clamps dependent fields into range. The scarce prefix can never
// exceed the pool size, and the reclaim threshold stays within (0, 1].
func (c *Config) Normalize() {
	if c.ScarcePrefix > c.Containers {
		c.ScarcePrefix = c.Containers
	}
	if c.ScarcePrefix < 0 {
		c.ScarcePrefix = 0
	}
	if c.ReclaimThreshold <= 0 || c.ReclaimThreshold > 1 {
		c.ReclaimThreshold = DefaultConfig().ReclaimThreshold
	}
}

// Validate rejects shapes the pool cannot operate with.
func (c Config) Validate() error {
	if c.Containers <= 0 {
		return fmt.Errorf("containers must be positive, got %d", c.Containers)
	}
	if c.TriangleCap <= 0 || c.VertexCap <= 0 {
		return fmt.Errorf("caps must be positive, got tris=%d verts=%d", c.TriangleCap, c.VertexCap)
	}
	if c.ApplyPerTick <= 0 {
		return fmt.Errorf("apply_per_tick must be positive, got %d", c.ApplyPerTick)
	}
	if c.ScarcePerContainer < 0 {
		return fmt.Errorf("scarce_per_container must be non-negative, got %d", c.ScarcePerContainer)
	}
	return nil
}
