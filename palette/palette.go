// Package palette provides procedural color palette generation for chunk
// geometry. It generates a configurable number of color levels over HSV
// ranges and assigns faces to levels using deterministic patch noise, so
// neighboring faces form coherent colored patches.
package palette

import (
	"image/color"
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/hexlattice/meshpool/geom"
)

// Config controls palette generation and patch selection.
type Config struct {
	Levels int // number of distinct colors, min 1

	// HSV ranges sampled per level. Hue in degrees [0, 360), saturation and
	// value in [0, 1].
	HueMin, HueMax float64
	SatMin, SatMax float64
	ValMin, ValMax float64

	// PatchScale is the world-space edge length of a color patch. Faces whose
	// centroids fall in the same patch cell share a level.
	PatchScale float64
}

// Default returns a muted earth-tone configuration.
func Default() Config {
	return Config{
		Levels:     5,
		HueMin:     70,
		HueMax:     140,
		SatMin:     0.35,
		SatMax:     0.6,
		ValMin:     0.4,
		ValMax:     0.75,
		PatchScale: 4,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c Config) normalized() Config {
	if c.Levels < 1 {
		c.Levels = 1
	}
	if c.PatchScale <= 0 {
		c.PatchScale = 4
	}
	c.SatMin, c.SatMax = clamp(c.SatMin, 0, 1), clamp(c.SatMax, 0, 1)
	c.ValMin, c.ValMax = clamp(c.ValMin, 0, 1), clamp(c.ValMax, 0, 1)
	return c
}

// Generate produces one RGBA color per level. Hue walks the configured range
// level by level; saturation and value are sampled per level from their
// ranges using r, so equal seeds yield equal palettes.
func Generate(cfg Config, r *rand.Rand) []color.RGBA {
	cfg = cfg.normalized()

	out := make([]color.RGBA, cfg.Levels)
	for i := range out {
		t := 0.0
		if cfg.Levels > 1 {
			t = float64(i) / float64(cfg.Levels-1)
		}
		hue := cfg.HueMin + (cfg.HueMax-cfg.HueMin)*t
		hue = math.Mod(hue+360, 360)
		sat := cfg.SatMin + (cfg.SatMax-cfg.SatMin)*r.Float64()
		val := cfg.ValMin + (cfg.ValMax-cfg.ValMin)*r.Float64()

		c := colorful.Hsv(hue, clamp(sat, 0, 1), clamp(val, 0, 1))
		red, green, blue := c.RGB255()
		out[i] = color.RGBA{R: red, G: green, B: blue, A: 255}
	}
	return out
}

// LevelFor picks the palette level for a face centroid: the centroid is
// quantized to a patch cell, and the cell is hashed with the seed. Pure
// function of (cfg, seed, p), so re-installing identical geometry recolors it
// identically.
func LevelFor(cfg Config, seed int64, p geom.Vec3) int {
	cfg = cfg.normalized()
	if cfg.Levels == 1 {
		return 0
	}

	cx := int64(math.Floor(p.X / cfg.PatchScale))
	cy := int64(math.Floor(p.Y / cfg.PatchScale))
	cz := int64(math.Floor(p.Z / cfg.PatchScale))

	h := uint64(seed)
	for _, v := range []int64{cx, cy, cz} {
		h ^= uint64(v) * 0x9e3779b97f4a7c15
		h = (h ^ (h >> 30)) * 0xbf58476d1ce4e5b9
		h = (h ^ (h >> 27)) * 0x94d049bb133111eb
		h ^= h >> 31
	}
	return int(h % uint64(cfg.Levels))
}
