package palette

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexlattice/meshpool/geom"
)

func TestGenerateProducesOneColorPerLevel(t *testing.T) {
	cfg := Default()
	out := Generate(cfg, rand.New(rand.NewSource(1)))
	require.Len(t, out, cfg.Levels)
	for _, c := range out {
		assert.EqualValues(t, 255, c.A)
	}
}

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	cfg := Default()
	a := Generate(cfg, rand.New(rand.NewSource(7)))
	b := Generate(cfg, rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b)

	c := Generate(cfg, rand.New(rand.NewSource(8)))
	assert.NotEqual(t, a, c)
}

func TestGenerateNormalizesDegenerateConfig(t *testing.T) {
	cfg := Config{Levels: 0, SatMin: -2, SatMax: 9, ValMin: 0.5, ValMax: 0.5}
	out := Generate(cfg, rand.New(rand.NewSource(1)))
	assert.Len(t, out, 1)
}

func TestLevelForStaysInRange(t *testing.T) {
	cfg := Default()
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		p := geom.Vec3{
			X: (r.Float64() - 0.5) * 200,
			Y: (r.Float64() - 0.5) * 200,
			Z: (r.Float64() - 0.5) * 200,
		}
		lvl := LevelFor(cfg, 42, p)
		assert.GreaterOrEqual(t, lvl, 0)
		assert.Less(t, lvl, cfg.Levels)
	}
}

func TestLevelForIsPure(t *testing.T) {
	cfg := Default()
	p := geom.Vec3{X: 1.5, Y: -3, Z: 12.25}
	assert.Equal(t, LevelFor(cfg, 42, p), LevelFor(cfg, 42, p))
}

func TestLevelForSharesPatchCells(t *testing.T) {
	cfg := Default()
	cfg.PatchScale = 10

	// Two centroids inside the same patch cell get the same level.
	a := LevelFor(cfg, 42, geom.Vec3{X: 1, Y: 1, Z: 1})
	b := LevelFor(cfg, 42, geom.Vec3{X: 9, Y: 9, Z: 9})
	assert.Equal(t, a, b)

	// Different cells eventually differ.
	seen := map[int]bool{}
	for i := 0; i < 32; i++ {
		seen[LevelFor(cfg, 42, geom.Vec3{X: float64(i) * 10})] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestLevelForSingleLevel(t *testing.T) {
	cfg := Default()
	cfg.Levels = 1
	assert.Equal(t, 0, LevelFor(cfg, 99, geom.Vec3{X: 123, Z: -456}))
}
