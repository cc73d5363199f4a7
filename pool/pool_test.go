package pool

import (
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexlattice/meshpool/geom"
	"github.com/hexlattice/meshpool/mesh"
)

var rgbaRed = color.RGBA{R: 255, A: 255}

func testConfig() Config {
	return Config{
		Containers:         2,
		TriangleCap:        100,
		VertexCap:          300,
		ScarcePrefix:       2,
		ScarcePerContainer: 1,
		ApplyPerTick:       2,
		ReclaimThreshold:   0.9,
	}
}

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p := New(mesh.MemFactory)
	require.NoError(t, p.Init(cfg))
	return p
}

// chunkGeom builds a chunk of exactly n triangles. With FlatShaded options
// its vertex charge is deterministic (3 per face).
func chunkGeom(n int) ([]geom.Vec3, [][3]int) {
	vertices := []geom.Vec3{{X: 0}, {X: 1}, {Y: 1}}
	triangles := make([][3]int, n)
	for i := range triangles {
		triangles[i] = [3]int{0, 1, 2}
	}
	return vertices, triangles
}

func flatOpts(f Fidelity) Options {
	return Options{FlatShaded: true, Fidelity: f}
}

func addChunk(t *testing.T, p *Pool, key ChunkKey, tris int, opts Options) {
	t.Helper()
	vertices, triangles := chunkGeom(tris)
	require.NoError(t, p.AddOrReplaceChunk(key, vertices, triangles, opts))
}

func TestFirstFitScenario(t *testing.T) {
	// 1. Two containers, caps 100 tris / 300 verts.
	p := newTestPool(t, testConfig())

	// 2. A (40 tris) lands in the first container, B (70 tris) must go to the
	// second: 40+70 > 100.
	addChunk(t, p, "A", 40, flatOpts(FidelityCoarse))
	addChunk(t, p, "B", 70, flatOpts(FidelityCoarse))
	assert.Same(t, p.containers[0], p.index["A"].c)
	assert.Same(t, p.containers[1], p.index["B"].c)

	// 3. Unloading A empties the first container.
	assert.True(t, p.UnloadChunk("A"))
	assert.Equal(t, 0, p.containers[0].triCount)
	assert.Equal(t, 0, p.containers[0].vertCount)

	// 4. C (90 tris) now fits in the first container again.
	addChunk(t, p, "C", 90, flatOpts(FidelityCoarse))
	assert.Same(t, p.containers[0], p.index["C"].c)

	require.NoError(t, p.Validate())
}

func TestUnloadAbsentKey(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 10, flatOpts(FidelityCoarse))
	before := p.Stats()

	assert.False(t, p.UnloadChunk("missing"))
	assert.False(t, p.UnloadChunk("missing")) // idempotent

	after := p.Stats()
	assert.Equal(t, before.Chunks, after.Chunks)
	assert.Equal(t, before.TotalTriangles, after.TotalTriangles)
	assert.Equal(t, before.TotalVertices, after.TotalVertices)
}

func TestInvalidInputHasNoSideEffects(t *testing.T) {
	p := newTestPool(t, testConfig())

	vertices, triangles := chunkGeom(5)
	err := p.AddOrReplaceChunk("A", nil, triangles, flatOpts(FidelityCoarse))
	require.ErrorIs(t, err, ErrInvalidInput)

	err = p.AddOrReplaceChunk("A", vertices, nil, flatOpts(FidelityCoarse))
	require.ErrorIs(t, err, ErrInvalidInput)

	err = p.AddOrReplaceChunk("A", vertices, [][3]int{{0, 1, 7}}, flatOpts(FidelityCoarse))
	require.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, p.index)
	assert.Equal(t, 0, p.containers[0].triCount)
	require.NoError(t, p.Validate())
}

func TestCapacityExhausted(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 100, flatOpts(FidelityCoarse))
	addChunk(t, p, "B", 100, flatOpts(FidelityCoarse))

	vertices, triangles := chunkGeom(1)
	err := p.AddOrReplaceChunk("C", vertices, triangles, flatOpts(FidelityCoarse))
	require.ErrorIs(t, err, ErrCapacityExhausted)
	assert.NotContains(t, p.index, ChunkKey("C"))
	require.NoError(t, p.Validate())
}

func TestReplaceInPlaceKeepsContainer(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 40, flatOpts(FidelityCoarse))
	before := p.index["A"].c

	addChunk(t, p, "A", 50, flatOpts(FidelityCoarse))
	assert.Same(t, before, p.index["A"].c)
	assert.Equal(t, 50, before.triCount)
	require.NoError(t, p.Validate())
}

func TestReplaceRelocatesWhenOverCap(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 40, flatOpts(FidelityCoarse))
	addChunk(t, p, "B", 50, flatOpts(FidelityCoarse))
	require.Same(t, p.containers[0], p.index["A"].c)
	require.Same(t, p.containers[0], p.index["B"].c)

	// 40-40+80 fits, but B's 50 are still there: 90-40+80 > 100, relocate.
	addChunk(t, p, "A", 80, flatOpts(FidelityCoarse))
	assert.Same(t, p.containers[1], p.index["A"].c)

	// The old footprint is fully released from the old container.
	assert.Equal(t, 50, p.containers[0].triCount)
	assert.NotContains(t, p.containers[0].members, ChunkKey("A"))
	assert.Equal(t, 1, p.Stats().Relocations)
	require.NoError(t, p.Validate())
}

func TestDoubleSidedAndFlatShadingCharges(t *testing.T) {
	p := newTestPool(t, testConfig())

	opts := flatOpts(FidelityCoarse)
	opts.DoubleSided = true
	addChunk(t, p, "A", 10, opts)
	assert.Equal(t, 20, p.index["A"].fp.tris)
	assert.Equal(t, 60, p.index["A"].fp.vertsAdded)

	// Smooth shading charges the deduplicated vertex count.
	vertices, triangles := chunkGeom(10)
	require.NoError(t, p.AddOrReplaceChunk("B", vertices, triangles, Options{Fidelity: FidelityCoarse}))
	assert.Equal(t, len(vertices), p.index["B"].fp.vertsAdded)
	require.NoError(t, p.Validate())
}

func TestSolidColorOverride(t *testing.T) {
	p := newTestPool(t, testConfig())
	opts := flatOpts(FidelityCoarse)
	opts.SolidColor = &rgbaRed
	addChunk(t, p, "A", 3, opts)

	c := p.index["A"].c
	blob, err := c.buf.Snapshot()
	require.NoError(t, err)
	data := blob.(*mesh.MeshData)
	require.Len(t, data.Colors, 3)
	for _, col := range data.Colors {
		assert.Equal(t, rgbaRed, col)
	}
}

// TestCountersNeverDrift runs a randomized add/replace/unload sequence and
// checks the counter and cap invariants after every operation.
func TestCountersNeverDrift(t *testing.T) {
	cfg := testConfig()
	cfg.Containers = 4
	cfg.ScarcePrefix = 2
	p := newTestPool(t, cfg)
	r := rand.New(rand.NewSource(42))

	keys := []ChunkKey{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i := 0; i < 400; i++ {
		key := keys[r.Intn(len(keys))]
		switch r.Intn(4) {
		case 0:
			p.UnloadChunk(key)
		default:
			opts := flatOpts(Fidelity(1 + r.Intn(3)))
			opts.DoubleSided = r.Intn(2) == 0
			vertices, triangles := chunkGeom(1 + r.Intn(30))
			err := p.AddOrReplaceChunk(key, vertices, triangles, opts)
			if err != nil {
				require.ErrorIs(t, err, ErrCapacityExhausted)
			}
		}
		require.NoError(t, p.Validate(), "operation %d", i)
		p.Tick()
	}
}

func TestInitIsOneTime(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 10, flatOpts(FidelityCoarse))

	other := testConfig()
	other.Containers = 9
	require.NoError(t, p.Init(other)) // no-op
	assert.Len(t, p.containers, 2)
	assert.Contains(t, p.index, ChunkKey("A"))
}

func TestOpsBeforeInit(t *testing.T) {
	p := New(mesh.MemFactory)
	vertices, triangles := chunkGeom(1)
	require.ErrorIs(t, p.AddOrReplaceChunk("A", vertices, triangles, Options{}), ErrNotInitialized)
	assert.False(t, p.UnloadChunk("A"))
	assert.Zero(t, p.Tick())
}
