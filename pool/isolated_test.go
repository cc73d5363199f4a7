package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexlattice/meshpool/mesh"
)

func isolatedOpts(f Fidelity) Options {
	return Options{Isolated: true, FlatShaded: true, Fidelity: f}
}

func TestIsolatedReuseOnMatchingFidelity(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 5, isolatedOpts(FidelityFine))
	c := p.isolated["A"]
	require.NotNil(t, c)
	faces := c.buf.(*mesh.MemBuffer).FaceCount()

	// Same fidelity class: the container is reused without rebuilding, even
	// though the offered geometry differs.
	addChunk(t, p, "A", 9, isolatedOpts(FidelityFine))
	assert.Same(t, c, p.isolated["A"])
	assert.Equal(t, faces, c.buf.(*mesh.MemBuffer).FaceCount())
	require.NoError(t, p.Validate())
}

func TestIsolatedFidelityChangeRecreates(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 5, isolatedOpts(FidelityFine))
	old := p.isolated["A"]

	addChunk(t, p, "A", 5, isolatedOpts(FidelityPrecise))
	fresh := p.isolated["A"]
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 1, p.Stats().IsolatedContainers)

	// The old container was destroyed, not detached.
	_, err := old.buf.Snapshot()
	assert.Error(t, err)
	require.NoError(t, p.Validate())
}

func TestIsolatedUnloadDetachesAndReattaches(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 5, isolatedOpts(FidelityFine))
	c := p.isolated["A"]

	require.True(t, p.UnloadChunk("A"))
	assert.NotContains(t, p.index, ChunkKey("A"))
	assert.Same(t, c, p.isolated["A"]) // kept for reattachment
	assert.False(t, c.attached)
	assert.Equal(t, 1, p.Stats().DetachedIsolated)

	addChunk(t, p, "A", 5, isolatedOpts(FidelityFine))
	assert.Same(t, c, p.index["A"].c)
	assert.True(t, c.attached)
	assert.Equal(t, 0, p.Stats().DetachedIsolated)
	require.NoError(t, p.Validate())
}

func TestStorageModeSwitch(t *testing.T) {
	p := newTestPool(t, testConfig())
	addChunk(t, p, "A", 10, flatOpts(FidelityCoarse))
	require.Equal(t, 10, p.containers[0].triCount)

	// Pooled to isolated: the pooled footprint is fully released.
	addChunk(t, p, "A", 10, isolatedOpts(FidelityCoarse))
	assert.Equal(t, 0, p.containers[0].triCount)
	assert.Contains(t, p.isolated, ChunkKey("A"))
	old := p.isolated["A"]

	// And back: the isolated container is destroyed, not detached.
	addChunk(t, p, "A", 10, flatOpts(FidelityCoarse))
	assert.NotContains(t, p.isolated, ChunkKey("A"))
	assert.Equal(t, 10, p.containers[0].triCount)
	_, err := old.buf.Snapshot()
	assert.Error(t, err)
	require.NoError(t, p.Validate())
}

func TestIsolatedIgnoresCaps(t *testing.T) {
	cfg := testConfig()
	cfg.TriangleCap = 10
	cfg.VertexCap = 30
	p := newTestPool(t, cfg)

	// Far over the pooled caps, but isolated containers carry none.
	addChunk(t, p, "huge", 500, isolatedOpts(FidelityFine))
	require.NoError(t, p.Validate())

	vertices, triangles := chunkGeom(500)
	err := p.AddOrReplaceChunk("pooled", vertices, triangles, flatOpts(FidelityCoarse))
	require.ErrorIs(t, err, ErrCapacityExhausted)
}

func TestIsolatedPreciseDoesNotConsumePrefixSlots(t *testing.T) {
	cfg := testConfig()
	cfg.Containers = 2
	cfg.ScarcePrefix = 2
	cfg.ScarcePerContainer = 1
	p := newTestPool(t, cfg)

	addChunk(t, p, "iso", 5, isolatedOpts(FidelityPrecise))

	// Both prefix slots are still free for pooled scarce chunks.
	addChunk(t, p, "p1", 5, flatOpts(FidelityPrecise))
	addChunk(t, p, "p2", 5, flatOpts(FidelityPrecise))
	require.NoError(t, p.Validate())
}

func TestIsolatedInstallFailureDestroysContainer(t *testing.T) {
	p := New(queuedFactory(mesh.NewMemBuffer(true), mesh.NewMemBuffer(true),
		&flakyBuffer{MemBuffer: mesh.NewMemBuffer(false), failRemaining: -1}))
	require.NoError(t, p.Init(testConfig()))

	vertices, triangles := chunkGeom(3)
	err := p.AddOrReplaceChunk("A", vertices, triangles, isolatedOpts(FidelityFine))
	require.Error(t, err)
	assert.NotContains(t, p.isolated, ChunkKey("A"))
	assert.NotContains(t, p.index, ChunkKey("A"))
	assert.Equal(t, 0, p.Stats().IsolatedContainers)
}
