package mesh

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexlattice/meshpool/geom"
)

var (
	p0 = geom.Vec3{}
	p1 = geom.Vec3{X: 1}
	p2 = geom.Vec3{Y: 1}
	p3 = geom.Vec3{Z: 1}
)

func TestAddTriangleRejectsUnknownHandles(t *testing.T) {
	b := NewMemBuffer(true)
	v, err := b.AddVertex(p0)
	require.NoError(t, err)

	_, err = b.AddTriangle(v, v, VertexID(99))
	assert.Error(t, err)
	assert.Equal(t, 0, b.FaceCount())
}

func TestAddTrianglePDedupsPositions(t *testing.T) {
	b := NewMemBuffer(true)

	// Two faces sharing an edge reuse the shared positions.
	_, err := b.AddTriangleP(p0, p1, p2)
	require.NoError(t, err)
	_, err = b.AddTriangleP(p1, p2, p3)
	require.NoError(t, err)

	assert.Equal(t, 4, b.VertexCount())
	assert.Equal(t, 2, b.FaceCount())
}

func TestRemoveTriangle(t *testing.T) {
	b := NewMemBuffer(true)
	f, err := b.AddTriangleP(p0, p1, p2)
	require.NoError(t, err)

	require.NoError(t, b.RemoveTriangle(f))
	assert.Equal(t, 0, b.FaceCount())

	// Stale handle: an error, but nothing changes.
	assert.Error(t, b.RemoveTriangle(f))
	assert.Error(t, b.RemoveTriangle(FaceID(1234)))
}

func TestReclaimUnusedCompactsVertices(t *testing.T) {
	b := NewMemBuffer(true)
	doomed, err := b.AddTriangleP(p0, p1, p2)
	require.NoError(t, err)
	kept, err := b.AddTriangleP(p1, p2, p3)
	require.NoError(t, err)
	require.NoError(t, b.RemoveTriangle(doomed))
	require.Equal(t, 4, b.VertexCount())

	b.ReclaimUnused()
	assert.Equal(t, 3, b.VertexCount())

	// The surviving face still resolves to the same positions.
	blob, err := b.Snapshot()
	require.NoError(t, err)
	data := blob.(*MeshData)
	require.Len(t, data.Triangles, 1)
	assert.Equal(t, geom.Triangle{p1, p2, p3}, data.Triangles[0])

	// And its handle stays valid.
	assert.NoError(t, b.RemoveTriangle(kept))
}

func TestReclaimUnusedIsANoOpWithoutRemovals(t *testing.T) {
	b := NewMemBuffer(true)
	_, err := b.AddTriangleP(p0, p1, p2)
	require.NoError(t, err)

	b.ReclaimUnused()
	assert.Equal(t, 3, b.VertexCount())
}

func TestSnapshotResolvesFaceColors(t *testing.T) {
	b := NewMemBuffer(true)
	f, err := b.AddTriangleP(p0, p1, p2)
	require.NoError(t, err)
	_, err = b.AddTriangleP(p1, p2, p3)
	require.NoError(t, err)

	green := color.RGBA{G: 200, A: 255}
	cid, err := b.AddColor(green)
	require.NoError(t, err)
	require.NoError(t, b.SetFaceColor(f, cid))

	blob, err := b.Snapshot()
	require.NoError(t, err)
	data := blob.(*MeshData)
	require.Len(t, data.Triangles, 2)
	require.Len(t, data.Colors, 2)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	assert.ElementsMatch(t, []color.RGBA{green, white}, data.Colors)
	assert.Same(t, data, b.Last())
}

func TestSetFaceColorValidatesHandles(t *testing.T) {
	b := NewMemBuffer(true)
	f, err := b.AddTriangleP(p0, p1, p2)
	require.NoError(t, err)

	assert.Error(t, b.SetFaceColor(f, ColorID(5)))
	assert.Error(t, b.SetFaceColor(FaceID(77), ColorID(0)))
}

func TestDestroyedBufferRejectsEverything(t *testing.T) {
	b := NewMemBuffer(true)
	_, err := b.AddTriangleP(p0, p1, p2)
	require.NoError(t, err)
	b.Destroy()

	_, err = b.AddVertex(p0)
	assert.Error(t, err)
	_, err = b.AddTriangleP(p0, p1, p2)
	assert.Error(t, err)
	_, err = b.AddColor(color.RGBA{})
	assert.Error(t, err)
	_, err = b.Snapshot()
	assert.Error(t, err)
}
