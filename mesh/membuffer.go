package mesh

import (
	"fmt"
	"image/color"

	"github.com/hexlattice/meshpool/geom"
)

// MemBuffer is the dependency-free reference Buffer. It keeps geometry in
// plain slices, tombstones removed faces, and compacts tombstones away on
// ReclaimUnused. Snapshot produces a MeshData copy of the live faces.
type MemBuffer struct {
	fixedCapacity bool
	destroyed     bool

	positions []geom.Vec3
	dedup     map[geom.Vec3]VertexID

	faces      map[FaceID][3]VertexID
	faceColors map[FaceID]ColorID
	nextFace   FaceID
	removed    int // tombstoned faces since the last reclaim

	colors []color.RGBA

	last *MeshData // last materialized snapshot, nil before the first
}

// MeshData is MemBuffer's Renderable: flat triangle soup with per-face colors
// resolved to RGBA.
type MeshData struct {
	Triangles []geom.Triangle
	Colors    []color.RGBA // one per triangle
}

// NewMemBuffer returns an empty in-memory buffer.
func NewMemBuffer(fixedCapacity bool) *MemBuffer {
	return &MemBuffer{
		fixedCapacity: fixedCapacity,
		dedup:         make(map[geom.Vec3]VertexID),
		faces:         make(map[FaceID][3]VertexID),
		faceColors:    make(map[FaceID]ColorID),
	}
}

// MemFactory is a Factory producing MemBuffers.
func MemFactory(fixedCapacity bool) (Buffer, error) {
	return NewMemBuffer(fixedCapacity), nil
}

func (b *MemBuffer) AddVertex(p geom.Vec3) (VertexID, error) {
	if b.destroyed {
		return 0, fmt.Errorf("buffer destroyed")
	}
	id := VertexID(len(b.positions))
	b.positions = append(b.positions, p)
	return id, nil
}

func (b *MemBuffer) AddTriangle(v1, v2, v3 VertexID) (FaceID, error) {
	if b.destroyed {
		return 0, fmt.Errorf("buffer destroyed")
	}
	n := VertexID(len(b.positions))
	if v1 >= n || v2 >= n || v3 >= n {
		return 0, fmt.Errorf("vertex handle out of range (have %d vertices)", n)
	}
	id := b.nextFace
	b.nextFace++
	b.faces[id] = [3]VertexID{v1, v2, v3}
	return id, nil
}

func (b *MemBuffer) AddTriangleP(p1, p2, p3 geom.Vec3) (FaceID, error) {
	if b.destroyed {
		return 0, fmt.Errorf("buffer destroyed")
	}
	v1, err := b.internVertex(p1)
	if err != nil {
		return 0, err
	}
	v2, err := b.internVertex(p2)
	if err != nil {
		return 0, err
	}
	v3, err := b.internVertex(p3)
	if err != nil {
		return 0, err
	}
	return b.AddTriangle(v1, v2, v3)
}

// internVertex returns the handle of an existing identical position or adds a
// new one.
func (b *MemBuffer) internVertex(p geom.Vec3) (VertexID, error) {
	if id, ok := b.dedup[p]; ok {
		return id, nil
	}
	id, err := b.AddVertex(p)
	if err != nil {
		return 0, err
	}
	b.dedup[p] = id
	return id, nil
}

func (b *MemBuffer) RemoveTriangle(f FaceID) error {
	if _, ok := b.faces[f]; !ok {
		return fmt.Errorf("unknown face handle %d", f)
	}
	delete(b.faces, f)
	delete(b.faceColors, f)
	b.removed++
	return nil
}

func (b *MemBuffer) AddColor(c color.RGBA) (ColorID, error) {
	if b.destroyed {
		return 0, fmt.Errorf("buffer destroyed")
	}
	id := ColorID(len(b.colors))
	b.colors = append(b.colors, c)
	return id, nil
}

func (b *MemBuffer) SetFaceColor(f FaceID, c ColorID) error {
	if _, ok := b.faces[f]; !ok {
		return fmt.Errorf("unknown face handle %d", f)
	}
	if int(c) >= len(b.colors) {
		return fmt.Errorf("unknown color handle %d", c)
	}
	b.faceColors[f] = c
	return nil
}

func (b *MemBuffer) Snapshot() (Renderable, error) {
	if b.destroyed {
		return nil, fmt.Errorf("buffer destroyed")
	}

	data := &MeshData{
		Triangles: make([]geom.Triangle, 0, len(b.faces)),
		Colors:    make([]color.RGBA, 0, len(b.faces)),
	}
	for id, verts := range b.faces {
		data.Triangles = append(data.Triangles, geom.Triangle{
			b.positions[verts[0]],
			b.positions[verts[1]],
			b.positions[verts[2]],
		})
		c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		if cid, ok := b.faceColors[id]; ok {
			c = b.colors[cid]
		}
		data.Colors = append(data.Colors, c)
	}
	b.last = data
	return data, nil
}

// ReclaimUnused drops vertex storage no longer referenced by any live face
// and rebuilds the dedup table. Handles held by the pool stay valid because
// face records are rewritten to the compacted vertex indices.
func (b *MemBuffer) ReclaimUnused() {
	if b.destroyed || b.removed == 0 {
		return
	}

	remap := make(map[VertexID]VertexID, len(b.positions))
	compacted := make([]geom.Vec3, 0, len(b.positions))
	for _, verts := range b.faces {
		for _, v := range verts {
			if _, ok := remap[v]; ok {
				continue
			}
			remap[v] = VertexID(len(compacted))
			compacted = append(compacted, b.positions[v])
		}
	}
	for id, verts := range b.faces {
		b.faces[id] = [3]VertexID{remap[verts[0]], remap[verts[1]], remap[verts[2]]}
	}
	b.positions = compacted
	b.dedup = make(map[geom.Vec3]VertexID, len(compacted))
	for i, p := range compacted {
		if _, ok := b.dedup[p]; !ok {
			b.dedup[p] = VertexID(i)
		}
	}
	b.removed = 0
}

func (b *MemBuffer) Destroy() {
	b.destroyed = true
	b.positions = nil
	b.dedup = nil
	b.faces = nil
	b.faceColors = nil
	b.colors = nil
	b.last = nil
}

// VertexCount reports the stored vertex count, including ones only reachable
// before a reclaim.
func (b *MemBuffer) VertexCount() int { return len(b.positions) }

// FaceCount reports the number of live faces.
func (b *MemBuffer) FaceCount() int { return len(b.faces) }

// Last returns the most recent snapshot, or nil before the first.
func (b *MemBuffer) Last() *MeshData { return b.last }
