// Package glmesh provides an OpenGL-backed mesh.Buffer. Geometry mutations
// are staged CPU-side; Snapshot is the expensive step that bakes the live
// faces into an interleaved position+color VBO and returns a drawable Mesh.
package glmesh

import (
	"fmt"
	"image/color"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/hexlattice/meshpool/geom"
	"github.com/hexlattice/meshpool/mesh"
)

const floatsPerVertex = 7 // x, y, z, r, g, b, a
const vertexStride = floatsPerVertex * 4

// Buffer stages geometry on the CPU and owns one VAO/VBO pair that Snapshot
// refreshes in place.
type Buffer struct {
	destroyed bool

	positions []geom.Vec3
	dedup     map[geom.Vec3]mesh.VertexID

	faces      map[mesh.FaceID][3]mesh.VertexID
	faceColors map[mesh.FaceID]mesh.ColorID
	nextFace   mesh.FaceID
	removed    int

	colors []color.RGBA

	drawable *Mesh
}

// Mesh is the Renderable produced by Snapshot: a GPU-resident triangle soup.
type Mesh struct {
	vao   uint32
	vbo   uint32
	count int32 // vertices to draw
}

// Factory is a mesh.Factory producing GL-backed buffers. The fixed-capacity
// hint has no GL-side meaning; capacity is enforced by the pool's counters.
func Factory(bool) (mesh.Buffer, error) {
	return &Buffer{
		dedup:      make(map[geom.Vec3]mesh.VertexID),
		faces:      make(map[mesh.FaceID][3]mesh.VertexID),
		faceColors: make(map[mesh.FaceID]mesh.ColorID),
	}, nil
}

func (b *Buffer) AddVertex(p geom.Vec3) (mesh.VertexID, error) {
	if b.destroyed {
		return 0, fmt.Errorf("buffer destroyed")
	}
	id := mesh.VertexID(len(b.positions))
	b.positions = append(b.positions, p)
	return id, nil
}

func (b *Buffer) AddTriangle(v1, v2, v3 mesh.VertexID) (mesh.FaceID, error) {
	if b.destroyed {
		return 0, fmt.Errorf("buffer destroyed")
	}
	n := mesh.VertexID(len(b.positions))
	if v1 >= n || v2 >= n || v3 >= n {
		return 0, fmt.Errorf("vertex handle out of range (have %d vertices)", n)
	}
	id := b.nextFace
	b.nextFace++
	b.faces[id] = [3]mesh.VertexID{v1, v2, v3}
	return id, nil
}

func (b *Buffer) AddTriangleP(p1, p2, p3 geom.Vec3) (mesh.FaceID, error) {
	v1, err := b.intern(p1)
	if err != nil {
		return 0, err
	}
	v2, err := b.intern(p2)
	if err != nil {
		return 0, err
	}
	v3, err := b.intern(p3)
	if err != nil {
		return 0, err
	}
	return b.AddTriangle(v1, v2, v3)
}

func (b *Buffer) intern(p geom.Vec3) (mesh.VertexID, error) {
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

func (b *Buffer) RemoveTriangle(f mesh.FaceID) error {
	if _, ok := b.faces[f]; !ok {
		return fmt.Errorf("unknown face handle %d", f)
	}
	delete(b.faces, f)
	delete(b.faceColors, f)
	b.removed++
	return nil
}

func (b *Buffer) AddColor(c color.RGBA) (mesh.ColorID, error) {
	if b.destroyed {
		return 0, fmt.Errorf("buffer destroyed")
	}
	id := mesh.ColorID(len(b.colors))
	b.colors = append(b.colors, c)
	return id, nil
}

func (b *Buffer) SetFaceColor(f mesh.FaceID, c mesh.ColorID) error {
	if _, ok := b.faces[f]; !ok {
		return fmt.Errorf("unknown face handle %d", f)
	}
	if int(c) >= len(b.colors) {
		return fmt.Errorf("unknown color handle %d", c)
	}
	b.faceColors[f] = c
	return nil
}

// Snapshot uploads the live faces as one interleaved VBO and returns the
// drawable. The VAO/VBO pair is created on first use and refreshed in place
// afterwards, so earlier returned Meshes observe the new geometry.
func (b *Buffer) Snapshot() (mesh.Renderable, error) {
	if b.destroyed {
		return nil, fmt.Errorf("buffer destroyed")
	}

	data := make([]float32, 0, len(b.faces)*3*floatsPerVertex)
	for id, verts := range b.faces {
		c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		if cid, ok := b.faceColors[id]; ok {
			c = b.colors[cid]
		}
		for _, v := range verts {
			p := b.positions[v]
			data = append(data,
				float32(p.X), float32(p.Y), float32(p.Z),
				float32(c.R)/255.0, float32(c.G)/255.0,
				float32(c.B)/255.0, float32(c.A)/255.0,
			)
		}
	}

	if b.drawable == nil {
		b.drawable = &Mesh{}
		gl.GenVertexArrays(1, &b.drawable.vao)
		gl.GenBuffers(1, &b.drawable.vbo)

		gl.BindVertexArray(b.drawable.vao)
		gl.BindBuffer(gl.ARRAY_BUFFER, b.drawable.vbo)

		// - Attribute 0: position (vec3)
		gl.EnableVertexAttribArray(0)
		gl.VertexAttribPointer(0, 3, gl.FLOAT, false, vertexStride, gl.PtrOffset(0))
		// - Attribute 1: color (vec4)
		gl.EnableVertexAttribArray(1)
		gl.VertexAttribPointer(1, 4, gl.FLOAT, false, vertexStride, gl.PtrOffset(12))

		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
		gl.BindVertexArray(0)
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, b.drawable.vbo)
	if len(data) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	b.drawable.count = int32(len(data) / floatsPerVertex)
	return b.drawable, nil
}

// ReclaimUnused drops vertices no longer referenced by any live face from the
// CPU staging arrays. GPU storage is refreshed on the next Snapshot anyway.
func (b *Buffer) ReclaimUnused() {
	if b.destroyed || b.removed == 0 {
		return
	}
	remap := make(map[mesh.VertexID]mesh.VertexID, len(b.positions))
	compacted := make([]geom.Vec3, 0, len(b.positions))
	for _, verts := range b.faces {
		for _, v := range verts {
			if _, ok := remap[v]; ok {
				continue
			}
			remap[v] = mesh.VertexID(len(compacted))
			compacted = append(compacted, b.positions[v])
		}
	}
	for id, verts := range b.faces {
		b.faces[id] = [3]mesh.VertexID{remap[verts[0]], remap[verts[1]], remap[verts[2]]}
	}
	b.positions = compacted
	b.dedup = make(map[geom.Vec3]mesh.VertexID, len(compacted))
	for i, p := range compacted {
		if _, ok := b.dedup[p]; !ok {
			b.dedup[p] = mesh.VertexID(i)
		}
	}
	b.removed = 0
}

func (b *Buffer) Destroy() {
	if b.drawable != nil {
		b.drawable.cleanup()
		b.drawable = nil
	}
	b.destroyed = true
	b.positions = nil
	b.dedup = nil
	b.faces = nil
	b.faceColors = nil
	b.colors = nil
}

// Draw renders the mesh. The caller binds the shader program and uniforms.
func (m *Mesh) Draw() {
	if m.count == 0 {
		return
	}
	gl.BindVertexArray(m.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, m.count)
	gl.BindVertexArray(0)
}

// cleanup releases the mesh's GL resources.
func (m *Mesh) cleanup() {
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
		m.vao = 0
	}
	if m.vbo != 0 {
		gl.DeleteBuffers(1, &m.vbo)
		m.vbo = 0
	}
}
