package pool

import (
	"github.com/hexlattice/meshpool/mesh"
)

// ContainerID identifies a container for the lifetime of the pool.
type ContainerID int

// ChunkKey is the caller-assigned stable identity of a chunk.
type ChunkKey string

// footprint records what a chunk occupies within its container, as charged
// against the caps. Destroyed on removal or relocation; mutated in place only
// by a capacity-preserving replacement.
type footprint struct {
	faces      []mesh.FaceID
	verts      []mesh.VertexID
	tris       int // triangle charge (doubled for double-sided chunks)
	vertsAdded int // vertex charge (3 per face when flat-shaded)
	fidelity   Fidelity
}

// container is a bounded storage unit holding the combined geometry of many
// pooled chunks, or exactly one isolated chunk.
type container struct {
	id       ContainerID
	buf      mesh.Buffer
	isolated bool
	attached bool // detached containers are skipped by the flush scheduler

	triCount  int
	vertCount int
	members   map[ChunkKey]*footprint

	fidelity Fidelity // cached max rank among members
	scarce   int      // members in the scarce class

	dirty      bool
	queued     bool
	rebuilding bool
	redirty    bool // went dirty mid-rebuild; re-marked once it completes
}

func (p *Pool) newContainer(buf mesh.Buffer, isolated bool) *container {
	c := &container{
		id:       p.nextID,
		buf:      buf,
		isolated: isolated,
		attached: true,
		members:  make(map[ChunkKey]*footprint),
	}
	p.nextID++
	return c
}

// hasRoom reports whether the container can absorb the given footprint
// without exceeding its caps. Pure function of the current counters; isolated
// containers carry no caps.
func (p *Pool) hasRoom(c *container, tris, verts int) bool {
	if c.isolated {
		return true
	}
	return c.triCount+tris <= p.cfg.TriangleCap && c.vertCount+verts <= p.cfg.VertexCap
}

// recount rebuilds the counters from the authoritative member list. This is
// the only way counters move down, which keeps them immune to drift from
// stale adapter handles, and it is the self-heal step of the retry ladder.
func (c *container) recount() {
	c.triCount, c.vertCount, c.scarce = 0, 0, 0
	for _, fp := range c.members {
		c.triCount += fp.tris
		c.vertCount += fp.vertsAdded
		if fp.fidelity == FidelityPrecise {
			c.scarce++
		}
	}
}
