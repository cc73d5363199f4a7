package pool

import (
	"fmt"

	"github.com/hexlattice/meshpool/geom"
)

// addOrReplaceIsolated manages the dedicated-container path: one container
// per chunk key, created lazily, never mutated in place.
//
// An existing isolated container with a matching fidelity class is reused as
// is — reattached if it was detached by an earlier unload — without
// rebuilding geometry. Any fidelity change destroys it and places fresh.
func (p *Pool) addOrReplaceIsolated(key ChunkKey, vertices []geom.Vec3, triangles [][3]int, opts Options) error {
	if c := p.isolated[key]; c != nil {
		if c.fidelity == opts.Fidelity {
			if !c.attached {
				c.attached = true
				p.markDirty(c) // re-present on the next tick
			}
			if p.index[key] == nil {
				p.index[key] = &record{key: key, c: c, fp: c.members[key], isolated: true}
			}
			poolLogger.Printf("container#%d: reusing isolated container for chunk %q (%s)", c.id, key, c.fidelity)
			return nil
		}
		poolLogger.Printf("container#%d: fidelity %s -> %s for chunk %q, recreating isolated container",
			c.id, c.fidelity, opts.Fidelity, key)
		p.destroyIsolated(key, c)
	}

	buf, err := p.factory(false /* fixedCapacity */)
	if err != nil {
		return fmt.Errorf("creating isolated container for chunk %q: %w", key, err)
	}
	c := p.newContainer(buf, true)

	fp, err := p.install(c, key, vertices, triangles, opts)
	if err != nil {
		// Dedicated container, so the ladder has no alternates: self-heal is
		// moot on an empty member list and there is nowhere else to go.
		c.buf.Destroy()
		return fmt.Errorf("installing isolated chunk %q: %w", key, err)
	}

	p.isolated[key] = c
	p.index[key] = &record{key: key, c: c, fp: fp, isolated: true}
	p.finishInstall(c)
	return nil
}

// destroyIsolated tears an isolated container down completely. Detaching
// first keeps the flush scheduler from snapshotting a destroyed buffer if the
// container is still queued.
func (p *Pool) destroyIsolated(key ChunkKey, c *container) {
	c.attached = false
	c.buf.Destroy()
	delete(p.isolated, key)
	delete(p.index, key)
}
