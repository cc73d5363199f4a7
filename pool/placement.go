package pool

import (
	"fmt"
	"math/rand"

	"github.com/hexlattice/meshpool/geom"
	"github.com/hexlattice/meshpool/mesh"
	"github.com/hexlattice/meshpool/palette"
)

// findOrdinary scans the pooled containers in stable order and returns the
// first with room for the footprint, or nil if none qualifies.
func (p *Pool) findOrdinary(tris, verts int) *container {
	for _, c := range p.containers {
		if p.hasRoom(c, tris, verts) {
			return c
		}
	}
	return nil
}

// findScarce scans only the reserved prefix, starting at the rotating cursor
// and wrapping modulo the prefix size. A candidate needs capacity room and a
// free scarce-member slot. On success the cursor advances past the chosen
// index so the next scarce placement favors a different container.
func (p *Pool) findScarce(tris, verts int) *container {
	k := p.cfg.ScarcePrefix
	if k > len(p.containers) {
		k = len(p.containers)
	}
	if k <= 0 {
		return nil
	}
	p.cursor %= k // clamp-safe against configuration shrink

	for i := 0; i < k; i++ {
		idx := (p.cursor + i) % k
		c := p.containers[idx]
		if c.scarce >= p.cfg.ScarcePerContainer {
			continue
		}
		if !p.hasRoom(c, tris, verts) {
			continue
		}
		p.cursor = (idx + 1) % k
		return c
	}
	return nil
}

func (p *Pool) findTarget(tris, verts int, scarce bool) *container {
	if scarce {
		return p.findScarce(tris, verts)
	}
	return p.findOrdinary(tris, verts)
}

// inScarcePrefix reports whether c is one of the reserved prefix containers.
func (p *Pool) inScarcePrefix(c *container) bool {
	k := p.cfg.ScarcePrefix
	if k > len(p.containers) {
		k = len(p.containers)
	}
	for i := 0; i < k; i++ {
		if p.containers[i] == c {
			return true
		}
	}
	return false
}

// installWithRetry runs the typed retry ladder around install:
//
//  1. install into the chosen container;
//  2. on a hard adapter failure, recompute the container's counters from its
//     authoritative member list (self-heal against drift) and retry once;
//  3. scan every other eligible container (prefix-restricted for the scarce
//     class) and retry there;
//  4. surface the failure.
//
// Returns the container that actually hosts the chunk.
func (p *Pool) installWithRetry(c *container, key ChunkKey, vertices []geom.Vec3, triangles [][3]int, opts Options, scarce bool) (*container, *footprint, error) {
	fp, err := p.install(c, key, vertices, triangles, opts)
	if err == nil {
		return c, fp, nil
	}
	poolLogger.Printf("container#%d: install of %q failed, self-healing counters and retrying: %v", c.id, key, err)

	c.recount()
	p.stats.SelfHeals++
	fp, err = p.install(c, key, vertices, triangles, opts)
	if err == nil {
		return c, fp, nil
	}

	trisNeeded, vertsNeeded := chargeFor(vertices, triangles, opts)
	for _, alt := range p.alternates(c, trisNeeded, vertsNeeded, scarce) {
		poolLogger.Printf("container#%d: retrying chunk %q in container#%d", c.id, key, alt.id)
		fp, altErr := p.install(alt, key, vertices, triangles, opts)
		if altErr == nil {
			return alt, fp, nil
		}
	}
	return nil, nil, fmt.Errorf("installing chunk %q: %w", key, err)
}

// alternates lists every other container that could host the footprint, in
// stable order. Scarce placements stay within the reserved prefix and its
// per-container member limit.
func (p *Pool) alternates(exclude *container, tris, verts int, scarce bool) []*container {
	candidates := p.containers
	if scarce {
		k := p.cfg.ScarcePrefix
		if k > len(candidates) {
			k = len(candidates)
		}
		candidates = candidates[:k]
	}

	var out []*container
	for _, c := range candidates {
		if c == exclude {
			continue
		}
		if scarce && c.scarce >= p.cfg.ScarcePerContainer {
			continue
		}
		if !p.hasRoom(c, tris, verts) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// install pushes the chunk's geometry into the container's buffer and, on
// success, registers the member and recounts. A mid-flight adapter failure
// rolls back the faces added so far (best-effort) and leaves the container's
// bookkeeping untouched.
func (p *Pool) install(c *container, key ChunkKey, vertices []geom.Vec3, triangles [][3]int, opts Options) (*footprint, error) {
	pick, err := newColorPicker(c.buf, key, opts)
	if err != nil {
		return nil, fmt.Errorf("registering colors: %w", err)
	}

	fp := &footprint{fidelity: opts.Fidelity}

	fail := func(err error) (*footprint, error) {
		for _, f := range fp.faces {
			_ = c.buf.RemoveTriangle(f) // best-effort rollback
		}
		c.buf.ReclaimUnused()
		return nil, err
	}

	addFace := func(tri geom.Triangle, reversed bool) error {
		var f mesh.FaceID
		var err error
		if opts.FlatShaded {
			// Flat shading: every face owns its three vertices.
			var vids [3]mesh.VertexID
			order := [3]int{0, 1, 2}
			if reversed {
				order = [3]int{0, 2, 1}
			}
			for i, o := range order {
				vids[i], err = c.buf.AddVertex(tri[o])
				if err != nil {
					return err
				}
				fp.verts = append(fp.verts, vids[i])
			}
			f, err = c.buf.AddTriangle(vids[0], vids[1], vids[2])
		} else {
			a, b2, c2 := tri[0], tri[1], tri[2]
			if reversed {
				b2, c2 = c2, b2
			}
			f, err = c.buf.AddTriangleP(a, b2, c2)
		}
		if err != nil {
			return err
		}
		fp.faces = append(fp.faces, f)
		if err := c.buf.SetFaceColor(f, pick(tri.Centroid())); err != nil {
			return err
		}
		return nil
	}

	for _, t := range triangles {
		tri := geom.Triangle{vertices[t[0]], vertices[t[1]], vertices[t[2]]}
		if err := addFace(tri, false); err != nil {
			return fail(err)
		}
		if opts.DoubleSided {
			if err := addFace(tri, true); err != nil {
				return fail(err)
			}
		}
	}

	fp.tris, fp.vertsAdded = chargeFor(vertices, triangles, opts)
	c.members[key] = fp
	c.recount()
	return fp, nil
}

// newColorPicker registers the chunk's colors with the buffer and returns a
// centroid→ColorID function: a constant for solid-color chunks, a patch-noise
// palette lookup otherwise.
func newColorPicker(buf mesh.Buffer, key ChunkKey, opts Options) (func(geom.Vec3) mesh.ColorID, error) {
	if opts.SolidColor != nil {
		cid, err := buf.AddColor(*opts.SolidColor)
		if err != nil {
			return nil, err
		}
		return func(geom.Vec3) mesh.ColorID { return cid }, nil
	}

	cfg := palette.Default()
	if opts.Palette != nil {
		cfg = *opts.Palette
	}
	seed := paletteSeed(key)
	levels := palette.Generate(cfg, rand.New(rand.NewSource(seed)))

	cids := make([]mesh.ColorID, len(levels))
	for i, col := range levels {
		cid, err := buf.AddColor(col)
		if err != nil {
			return nil, err
		}
		cids[i] = cid
	}
	return func(centroid geom.Vec3) mesh.ColorID {
		return cids[palette.LevelFor(cfg, seed, centroid)]
	}, nil
}
