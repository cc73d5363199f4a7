// Package pool packs many variably-sized geometry chunks into a small fixed
// set of bounded-capacity containers, so a consumer never manages one
// container per chunk.
//
// Placement is capacity-aware: every pooled container carries a hard triangle
// and vertex budget, the scarce (precise) fidelity class round-robins over a
// reserved container prefix, chunks that must not share storage get dedicated
// containers, and the expensive materialize-into-renderable step is batched
// to a bounded number of containers per tick.
package pool

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image/color"
	"io"
	"log"
	"os"

	"github.com/hexlattice/meshpool/geom"
	"github.com/hexlattice/meshpool/mesh"
	"github.com/hexlattice/meshpool/palette"
)

var poolLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("MESHPOOL_DEBUG_POOL") == "1" {
		poolLogger = log.New(os.Stdout, "[pool] ", log.Ltime|log.Lmsgprefix)
	}
}

var (
	// ErrNotInitialized is returned by operations before Init succeeds.
	ErrNotInitialized = errors.New("pool not initialized")

	// ErrInvalidInput rejects empty or inconsistent chunk geometry. The call
	// has no side effects.
	ErrInvalidInput = errors.New("invalid chunk geometry")

	// ErrCapacityExhausted means no container can host the requested
	// footprint. The chunk is not installed. Distinguishable from every other
	// failure, including "already present".
	ErrCapacityExhausted = errors.New("no container has room")
)

// Options control how a chunk's geometry is installed.
type Options struct {
	// Isolated places the chunk in a dedicated container that shares storage
	// with no other chunk.
	Isolated bool

	// Fidelity declares the chunk's accuracy requirement. FidelityPrecise
	// routes placement through the reserved scarce prefix.
	Fidelity Fidelity

	// DoubleSided emits each triangle twice with reversed winding. Doubles
	// the triangle charge.
	DoubleSided bool

	// FlatShaded gives every face its own three vertices instead of sharing
	// deduplicated positions. Charges 3 vertices per emitted face.
	FlatShaded bool

	// SolidColor overrides the procedural palette when set; alpha carries
	// opacity.
	SolidColor *color.RGBA

	// Palette configures procedural patch coloring. Nil means
	// palette.Default().
	Palette *palette.Config
}

// record locates a chunk's current storage: its container, the handles it
// occupies there, and the charged footprint.
type record struct {
	key      ChunkKey
	c        *container
	fp       *footprint
	isolated bool
}

// Pool owns the fixed set of pooled containers, the per-chunk index, the
// isolated-container registry, and the dirty/flush queue. Not safe for
// concurrent use; all operations run on the caller's single logical thread.
type Pool struct {
	factory     mesh.Factory
	cfg         Config
	initialized bool

	containers []*container // pooled, stable order
	cursor     int          // rotating scarce-placement cursor within the prefix

	index    map[ChunkKey]*record
	isolated map[ChunkKey]*container // includes detached containers kept for reattachment

	queue     []*container
	presenter func(ContainerID, mesh.Renderable)

	stats  Stats
	nextID ContainerID
}

// New returns an uninitialized pool over the given buffer factory.
func New(factory mesh.Factory) *Pool {
	return &Pool{
		factory:  factory,
		index:    make(map[ChunkKey]*record),
		isolated: make(map[ChunkKey]*container),
	}
}

// Init creates the pooled containers. One-time: re-invocation after a
// successful Init is a logged no-op.
func (p *Pool) Init(cfg Config) error {
	if p.initialized {
		poolLogger.Printf("Init called on an initialized pool, ignoring")
		return nil
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	containers := make([]*container, 0, cfg.Containers)
	p.cfg = cfg // newContainer and hasRoom read it
	for i := 0; i < cfg.Containers; i++ {
		buf, err := p.factory(true /* fixedCapacity */)
		if err != nil {
			for _, c := range containers {
				c.buf.Destroy()
			}
			p.nextID = 0
			return fmt.Errorf("creating container %d: %w", i, err)
		}
		containers = append(containers, p.newContainer(buf, false))
	}
	p.containers = containers
	p.cursor = 0
	p.initialized = true
	return nil
}

// SetPresenter installs the scene hook invoked with every materialized
// snapshot.
func (p *Pool) SetPresenter(fn func(ContainerID, mesh.Renderable)) {
	p.presenter = fn
}

// AddOrReplaceChunk installs a chunk's geometry, replacing any previous
// placement under the same key. On failure the previous placement is kept
// intact when possible; only an in-place replacement that fails after
// teardown leaves the key explicitly absent.
func (p *Pool) AddOrReplaceChunk(key ChunkKey, vertices []geom.Vec3, triangles [][3]int, opts Options) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if err := validateGeometry(vertices, triangles); err != nil {
		return err
	}

	rec := p.index[key]

	// A storage-mode switch always destroys the old placement and places
	// fresh under the new mode.
	if rec != nil && rec.isolated != opts.Isolated {
		if rec.isolated {
			p.destroyIsolated(key, rec.c)
		} else {
			p.releaseFootprint(rec.c, key)
			delete(p.index, key)
		}
		rec = nil
	}

	if opts.Isolated {
		return p.addOrReplaceIsolated(key, vertices, triangles, opts)
	}
	return p.addOrReplacePooled(key, vertices, triangles, opts, rec)
}

func (p *Pool) addOrReplacePooled(key ChunkKey, vertices []geom.Vec3, triangles [][3]int, opts Options, rec *record) error {
	trisNeeded, vertsNeeded := chargeFor(vertices, triangles, opts)
	scarce := opts.Fidelity == FidelityPrecise

	if rec != nil {
		return p.replacePooled(key, vertices, triangles, opts, rec, trisNeeded, vertsNeeded, scarce)
	}

	target := p.findTarget(trisNeeded, vertsNeeded, scarce)
	if target == nil {
		return fmt.Errorf("%w for chunk %q (%d tris, %d verts)", ErrCapacityExhausted, key, trisNeeded, vertsNeeded)
	}
	c, fp, err := p.installWithRetry(target, key, vertices, triangles, opts, scarce)
	if err != nil {
		return err
	}
	p.index[key] = &record{key: key, c: c, fp: fp, isolated: false}
	p.finishInstall(c)
	return nil
}

// replacePooled handles the present-and-mode-matches case: in-place
// replacement in the current container when the new footprint still fits once
// the old one is removed, relocation otherwise.
func (p *Pool) replacePooled(key ChunkKey, vertices []geom.Vec3, triangles [][3]int, opts Options, rec *record, trisNeeded, vertsNeeded int, scarce bool) error {
	cur := rec.c

	if p.fitsInPlace(cur, rec.fp, trisNeeded, vertsNeeded, opts) {
		// The old footprint comes out first, so a fatal install failure here
		// leaves the key explicitly absent.
		p.releaseFootprint(cur, key)
		c, fp, err := p.installWithRetry(cur, key, vertices, triangles, opts, scarce)
		if err != nil {
			delete(p.index, key)
			return err
		}
		rec.c, rec.fp = c, fp
		p.finishInstall(c)
		return nil
	}

	// Relocation installs the new footprint before releasing the old one, so
	// failure keeps the previous placement untouched.
	target := p.findTarget(trisNeeded, vertsNeeded, scarce)
	if target == nil {
		return fmt.Errorf("%w relocating chunk %q (%d tris, %d verts)", ErrCapacityExhausted, key, trisNeeded, vertsNeeded)
	}
	c, fp, err := p.installWithRetry(target, key, vertices, triangles, opts, scarce)
	if err != nil {
		return err
	}
	p.releaseFootprint(cur, key)
	rec.c, rec.fp = c, fp
	p.stats.Relocations++
	p.finishInstall(c)
	return nil
}

// fitsInPlace tests whether the current container, after hypothetically
// removing the old footprint, still has room for the new one. A fidelity
// upgrade into the scarce class additionally requires the container to be an
// eligible scarce host.
func (p *Pool) fitsInPlace(cur *container, old *footprint, trisNeeded, vertsNeeded int, opts Options) bool {
	if cur.triCount-old.tris+trisNeeded > p.cfg.TriangleCap {
		return false
	}
	if cur.vertCount-old.vertsAdded+vertsNeeded > p.cfg.VertexCap {
		return false
	}
	if opts.Fidelity == FidelityPrecise && old.fidelity != FidelityPrecise {
		if !p.inScarcePrefix(cur) || cur.scarce >= p.cfg.ScarcePerContainer {
			return false
		}
	}
	return true
}

// UnloadChunk releases the chunk's storage. Idempotent; returns whether a
// chunk was actually present. Isolated containers are detached rather than
// destroyed so a matching re-add can reattach them.
func (p *Pool) UnloadChunk(key ChunkKey) bool {
	if !p.initialized {
		return false
	}
	rec := p.index[key]
	if rec == nil {
		poolLogger.Printf("unload %q: nothing to remove", key)
		return false
	}

	if rec.isolated {
		rec.c.attached = false
		delete(p.index, key)
		return true
	}

	c := rec.c
	p.releaseFootprint(c, key)
	delete(p.index, key)

	// High usage after a removal means the buffer likely holds a lot of
	// now-unused storage; hint it to reclaim. Best-effort, non-blocking.
	if float64(c.vertCount) > p.cfg.ReclaimThreshold*float64(p.cfg.VertexCap) {
		c.buf.ReclaimUnused()
		p.stats.ReclaimHints++
	}
	return true
}

// releaseFootprint removes a chunk's faces from its container and restores
// the container's bookkeeping. Counters come from a recount over the member
// list, never from naive subtraction, so stale adapter handles cannot drift
// them.
func (p *Pool) releaseFootprint(c *container, key ChunkKey) {
	fp := c.members[key]
	if fp == nil {
		return
	}
	for _, f := range fp.faces {
		if err := c.buf.RemoveTriangle(f); err != nil {
			// Tolerated: the face counts as removed for bookkeeping purposes.
			poolLogger.Printf("container#%d: removing face %d for chunk %q: %v", c.id, f, key, err)
		}
	}
	delete(c.members, key)
	c.recount()
	c.recomputeFidelity()
	p.markDirty(c)
}

// finishInstall refreshes derived container state after a successful install.
func (p *Pool) finishInstall(c *container) {
	c.recomputeFidelity()
	p.markDirty(c)
}

// chargeFor computes the footprint a chunk charges against the caps.
// Double-sided chunks emit every face twice; flat-shaded chunks add three
// vertices per emitted face instead of sharing positions.
func chargeFor(vertices []geom.Vec3, triangles [][3]int, opts Options) (tris, verts int) {
	sides := 1
	if opts.DoubleSided {
		sides = 2
	}
	tris = len(triangles) * sides
	if opts.FlatShaded {
		verts = tris * 3
	} else {
		verts = len(vertices)
	}
	return tris, verts
}

func validateGeometry(vertices []geom.Vec3, triangles [][3]int) error {
	if len(vertices) == 0 {
		return fmt.Errorf("%w: no vertices", ErrInvalidInput)
	}
	if len(triangles) == 0 {
		return fmt.Errorf("%w: no triangles", ErrInvalidInput)
	}
	for i, t := range triangles {
		for _, v := range t {
			if v < 0 || v >= len(vertices) {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidInput, i, v, len(vertices))
			}
		}
	}
	return nil
}

// paletteSeed derives a stable per-chunk seed for procedural coloring.
func paletteSeed(key ChunkKey) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
