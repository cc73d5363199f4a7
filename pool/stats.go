package pool

import (
	"fmt"
	"strings"
)

// Stats tracks pool-wide metrics. Counter fields accumulate over the pool's
// lifetime; gauge fields are recomputed on every Stats call.
type Stats struct {
	Containers         int // pooled containers
	IsolatedContainers int // live isolated containers (attached or detached)
	DetachedIsolated   int
	Chunks             int // keys present in the index
	TotalTriangles     int
	TotalVertices      int
	QueuedContainers   int

	Snapshots        int // successful rebuilds
	SnapshotFailures int
	SelfHeals        int // counter recomputations triggered by adapter failures
	Relocations      int // replacements that moved a chunk to another container
	ReclaimHints     int
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	s := p.stats
	s.Containers = len(p.containers)
	s.Chunks = len(p.index)
	s.QueuedContainers = len(p.queue)

	for _, c := range p.containers {
		s.TotalTriangles += c.triCount
		s.TotalVertices += c.vertCount
	}
	for _, c := range p.isolated {
		s.IsolatedContainers++
		if !c.attached {
			s.DetachedIsolated++
		}
		s.TotalTriangles += c.triCount
		s.TotalVertices += c.vertCount
	}
	return s
}

// PrintStats outputs per-container utilization with visual bars. Gated behind
// MESHPOOL_DEBUG_POOL like the rest of the pool logging.
func (p *Pool) PrintStats() {
	s := p.Stats()

	poolLogger.Println("===== Chunk Pool Stats =====")
	poolLogger.Printf("%d chunks across %d pooled + %d isolated containers (%d detached), %d triangles, %d vertices",
		s.Chunks, s.Containers, s.IsolatedContainers, s.DetachedIsolated, s.TotalTriangles, s.TotalVertices)
	poolLogger.Printf("%d snapshots (%d failed), %d self-heals, %d relocations, %d reclaim hints, %d queued",
		s.Snapshots, s.SnapshotFailures, s.SelfHeals, s.Relocations, s.ReclaimHints, s.QueuedContainers)

	for i, c := range p.containers {
		triUtil := float64(c.triCount) / float64(p.cfg.TriangleCap)
		vertUtil := float64(c.vertCount) / float64(p.cfg.VertexCap)
		scarceTag := ""
		if i < p.cfg.ScarcePrefix {
			scarceTag = fmt.Sprintf(", %d/%d scarce", c.scarce, p.cfg.ScarcePerContainer)
		}
		poolLogger.Printf("  container#%03d %s %.0f%% tris (%d/%d), %.0f%% verts (%d/%d), %d members, fidelity=%s%s",
			c.id, makeUtilizationBar(triUtil, 12),
			triUtil*100, c.triCount, p.cfg.TriangleCap,
			vertUtil*100, c.vertCount, p.cfg.VertexCap,
			len(c.members), c.fidelity, scarceTag)
	}
	poolLogger.Println("============================")
}

// Validate checks that every index entry points at a container that actually
// holds it, and that every container's counters match the recomputed sums
// over its members without exceeding the caps. Read-only.
func (p *Pool) Validate() error {
	var problems []string

	for key, rec := range p.index {
		fp, ok := rec.c.members[key]
		if !ok {
			problems = append(problems, fmt.Sprintf("chunk %q indexed to container#%d which does not hold it", key, rec.c.id))
			continue
		}
		if fp != rec.fp {
			problems = append(problems, fmt.Sprintf("chunk %q index footprint disagrees with container#%d", key, rec.c.id))
		}
	}

	check := func(c *container) {
		tris, verts, scarce := 0, 0, 0
		for _, fp := range c.members {
			tris += fp.tris
			verts += fp.vertsAdded
			if fp.fidelity == FidelityPrecise {
				scarce++
			}
		}
		if tris != c.triCount || verts != c.vertCount || scarce != c.scarce {
			problems = append(problems, fmt.Sprintf("container#%d counters (%d tris, %d verts, %d scarce) != recomputed (%d, %d, %d)",
				c.id, c.triCount, c.vertCount, c.scarce, tris, verts, scarce))
		}
		if !c.isolated && (c.triCount > p.cfg.TriangleCap || c.vertCount > p.cfg.VertexCap) {
			problems = append(problems, fmt.Sprintf("container#%d over cap (%d/%d tris, %d/%d verts)",
				c.id, c.triCount, p.cfg.TriangleCap, c.vertCount, p.cfg.VertexCap))
		}
	}
	for _, c := range p.containers {
		check(c)
	}
	for _, c := range p.isolated {
		check(c)
	}

	if len(problems) > 0 {
		for _, prob := range problems {
			poolLogger.Printf("validate: %s", prob)
		}
		return fmt.Errorf("pool integrity check failed with %d problems", len(problems))
	}
	return nil
}

// makeUtilizationBar creates a visual bar for a utilization percentage.
func makeUtilizationBar(utilization float64, width int) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}
	filled := int(utilization * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
