package pool

import (
	"io"
	"log"
	"os"

	"github.com/hexlattice/meshpool/mesh"
)

var flushLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("MESHPOOL_DEBUG_FLUSH") == "1" {
		flushLogger = log.New(os.Stdout, "[flush] ", log.Ltime|log.Lmsgprefix)
	}
}

// markDirty queues a container for rebuild. A container is enqueued at most
// once at a time; re-marking a queued container is a no-op. A container mid
// rebuild is not re-enqueued — it is re-marked immediately after its rebuild
// completes.
func (p *Pool) markDirty(c *container) {
	if c.rebuilding {
		c.redirty = true
		return
	}
	c.dirty = true
	if c.queued {
		return
	}
	c.queued = true
	p.queue = append(p.queue, c)
}

// Tick drains up to ApplyPerTick dirty containers through the expensive
// snapshot, coalescing all mutations since the last materialization into one
// rebuild per container. Detached containers are skipped without counting
// against the batch. Returns the number of rebuilds attempted.
//
// A failed snapshot falls back to the buffer's cheaper in-place path (when it
// offers one) for this tick; the container stays dirty and retries a full
// rebuild on a later tick. Failures never propagate to lifecycle callers.
func (p *Pool) Tick() int {
	if !p.initialized {
		return 0
	}

	processed := 0
	var retry []*container // failed this tick, re-queued afterwards

	for processed < p.cfg.ApplyPerTick && len(p.queue) > 0 {
		c := p.queue[0]
		p.queue = p.queue[1:]
		c.queued = false

		if !c.attached {
			flushLogger.Printf("container#%d detached, skipping", c.id)
			continue
		}
		if !c.dirty {
			continue
		}
		processed++

		c.rebuilding = true
		blob, err := c.buf.Snapshot()
		c.rebuilding = false

		if err != nil {
			p.stats.SnapshotFailures++
			flushLogger.Printf("container#%d snapshot failed: %v", c.id, err)
			if up, ok := c.buf.(mesh.InPlaceUpdater); ok {
				if uerr := up.ApplyInPlace(); uerr != nil {
					flushLogger.Printf("container#%d in-place fallback failed: %v", c.id, uerr)
				}
			}
			c.queued = true
			retry = append(retry, c)
			continue
		}

		c.dirty = false
		p.stats.Snapshots++
		if p.presenter != nil {
			p.presenter(c.id, blob)
		}
		if c.redirty {
			c.redirty = false
			p.markDirty(c)
		}
	}

	p.queue = append(p.queue, retry...)
	if processed > 0 {
		flushLogger.Printf("tick rebuilt %d containers, %d still queued", processed, len(p.queue))
	}
	return processed
}
