// Package mesh defines the narrow contract between the chunk pool and the
// geometry store backing each container, plus an in-memory reference
// implementation.
//
// Every mutating call is fallible: implementations wrap engine-provided
// geometry handles whose operations can reject input at any time, and callers
// treat failure as a first-class outcome rather than assuming success.
package mesh

import (
	"image/color"

	"github.com/hexlattice/meshpool/geom"
)

// VertexID is an opaque handle to a vertex added to a Buffer.
type VertexID uint32

// FaceID is an opaque handle to a triangle added to a Buffer.
type FaceID uint32

// ColorID is an opaque handle to a color registered with a Buffer.
type ColorID uint32

// Renderable is an opaque materialized snapshot of a buffer's geometry. Its
// concrete type is defined by the Buffer implementation.
type Renderable any

// Buffer is a mutable per-container geometry store. Implementations need not
// be safe for concurrent use; the pool serializes all access.
type Buffer interface {
	// AddVertex registers a position and returns its handle.
	AddVertex(p geom.Vec3) (VertexID, error)

	// AddTriangle adds a face over three previously added vertices.
	AddTriangle(a, b, c VertexID) (FaceID, error)

	// AddTriangleP is the position-only variant: implementations dedup
	// identical positions internally.
	AddTriangleP(a, b, c geom.Vec3) (FaceID, error)

	// RemoveTriangle releases a face. Best-effort: stale handles return an
	// error but callers count the face as removed regardless.
	RemoveTriangle(f FaceID) error

	// AddColor registers an RGBA color (alpha carries opacity).
	AddColor(c color.RGBA) (ColorID, error)

	// SetFaceColor assigns a registered color to a face.
	SetFaceColor(f FaceID, c ColorID) error

	// Snapshot materializes the current geometry into a renderable artifact.
	// This is the expensive rebuild primitive.
	Snapshot() (Renderable, error)

	// ReclaimUnused is a best-effort hint to release storage held by removed
	// geometry.
	ReclaimUnused()

	// Destroy releases the buffer and all its resources.
	Destroy()
}

// InPlaceUpdater is an optional Buffer upgrade: a cheaper update path applied
// to the last materialized snapshot when a full Snapshot fails.
type InPlaceUpdater interface {
	ApplyInPlace() error
}

// Factory creates a fresh Buffer for a new container. fixedCapacity is true
// for pooled containers whose budgets never change, false for dedicated
// per-chunk containers.
type Factory func(fixedCapacity bool) (Buffer, error)
