// Package terrain generates demo chunk geometry: jittered polygon plateaus
// whose caps are triangulated with the earcut algorithm and whose rims are
// extruded down to a base plane.
package terrain

import (
	"log"
	"math"
	"math/rand"

	"github.com/rclancey/earcut"

	"github.com/hexlattice/meshpool/geom"
)

const minOutlinePoints = 5
const maxOutlinePoints = 12

// Chunk builds one plateau mesh centered at origin. Returns the vertex list
// and triangle index list in the form the pool consumes. Deterministic in
// seed.
func Chunk(seed int64, origin geom.Vec3, radius, height float64) ([]geom.Vec3, [][3]int) {
	r := rand.New(rand.NewSource(seed))
	n := minOutlinePoints + r.Intn(maxOutlinePoints-minOutlinePoints+1)

	// Jittered radial outline in the XZ plane.
	outline := make([]geom.Vec3, n)
	for i := range outline {
		angle := 2 * math.Pi * float64(i) / float64(n)
		d := radius * (0.6 + 0.4*r.Float64())
		outline[i] = geom.Vec3{
			X: origin.X + d*math.Cos(angle),
			Y: origin.Y + height*(0.8+0.4*r.Float64()),
			Z: origin.Z + d*math.Sin(angle),
		}
	}

	// Vertices: top rim first, then the base ring directly beneath it.
	vertices := make([]geom.Vec3, 0, 2*n)
	vertices = append(vertices, outline...)
	for _, p := range outline {
		vertices = append(vertices, geom.Vec3{X: p.X, Y: origin.Y, Z: p.Z})
	}

	triangles := capTriangles(outline)

	// Skirt: one quad (two triangles) per rim edge, wound outward.
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		triangles = append(triangles,
			[3]int{i, j, n + j},
			[3]int{i, n + j, n + i},
		)
	}

	return vertices, triangles
}

// capTriangles triangulates the plateau cap with earcut over the outline's XZ
// projection. Index order matches the outline's position in the vertex list.
func capTriangles(outline []geom.Vec3) [][3]int {
	coords := make([]float64, len(outline)*2)
	for i, p := range outline {
		coords[i*2] = p.X
		coords[i*2+1] = p.Z
	}

	indices, err := earcut.Earcut(coords, nil /* holeIndices */, 2 /* dim */)
	if err != nil {
		log.Fatalf("Triangulation failed for %d-vertex outline: %v", len(outline), err)
	}
	if len(indices)%3 != 0 {
		log.Fatalf("Invalid triangle count (indices: %d, not divisible by 3)", len(indices))
	}

	triangles := make([][3]int, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		triangles = append(triangles, [3]int{int(indices[i]), int(indices[i+1]), int(indices[i+2])})
	}
	return triangles
}
