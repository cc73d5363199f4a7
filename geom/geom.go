// Package geom provides 3D geometric primitives shared by the mesh adapter
// contract and the geometry generators:
// - 3D points/vectors with basic arithmetic
// - Triangle helpers (centroid, normal)
package geom

import "math"

// Vec3 represents a 3D point or vector in Cartesian coordinates.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Triangle references three positions forming a single face.
type Triangle [3]Vec3

func MakeVec3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (p Vec3) Add(q Vec3) Vec3     { return Vec3{p.X + q.X, p.Y + q.Y, p.Z + q.Z} }
func (p Vec3) Sub(q Vec3) Vec3     { return Vec3{p.X - q.X, p.Y - q.Y, p.Z - q.Z} }
func (p Vec3) Scale(s float64) Vec3 { return Vec3{p.X * s, p.Y * s, p.Z * s} }

func Dot(p, q Vec3) float64 { return p.X*q.X + p.Y*q.Y + p.Z*q.Z }

func Cross(p, q Vec3) Vec3 {
	return Vec3{
		X: p.Y*q.Z - p.Z*q.Y,
		Y: p.Z*q.X - p.X*q.Z,
		Z: p.X*q.Y - p.Y*q.X,
	}
}

func (p Vec3) Len() float64 { return math.Sqrt(Dot(p, p)) }

func Dist(p, q Vec3) float64 { return p.Sub(q).Len() }

// Normalize returns the unit vector pointing in p's direction, or the zero
// vector when p is degenerate.
func (p Vec3) Normalize() Vec3 {
	l := p.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return p.Scale(1 / l)
}

// Centroid returns the triangle's center of mass.
func (t Triangle) Centroid() Vec3 {
	return Vec3{
		X: (t[0].X + t[1].X + t[2].X) / 3,
		Y: (t[0].Y + t[1].Y + t[2].Y) / 3,
		Z: (t[0].Z + t[1].Z + t[2].Z) / 3,
	}
}

// Normal returns the (unnormalized) face normal following the right-hand
// winding of the triangle's vertices.
func (t Triangle) Normal() Vec3 {
	return Cross(t[1].Sub(t[0]), t[2].Sub(t[0]))
}
