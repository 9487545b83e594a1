package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// GenerateNormals accumulates the face normal of every triangle into its three
// vertices and normalizes the result. Vertices that belong to no triangle, or whose
// faces cancel out, point up.
func GenerateNormals(vertices []Vertex, indices []uint32) {
	for i := range vertices {
		vertices[i].Normal = mgl32.Vec3{}
	}

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= len(vertices) || int(i1) >= len(vertices) || int(i2) >= len(vertices) {
			continue
		}
		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)
		face := edge1.Cross(edge2)

		vertices[i0].Normal = vertices[i0].Normal.Add(face)
		vertices[i1].Normal = vertices[i1].Normal.Add(face)
		vertices[i2].Normal = vertices[i2].Normal.Add(face)
	}

	for i := range vertices {
		n := vertices[i].Normal
		length := math32.Sqrt(n.Dot(n))
		if length < 1e-6 {
			vertices[i].Normal = mgl32.Vec3{0, 1, 0}
			continue
		}
		vertices[i].Normal = n.Mul(1 / length)
	}
}

// ComputeExtents returns the axis aligned bounds of the vertex positions.
func ComputeExtents(vertices []Vertex) Extents3D {
	if len(vertices) == 0 {
		return Extents3D{}
	}
	e := Extents3D{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		for axis := 0; axis < 3; axis++ {
			e.Min[axis] = math32.Min(e.Min[axis], v.Position[axis])
			e.Max[axis] = math32.Max(e.Max[axis], v.Position[axis])
		}
	}
	return e
}
