package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint32(44), VertexSize)
	assert.Equal(t, uint32(0), VertexPositionOffset)
	assert.Equal(t, uint32(12), VertexColorOffset)
	assert.Equal(t, uint32(24), VertexNormalOffset)
	assert.Equal(t, uint32(36), VertexTexCoordOffset)
}

func TestModelMatrixOrder(t *testing.T) {
	m := ModelMatrix(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{}, mgl32.Vec3{2, 2, 2})
	p := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 3, p.X(), 1e-5)
	assert.InDelta(t, 2, p.Y(), 1e-5)
	assert.InDelta(t, 3, p.Z(), 1e-5)

	// scale first, then rotate a quarter turn around Y, then translate
	m = ModelMatrix(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, mgl32.DegToRad(90), 0}, mgl32.Vec3{2, 1, 1})
	p = m.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0, p.X(), 1e-5)
	assert.InDelta(t, -2, p.Z(), 1e-5)
}

func TestPerspectiveFlipsY(t *testing.T) {
	gl := mgl32.Perspective(mgl32.DegToRad(70), 1.5, 0.1, 1000)
	vk := Perspective(70, 1.5, 0.1, 1000)
	assert.Equal(t, -gl[5], vk[5])
	assert.Equal(t, gl[0], vk[0])

	assert.NotPanics(t, func() { Perspective(70, 0, 0.1, 10) })
}

func TestFrustumContainment(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(70), 1, 0.1, 100)
	f := ExtractFrustum(proj.Mul4(view))

	assert.True(t, f.ContainsPoint(mgl32.Vec3{0, 0, 0}))
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, 10}))
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, -200}))
	assert.False(t, f.ContainsPoint(mgl32.Vec3{50, 0, 0}))
	assert.True(t, f.ContainsSphere(mgl32.Vec3{0, 0, 6}, 2))

	for _, p := range f.Planes {
		assert.InDelta(t, 1, p.Normal.Len(), 1e-4)
	}
}

func TestGenerateNormalsFlatQuad(t *testing.T) {
	vertices := []Vertex{
		{Position: mgl32.Vec3{0, 0, 0}},
		{Position: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{1, 0, 1}},
		{Position: mgl32.Vec3{5, 5, 5}},
	}
	indices := []uint32{0, 1, 2, 2, 1, 3}
	GenerateNormals(vertices, indices)

	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1, vertices[i].Normal.Y(), 1e-5)
	}
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, vertices[4].Normal)
}

func TestComputeExtents(t *testing.T) {
	e := ComputeExtents([]Vertex{
		{Position: mgl32.Vec3{-1, 2, 3}},
		{Position: mgl32.Vec3{4, -5, 0}},
	})
	assert.Equal(t, mgl32.Vec3{-1, -5, 0}, e.Min)
	assert.Equal(t, mgl32.Vec3{4, 2, 3}, e.Max)
	assert.True(t, e.ContainsXZ(mgl32.Vec3{0, 100, 1}))
	assert.False(t, e.ContainsXZ(mgl32.Vec3{5, 0, 1}))
	assert.Equal(t, Extents3D{}, ComputeExtents(nil))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 89.0, Clamp(120.0, -89, 89))
	assert.Equal(t, uint32(2), Clamp[uint32](1, 2, 8))
}
