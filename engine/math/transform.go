package math

import "github.com/go-gl/mathgl/mgl32"

// ModelMatrix composes translation, euler rotation (radians, applied X then Y then Z)
// and scale into T * Rx * Ry * Rz * S.
func ModelMatrix(position, rotation, scale mgl32.Vec3) mgl32.Mat4 {
	m := mgl32.Translate3D(position.X(), position.Y(), position.Z())
	m = m.Mul4(mgl32.HomogRotate3DX(rotation.X()))
	m = m.Mul4(mgl32.HomogRotate3DY(rotation.Y()))
	m = m.Mul4(mgl32.HomogRotate3DZ(rotation.Z()))
	return m.Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// Perspective builds a projection for a Vulkan clip space: the Y axis points
// down so the GL style matrix is flipped.
func Perspective(fovDegrees, aspect, near, far float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	proj := mgl32.Perspective(mgl32.DegToRad(fovDegrees), aspect, near, far)
	proj[5] *= -1
	return proj
}
