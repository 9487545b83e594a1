package world

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/math"
)

const (
	DefaultYaw       float32 = -90
	DefaultMoveSpeed float32 = 15
	DefaultFOV       float32 = 70
	// MouseSensitivity is in degrees per pixel of cursor travel.
	MouseSensitivity float32 = 0.1

	pitchLimit float32 = 89
)

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is a free flying editor camera described by yaw and pitch in degrees.
type Camera struct {
	Position  mgl32.Vec3
	Yaw       float32
	Pitch     float32
	MoveSpeed float32
	FOV       float32

	forward mgl32.Vec3
	right   mgl32.Vec3
	up      mgl32.Vec3
	isDirty bool
	view    mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{0, 0, 5}
	c.Yaw = DefaultYaw
	c.Pitch = 0
	c.MoveSpeed = DefaultMoveSpeed
	c.FOV = DefaultFOV
	c.updateVectors()
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) updateVectors() {
	yaw, pitch := math.Radians(c.Yaw), math.Radians(c.Pitch)
	dir := mgl32.Vec3{
		math32.Cos(yaw) * math32.Cos(pitch),
		math32.Sin(pitch),
		math32.Sin(yaw) * math32.Cos(pitch),
	}
	c.forward = dir.Normalize()
	c.right = c.forward.Cross(worldUp).Normalize()
	c.up = c.right.Cross(c.forward).Normalize()
	c.isDirty = true
}

// View returns the look-at matrix, rebuilt only after the camera moved.
func (c *Camera) View() mgl32.Mat4 {
	if c.isDirty {
		c.view = mgl32.LookAtV(c.Position, c.Position.Add(c.forward), c.up)
		c.isDirty = false
	}
	return c.view
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.forward
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.right
}

func (c *Camera) Up() mgl32.Vec3 {
	return c.up
}

func (c *Camera) MoveForward(amount float32) {
	c.Position = c.Position.Add(c.forward.Mul(amount))
	c.isDirty = true
}

func (c *Camera) MoveRight(amount float32) {
	c.Position = c.Position.Add(c.right.Mul(amount))
	c.isDirty = true
}

// MoveUp moves along the world up axis, not the camera's.
func (c *Camera) MoveUp(amount float32) {
	c.Position = c.Position.Add(worldUp.Mul(amount))
	c.isDirty = true
}

func (c *Camera) AddYaw(degrees float32) {
	c.Yaw += degrees
	c.updateVectors()
}

// AddPitch clamps to avoid flipping over the poles.
func (c *Camera) AddPitch(degrees float32) {
	c.Pitch = math.Clamp(c.Pitch+degrees, -pitchLimit, pitchLimit)
	c.updateVectors()
}

// ProcessInput moves the camera with WASD on the ground plane directions and
// Q/E vertically. Holding the right mouse button rotates it.
func (c *Camera) ProcessInput(input *core.InputState, deltaTime float32) {
	speed := c.MoveSpeed * deltaTime
	if input.IsKeyDown(core.KEY_W) {
		c.MoveForward(speed)
	}
	if input.IsKeyDown(core.KEY_S) {
		c.MoveForward(-speed)
	}
	if input.IsKeyDown(core.KEY_A) {
		c.MoveRight(-speed)
	}
	if input.IsKeyDown(core.KEY_D) {
		c.MoveRight(speed)
	}
	if input.IsKeyDown(core.KEY_E) {
		c.MoveUp(speed)
	}
	if input.IsKeyDown(core.KEY_Q) {
		c.MoveUp(-speed)
	}

	if input.IsButtonDown(core.BUTTON_RIGHT) {
		dx, dy := input.MouseDelta()
		if dx != 0 {
			c.AddYaw(float32(dx) * MouseSensitivity)
		}
		if dy != 0 {
			c.AddPitch(-float32(dy) * MouseSensitivity)
		}
	}
}

// Projection is the Vulkan style perspective projection for aspect.
func (c *Camera) Projection(aspect, near, far float32) mgl32.Mat4 {
	return math.Perspective(c.FOV, aspect, near, far)
}

// Frustum returns the view frustum for the given projection parameters.
func (c *Camera) Frustum(aspect, near, far float32) math.Frustum {
	return math.ExtractFrustum(c.Projection(aspect, near, far).Mul4(c.View()))
}
