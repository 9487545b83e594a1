package world

import (
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-editor/engine/assets/loaders"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
)

func assertVec(t *testing.T, expected, actual mgl32.Vec3) {
	t.Helper()
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], 1e-4, "component %d: expected %v, got %v", i, expected, actual)
	}
}

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, c.Position)
	assert.Equal(t, float32(70), c.FOV)
	assertVec(t, mgl32.Vec3{0, 0, -1}, c.Forward())
	assertVec(t, mgl32.Vec3{1, 0, 0}, c.Right())
	assertVec(t, mgl32.Vec3{0, 1, 0}, c.Up())

	origin := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assertVec(t, mgl32.Vec3{0, 0, -5}, origin.Vec3())
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.AddPitch(120)
	assert.Equal(t, float32(89), c.Pitch)
	c.AddPitch(-500)
	assert.Equal(t, float32(-89), c.Pitch)
	assert.Less(t, c.Forward().Y(), float32(0))
}

func TestCameraProcessInput(t *testing.T) {
	c := NewCamera()
	input := core.NewInputState(nil)

	input.ProcessKey(core.KEY_W, true)
	c.ProcessInput(input, 0.1)
	assertVec(t, mgl32.Vec3{0, 0, 3.5}, c.Position)

	input.ProcessKey(core.KEY_W, false)
	input.ProcessKey(core.KEY_D, true)
	input.ProcessKey(core.KEY_E, true)
	c.ProcessInput(input, 0.1)
	assertVec(t, mgl32.Vec3{1.5, 1.5, 3.5}, c.Position)

	view := c.View()
	assertVec(t, mgl32.Vec3{}, view.Mul4x1(c.Position.Vec4(1)).Vec3())
}

func TestCameraMouseLook(t *testing.T) {
	c := NewCamera()
	input := core.NewInputState(nil)

	input.ProcessMouseMove(10, 0)
	c.ProcessInput(input, 0.016)
	assert.Equal(t, DefaultYaw, c.Yaw)

	input.Update()
	input.ProcessButton(core.BUTTON_RIGHT, true)
	input.ProcessMouseMove(30, 20)
	c.ProcessInput(input, 0.016)
	assert.InDelta(t, -88, c.Yaw, 1e-4)
	assert.InDelta(t, -2, c.Pitch, 1e-4)
}

func flatTerrain(t *testing.T) *loaders.Terrain {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 9, 9))
	terrain, err := loaders.TerrainFromImage(img, 0.15, 1, 0)
	require.NoError(t, err)
	return terrain
}

func newBody(t *testing.T, w *ecs.World, pos mgl32.Vec3, gravity bool) ecs.Entity {
	t.Helper()
	e := w.CreateEntity()
	require.NoError(t, w.Add(e, ecs.NewTransform(pos)))
	p := ecs.NewPhysics()
	p.UseGravity = gravity
	require.NoError(t, w.Add(e, p))
	require.NoError(t, w.Add(e, ecs.NewCollision()))
	return e
}

func TestGravityIntegration(t *testing.T) {
	w := ecs.NewWorld()
	e := w.CreateEntity()
	require.NoError(t, w.Add(e, ecs.NewTransform(mgl32.Vec3{0, 10, 0})))
	require.NoError(t, w.Add(e, ecs.NewPhysics()))

	g := NewGameWorld(Options{World: w, Logger: core.NewDiscardLogger()})
	g.Update(0.5)

	p, _ := ecs.Get[ecs.Physics](w, e)
	tr, _ := ecs.Get[ecs.Transform](w, e)
	assert.InDelta(t, -4.905, p.Velocity.Y(), 1e-4)
	assert.InDelta(t, 10-2.4525, tr.Position.Y(), 1e-4)
	assert.Equal(t, mgl32.Vec3{}, p.Acceleration)
}

func TestTerrainSnapsBodies(t *testing.T) {
	w := ecs.NewWorld()
	g := NewGameWorld(Options{World: w, Logger: core.NewDiscardLogger()})
	ground := w.CreateEntity()
	require.NoError(t, w.Add(ground, ecs.NewTransform(mgl32.Vec3{})))
	g.SetTerrain(flatTerrain(t), ground)

	sunk := newBody(t, w, mgl32.Vec3{1, 0.2, 1}, true)
	p, _ := ecs.Get[ecs.Physics](w, sunk)
	p.Velocity = mgl32.Vec3{0, -3, 0}
	hovering := newBody(t, w, mgl32.Vec3{-1, 0.55, 0}, true)
	falling := newBody(t, w, mgl32.Vec3{-3, 5, -3}, true)
	outside := newBody(t, w, mgl32.Vec3{50, -10, 50}, false)

	g.Update(0.1)

	tr, _ := ecs.Get[ecs.Transform](w, sunk)
	col, _ := ecs.Get[ecs.Collision](w, sunk)
	assert.InDelta(t, 0.5, tr.Position.Y(), 1e-5)
	assert.True(t, col.IsGrounded)
	assert.True(t, col.IsColliding)
	assert.Zero(t, p.Velocity.Y())

	tr, _ = ecs.Get[ecs.Transform](w, hovering)
	col, _ = ecs.Get[ecs.Collision](w, hovering)
	assert.InDelta(t, 0.55, tr.Position.Y(), 1e-5)
	assert.True(t, col.IsGrounded)
	assert.False(t, col.IsColliding)

	col, _ = ecs.Get[ecs.Collision](w, falling)
	tr, _ = ecs.Get[ecs.Transform](w, falling)
	assert.False(t, col.IsGrounded)
	assert.Less(t, tr.Position.Y(), float32(5))

	tr, _ = ecs.Get[ecs.Transform](w, outside)
	assert.Equal(t, float32(-10), tr.Position.Y())
}

func TestTerrainFollowsItsTransform(t *testing.T) {
	w := ecs.NewWorld()
	g := NewGameWorld(Options{World: w, Logger: core.NewDiscardLogger()})
	ground := w.CreateEntity()
	require.NoError(t, w.Add(ground, ecs.NewTransform(mgl32.Vec3{0, 2, 0})))
	g.SetTerrain(flatTerrain(t), ground)

	body := newBody(t, w, mgl32.Vec3{0, 1, 0}, false)
	g.Update(0.016)
	tr, _ := ecs.Get[ecs.Transform](w, body)
	assert.InDelta(t, 2.5, tr.Position.Y(), 1e-5)
}

func TestEntityCollisionSeparatesBodies(t *testing.T) {
	w := ecs.NewWorld()
	g := NewGameWorld(Options{World: w, Logger: core.NewDiscardLogger()})

	a := newBody(t, w, mgl32.Vec3{0, 0, 0}, false)
	b := newBody(t, w, mgl32.Vec3{0.5, 0, 0}, false)
	pa, _ := ecs.Get[ecs.Physics](w, a)
	pb, _ := ecs.Get[ecs.Physics](w, b)
	pa.Velocity = mgl32.Vec3{1, 0, 2}
	pb.Velocity = mgl32.Vec3{-1, 0, 0}

	g.Update(0.5)

	ta, _ := ecs.Get[ecs.Transform](w, a)
	tb, _ := ecs.Get[ecs.Transform](w, b)
	assertVec(t, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{pa.Velocity.X(), 0, 0})
	assert.InDelta(t, 2, pa.Velocity.Z(), 1e-6)
	assert.Zero(t, pb.Velocity.X())
	assert.InDelta(t, -0.25, ta.Position.X(), 1e-5)
	assert.InDelta(t, 1, ta.Position.Z(), 1e-5)
	assert.InDelta(t, 0.75, tb.Position.X(), 1e-5)

	ca, _ := ecs.Get[ecs.Collision](w, a)
	assert.True(t, ca.IsColliding)
}

func TestTriggersAndStaticBodies(t *testing.T) {
	w := ecs.NewWorld()
	g := NewGameWorld(Options{World: w, Logger: core.NewDiscardLogger()})

	trigger := newBody(t, w, mgl32.Vec3{0, 0, 0}, false)
	ct, _ := ecs.Get[ecs.Collision](w, trigger)
	ct.IsTrigger = true
	visitor := newBody(t, w, mgl32.Vec3{0, 0.5, 0}, false)

	g.Update(0.1)
	tv, _ := ecs.Get[ecs.Transform](w, visitor)
	cv, _ := ecs.Get[ecs.Collision](w, visitor)
	assert.Equal(t, float32(0.5), tv.Position.Y())
	assert.True(t, cv.IsColliding)

	w.DestroyEntity(trigger)
	wall := newBody(t, w, mgl32.Vec3{0, 0, 0}, true)
	cw, _ := ecs.Get[ecs.Collision](w, wall)
	cw.IsStatic = true

	g.Update(0.1)
	tw, _ := ecs.Get[ecs.Transform](w, wall)
	assert.Equal(t, mgl32.Vec3{}, tw.Position)
	assert.InDelta(t, 1, tv.Position.Y(), 1e-5)
}

func TestVisibleCount(t *testing.T) {
	w := ecs.NewWorld()
	g := NewGameWorld(Options{World: w, Logger: core.NewDiscardLogger()})

	add := func(pos mgl32.Vec3) {
		e := w.CreateEntity()
		require.NoError(t, w.Add(e, ecs.NewTransform(pos)))
		require.NoError(t, w.Add(e, ecs.NewRender(1, 1)))
	}
	add(mgl32.Vec3{0, 0, 0})
	add(mgl32.Vec3{1, 1, -10})
	add(mgl32.Vec3{0, 0, 20})
	add(mgl32.Vec3{500, 0, 0})

	assert.Equal(t, 2, g.VisibleCount(16.0/9.0, 0.1, 1000))
	assert.Equal(t, float32(70), g.FOV())
}
