package world

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/assets"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
)

var DefaultGravity = mgl32.Vec3{0, -9.81, 0}

// DefaultGroundCheckDistance is how far above the terrain a body still counts as grounded.
const DefaultGroundCheckDistance float32 = 0.1

type Options struct {
	World  *ecs.World
	Input  *core.InputState
	Camera *Camera
	Logger *core.Logger
}

// GameWorld advances the simulation once per frame: camera movement, collision
// against the terrain and between bodies, then physics integration.
type GameWorld struct {
	world  *ecs.World
	input  *core.InputState
	camera *Camera
	logger *core.Logger

	terrain       *assets.Terrain
	terrainEntity ecs.Entity

	Gravity             mgl32.Vec3
	GroundCheckDistance float32
	TerrainCollision    bool
	EntityCollision     bool
	SimulationEnabled   bool
}

func NewGameWorld(opts Options) *GameWorld {
	camera := opts.Camera
	if camera == nil {
		camera = NewCamera()
	}
	logger := opts.Logger
	if logger == nil {
		logger = core.DefaultLogger()
	}
	return &GameWorld{
		world:               opts.World,
		input:               opts.Input,
		camera:              camera,
		logger:              logger,
		Gravity:             DefaultGravity,
		GroundCheckDistance: DefaultGroundCheckDistance,
		TerrainCollision:    true,
		EntityCollision:     true,
		SimulationEnabled:   true,
	}
}

func (g *GameWorld) Camera() *Camera {
	return g.camera
}

func (g *GameWorld) View() mgl32.Mat4 {
	return g.camera.View()
}

func (g *GameWorld) FOV() float32 {
	return g.camera.FOV
}

// SetTerrain makes t the collision floor. Its origin follows the Transform of e.
func (g *GameWorld) SetTerrain(t *assets.Terrain, e ecs.Entity) {
	g.terrain, g.terrainEntity = t, e
	if t != nil {
		g.logger.Debug("terrain set to %s (%dx%d)", t.Path, t.Columns, t.Rows)
	}
}

func (g *GameWorld) Terrain() (*assets.Terrain, ecs.Entity) {
	return g.terrain, g.terrainEntity
}

func (g *GameWorld) Update(deltaTime float64) {
	dt := float32(deltaTime)
	if g.input != nil {
		g.camera.ProcessInput(g.input, dt)
	}
	if !g.SimulationEnabled || g.world == nil {
		return
	}
	g.updateCollisions()
	g.updatePhysics(dt)
}

func (g *GameWorld) updatePhysics(dt float32) {
	for _, e := range g.world.With(ecs.KindPhysics, ecs.KindTransform) {
		physics, _ := ecs.Get[ecs.Physics](g.world, e)
		transform, _ := ecs.Get[ecs.Transform](g.world, e)
		collision, hasCollision := ecs.Get[ecs.Collision](g.world, e)
		if hasCollision && collision.IsStatic {
			continue
		}

		switch {
		case hasCollision && collision.IsGrounded:
			physics.Acceleration[1] = 0
			physics.Velocity[1] = 0
		case physics.UseGravity:
			physics.Acceleration = physics.Acceleration.Add(g.Gravity)
		}

		physics.Velocity = physics.Velocity.Add(physics.Acceleration.Mul(dt))
		transform.Position = transform.Position.Add(physics.Velocity.Mul(dt))
		physics.Acceleration = mgl32.Vec3{}
	}
}

func (g *GameWorld) updateCollisions() {
	entities := g.world.With(ecs.KindCollision, ecs.KindTransform)
	for _, e := range entities {
		collision, _ := ecs.Get[ecs.Collision](g.world, e)
		collision.IsGrounded = false
		collision.IsColliding = false
	}

	if g.TerrainCollision && g.terrain != nil {
		origin := g.terrainOrigin()
		for _, e := range entities {
			if e == g.terrainEntity {
				continue
			}
			g.collideWithTerrain(e, origin)
		}
	}
	if g.EntityCollision {
		g.collideEntities(entities)
	}
}

func (g *GameWorld) terrainOrigin() mgl32.Vec3 {
	if t, ok := ecs.Get[ecs.Transform](g.world, g.terrainEntity); ok {
		return t.Position
	}
	return mgl32.Vec3{}
}

func (g *GameWorld) collideWithTerrain(e ecs.Entity, origin mgl32.Vec3) {
	transform, _ := ecs.Get[ecs.Transform](g.world, e)
	collision, _ := ecs.Get[ecs.Collision](g.world, e)
	if collision.IsStatic {
		return
	}

	height, ok := g.terrain.HeightAt(transform.Position.X(), transform.Position.Z(), origin)
	if !ok {
		return
	}
	halfHeight := collision.ColliderSize.Y() * transform.Scale.Y() * 0.5
	bottom := transform.Position.Y() - halfHeight

	switch {
	case bottom <= height:
		collision.IsGrounded = true
		collision.IsColliding = true
		transform.Position[1] = height + halfHeight
		if physics, ok := ecs.Get[ecs.Physics](g.world, e); ok && physics.Velocity.Y() < 0 {
			physics.Velocity[1] = 0
		}
	case bottom <= height+g.GroundCheckDistance:
		collision.IsGrounded = true
	}
}

type aabb struct {
	min, max mgl32.Vec3
}

func (a aabb) intersects(b aabb) bool {
	return a.min.X() <= b.max.X() && a.max.X() >= b.min.X() &&
		a.min.Y() <= b.max.Y() && a.max.Y() >= b.min.Y() &&
		a.min.Z() <= b.max.Z() && a.max.Z() >= b.min.Z()
}

func halfSize(t *ecs.Transform, c *ecs.Collision) mgl32.Vec3 {
	return mgl32.Vec3{
		c.ColliderSize.X() * 0.5 * t.Scale.X(),
		c.ColliderSize.Y() * 0.5 * t.Scale.Y(),
		c.ColliderSize.Z() * 0.5 * t.Scale.Z(),
	}
}

func bounds(t *ecs.Transform, c *ecs.Collision) aabb {
	h := halfSize(t, c)
	return aabb{min: t.Position.Sub(h), max: t.Position.Add(h)}
}

func (g *GameWorld) collideEntities(entities []ecs.Entity) {
	for i, a := range entities {
		if a == g.terrainEntity {
			continue
		}
		ta, _ := ecs.Get[ecs.Transform](g.world, a)
		ca, _ := ecs.Get[ecs.Collision](g.world, a)

		for _, b := range entities[i+1:] {
			if b == g.terrainEntity {
				continue
			}
			tb, _ := ecs.Get[ecs.Transform](g.world, b)
			cb, _ := ecs.Get[ecs.Collision](g.world, b)
			if !bounds(ta, ca).intersects(bounds(tb, cb)) {
				continue
			}
			ca.IsColliding = true
			cb.IsColliding = true
			if ca.IsTrigger || cb.IsTrigger {
				continue
			}
			g.separate(a, b, ta, tb, ca, cb)
		}
	}
}

// separate pushes a and b apart along the axis of least overlap, half each, and
// removes the velocity that moves them into each other.
func (g *GameWorld) separate(a, b ecs.Entity, ta, tb *ecs.Transform, ca, cb *ecs.Collision) {
	delta := tb.Position.Sub(ta.Position)
	total := halfSize(ta, ca).Add(halfSize(tb, cb))
	overlap := mgl32.Vec3{
		total.X() - math32.Abs(delta.X()),
		total.Y() - math32.Abs(delta.Y()),
		total.Z() - math32.Abs(delta.Z()),
	}

	axis := 2
	if overlap.X() < overlap.Y() && overlap.X() < overlap.Z() {
		axis = 0
	} else if overlap.Y() < overlap.Z() {
		axis = 1
	}
	var separation mgl32.Vec3
	separation[axis] = overlap[axis]
	if delta[axis] <= 0 {
		separation[axis] = -overlap[axis]
	}

	switch {
	case ca.IsStatic && cb.IsStatic:
		return
	case ca.IsStatic:
		tb.Position = tb.Position.Add(separation)
	case cb.IsStatic:
		ta.Position = ta.Position.Sub(separation)
	default:
		ta.Position = ta.Position.Sub(separation.Mul(0.5))
		tb.Position = tb.Position.Add(separation.Mul(0.5))
	}

	pa, okA := ecs.Get[ecs.Physics](g.world, a)
	pb, okB := ecs.Get[ecs.Physics](g.world, b)
	if separation.Len() == 0 {
		return
	}
	normal := separation.Normalize()
	if okA {
		if v := pa.Velocity.Dot(normal); v > 0 {
			pa.Velocity = pa.Velocity.Sub(normal.Mul(v))
		}
	}
	if okB {
		if v := pb.Velocity.Dot(normal); v < 0 {
			pb.Velocity = pb.Velocity.Sub(normal.Mul(v))
		}
	}
}

// VisibleCount counts the renderable entities whose bounding sphere intersects
// the camera frustum.
func (g *GameWorld) VisibleCount(aspect, near, far float32) int {
	frustum := g.camera.Frustum(aspect, near, far)
	count := 0
	for _, e := range g.world.With(ecs.KindTransform, ecs.KindRender) {
		t, _ := ecs.Get[ecs.Transform](g.world, e)
		if frustum.ContainsSphere(t.Position, t.Scale.Len()) {
			count++
		}
	}
	return count
}
