package ecs

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/math"
)

// ComponentKind is the closed set of component kinds known to the store.
type ComponentKind uint8

const (
	KindTransform ComponentKind = iota
	KindMesh
	KindTexture
	KindRender
	KindPhysics
	KindCollision
	KindAudio
	kindCount
)

var kindNames = [kindCount]string{"Transform", "Mesh", "Texture", "Render", "Physics", "Collision", "Audio"}

func (k ComponentKind) String() string {
	if k >= kindCount {
		return "Unknown"
	}
	return kindNames[k]
}

// Component is implemented by pointers to the component records.
type Component interface {
	Kind() ComponentKind
}

type Transform struct {
	Position mgl32.Vec3
	// Euler angles in radians.
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

func NewTransform(position mgl32.Vec3) *Transform {
	return &Transform{Position: position, Scale: mgl32.Vec3{1, 1, 1}}
}

func (*Transform) Kind() ComponentKind { return KindTransform }

func (t *Transform) Model() mgl32.Mat4 {
	return math.ModelMatrix(t.Position, t.Rotation, t.Scale)
}

type Mesh struct {
	MeshResourceID uint32
	ModelPath      string
	MeshIndex      int
}

func (*Mesh) Kind() ComponentKind { return KindMesh }

type Texture struct {
	TextureResourceID uint32
	TexturePath       string
}

func (*Texture) Kind() ComponentKind { return KindTexture }

type Primitive uint8

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveLines
	PrimitivePoints
)

// Render selects what is drawn for an entity. The renderer records commands
// again only when the world version changes: after editing a field in place
// call World.MarkChanged, or use World.SetVisible.
type Render struct {
	MeshResourceID    uint32
	TextureResourceID uint32
	Visible           bool
	UsePhong          bool
	Opacity           float32
	Primitive         Primitive
}

func NewRender(mesh, texture uint32) *Render {
	return &Render{
		MeshResourceID:    mesh,
		TextureResourceID: texture,
		Visible:           true,
		Opacity:           1,
	}
}

func (*Render) Kind() ComponentKind { return KindRender }

type Physics struct {
	Velocity     mgl32.Vec3
	Acceleration mgl32.Vec3
	Mass         float32
	UseGravity   bool
}

func NewPhysics() *Physics {
	return &Physics{Mass: 1, UseGravity: true}
}

func (*Physics) Kind() ComponentKind { return KindPhysics }

type Collision struct {
	ColliderSize mgl32.Vec3
	IsGrounded   bool
	IsColliding  bool
	IsTrigger    bool
	IsStatic     bool
}

func NewCollision() *Collision {
	return &Collision{ColliderSize: mgl32.Vec3{1, 1, 1}}
}

func (*Collision) Kind() ComponentKind { return KindCollision }

type Audio struct {
	Volume      float32
	Muted       bool
	Looping     bool
	AttackSound string
	DeathSound  string
}

func NewAudio() *Audio {
	return &Audio{Volume: 1}
}

func (*Audio) Kind() ComponentKind { return KindAudio }

var factories = [kindCount]func() Component{
	KindTransform: func() Component { return NewTransform(mgl32.Vec3{}) },
	KindMesh:      func() Component { return &Mesh{} },
	KindTexture:   func() Component { return &Texture{} },
	KindRender:    func() Component { return NewRender(0, 0) },
	KindPhysics:   func() Component { return NewPhysics() },
	KindCollision: func() Component { return NewCollision() },
	KindAudio:     func() Component { return NewAudio() },
}

// NewComponent returns a component of kind holding its default values.
func NewComponent(kind ComponentKind) Component {
	if kind >= kindCount {
		return nil
	}
	return factories[kind]()
}
