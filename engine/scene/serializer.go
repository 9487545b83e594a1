package scene

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
)

const (
	FormatVersion = "1.0"
	EngineName    = "BBL Engine"
)

type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Engine      string `json:"engine"`
	EntityCount int    `json:"entity_count"`
	ID          string `json:"id,omitempty"`
}

// Document is the on disk layout of a scene.
type Document struct {
	Metadata    Metadata          `json:"scene_metadata"`
	Entities    []EntityRecord    `json:"entities"`
	EntityNames map[string]string `json:"entity_names"`
}

type EntityRecord struct {
	EntityID  uint32           `json:"entity_id"`
	Transform *TransformRecord `json:"Transform,omitempty"`
	Mesh      *MeshRecord      `json:"Mesh,omitempty"`
	Texture   *TextureRecord   `json:"Texture,omitempty"`
	Render    *RenderRecord    `json:"Render,omitempty"`
	Audio     *AudioRecord     `json:"Audio,omitempty"`
	Physics   *PhysicsRecord   `json:"Physics,omitempty"`
	Collision *CollisionRecord `json:"Collision,omitempty"`
}

type TransformRecord struct {
	Position [3]float32 `json:"position"`
	Rotation [3]float32 `json:"rotation"`
	Scale    [3]float32 `json:"scale"`
}

type MeshRecord struct {
	MeshResourceID uint32 `json:"meshResourceID"`
	ModelPath      string `json:"modelPath"`
	MeshIndex      int    `json:"meshIndex"`
}

type TextureRecord struct {
	TextureResourceID uint32 `json:"textureResourceID"`
	TexturePath       string `json:"texturePath"`
}

type RenderRecord struct {
	MeshResourceID    uint32  `json:"meshResourceID"`
	TextureResourceID uint32  `json:"textureResourceID"`
	Visible           bool    `json:"visible"`
	UsePhong          bool    `json:"usePhong"`
	Opacity           float32 `json:"opacity"`
	Primitive         uint8   `json:"primitive,omitempty"`
}

type AudioRecord struct {
	Volume      float32 `json:"volume"`
	Muted       bool    `json:"muted"`
	Looping     bool    `json:"looping"`
	AttackSound string  `json:"attackSound"`
	DeathSound  string  `json:"deathSound"`
}

type PhysicsRecord struct {
	Velocity     [3]float32 `json:"velocity"`
	Acceleration [3]float32 `json:"acceleration"`
	Mass         float32    `json:"mass"`
	UseGravity   bool       `json:"useGravity"`
}

type CollisionRecord struct {
	ColliderSize [3]float32 `json:"colliderSize"`
	IsGrounded   bool       `json:"isGrounded"`
	IsColliding  bool       `json:"isColliding"`
	IsTrigger    bool       `json:"isTrigger"`
	IsStatic     bool       `json:"isStatic"`
}

// Snapshot captures every entity of w in ascending id order.
func Snapshot(w *ecs.World, names map[ecs.Entity]string, meta Metadata) *Document {
	entities := w.All()
	doc := &Document{
		Metadata:    meta,
		Entities:    make([]EntityRecord, 0, len(entities)),
		EntityNames: make(map[string]string, len(names)),
	}
	doc.Metadata.Version = FormatVersion
	doc.Metadata.Engine = EngineName
	doc.Metadata.EntityCount = len(entities)

	for _, e := range entities {
		doc.Entities = append(doc.Entities, snapshotEntity(w, e))
	}
	for e, name := range names {
		if w.IsValid(e) {
			doc.EntityNames[strconv.FormatUint(uint64(e), 10)] = name
		}
	}
	return doc
}

func snapshotEntity(w *ecs.World, e ecs.Entity) EntityRecord {
	rec := EntityRecord{EntityID: uint32(e)}
	if t, ok := ecs.Get[ecs.Transform](w, e); ok {
		rec.Transform = &TransformRecord{Position: t.Position, Rotation: t.Rotation, Scale: t.Scale}
	}
	if m, ok := ecs.Get[ecs.Mesh](w, e); ok {
		rec.Mesh = &MeshRecord{MeshResourceID: m.MeshResourceID, ModelPath: m.ModelPath, MeshIndex: m.MeshIndex}
	}
	if t, ok := ecs.Get[ecs.Texture](w, e); ok {
		rec.Texture = &TextureRecord{TextureResourceID: t.TextureResourceID, TexturePath: t.TexturePath}
	}
	if r, ok := ecs.Get[ecs.Render](w, e); ok {
		rec.Render = &RenderRecord{
			MeshResourceID:    r.MeshResourceID,
			TextureResourceID: r.TextureResourceID,
			Visible:           r.Visible,
			UsePhong:          r.UsePhong,
			Opacity:           r.Opacity,
			Primitive:         uint8(r.Primitive),
		}
	}
	if a, ok := ecs.Get[ecs.Audio](w, e); ok {
		rec.Audio = &AudioRecord{
			Volume:      a.Volume,
			Muted:       a.Muted,
			Looping:     a.Looping,
			AttackSound: a.AttackSound,
			DeathSound:  a.DeathSound,
		}
	}
	if p, ok := ecs.Get[ecs.Physics](w, e); ok {
		rec.Physics = &PhysicsRecord{
			Velocity:     p.Velocity,
			Acceleration: p.Acceleration,
			Mass:         p.Mass,
			UseGravity:   p.UseGravity,
		}
	}
	if c, ok := ecs.Get[ecs.Collision](w, e); ok {
		rec.Collision = &CollisionRecord{
			ColliderSize: c.ColliderSize,
			IsGrounded:   c.IsGrounded,
			IsColliding:  c.IsColliding,
			IsTrigger:    c.IsTrigger,
			IsStatic:     c.IsStatic,
		}
	}
	return rec
}

// Encode writes doc as JSON indented by four spaces.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return errors.Wrap(enc.Encode(doc), "encode scene")
}

// Decode parses and validates a scene document. Every failure wraps
// core.ErrInvalidScene.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read scene")
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, errors.Wrapf(core.ErrInvalidScene, "parse scene: %s", err)
	}
	for _, key := range []string{"scene_metadata", "entities"} {
		if _, ok := sections[key]; !ok {
			return nil, errors.Wrapf(core.ErrInvalidScene, "missing %q section", key)
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(core.ErrInvalidScene, "parse scene: %s", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	if doc.Metadata.Name == "" {
		doc.Metadata.Name = "Untitled"
	}
	return &doc, nil
}

func (d *Document) validate() error {
	seen := make(map[uint32]struct{}, len(d.Entities))
	for i, rec := range d.Entities {
		if rec.EntityID == uint32(ecs.InvalidEntity) {
			return errors.Wrapf(core.ErrInvalidScene, "entity %d has no id", i)
		}
		if _, dup := seen[rec.EntityID]; dup {
			return errors.Wrapf(core.ErrInvalidScene, "entity id %d appears twice", rec.EntityID)
		}
		seen[rec.EntityID] = struct{}{}
	}
	for key := range d.EntityNames {
		if _, err := strconv.ParseUint(key, 10, 32); err != nil {
			return errors.Wrapf(core.ErrInvalidScene, "entity name key %q is not an id", key)
		}
	}
	return nil
}

// Names returns the entity name table keyed by entity.
func (d *Document) Names() map[ecs.Entity]string {
	out := make(map[ecs.Entity]string, len(d.EntityNames))
	for key, name := range d.EntityNames {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			continue
		}
		out[ecs.Entity(id)] = name
	}
	return out
}

// Build restores every entity into w with its saved id. Resource ids are copied
// as stored; callers replace them with fresh handles.
func (d *Document) Build(w *ecs.World) error {
	for _, rec := range d.Entities {
		e, err := w.CreateEntityWithID(ecs.Entity(rec.EntityID))
		if err != nil {
			return errors.Wrapf(core.ErrInvalidScene, "restore entity %d: %s", rec.EntityID, err)
		}
		for _, c := range rec.components() {
			if err := w.Add(e, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (rec *EntityRecord) components() []ecs.Component {
	var out []ecs.Component
	if t := rec.Transform; t != nil {
		out = append(out, &ecs.Transform{
			Position: mgl32.Vec3(t.Position),
			Rotation: mgl32.Vec3(t.Rotation),
			Scale:    mgl32.Vec3(t.Scale),
		})
	}
	if m := rec.Mesh; m != nil {
		out = append(out, &ecs.Mesh{MeshResourceID: m.MeshResourceID, ModelPath: m.ModelPath, MeshIndex: m.MeshIndex})
	}
	if t := rec.Texture; t != nil {
		out = append(out, &ecs.Texture{TextureResourceID: t.TextureResourceID, TexturePath: t.TexturePath})
	}
	if r := rec.Render; r != nil {
		out = append(out, &ecs.Render{
			MeshResourceID:    r.MeshResourceID,
			TextureResourceID: r.TextureResourceID,
			Visible:           r.Visible,
			UsePhong:          r.UsePhong,
			Opacity:           r.Opacity,
			Primitive:         ecs.Primitive(r.Primitive),
		})
	}
	if a := rec.Audio; a != nil {
		out = append(out, &ecs.Audio{
			Volume:      a.Volume,
			Muted:       a.Muted,
			Looping:     a.Looping,
			AttackSound: a.AttackSound,
			DeathSound:  a.DeathSound,
		})
	}
	if p := rec.Physics; p != nil {
		out = append(out, &ecs.Physics{
			Velocity:     mgl32.Vec3(p.Velocity),
			Acceleration: mgl32.Vec3(p.Acceleration),
			Mass:         p.Mass,
			UseGravity:   p.UseGravity,
		})
	}
	if c := rec.Collision; c != nil {
		out = append(out, &ecs.Collision{
			ColliderSize: mgl32.Vec3(c.ColliderSize),
			IsGrounded:   c.IsGrounded,
			IsColliding:  c.IsColliding,
			IsTrigger:    c.IsTrigger,
			IsStatic:     c.IsStatic,
		})
	}
	return out
}
