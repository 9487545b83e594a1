package ecs

import (
	"github.com/cockroachdb/errors"
	"github.com/jinzhu/copier"
	"golang.org/x/exp/slices"
)

// Entity identifies an entity. Zero is never a live entity.
type Entity uint32

const InvalidEntity Entity = 0

var (
	ErrInvalidEntity = errors.New("invalid entity")
	ErrEntityExists  = errors.New("entity already exists")
)

// World stores entities and their components. It is not safe for concurrent use;
// the editor and the renderer both run on the main thread.
type World struct {
	entities   map[Entity]struct{}
	components [kindCount]map[Entity]Component
	nextID     Entity
	version    uint64
}

func NewWorld() *World {
	w := &World{}
	w.reset()
	return w
}

func (w *World) reset() {
	w.entities = make(map[Entity]struct{})
	for i := range w.components {
		w.components[i] = make(map[Entity]Component)
	}
	w.nextID = 1
}

// Version changes every time the entity set or a component set changes.
func (w *World) Version() uint64 {
	return w.version
}

// MarkChanged bumps the version after a component was edited in place.
func (w *World) MarkChanged() {
	w.version++
}

// SetVisible toggles the Render visibility of e and bumps the version when it
// changed. It returns false when e has no Render component.
func (w *World) SetVisible(e Entity, visible bool) bool {
	render, ok := Get[Render](w, e)
	if !ok {
		return false
	}
	if render.Visible != visible {
		render.Visible = visible
		w.version++
	}
	return true
}

func (w *World) CreateEntity() Entity {
	for {
		if _, taken := w.entities[w.nextID]; !taken && w.nextID != InvalidEntity {
			break
		}
		w.nextID++
	}
	e := w.nextID
	w.nextID++
	w.entities[e] = struct{}{}
	w.version++
	return e
}

// CreateEntityWithID is used when restoring saved scenes.
func (w *World) CreateEntityWithID(id Entity) (Entity, error) {
	if id == InvalidEntity {
		return InvalidEntity, ErrInvalidEntity
	}
	if _, taken := w.entities[id]; taken {
		return InvalidEntity, errors.Wrapf(ErrEntityExists, "entity %d", id)
	}
	w.entities[id] = struct{}{}
	if id >= w.nextID {
		w.nextID = id + 1
	}
	w.version++
	return id, nil
}

func (w *World) DestroyEntity(e Entity) {
	if !w.IsValid(e) {
		return
	}
	for i := range w.components {
		delete(w.components[i], e)
	}
	delete(w.entities, e)
	w.version++
}

func (w *World) IsValid(e Entity) bool {
	if e == InvalidEntity {
		return false
	}
	_, ok := w.entities[e]
	return ok
}

// Add attaches c to e, replacing any component of the same kind.
func (w *World) Add(e Entity, c Component) error {
	if !w.IsValid(e) {
		return errors.Wrapf(ErrInvalidEntity, "add %s to entity %d", c.Kind(), e)
	}
	w.components[c.Kind()][e] = c
	w.version++
	return nil
}

// Component returns the component of kind attached to e, or nil.
func (w *World) Component(e Entity, kind ComponentKind) Component {
	if kind >= kindCount {
		return nil
	}
	return w.components[kind][e]
}

func (w *World) Remove(e Entity, kind ComponentKind) {
	if kind >= kindCount {
		return
	}
	if _, ok := w.components[kind][e]; ok {
		delete(w.components[kind], e)
		w.version++
	}
}

// Has reports whether e carries every kind.
func (w *World) Has(e Entity, kinds ...ComponentKind) bool {
	if !w.IsValid(e) {
		return false
	}
	for _, k := range kinds {
		if k >= kindCount {
			return false
		}
		if _, ok := w.components[k][e]; !ok {
			return false
		}
	}
	return true
}

// With returns, in ascending id order, the entities carrying every kind.
func (w *World) With(kinds ...ComponentKind) []Entity {
	if len(kinds) == 0 {
		return w.All()
	}
	// iterate the smallest store
	smallest := kinds[0]
	for _, k := range kinds {
		if k >= kindCount {
			return nil
		}
		if len(w.components[k]) < len(w.components[smallest]) {
			smallest = k
		}
	}
	out := make([]Entity, 0, len(w.components[smallest]))
	for e := range w.components[smallest] {
		if w.Has(e, kinds...) {
			out = append(out, e)
		}
	}
	sortEntities(out)
	return out
}

func (w *World) All() []Entity {
	out := make([]Entity, 0, len(w.entities))
	for e := range w.entities {
		out = append(out, e)
	}
	sortEntities(out)
	return out
}

// Kinds lists the kinds attached to e in declaration order.
func (w *World) Kinds(e Entity) []ComponentKind {
	var out []ComponentKind
	for k := ComponentKind(0); k < kindCount; k++ {
		if _, ok := w.components[k][e]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (w *World) Count() int {
	return len(w.entities)
}

func (w *World) Clear() {
	w.reset()
	w.version++
}

// ReplaceWith moves every entity and component of other into w, discarding the
// current content. other is left empty. The version keeps increasing so cached
// queries over w are invalidated.
func (w *World) ReplaceWith(other *World) {
	version := w.version
	if other.version > version {
		version = other.version
	}
	w.entities = other.entities
	w.components = other.components
	w.nextID = other.nextID
	w.version = version + 1
	other.reset()
	other.version++
}

// CloneEntity creates a new entity holding deep copies of every component of e.
func (w *World) CloneEntity(e Entity) (Entity, error) {
	if !w.IsValid(e) {
		return InvalidEntity, errors.Wrapf(ErrInvalidEntity, "clone entity %d", e)
	}
	clone := w.CreateEntity()
	for _, kind := range w.Kinds(e) {
		dst := NewComponent(kind)
		if err := copier.CopyWithOption(dst, w.components[kind][e], copier.Option{DeepCopy: true}); err != nil {
			w.DestroyEntity(clone)
			return InvalidEntity, errors.Wrapf(err, "copy %s of entity %d", kind, e)
		}
		w.components[kind][clone] = dst
	}
	w.version++
	return clone, nil
}

func sortEntities(es []Entity) {
	slices.Sort(es)
}

// Get returns the component of type T attached to e.
//
//	t, ok := ecs.Get[ecs.Transform](w, e)
func Get[T any, PT interface {
	*T
	Component
}](w *World, e Entity) (PT, bool) {
	var zero PT
	c := w.Component(e, zero.Kind())
	if c == nil {
		return nil, false
	}
	typed, ok := c.(PT)
	return typed, ok
}
