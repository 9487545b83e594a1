package ecs

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEntityStartsAtOne(t *testing.T) {
	w := NewWorld()
	e1 := w.CreateEntity()
	e2 := w.CreateEntity()
	assert.Equal(t, Entity(1), e1)
	assert.Equal(t, Entity(2), e2)
	assert.False(t, w.IsValid(InvalidEntity))
	assert.Equal(t, 2, w.Count())
}

func TestCreateEntityWithID(t *testing.T) {
	w := NewWorld()
	e, err := w.CreateEntityWithID(7)
	require.NoError(t, err)
	assert.Equal(t, Entity(7), e)

	_, err = w.CreateEntityWithID(7)
	assert.ErrorIs(t, err, ErrEntityExists)
	_, err = w.CreateEntityWithID(InvalidEntity)
	assert.ErrorIs(t, err, ErrInvalidEntity)

	assert.Equal(t, Entity(8), w.CreateEntity())
}

func TestComponentsAndQueries(t *testing.T) {
	w := NewWorld()
	a, b, c := w.CreateEntity(), w.CreateEntity(), w.CreateEntity()

	require.NoError(t, w.Add(c, NewTransform(mgl32.Vec3{1, 2, 3})))
	require.NoError(t, w.Add(c, NewRender(1, 0)))
	require.NoError(t, w.Add(a, NewTransform(mgl32.Vec3{})))
	require.NoError(t, w.Add(a, NewRender(2, 0)))
	require.NoError(t, w.Add(b, NewTransform(mgl32.Vec3{})))

	assert.Equal(t, []Entity{a, c}, w.With(KindTransform, KindRender))
	assert.Equal(t, []Entity{a, b, c}, w.With(KindTransform))
	assert.Equal(t, []Entity{a, b, c}, w.All())

	tr, ok := Get[Transform](w, c)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, tr.Position)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, tr.Scale)

	_, ok = Get[Physics](w, c)
	assert.False(t, ok)

	w.Remove(a, KindRender)
	assert.Equal(t, []Entity{c}, w.With(KindTransform, KindRender))

	w.DestroyEntity(c)
	assert.Empty(t, w.With(KindRender))
	_, ok = Get[Transform](w, c)
	assert.False(t, ok)

	assert.ErrorIs(t, w.Add(c, &Mesh{}), ErrInvalidEntity)
}

func TestVersionTracksStructuralChanges(t *testing.T) {
	w := NewWorld()
	v := w.Version()

	e := w.CreateEntity()
	assert.Greater(t, w.Version(), v)

	v = w.Version()
	require.NoError(t, w.Add(e, NewRender(0, 0)))
	assert.Greater(t, w.Version(), v)

	v = w.Version()
	render, _ := Get[Render](w, e)
	render.Visible = false
	assert.Equal(t, v, w.Version())
	w.MarkChanged()
	assert.Greater(t, w.Version(), v)

	v = w.Version()
	w.Remove(e, KindAudio)
	assert.Equal(t, v, w.Version())

	w.Clear()
	assert.Greater(t, w.Version(), v)
	assert.Zero(t, w.Count())
	assert.Equal(t, Entity(1), w.CreateEntity())
}

func TestSetVisibleBumpsVersion(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	assert.False(t, w.SetVisible(e, false))

	require.NoError(t, w.Add(e, NewRender(0, 0)))
	v := w.Version()
	assert.True(t, w.SetVisible(e, true))
	assert.Equal(t, v, w.Version())

	assert.True(t, w.SetVisible(e, false))
	assert.Greater(t, w.Version(), v)
	render, _ := Get[Render](w, e)
	assert.False(t, render.Visible)
}

func TestCloneEntityDeepCopies(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	require.NoError(t, w.Add(e, NewTransform(mgl32.Vec3{1, 0, 0})))
	require.NoError(t, w.Add(e, &Mesh{MeshResourceID: 3, ModelPath: "models/cube.obj"}))

	clone, err := w.CloneEntity(e)
	require.NoError(t, err)
	assert.NotEqual(t, e, clone)
	assert.Equal(t, w.Kinds(e), w.Kinds(clone))

	orig, _ := Get[Transform](w, e)
	copied, _ := Get[Transform](w, clone)
	copied.Position[0] = 42
	assert.Equal(t, float32(1), orig.Position.X())

	mesh, _ := Get[Mesh](w, clone)
	assert.Equal(t, "models/cube.obj", mesh.ModelPath)

	_, err = w.CloneEntity(99)
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestComponentDefaults(t *testing.T) {
	r := NewComponent(KindRender).(*Render)
	assert.True(t, r.Visible)
	assert.False(t, r.UsePhong)
	assert.Equal(t, float32(1), r.Opacity)

	p := NewComponent(KindPhysics).(*Physics)
	assert.Equal(t, float32(1), p.Mass)
	assert.True(t, p.UseGravity)

	c := NewComponent(KindCollision).(*Collision)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, c.ColliderSize)

	assert.Equal(t, float32(1), NewComponent(KindAudio).(*Audio).Volume)
	assert.Nil(t, NewComponent(kindCount))
	assert.Equal(t, "Render", KindRender.String())
}

func TestReplaceWith(t *testing.T) {
	live := NewWorld()
	old := live.CreateEntity()
	require.NoError(t, live.Add(old, NewTransform(mgl32.Vec3{})))
	before := live.Version()

	staged := NewWorld()
	e, err := staged.CreateEntityWithID(7)
	require.NoError(t, err)
	require.NoError(t, staged.Add(e, NewRender(1, 2)))

	live.ReplaceWith(staged)
	assert.Greater(t, live.Version(), before)
	assert.False(t, live.IsValid(old))
	assert.True(t, live.Has(7, KindRender))
	assert.Equal(t, Entity(8), live.CreateEntity())
	assert.Equal(t, 0, staged.Count())
}
