package renderer

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
	"github.com/spaghettifunk/anima-editor/engine/math"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

func TestUniformBlockLayout(t *testing.T) {
	assert.Equal(t, uint32(208), UniformBlockSize)
	assert.Equal(t, uint32(256), AlignedBlockSize(UniformBlockSize, 256))
	assert.Equal(t, uint32(208), AlignedBlockSize(UniformBlockSize, 16))
	assert.Equal(t, uint32(224), AlignedBlockSize(UniformBlockSize, 32))
	assert.Equal(t, uint32(208), AlignedBlockSize(UniformBlockSize, 0))

	block := UniformBlock{LightPos: mgl32.Vec3{1, 2, 3}}
	block.Model = mgl32.Translate3D(4, 5, 6)
	buf := make([]byte, 512)
	PackUniforms(buf, 256, block)

	readFloat := func(offset int) float32 {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
	}
	// column major: translation lives in elements 12..14
	assert.Equal(t, float32(4), readFloat(256+12*4))
	assert.Equal(t, float32(6), readFloat(256+14*4))
	assert.Equal(t, float32(1), readFloat(256+192))
	assert.Equal(t, float32(3), readFloat(256+200))
	assert.Equal(t, float32(0), readFloat(0))
}

func TestSelectPipeline(t *testing.T) {
	r := ecs.NewRender(1, 1)
	assert.Equal(t, PipelineUnlit, SelectPipeline(r))
	r.UsePhong = true
	assert.Equal(t, PipelinePhong, SelectPipeline(r))
	r.Primitive = ecs.PrimitiveLines
	assert.Equal(t, PipelineLine, SelectPipeline(r))
	r.Primitive = ecs.PrimitivePoints
	assert.Equal(t, PipelinePoint, SelectPipeline(r))
	assert.Equal(t, "point", PipelinePoint.String())
}

func TestPresentationTransitions(t *testing.T) {
	var p Presentation
	assert.Equal(t, PresentationUninitialized, p.State())
	assert.False(t, p.MarkStale())

	require.NoError(t, p.MarkReady())
	assert.ErrorIs(t, p.MarkReady(), ErrInvalidTransition)

	assert.True(t, p.MarkStale())
	assert.False(t, p.MarkStale())
	assert.Equal(t, PresentationStale, p.State())

	require.NoError(t, p.MarkReady())
	p.TearDown()
	assert.Equal(t, PresentationTornDown, p.State())
	assert.ErrorIs(t, p.MarkReady(), ErrInvalidTransition)
	assert.False(t, p.MarkStale())
}

func TestSelectAdapterPicksFirstSuitable(t *testing.T) {
	suitable := AdapterInfo{
		GraphicsQueue:      true,
		PresentQueue:       true,
		SwapchainExtension: true,
		SurfaceFormats:     2,
		PresentModes:       1,
		SamplerAnisotropy:  true,
	}
	integrated := suitable
	integrated.Name = "integrated"
	discrete := suitable
	discrete.Name = "discrete"
	discrete.Discrete = true
	noAniso := suitable
	noAniso.SamplerAnisotropy = false
	noPresent := suitable
	noPresent.PresentQueue = false
	noFormats := suitable
	noFormats.SurfaceFormats = 0

	idx, err := SelectAdapter([]AdapterInfo{noAniso, integrated, discrete})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = SelectAdapter([]AdapterInfo{noAniso, noPresent, noFormats})
	assert.ErrorIs(t, err, core.ErrNoSuitableAdapter)

	_, err = SelectAdapter(nil)
	assert.ErrorIs(t, err, core.ErrNoSuitableAdapter)
}

func readyScheduler(d *fakeDevice, frames int) (*FrameScheduler, *Presentation) {
	p := &Presentation{}
	_ = p.MarkReady()
	return NewFrameScheduler(d, p, frames, d.images, core.NewDiscardLogger()), p
}

func TestSchedulerNeverWritesPendingImage(t *testing.T) {
	d := newFakeDevice(3)
	d.acquireOrder = []uint32{0, 1, 0, 0, 2, 1, 1, 0, 2, 2}
	s, _ := readyScheduler(d, 2)

	for i := 0; i < 10; i++ {
		presented, err := s.Frame(nil)
		require.NoError(t, err)
		assert.True(t, presented)
	}
	assert.Empty(t, d.violations)
	assert.Equal(t, 0, s.CurrentSlot())
}

func TestSchedulerWaitsForImageOwner(t *testing.T) {
	d := newFakeDevice(3)
	d.acquireOrder = []uint32{0, 1, 1}
	s, _ := readyScheduler(d, 2)

	for i := 0; i < 3; i++ {
		_, err := s.Frame(nil)
		require.NoError(t, err)
	}
	// third frame runs on slot 0 but acquires image 1, last used by slot 1
	assert.Equal(t, []string{
		"wait 0", "acquire 0", "submit 0 0", "present 0",
		"wait 1", "acquire 1", "submit 1 1", "present 1",
		"wait 0", "acquire 1", "wait 1", "submit 0 1", "present 1",
	}, d.calls)
}

func TestSchedulerPrepareRunsBeforeSubmit(t *testing.T) {
	d := newFakeDevice(2)
	s, _ := readyScheduler(d, 2)

	var prepared []uint32
	_, err := s.Frame(func(image uint32) error {
		prepared = append(prepared, image)
		assert.Equal(t, "acquire 0", d.calls[len(d.calls)-1])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, prepared)
}

func TestSchedulerStaleAcquireSkipsFrame(t *testing.T) {
	d := newFakeDevice(2)
	d.staleAcquire = 1
	s, p := readyScheduler(d, 2)

	presented, err := s.Frame(func(uint32) error {
		t.Fatal("prepare must not run when acquire is stale")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, presented)
	assert.Equal(t, PresentationStale, p.State())
	assert.Equal(t, 0, s.CurrentSlot())
	assert.NotContains(t, d.calls, "present 0")

	presented, err = s.Frame(nil)
	require.NoError(t, err)
	assert.False(t, presented)
}

func TestSchedulerStalePresentAndResize(t *testing.T) {
	d := newFakeDevice(2)
	d.stalePresent = 1
	s, p := readyScheduler(d, 2)

	presented, err := s.Frame(nil)
	require.NoError(t, err)
	assert.True(t, presented)
	assert.Equal(t, PresentationStale, p.State())
	assert.Equal(t, 1, s.CurrentSlot())

	require.NoError(t, p.MarkReady())
	s.MarkResized()
	_, err = s.Frame(nil)
	require.NoError(t, err)
	assert.Equal(t, PresentationStale, p.State())

	require.NoError(t, p.MarkReady())
	_, err = s.Frame(nil)
	require.NoError(t, err)
	assert.Equal(t, PresentationReady, p.State())
}

func addRenderable(t *testing.T, h *harness, position mgl32.Vec3, visible bool) ecs.Entity {
	t.Helper()
	v, i := make([]math.Vertex, 3), []uint32{0, 1, 2}
	mesh := h.catalogue.UploadMesh(v, i)
	require.NotEqual(t, catalogue.NoResource, mesh)
	e := h.world.CreateEntity()
	require.NoError(t, h.world.Add(e, ecs.NewTransform(position)))
	render := ecs.NewRender(uint32(mesh), 0)
	render.Visible = visible
	require.NoError(t, h.world.Add(e, render))
	require.NoError(t, h.world.Add(e, &ecs.Mesh{MeshResourceID: uint32(mesh)}))
	return e
}

func TestDrawIndexOffsetsMatchUniformFill(t *testing.T) {
	h := newHarness(3)
	for i := 0; i < 5; i++ {
		addRenderable(t, h, mgl32.Vec3{float32(i), 0, 0}, i != 2)
	}
	// an entity without a mesh keeps its slot but draws nothing
	orphan := h.world.CreateEntity()
	require.NoError(t, h.world.Add(orphan, ecs.NewTransform(mgl32.Vec3{9, 9, 9})))
	require.NoError(t, h.world.Add(orphan, ecs.NewRender(999, 0)))
	addRenderable(t, h, mgl32.Vec3{6, 0, 0}, true)

	index := BuildDrawIndex(h.world, h.catalogue, catalogue.NoResource, 256)
	require.Equal(t, 7, index.Len())
	assert.Equal(t, uint64(7*256), index.BufferSize())

	calls := index.DrawCalls()
	require.Len(t, calls, 6)
	for i, entry := range index.Entries {
		assert.Equal(t, i, entry.Binding)
		assert.Equal(t, uint32(i)*256, entry.Offset)
	}
	assert.Equal(t, uint32(6*256), calls[5].Offset)

	buf := index.FillUniforms(nil, h.world, UniformBlock{})
	for _, call := range calls {
		entity := index.Entries[call.Binding].Entity
		transform, _ := ecs.Get[ecs.Transform](h.world, entity)
		x := gomath.Float32frombits(binary.LittleEndian.Uint32(buf[call.Offset+12*4:]))
		assert.Equal(t, transform.Position.X(), x, "binding %d", call.Binding)
	}

	drawn, hidden := index.Counts()
	assert.Equal(t, 5, drawn)
	assert.Equal(t, 1, hidden)
}

func TestEmptyDrawIndexKeepsOneBlock(t *testing.T) {
	index := BuildDrawIndex(ecs.NewWorld(), catalogue.New(&fakeAllocator{}, fakeSource{}, nil), catalogue.NoResource, 64)
	assert.Equal(t, 0, index.Len())
	assert.Equal(t, uint64(256), index.BufferSize())
	assert.Empty(t, index.DrawCalls())
}

func TestInitializeAndFrame(t *testing.T) {
	h := newHarness(3)
	addRenderable(t, h, mgl32.Vec3{1, 0, 0}, true)
	require.NoError(t, h.renderer.Initialize())
	assert.Equal(t, PresentationReady, h.renderer.State())
	assert.NotEqual(t, catalogue.NoResource, h.renderer.DefaultTexture())
	assert.Equal(t, 1, h.device.bindings)
	assert.Equal(t, 1, h.device.recordings)

	for i := 0; i < 4; i++ {
		require.NoError(t, h.renderer.RequestFrame())
	}
	assert.Equal(t, 4, h.sim.updates)
	assert.Empty(t, h.device.violations)
	// no structural change, no rebuild of bindings
	assert.Equal(t, 1, h.device.bindings)
	assert.Len(t, h.device.uniforms, 3)

	addRenderable(t, h, mgl32.Vec3{2, 0, 0}, true)
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, 2, h.device.bindings)
	assert.Equal(t, 2, h.renderer.Index().Len())

	assert.ErrorIs(t, h.renderer.Initialize(), ErrInvalidTransition)
}

func TestRequestFrameBeforeInitialize(t *testing.T) {
	h := newHarness(2)
	assert.Error(t, h.renderer.RequestFrame())
}

func TestDefaultTextureFallback(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())

	e := h.renderer.SpawnFromModel("crate.obj", "", mgl32.Vec3{})
	require.NotEqual(t, ecs.InvalidEntity, e)
	require.NoError(t, h.renderer.RequestFrame())

	entry := h.device.lastIndex.Entries[0]
	assert.Equal(t, e, entry.Entity)
	assert.Equal(t, h.renderer.DefaultTexture(), entry.Texture)
	assert.NotNil(t, h.catalogue.Texture(entry.Texture))

	missing := h.renderer.SpawnFromModel("crate.obj", "missing.png", mgl32.Vec3{})
	require.NoError(t, h.renderer.RequestFrame())
	assert.False(t, h.world.Has(missing, ecs.KindTexture))
	assert.Equal(t, h.renderer.DefaultTexture(), h.device.lastIndex.Entries[1].Texture)
}

func TestRebuildKeepsDrawCounts(t *testing.T) {
	h := newHarness(3)
	for i := 0; i < 4; i++ {
		addRenderable(t, h, mgl32.Vec3{float32(i), 0, 0}, i%2 == 0)
	}
	require.NoError(t, h.renderer.Initialize())
	require.NoError(t, h.renderer.RequestFrame())
	before := h.renderer.Stats()

	require.NoError(t, h.renderer.RecreatePresentation())
	assert.Equal(t, PresentationReady, h.renderer.State())
	assert.Equal(t, 1, h.device.rebuilds)
	require.NoError(t, h.renderer.RequestFrame())

	after := h.renderer.Stats()
	assert.Equal(t, before.Drawn, after.Drawn)
	assert.Equal(t, before.Hidden, after.Hidden)
	assert.Equal(t, 2, after.Drawn)
	assert.Equal(t, 2, after.Hidden)
	assert.Equal(t, 2, h.device.recordings)
}

func TestVisibilityChangeRerecords(t *testing.T) {
	h := newHarness(2)
	e := addRenderable(t, h, mgl32.Vec3{}, true)
	require.NoError(t, h.renderer.Initialize())
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, 1, h.renderer.Stats().Drawn)
	recordings := h.device.recordings

	require.True(t, h.world.SetVisible(e, false))
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, recordings+1, h.device.recordings)
	assert.Equal(t, 0, h.renderer.Stats().Drawn)
	assert.Equal(t, 1, h.renderer.Stats().Hidden)
}

func TestStaleChainRebuildsOnNextFrame(t *testing.T) {
	h := newHarness(2)
	addRenderable(t, h, mgl32.Vec3{}, true)
	require.NoError(t, h.renderer.Initialize())

	h.device.staleAcquire = 1
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, 1, h.device.rebuilds)
	assert.Equal(t, PresentationReady, h.renderer.State())

	h.renderer.MarkResized()
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, 2, h.device.rebuilds)
}

func TestMinimizedWindowKeepsChainStale(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())

	h.device.minimized = true
	h.device.stalePresent = 1
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, PresentationStale, h.renderer.State())
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, PresentationStale, h.renderer.State())

	h.device.minimized = false
	require.NoError(t, h.renderer.RequestFrame())
	assert.Equal(t, PresentationReady, h.renderer.State())
}

func TestSpawnFromModel(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())

	first := h.renderer.SpawnFromModel("crate.obj", "crate.png", mgl32.Vec3{1, 0, 0})
	second := h.renderer.SpawnFromModel("crate.obj", "crate.png", mgl32.Vec3{1, 0, 0})
	require.NotEqual(t, ecs.InvalidEntity, first)

	t1, _ := ecs.Get[ecs.Transform](h.world, first)
	t2, _ := ecs.Get[ecs.Transform](h.world, second)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, t1.Position)
	assert.InDelta(t, 1.2, t2.Position.X(), 1e-6)
	assert.InDelta(t, 0.2, t2.Position.Z(), 1e-6)

	mesh, ok := ecs.Get[ecs.Mesh](h.world, first)
	require.True(t, ok)
	assert.Equal(t, "crate.obj", mesh.ModelPath)
	tex1, _ := ecs.Get[ecs.Texture](h.world, first)
	tex2, _ := ecs.Get[ecs.Texture](h.world, second)
	assert.Equal(t, tex1.TextureResourceID, tex2.TextureResourceID)
	render, _ := ecs.Get[ecs.Render](h.world, first)
	assert.Equal(t, tex1.TextureResourceID, render.TextureResourceID)

	assert.Equal(t, "crate", h.renderer.EntityName(first))
	assert.True(t, h.names.dirty)

	assert.Equal(t, ecs.InvalidEntity, h.renderer.SpawnFromModel("missing.obj", "", mgl32.Vec3{}))
	assert.Equal(t, ecs.InvalidEntity, h.renderer.SpawnFromModel("empty.obj", "", mgl32.Vec3{}))
}

func TestSpawnModelUsesMaterials(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())

	entities := h.renderer.SpawnModel("house.obj", mgl32.Vec3{0, 1, 0})
	require.Len(t, entities, 3)

	paths := make([]string, 0, 3)
	for i, e := range entities {
		transform, _ := ecs.Get[ecs.Transform](h.world, e)
		assert.Equal(t, mgl32.Vec3{2 * float32(i), 1, 0}, transform.Position)
		mesh, _ := ecs.Get[ecs.Mesh](h.world, e)
		assert.Equal(t, i, mesh.MeshIndex)
		tex, ok := ecs.Get[ecs.Texture](h.world, e)
		require.True(t, ok)
		paths = append(paths, tex.TexturePath)
	}
	assert.Equal(t, []string{"crate.png", "rock.png", "crate.png"}, paths)
	assert.Equal(t, "roof", h.renderer.EntityName(entities[1]))
}

func TestDestroyEntityReleasesUnreferenced(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())

	a := h.renderer.SpawnFromModel("crate.obj", "grass.png", mgl32.Vec3{})
	b := h.renderer.SpawnFromModel("crate.obj", "grass.png", mgl32.Vec3{})
	h.renderer.Select(a, false)
	textures := h.catalogue.TextureCount()
	meshes := h.catalogue.MeshCount()

	require.NoError(t, h.renderer.DestroyEntity(a))
	assert.False(t, h.renderer.IsSelected(a))
	assert.Equal(t, meshes-1, h.catalogue.MeshCount())
	assert.Equal(t, textures, h.catalogue.TextureCount())

	require.NoError(t, h.renderer.DestroyEntity(b))
	assert.Equal(t, textures-1, h.catalogue.TextureCount())
	assert.NotNil(t, h.catalogue.Texture(h.renderer.DefaultTexture()))
	_, ok := h.catalogue.TextureHandle("grass.png")
	assert.False(t, ok)

	assert.ErrorIs(t, h.renderer.DestroyEntity(b), ecs.ErrInvalidEntity)
}

func TestReloadTexture(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())
	e := h.renderer.SpawnFromModel("crate.obj", "rock.png", mgl32.Vec3{})
	require.NoError(t, h.renderer.RequestFrame())
	bindings := h.device.bindings

	old, ok := h.catalogue.TextureHandle("rock.png")
	require.True(t, ok)
	h.renderer.QueueTextureReload("rock.png")
	h.renderer.QueueTextureReload("rock.png")
	h.renderer.QueueTextureReload("never-loaded.png")
	require.NoError(t, h.renderer.RequestFrame())

	fresh, ok := h.catalogue.TextureHandle("rock.png")
	require.True(t, ok)
	assert.NotEqual(t, old, fresh)
	assert.Nil(t, h.catalogue.Texture(old))

	tex, _ := ecs.Get[ecs.Texture](h.world, e)
	render, _ := ecs.Get[ecs.Render](h.world, e)
	assert.Equal(t, uint32(fresh), tex.TextureResourceID)
	assert.Equal(t, uint32(fresh), render.TextureResourceID)
	assert.Equal(t, bindings+1, h.device.bindings)
}

func TestCollectGarbage(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())
	h.renderer.SpawnFromModel("crate.obj", "crate.png", mgl32.Vec3{})
	h.renderer.SpawnFromModel("crate.obj", "rock.png", mgl32.Vec3{})

	h.world.Clear()
	require.NoError(t, h.renderer.CollectGarbage())
	assert.Equal(t, 0, h.catalogue.MeshCount())
	assert.Equal(t, 1, h.catalogue.TextureCount())
	assert.NotNil(t, h.catalogue.Texture(h.renderer.DefaultTexture()))
}

func TestSelection(t *testing.T) {
	h := newHarness(2)
	a := addRenderable(t, h, mgl32.Vec3{}, true)
	b := addRenderable(t, h, mgl32.Vec3{}, true)

	h.renderer.Select(b, false)
	h.renderer.Select(a, true)
	assert.Equal(t, []ecs.Entity{a, b}, h.renderer.Selection())

	h.renderer.Select(a, false)
	assert.Equal(t, []ecs.Entity{a}, h.renderer.Selection())

	h.renderer.Select(ecs.Entity(99), true)
	assert.Equal(t, []ecs.Entity{a}, h.renderer.Selection())

	h.renderer.Deselect(a)
	assert.Empty(t, h.renderer.Selection())
	h.renderer.Select(b, false)
	h.renderer.ClearSelection()
	assert.False(t, h.renderer.IsSelected(b))
}

func TestEntityNames(t *testing.T) {
	h := newHarness(2)
	a := addRenderable(t, h, mgl32.Vec3{}, true)
	b := addRenderable(t, h, mgl32.Vec3{}, true)
	h.renderer.SetEntityName(a, "Lamp")

	names := h.renderer.EntityNames()
	assert.Equal(t, "Lamp", names[a])
	assert.Equal(t, "Entity_2", names[b])
}

func TestShutdown(t *testing.T) {
	h := newHarness(2)
	require.NoError(t, h.renderer.Initialize())
	h.renderer.SpawnFromModel("crate.obj", "crate.png", mgl32.Vec3{})

	require.NoError(t, h.renderer.Shutdown())
	assert.True(t, h.device.shutdown)
	assert.Equal(t, PresentationTornDown, h.renderer.State())
	assert.Equal(t, 0, h.catalogue.MeshCount())
	assert.Equal(t, 3, h.alloc.destroyed)

	assert.ErrorIs(t, h.renderer.Shutdown(), core.ErrAlreadyCleaned)
	assert.ErrorIs(t, h.renderer.RequestFrame(), core.ErrAlreadyCleaned)
}
