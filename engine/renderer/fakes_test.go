package renderer

import (
	"fmt"
	"image"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/assets"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
	"github.com/spaghettifunk/anima-editor/engine/math"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

type fakeBuffers struct{ destroyed *int }

func (f *fakeBuffers) Destroy() { *f.destroyed++ }

type fakeAllocator struct {
	destroyed int
}

func (a *fakeAllocator) CreateMeshBuffers(vertices []math.Vertex, indices []uint32) (catalogue.MeshBuffers, error) {
	return &fakeBuffers{destroyed: &a.destroyed}, nil
}

func (a *fakeAllocator) CreateTextureImage(img *image.RGBA) (catalogue.TextureImage, error) {
	return &fakeBuffers{destroyed: &a.destroyed}, nil
}

type fakeSource map[string]*image.RGBA

func (s fakeSource) Load(path string) (*image.RGBA, error) {
	img, ok := s[path]
	if !ok {
		return nil, errors.Wrapf(core.ErrInvalidImage, "no image at %s", path)
	}
	return img, nil
}

// fakeDevice records the calls made by the scheduler and the renderer and
// flags any submission to an image whose previous submission is still pending.
type fakeDevice struct {
	images    int
	alignment uint32
	width     uint32
	height    uint32

	next         uint32
	acquireOrder []uint32
	staleAcquire int
	stalePresent int
	minimized    bool

	pending    map[int]bool
	imageSlot  map[uint32]int
	violations []string

	calls      []string
	bindings   int
	recordings int
	rebuilds   int
	waitIdles  int
	shutdown   bool
	lastIndex  *DrawIndex
	lastRecord []DrawCall
	uniforms   map[uint32][]byte
}

func newFakeDevice(images int) *fakeDevice {
	return &fakeDevice{
		images:    images,
		alignment: 256,
		width:     800,
		height:    600,
		pending:   make(map[int]bool),
		imageSlot: make(map[uint32]int),
		uniforms:  make(map[uint32][]byte),
	}
}

func (d *fakeDevice) WaitForSlot(slot int) error {
	d.calls = append(d.calls, fmt.Sprintf("wait %d", slot))
	d.pending[slot] = false
	return nil
}

func (d *fakeDevice) AcquireImage(slot int) (uint32, error) {
	if d.staleAcquire > 0 {
		d.staleAcquire--
		return 0, core.ErrPresentationStale
	}
	var image uint32
	if len(d.acquireOrder) > 0 {
		image = d.acquireOrder[0]
		d.acquireOrder = d.acquireOrder[1:]
	} else {
		image = d.next
		d.next = (d.next + 1) % uint32(d.images)
	}
	d.calls = append(d.calls, fmt.Sprintf("acquire %d", image))
	return image, nil
}

func (d *fakeDevice) Submit(slot int, image uint32) error {
	if owner, ok := d.imageSlot[image]; ok && d.pending[owner] {
		d.violations = append(d.violations, fmt.Sprintf("image %d submitted by slot %d while slot %d pending", image, slot, owner))
	}
	d.pending[slot] = true
	d.imageSlot[image] = slot
	d.calls = append(d.calls, fmt.Sprintf("submit %d %d", slot, image))
	return nil
}

func (d *fakeDevice) Present(image uint32) error {
	d.calls = append(d.calls, fmt.Sprintf("present %d", image))
	if d.stalePresent > 0 {
		d.stalePresent--
		return core.ErrPresentationStale
	}
	return nil
}

func (d *fakeDevice) MinUniformAlignment() uint32 { return d.alignment }
func (d *fakeDevice) ImageCount() int             { return d.images }
func (d *fakeDevice) Extent() (uint32, uint32)    { return d.width, d.height }

func (d *fakeDevice) BuildBindings(index *DrawIndex, res Resources) error {
	d.bindings++
	d.lastIndex = index
	return nil
}

func (d *fakeDevice) RecordCommands(index *DrawIndex, res Resources) error {
	d.recordings++
	d.lastRecord = index.DrawCalls()
	return nil
}

func (d *fakeDevice) WriteUniforms(image uint32, data []byte) error {
	d.uniforms[image] = append([]byte(nil), data...)
	return nil
}

func (d *fakeDevice) Rebuild() error {
	if d.minimized {
		return core.ErrWindowMinimized
	}
	d.rebuilds++
	for k := range d.pending {
		d.pending[k] = false
	}
	d.next = 0
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdles++
	for k := range d.pending {
		d.pending[k] = false
	}
	return nil
}

func (d *fakeDevice) Shutdown() error {
	d.shutdown = true
	return nil
}

type fakeSimulation struct {
	updates int
	elapsed float64
}

func (s *fakeSimulation) Update(dt float64) {
	s.updates++
	s.elapsed += dt
}

func (s *fakeSimulation) View() mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

func (s *fakeSimulation) FOV() float32 { return 70 }

type fakeNames struct {
	names map[ecs.Entity]string
	dirty bool
}

func (n *fakeNames) SetEntityName(e ecs.Entity, name string) { n.names[e] = name }
func (n *fakeNames) RemoveEntityName(e ecs.Entity)           { delete(n.names, e) }
func (n *fakeNames) MarkDirty()                              { n.dirty = true }

func (n *fakeNames) EntityName(e ecs.Entity) string {
	if name, ok := n.names[e]; ok {
		return name
	}
	return fmt.Sprintf("Entity_%d", e)
}

type fakeModels map[string]*assets.Model

func (m fakeModels) LoadModel(path string) (*assets.Model, error) {
	model, ok := m[path]
	if !ok {
		return nil, errors.Newf("no model at %s", path)
	}
	return model, nil
}

func triangleMesh(name string, material int) assets.MeshData {
	return assets.MeshData{
		Name:          name,
		Vertices:      make([]math.Vertex, 3),
		Indices:       []uint32{0, 1, 2},
		MaterialIndex: material,
	}
}

type harness struct {
	renderer  *Renderer
	device    *fakeDevice
	world     *ecs.World
	catalogue *catalogue.Catalogue
	alloc     *fakeAllocator
	sim       *fakeSimulation
	names     *fakeNames
}

func newHarness(images int) *harness {
	h := &harness{
		device: newFakeDevice(images),
		world:  ecs.NewWorld(),
		alloc:  &fakeAllocator{},
		sim:    &fakeSimulation{},
		names:  &fakeNames{names: make(map[ecs.Entity]string)},
	}
	src := fakeSource{
		"crate.png": image.NewRGBA(image.Rect(0, 0, 4, 4)),
		"rock.png":  image.NewRGBA(image.Rect(0, 0, 2, 2)),
		"grass.png": image.NewRGBA(image.Rect(0, 0, 8, 8)),
	}
	logger := core.NewDiscardLogger()
	h.catalogue = catalogue.New(h.alloc, src, logger)
	models := fakeModels{
		"crate.obj": {Path: "crate.obj", Name: "crate", Meshes: []assets.MeshData{triangleMesh("crate", -1)}},
		"house.obj": {
			Path:   "house.obj",
			Name:   "house",
			Meshes: []assets.MeshData{triangleMesh("walls", 0), triangleMesh("roof", 1), triangleMesh("door", 7)},
			Materials: []assets.Material{
				{Name: "brick", DiffuseTexture: "crate.png"},
				{Name: "tiles", DiffuseTexture: "rock.png"},
			},
		},
		"empty.obj": {Path: "empty.obj", Name: "empty"},
	}
	h.renderer = New(DefaultConfig(), Options{
		Device:     h.device,
		Catalogue:  h.catalogue,
		World:      h.world,
		Simulation: h.sim,
		Models:     models,
		Names:      h.names,
		Logger:     logger,
	})
	return h
}
