package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/anima-editor/engine/assets"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
	"github.com/spaghettifunk/anima-editor/engine/math"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

// Simulation is the world step run once per frame, plus the camera it drives.
type Simulation interface {
	Update(deltaTime float64)
	View() mgl32.Mat4
	FOV() float32
}

// EntityNames is the display name table kept by the scene.
type EntityNames interface {
	SetEntityName(e ecs.Entity, name string)
	EntityName(e ecs.Entity) string
	RemoveEntityName(e ecs.Entity)
	MarkDirty()
}

// ModelLoader turns files on disk into CPU side mesh records.
type ModelLoader interface {
	LoadModel(path string) (*assets.Model, error)
}

type Config struct {
	FramesInFlight int
	Near           float32
	Far            float32
	LightPosition  mgl32.Vec3
	// DefaultTexture is used for entities without a texture. A generated
	// checkerboard is used when empty or undecodable.
	DefaultTexture string
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		Near:           0.1,
		Far:            1000,
		LightPosition:  mgl32.Vec3{1, 1, 10},
	}
}

type Options struct {
	Device     Device
	Catalogue  *catalogue.Catalogue
	World      *ecs.World
	Simulation Simulation
	Models     ModelLoader
	Names      EntityNames
	Logger     *core.Logger
}

type Stats struct {
	Entities int
	Drawn    int
	Hidden   int
	Meshes   int
	Textures int
}

// Renderer is the editor facing side of the rendering core. Every method must
// be called from the thread that owns the window.
type Renderer struct {
	cfg       Config
	device    Device
	catalogue *catalogue.Catalogue
	world     *ecs.World
	sim       Simulation
	models    ModelLoader
	names     EntityNames
	logger    *core.Logger

	presentation   Presentation
	scheduler      *FrameScheduler
	index          *DrawIndex
	defaultTexture catalogue.Handle
	uniforms       []byte
	clock          *core.Clock

	selection      map[ecs.Entity]struct{}
	spawnOffset    mgl32.Vec3
	pendingReloads []string
}

func New(cfg Config, opts Options) *Renderer {
	if cfg.FramesInFlight < 1 {
		cfg.FramesInFlight = 2
	}
	if cfg.Far <= cfg.Near {
		cfg.Near, cfg.Far = 0.1, 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = core.DefaultLogger()
	}
	return &Renderer{
		cfg:       cfg,
		device:    opts.Device,
		catalogue: opts.Catalogue,
		world:     opts.World,
		sim:       opts.Simulation,
		models:    opts.Models,
		names:     opts.Names,
		logger:    logger,
		clock:     core.NewClock(),
		selection: make(map[ecs.Entity]struct{}),
	}
}

// Initialize uploads the default texture, builds the draw bindings and records
// the command buffers. The device must already be created.
func (r *Renderer) Initialize() error {
	if r.presentation.State() != PresentationUninitialized {
		return errors.Wrapf(ErrInvalidTransition, "initialize from %s", r.presentation.State())
	}
	if r.cfg.DefaultTexture != "" {
		r.defaultTexture = r.catalogue.UploadTexture(r.cfg.DefaultTexture)
	}
	if r.defaultTexture == catalogue.NoResource {
		r.defaultTexture = r.catalogue.UploadTextureImage(assets.DefaultTextureKey, assets.DefaultTexture())
	}
	if r.defaultTexture == catalogue.NoResource {
		err := errors.New("could not upload the default texture")
		r.logger.Error(err.Error())
		return err
	}

	r.scheduler = NewFrameScheduler(r.device, &r.presentation, r.cfg.FramesInFlight, r.device.ImageCount(), r.logger)
	if err := r.syncIndex(true); err != nil {
		return err
	}
	if err := r.presentation.MarkReady(); err != nil {
		return err
	}
	r.clock.Start()
	r.logger.Info("renderer initialized with %d frames in flight over %d images", r.cfg.FramesInFlight, r.device.ImageCount())
	return nil
}

func (r *Renderer) State() PresentationState {
	return r.presentation.State()
}

func (r *Renderer) DefaultTexture() catalogue.Handle {
	return r.defaultTexture
}

func (r *Renderer) Catalogue() *catalogue.Catalogue {
	return r.catalogue
}

// Index returns the draw index used by the last recorded frame.
func (r *Renderer) Index() *DrawIndex {
	return r.index
}

// MarkResized makes the next presented frame trigger a rebuild.
func (r *Renderer) MarkResized() {
	if r.scheduler != nil {
		r.scheduler.MarkResized()
	}
}

// RequestFrame runs one iteration of the frame loop, rebuilding the
// presentation chain first or afterwards when it is stale.
func (r *Renderer) RequestFrame() error {
	switch r.presentation.State() {
	case PresentationTornDown:
		return core.ErrAlreadyCleaned
	case PresentationUninitialized:
		return errors.New("renderer not initialized")
	case PresentationStale:
		if err := r.RecreatePresentation(); err != nil {
			if errors.Is(err, core.ErrWindowMinimized) {
				return nil
			}
			return err
		}
	}

	if err := r.processReloads(); err != nil {
		return err
	}
	if err := r.syncIndex(false); err != nil {
		return err
	}

	if _, err := r.scheduler.Frame(r.prepareFrame); err != nil {
		r.logger.Error("frame failed: %s", err)
		return err
	}

	if r.presentation.State() == PresentationStale {
		if err := r.RecreatePresentation(); err != nil && !errors.Is(err, core.ErrWindowMinimized) {
			return err
		}
	}
	return nil
}

func (r *Renderer) prepareFrame(image uint32) error {
	r.clock.Update()
	dt := r.clock.Elapsed()
	r.clock.Start()

	shared := UniformBlock{
		View:     mgl32.Ident4(),
		Proj:     mgl32.Ident4(),
		LightPos: r.cfg.LightPosition,
	}
	fov := float32(70)
	if r.sim != nil {
		r.sim.Update(dt)
		shared.View = r.sim.View()
		fov = r.sim.FOV()
	}
	width, height := r.device.Extent()
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	shared.Proj = math.Perspective(fov, aspect, r.cfg.Near, r.cfg.Far)

	r.uniforms = r.index.FillUniforms(r.uniforms, r.world, shared)
	return r.device.WriteUniforms(image, r.uniforms)
}

// syncIndex rebuilds the draw index, the descriptor bindings and the recorded
// commands when the world changed since the last build.
func (r *Renderer) syncIndex(force bool) error {
	if !force && r.index != nil && r.index.Version == r.world.Version() {
		return nil
	}
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before rebuilding bindings")
	}
	index := BuildDrawIndex(r.world, r.catalogue, r.defaultTexture, r.device.MinUniformAlignment())
	if err := r.device.BuildBindings(index, r.catalogue); err != nil {
		err = errors.Wrap(err, "build descriptor bindings")
		r.logger.Error(err.Error())
		return err
	}
	if err := r.device.RecordCommands(index, r.catalogue); err != nil {
		err = errors.Wrap(err, "record command buffers")
		r.logger.Error(err.Error())
		return err
	}
	r.index = index
	drawn, hidden := index.Counts()
	r.logger.Debug("draw index rebuilt: %d entities, %d drawn, %d hidden", index.Len(), drawn, hidden)
	return nil
}

// RecreatePresentation waits for the device, rebuilds every size dependent
// object and the per entity bindings, then re-records the command buffers.
// While the window is minimized it returns core.ErrWindowMinimized and the
// chain stays stale.
func (r *Renderer) RecreatePresentation() error {
	switch r.presentation.State() {
	case PresentationTornDown:
		return core.ErrAlreadyCleaned
	case PresentationUninitialized:
		return errors.New("renderer not initialized")
	}
	r.presentation.MarkStale()

	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before rebuild")
	}
	if err := r.device.Rebuild(); err != nil {
		if errors.Is(err, core.ErrWindowMinimized) {
			return err
		}
		err = errors.Wrap(err, "rebuild presentation")
		r.logger.Error(err.Error())
		return err
	}
	r.scheduler.Reset(r.device.ImageCount())
	if err := r.syncIndex(true); err != nil {
		return err
	}
	if err := r.presentation.MarkReady(); err != nil {
		return err
	}
	width, height := r.device.Extent()
	r.logger.Debug("presentation rebuilt at %dx%d with %d images", width, height, r.device.ImageCount())
	return nil
}

// QueueTextureReload schedules a re-upload of path at the next frame boundary.
func (r *Renderer) QueueTextureReload(path string) {
	if slices.Contains(r.pendingReloads, path) {
		return
	}
	r.pendingReloads = append(r.pendingReloads, path)
}

func (r *Renderer) processReloads() error {
	if len(r.pendingReloads) == 0 {
		return nil
	}
	paths := r.pendingReloads
	r.pendingReloads = nil
	for _, p := range paths {
		if err := r.ReloadTexture(p); err != nil {
			return err
		}
	}
	return nil
}

// ReloadTexture re-uploads a cached texture and points every entity using it at
// the new handle. Paths that were never uploaded are ignored.
func (r *Renderer) ReloadTexture(path string) error {
	old, ok := r.catalogue.TextureHandle(path)
	if !ok {
		return nil
	}
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before texture reload")
	}
	r.catalogue.ReleaseTexture(old)
	fresh := r.catalogue.UploadTexture(path)
	if old == r.defaultTexture {
		r.defaultTexture = fresh
		if fresh == catalogue.NoResource {
			r.defaultTexture = r.catalogue.UploadTextureImage(assets.DefaultTextureKey, assets.DefaultTexture())
		}
	}

	for _, e := range r.world.All() {
		if tex, ok := ecs.Get[ecs.Texture](r.world, e); ok && (tex.TexturePath == path || catalogue.Handle(tex.TextureResourceID) == old) {
			tex.TextureResourceID = uint32(fresh)
		}
		if render, ok := ecs.Get[ecs.Render](r.world, e); ok && catalogue.Handle(render.TextureResourceID) == old {
			render.TextureResourceID = uint32(fresh)
		}
	}
	r.world.MarkChanged()
	r.logger.Info("reloaded texture %s (%d -> %d)", path, old, fresh)
	return nil
}

// DestroyEntity removes e and releases the meshes and textures that no other
// entity references.
func (r *Renderer) DestroyEntity(e ecs.Entity) error {
	if !r.world.IsValid(e) {
		return errors.Wrapf(ecs.ErrInvalidEntity, "destroy entity %d", e)
	}
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before destroying entity")
	}
	meshes, textures := entityHandles(r.world, e)
	r.world.DestroyEntity(e)
	delete(r.selection, e)
	if r.names != nil {
		r.names.RemoveEntityName(e)
		r.names.MarkDirty()
	}

	usedMeshes, usedTextures := referencedHandles(r.world)
	for _, h := range meshes {
		if _, used := usedMeshes[h]; !used {
			r.catalogue.ReleaseMesh(h)
		}
	}
	for _, h := range textures {
		if _, used := usedTextures[h]; !used && h != r.defaultTexture {
			r.catalogue.ReleaseTexture(h)
		}
	}
	return nil
}

// CollectGarbage releases every catalogue resource no live entity references.
// Used after a scene was replaced.
func (r *Renderer) CollectGarbage() error {
	if r.presentation.State() == PresentationTornDown {
		return core.ErrAlreadyCleaned
	}
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before releasing resources")
	}
	meshes, textures := ReleaseUnreferenced(r.world, r.catalogue, r.defaultTexture)
	if meshes+textures > 0 {
		r.logger.Debug("released %d meshes and %d textures", meshes, textures)
	}
	return nil
}

// ReleaseUnreferenced frees every mesh and texture of cat that no entity of w
// references, except the handles in keep. The caller guarantees the device is idle.
func ReleaseUnreferenced(w *ecs.World, cat *catalogue.Catalogue, keep ...catalogue.Handle) (meshes, textures int) {
	usedMeshes, usedTextures := referencedHandles(w)
	for _, h := range cat.MeshHandles() {
		if _, used := usedMeshes[h]; !used {
			cat.ReleaseMesh(h)
			meshes++
		}
	}
	for _, h := range cat.TextureHandles() {
		if _, used := usedTextures[h]; used || slices.Contains(keep, h) {
			continue
		}
		cat.ReleaseTexture(h)
		textures++
	}
	return meshes, textures
}

func entityHandles(w *ecs.World, e ecs.Entity) ([]catalogue.Handle, []catalogue.Handle) {
	meshes := make(map[catalogue.Handle]struct{})
	textures := make(map[catalogue.Handle]struct{})
	if m, ok := ecs.Get[ecs.Mesh](w, e); ok {
		meshes[catalogue.Handle(m.MeshResourceID)] = struct{}{}
	}
	if t, ok := ecs.Get[ecs.Texture](w, e); ok {
		textures[catalogue.Handle(t.TextureResourceID)] = struct{}{}
	}
	if rc, ok := ecs.Get[ecs.Render](w, e); ok {
		meshes[catalogue.Handle(rc.MeshResourceID)] = struct{}{}
		textures[catalogue.Handle(rc.TextureResourceID)] = struct{}{}
	}
	delete(meshes, catalogue.NoResource)
	delete(textures, catalogue.NoResource)
	return handleList(meshes), handleList(textures)
}

func handleList(set map[catalogue.Handle]struct{}) []catalogue.Handle {
	out := make([]catalogue.Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func referencedHandles(w *ecs.World) (map[catalogue.Handle]struct{}, map[catalogue.Handle]struct{}) {
	meshes := make(map[catalogue.Handle]struct{})
	textures := make(map[catalogue.Handle]struct{})
	for _, e := range w.All() {
		m, t := entityHandles(w, e)
		for _, h := range m {
			meshes[h] = struct{}{}
		}
		for _, h := range t {
			textures[h] = struct{}{}
		}
	}
	return meshes, textures
}

// Select adds e to the selection, replacing it unless additive is set.
func (r *Renderer) Select(e ecs.Entity, additive bool) {
	if !additive {
		r.selection = make(map[ecs.Entity]struct{})
	}
	if r.world.IsValid(e) {
		r.selection[e] = struct{}{}
	}
}

func (r *Renderer) Deselect(e ecs.Entity) {
	delete(r.selection, e)
}

func (r *Renderer) ClearSelection() {
	r.selection = make(map[ecs.Entity]struct{})
}

func (r *Renderer) IsSelected(e ecs.Entity) bool {
	_, ok := r.selection[e]
	return ok
}

// Selection returns the selected entities that are still alive, in id order.
func (r *Renderer) Selection() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(r.selection))
	for e := range r.selection {
		if r.world.IsValid(e) {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}

func (r *Renderer) EntityName(e ecs.Entity) string {
	if r.names == nil {
		return ""
	}
	return r.names.EntityName(e)
}

func (r *Renderer) SetEntityName(e ecs.Entity, name string) {
	if r.names != nil {
		r.names.SetEntityName(e, name)
	}
}

// EntityNames returns the display name of every live entity.
func (r *Renderer) EntityNames() map[ecs.Entity]string {
	out := make(map[ecs.Entity]string, r.world.Count())
	for _, e := range r.world.All() {
		out[e] = r.EntityName(e)
	}
	return out
}

func (r *Renderer) Stats() Stats {
	s := Stats{
		Entities: r.world.Count(),
		Meshes:   r.catalogue.MeshCount(),
		Textures: r.catalogue.TextureCount(),
	}
	if r.index != nil {
		s.Drawn, s.Hidden = r.index.Counts()
	}
	return s
}

// Shutdown waits for the device, releases the catalogue and destroys the device.
func (r *Renderer) Shutdown() error {
	if r.presentation.State() == PresentationTornDown {
		return core.ErrAlreadyCleaned
	}
	if err := r.device.WaitIdle(); err != nil {
		r.logger.Warn("wait idle on shutdown: %s", err)
	}
	if err := r.catalogue.Cleanup(); err != nil && !errors.Is(err, core.ErrAlreadyCleaned) {
		return err
	}
	r.presentation.TearDown()
	if err := r.device.Shutdown(); err != nil {
		return errors.Wrap(err, "shutdown device")
	}
	r.logger.Info("renderer shut down")
	return nil
}
