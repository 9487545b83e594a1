package scene

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-editor/engine/assets"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

// Assets loads the CPU side data referenced by saved meshes.
type Assets interface {
	LoadModel(path string) (*assets.Model, error)
	LoadHeightmap(path string, heightScale, gridSpacing, heightOffset float32) (*assets.Terrain, error)
}

type Info struct {
	ID       string
	Name     string
	Path     string
	Loaded   bool
	Dirty    bool
	Entities int
}

// Manager owns the current scene: its metadata, the entity name table and the
// save and load paths into the world.
type Manager struct {
	world     *ecs.World
	catalogue *catalogue.Catalogue
	assets    Assets
	logger    *core.Logger

	id     uuid.UUID
	name   string
	path   string
	loaded bool
	dirty  bool
	names  map[ecs.Entity]string

	terrain       *assets.Terrain
	terrainEntity ecs.Entity

	onLoad    func()
	onUnload  func()
	lastError error
}

func NewManager(world *ecs.World, cat *catalogue.Catalogue, a Assets, logger *core.Logger) *Manager {
	if logger == nil {
		logger = core.DefaultLogger()
	}
	return &Manager{
		world:     world,
		catalogue: cat,
		assets:    a,
		logger:    logger,
		names:     make(map[ecs.Entity]string),
	}
}

// OnLoad registers fn to run after a scene was loaded or created.
func (m *Manager) OnLoad(fn func()) {
	m.onLoad = fn
}

// OnUnload registers fn to run after the previous scene content was discarded.
func (m *Manager) OnUnload(fn func()) {
	m.onUnload = fn
}

func (m *Manager) Info() Info {
	return Info{
		ID:       m.idString(),
		Name:     m.name,
		Path:     m.path,
		Loaded:   m.loaded,
		Dirty:    m.dirty,
		Entities: m.world.Count(),
	}
}

func (m *Manager) idString() string {
	if m.id == uuid.Nil {
		return ""
	}
	return m.id.String()
}

// LastError is the failure of the last save or load, nil after a success.
func (m *Manager) LastError() error {
	return m.lastError
}

func (m *Manager) fail(err error) error {
	m.lastError = err
	m.logger.Error(err.Error())
	return err
}

// NewScene discards the current scene and starts an empty, unsaved one.
func (m *Manager) NewScene(name string) error {
	if name == "" {
		return m.fail(errors.Wrap(core.ErrInvalidScene, "scene name is empty"))
	}
	m.discard()
	m.id = uuid.New()
	m.name = name
	m.loaded = true
	m.dirty = true
	m.lastError = nil
	m.logger.Info("created scene %s", name)
	if m.onLoad != nil {
		m.onLoad()
	}
	return nil
}

// Save writes the current world to path and makes it the scene's path.
func (m *Manager) Save(path string) error {
	if path == "" {
		return m.fail(errors.New("save scene: no path given"))
	}
	if m.id == uuid.Nil {
		m.id = uuid.New()
	}
	name := m.name
	if name == "" {
		name = sceneNameFromPath(path)
	}

	doc := Snapshot(m.world, m.names, Metadata{Name: name, ID: m.id.String()})
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return m.fail(err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return m.fail(errors.Wrapf(err, "create directory for %s", path))
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return m.fail(errors.Wrapf(err, "write scene %s", path))
	}

	m.name = name
	m.path = path
	m.loaded = true
	m.dirty = false
	m.lastError = nil
	m.logger.Info("saved scene %s with %d entities to %s", name, doc.Metadata.EntityCount, path)
	return nil
}

// SaveCurrent saves to the path the scene was last loaded from or saved to.
func (m *Manager) SaveCurrent() error {
	if m.path == "" {
		return m.fail(errors.New("scene has never been saved"))
	}
	return m.Save(m.path)
}

// Validate reports whether path holds a well formed scene.
func (m *Manager) Validate(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = Decode(f)
	return err == nil
}

// Load replaces the current scene with the one stored at path. Every mesh and
// texture is uploaded again and the fresh handles replace the saved ids. On
// failure the current scene is left untouched.
func (m *Manager) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m.fail(errors.Wrapf(core.ErrSceneNotFound, "%s", path))
		}
		return m.fail(errors.Wrapf(err, "open scene %s", path))
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return m.fail(errors.Wrapf(err, "load scene %s", path))
	}

	staged := ecs.NewWorld()
	if err := doc.Build(staged); err != nil {
		return m.fail(errors.Wrapf(err, "load scene %s", path))
	}
	terrain, terrainEntity := m.uploadResources(staged)

	m.world.ReplaceWith(staged)
	m.names = doc.Names()
	m.terrain, m.terrainEntity = terrain, terrainEntity
	if m.onUnload != nil {
		m.onUnload()
	}

	m.id = uuid.Nil
	if id, err := uuid.Parse(doc.Metadata.ID); err == nil {
		m.id = id
	}
	m.name = doc.Metadata.Name
	m.path = path
	m.loaded = true
	m.dirty = false
	m.lastError = nil
	if doc.Metadata.EntityCount != len(doc.Entities) {
		m.logger.Warn("scene %s declares %d entities but holds %d", path, doc.Metadata.EntityCount, len(doc.Entities))
	}
	m.logger.Info("loaded scene %s with %d entities", m.name, m.world.Count())
	if m.onLoad != nil {
		m.onLoad()
	}
	return nil
}

// Reload loads the current scene file again, dropping unsaved changes.
func (m *Manager) Reload() error {
	if m.path == "" {
		return m.fail(errors.New("scene has never been saved"))
	}
	return m.Load(m.path)
}

// Unload empties the world and forgets the scene.
func (m *Manager) Unload() {
	if !m.loaded && m.world.Count() == 0 {
		return
	}
	m.discard()
	m.logger.Info("scene unloaded")
}

func (m *Manager) discard() {
	m.world.Clear()
	m.names = make(map[ecs.Entity]string)
	m.terrain, m.terrainEntity = nil, ecs.InvalidEntity
	m.id = uuid.Nil
	m.name = ""
	m.path = ""
	m.loaded = false
	m.dirty = false
	if m.onUnload != nil {
		m.onUnload()
	}
}

// uploadResources replaces every stored resource id in w by a fresh handle.
// Missing files leave the entity without the resource.
func (m *Manager) uploadResources(w *ecs.World) (*assets.Terrain, ecs.Entity) {
	var (
		terrain       *assets.Terrain
		terrainEntity = ecs.InvalidEntity
		models        = m.prefetchModels(w)
	)

	for _, e := range w.All() {
		render, hasRender := ecs.Get[ecs.Render](w, e)
		if hasRender {
			render.MeshResourceID = uint32(catalogue.NoResource)
			render.TextureResourceID = uint32(catalogue.NoResource)
		}

		if mesh, ok := ecs.Get[ecs.Mesh](w, e); ok {
			mesh.MeshResourceID = uint32(catalogue.NoResource)
			switch {
			case mesh.ModelPath == "":
			case assets.IsHeightmapPath(mesh.ModelPath):
				t, err := m.assets.LoadHeightmap(mesh.ModelPath, assets.TerrainHeightScale, assets.TerrainGridSpacing, assets.TerrainHeightOffset)
				if err != nil {
					m.logger.Warn("cannot regenerate terrain from %s: %s", mesh.ModelPath, err)
					break
				}
				mesh.MeshResourceID = uint32(m.catalogue.UploadMesh(t.Mesh.Vertices, t.Mesh.Indices))
				terrain, terrainEntity = t, e
			default:
				mesh.MeshResourceID = uint32(m.uploadModelMesh(models, mesh.ModelPath, mesh.MeshIndex))
			}
			if hasRender {
				render.MeshResourceID = mesh.MeshResourceID
			}
		}

		if tex, ok := ecs.Get[ecs.Texture](w, e); ok {
			tex.TextureResourceID = uint32(catalogue.NoResource)
			if tex.TexturePath != "" {
				tex.TextureResourceID = uint32(m.catalogue.UploadTexture(tex.TexturePath))
			}
			if hasRender {
				render.TextureResourceID = tex.TextureResourceID
			}
		}
	}
	w.MarkChanged()
	return terrain, terrainEntity
}

func (m *Manager) uploadModelMesh(models map[string]*assets.Model, path string, index int) catalogue.Handle {
	model, ok := models[path]
	if !ok {
		var err error
		model, err = m.assets.LoadModel(path)
		if err != nil {
			m.logger.Warn("cannot reload mesh from %s: %s", path, err)
			return catalogue.NoResource
		}
		models[path] = model
	}
	if index < 0 || index >= len(model.Meshes) {
		m.logger.Warn("model %s has no mesh %d", path, index)
		return catalogue.NoResource
	}
	data := model.Meshes[index]
	return m.catalogue.UploadMesh(data.Vertices, data.Indices)
}

// prefetchModels parses every model referenced by w on the job workers.
// Models that fail are left out and reported again by uploadModelMesh.
func (m *Manager) prefetchModels(w *ecs.World) map[string]*assets.Model {
	models := make(map[string]*assets.Model)
	seen := make(map[string]bool)
	var paths []string
	for _, e := range w.All() {
		mesh, ok := ecs.Get[ecs.Mesh](w, e)
		if !ok || mesh.ModelPath == "" || assets.IsHeightmapPath(mesh.ModelPath) {
			continue
		}
		if !seen[mesh.ModelPath] {
			seen[mesh.ModelPath] = true
			paths = append(paths, mesh.ModelPath)
		}
	}
	if len(paths) < 2 {
		return models
	}

	jobs, err := core.NewJobSystem(min(len(paths), runtime.NumCPU()), len(paths), m.logger)
	if err != nil {
		m.logger.Warn("model prefetch disabled: %s", err)
		return models
	}
	var mu sync.Mutex
	for _, path := range paths {
		jobs.Submit(core.JobTask{
			Run: func() error {
				model, err := m.assets.LoadModel(path)
				if err != nil {
					return err
				}
				mu.Lock()
				models[path] = model
				mu.Unlock()
				return nil
			},
			OnFailure: func(err error) {
				m.logger.Debug("prefetch of %s failed: %s", path, err)
			},
		})
	}
	jobs.Wait()
	jobs.Shutdown()
	return models
}

// Terrain returns the terrain regenerated by the last load and its entity.
func (m *Manager) Terrain() (*assets.Terrain, ecs.Entity) {
	return m.terrain, m.terrainEntity
}

// SetTerrain records a terrain created in the editor.
func (m *Manager) SetTerrain(t *assets.Terrain, e ecs.Entity) {
	m.terrain, m.terrainEntity = t, e
}

func (m *Manager) SetEntityName(e ecs.Entity, name string) {
	m.names[e] = name
	m.dirty = true
}

// EntityName returns the display name of e, Entity_<id> when it has none.
func (m *Manager) EntityName(e ecs.Entity) string {
	if name, ok := m.names[e]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Entity_%d", e)
}

func (m *Manager) RemoveEntityName(e ecs.Entity) {
	delete(m.names, e)
	if e == m.terrainEntity {
		m.terrain, m.terrainEntity = nil, ecs.InvalidEntity
	}
}

// EntityNames returns a copy of the name table.
func (m *Manager) EntityNames() map[ecs.Entity]string {
	out := make(map[ecs.Entity]string, len(m.names))
	for e, n := range m.names {
		out[e] = n
	}
	return out
}

func (m *Manager) MarkDirty() {
	m.dirty = true
}

func (m *Manager) MarkClean() {
	m.dirty = false
}

func (m *Manager) Dirty() bool {
	return m.dirty
}

func sceneNameFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
