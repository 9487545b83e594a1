package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/assets"
	"github.com/spaghettifunk/anima-editor/engine/ecs"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

var spawnStep = mgl32.Vec3{0.2, 0, 0.2}

// SpawnFromModel creates one entity from the first mesh of the model at path.
// Consecutive spawns are staggered so they do not overlap. Returns
// ecs.InvalidEntity when the model cannot be loaded.
func (r *Renderer) SpawnFromModel(path, texturePath string, position mgl32.Vec3) ecs.Entity {
	model, err := r.models.LoadModel(path)
	if err != nil {
		r.logger.Warn("cannot spawn %s: %s", path, err)
		return ecs.InvalidEntity
	}
	if len(model.Meshes) == 0 {
		r.logger.Warn("cannot spawn %s: model has no meshes", path)
		return ecs.InvalidEntity
	}

	e := r.createEntityFromMesh(model.Meshes[0], position.Add(r.spawnOffset))
	if mesh, ok := ecs.Get[ecs.Mesh](r.world, e); ok {
		mesh.ModelPath = path
		mesh.MeshIndex = 0
	}
	if texturePath != "" {
		r.attachTexture(e, texturePath)
	}
	r.nameEntity(e, model.Name)
	r.spawnOffset = r.spawnOffset.Add(spawnStep)

	r.logger.Info("spawned entity %d from %s", e, path)
	return e
}

// SpawnModel creates one entity per mesh of the model, spaced along X, each
// textured with its material's diffuse map.
func (r *Renderer) SpawnModel(path string, position mgl32.Vec3) []ecs.Entity {
	model, err := r.models.LoadModel(path)
	if err != nil {
		r.logger.Warn("cannot spawn %s: %s", path, err)
		return nil
	}

	entities := make([]ecs.Entity, 0, len(model.Meshes))
	for i, data := range model.Meshes {
		offset := mgl32.Vec3{2 * float32(i), 0, 0}
		e := r.createEntityFromMesh(data, position.Add(offset))
		if mesh, ok := ecs.Get[ecs.Mesh](r.world, e); ok {
			mesh.ModelPath = path
			mesh.MeshIndex = i
		}
		if tex := model.DiffuseTexture(i); tex != "" {
			r.attachTexture(e, tex)
		}
		name := data.Name
		if name == "" {
			name = model.Name
		}
		r.nameEntity(e, name)
		entities = append(entities, e)
	}
	r.logger.Info("spawned %d entities from %s", len(entities), path)
	return entities
}

// SpawnTerrain creates the terrain entity at the origin. The Mesh component
// keeps the heightmap path so saved scenes regenerate the grid on load.
func (r *Renderer) SpawnTerrain(terrain *assets.Terrain, texturePath string) ecs.Entity {
	if terrain == nil || len(terrain.Mesh.Vertices) == 0 || len(terrain.Mesh.Indices) == 0 {
		r.logger.Warn("terrain has no mesh data")
		return ecs.InvalidEntity
	}
	e := r.createEntityFromMesh(terrain.Mesh, mgl32.Vec3{})
	if mesh, ok := ecs.Get[ecs.Mesh](r.world, e); ok {
		mesh.ModelPath = terrain.Path
		mesh.MeshIndex = 0
	}
	if texturePath != "" {
		r.attachTexture(e, texturePath)
	}
	r.nameEntity(e, "Terrain")
	r.logger.Info("terrain entity %d created with %d vertices", e, len(terrain.Mesh.Vertices))
	return e
}

func (r *Renderer) createEntityFromMesh(data assets.MeshData, position mgl32.Vec3) ecs.Entity {
	e := r.world.CreateEntity()
	_ = r.world.Add(e, ecs.NewTransform(position))
	if len(data.Vertices) == 0 {
		return e
	}
	h := r.catalogue.UploadMesh(data.Vertices, data.Indices)
	_ = r.world.Add(e, &ecs.Mesh{MeshResourceID: uint32(h)})
	_ = r.world.Add(e, ecs.NewRender(uint32(h), 0))
	return e
}

func (r *Renderer) attachTexture(e ecs.Entity, path string) {
	h := r.catalogue.UploadTexture(path)
	if h == catalogue.NoResource {
		return
	}
	_ = r.world.Add(e, &ecs.Texture{TextureResourceID: uint32(h), TexturePath: path})
	if render, ok := ecs.Get[ecs.Render](r.world, e); ok {
		render.TextureResourceID = uint32(h)
	}
}

func (r *Renderer) nameEntity(e ecs.Entity, name string) {
	if r.names == nil {
		return
	}
	r.names.SetEntityName(e, name)
	r.names.MarkDirty()
}
