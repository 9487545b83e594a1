package loaders

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/math"
)

// MeshData is one mesh of a model, ready to upload.
type MeshData struct {
	Name     string
	Vertices []math.Vertex
	Indices  []uint32
	// MaterialIndex is -1 when the mesh has no material.
	MaterialIndex int
}

type Material struct {
	Name           string
	DiffuseColor   mgl32.Vec3
	DiffuseTexture string
}

type Model struct {
	Path      string
	Name      string
	Meshes    []MeshData
	Materials []Material
}

// DiffuseTexture returns the diffuse map of the mesh's material. Meshes whose
// material index is out of range use the first material.
func (m *Model) DiffuseTexture(meshIndex int) string {
	if meshIndex < 0 || meshIndex >= len(m.Meshes) || len(m.Materials) == 0 {
		return ""
	}
	idx := m.Meshes[meshIndex].MaterialIndex
	if idx < 0 || idx >= len(m.Materials) {
		idx = 0
	}
	return m.Materials[idx].DiffuseTexture
}

type ModelLoader struct{}

// Load reads an OBJ file and the MTL library next to it, if any.
func (ml *ModelLoader) Load(path string) (*Model, error) {
	objFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open model %s", path)
	}
	defer objFile.Close()

	var mtl io.Reader = strings.NewReader("")
	mtlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"
	if mtlFile, err := os.Open(mtlPath); err == nil {
		defer mtlFile.Close()
		mtl = mtlFile
	}

	model, err := DecodeOBJ(objFile, mtl, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "decode model %s", path)
	}
	model.Path = path
	model.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return model, nil
}

type vertexKey struct {
	position, uv, normal int
}

// DecodeOBJ builds one mesh per object, triangulating polygons as fans and
// sharing identical position/uv/normal triples. Texture paths are resolved
// against baseDir.
func DecodeOBJ(objReader, mtlReader io.Reader, baseDir string) (*Model, error) {
	dec, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return nil, err
	}
	for _, w := range dec.Warnings {
		core.LogDebug("obj: %s", w)
	}

	model := &Model{}
	materialIndex := make(map[string]int, len(dec.Materials))
	names := make([]string, 0, len(dec.Materials))
	for name := range dec.Materials {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := dec.Materials[name]
		mat := Material{
			Name:         name,
			DiffuseColor: mgl32.Vec3{m.Diffuse.R, m.Diffuse.G, m.Diffuse.B},
		}
		if m.MapKd != "" {
			mat.DiffuseTexture = filepath.Join(baseDir, filepath.FromSlash(m.MapKd))
		}
		materialIndex[name] = len(model.Materials)
		model.Materials = append(model.Materials, mat)
	}

	for _, o := range dec.Objects {
		mesh := MeshData{Name: o.Name, MaterialIndex: -1}
		unique := make(map[vertexKey]uint32)
		hasNormals := true

		for _, face := range o.Faces {
			if mesh.MaterialIndex < 0 {
				if idx, ok := materialIndex[face.Material]; ok {
					mesh.MaterialIndex = idx
				}
			}
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					key, vertex, withNormal := decodeCorner(dec, face, corner)
					if !withNormal {
						hasNormals = false
					}
					idx, ok := unique[key]
					if !ok {
						idx = uint32(len(mesh.Vertices))
						if mesh.MaterialIndex >= 0 {
							vertex.Color = model.Materials[mesh.MaterialIndex].DiffuseColor
						}
						mesh.Vertices = append(mesh.Vertices, vertex)
						unique[key] = idx
					}
					mesh.Indices = append(mesh.Indices, idx)
				}
			}
		}
		if len(mesh.Indices) == 0 {
			continue
		}
		if !hasNormals {
			math.GenerateNormals(mesh.Vertices, mesh.Indices)
		}
		model.Meshes = append(model.Meshes, mesh)
	}
	if len(model.Meshes) == 0 {
		return nil, core.ErrEmptyMesh
	}
	return model, nil
}

func decodeCorner(dec *obj.Decoder, face obj.Face, corner int) (vertexKey, math.Vertex, bool) {
	key := vertexKey{position: face.Vertices[corner], uv: -1, normal: -1}
	v := math.Vertex{Color: mgl32.Vec3{1, 1, 1}}

	p := key.position
	if p >= 0 && p*3+2 < len(dec.Vertices) {
		v.Position = mgl32.Vec3{dec.Vertices[p*3], dec.Vertices[p*3+1], dec.Vertices[p*3+2]}
	}
	if corner < len(face.Uvs) {
		if uv := face.Uvs[corner]; uv >= 0 && uv*2+1 < len(dec.Uvs) {
			key.uv = uv
			v.TexCoord = mgl32.Vec2{dec.Uvs[uv*2], 1.0 - dec.Uvs[uv*2+1]}
		}
	}
	withNormal := false
	if corner < len(face.Normals) {
		if n := face.Normals[corner]; n >= 0 && n*3+2 < len(dec.Normals) {
			key.normal = n
			v.Normal = mgl32.Vec3{dec.Normals[n*3], dec.Normals[n*3+1], dec.Normals[n*3+2]}
			withNormal = true
		}
	}
	return key, v, withNormal
}
