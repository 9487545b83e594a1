package assets

import (
	"strings"

	"github.com/spaghettifunk/anima-editor/engine/assets/loaders"
)

type (
	Model    = loaders.Model
	MeshData = loaders.MeshData
	Material = loaders.Material
	Terrain  = loaders.Terrain
)

type ResourceType uint8

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeImage
	ResourceTypeModel
	ResourceTypeShader
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeImage:
		return "image"
	case ResourceTypeModel:
		return "model"
	case ResourceTypeShader:
		return "shader"
	}
	return "none"
}

// Terrain generation parameters used by the editor and when scenes are loaded.
const (
	TerrainHeightScale  float32 = 0.15
	TerrainGridSpacing  float32 = 1
	TerrainHeightOffset float32 = 0
)

// IsHeightmapPath reports whether a mesh path refers to a heightmap image
// rather than a model file.
func IsHeightmapPath(path string) bool {
	return strings.Contains(strings.ToLower(path), "heightmap")
}
