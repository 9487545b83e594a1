package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-editor/engine/core"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTextureDecode(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.NRGBA{R: 255, A: 255})

	tl := &TextureLoader{}
	img, err := tl.Decode(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(1, 1))
}

func TestTextureDecodeRejectsNonImages(t *testing.T) {
	tl := &TextureLoader{}
	_, err := tl.Decode([]byte("v 0 0 0\nv 1 0 0\n"))
	assert.ErrorIs(t, err, core.ErrInvalidImage)

	_, err = tl.Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestTextureDecodeTruncatedImage(t *testing.T) {
	data := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 8, 8)))
	tl := &TextureLoader{}
	_, err := tl.Decode(data[:24])
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
	assert.Contains(t, err.Error(), "image decode")
}

func TestTextureDecodeScalesDown(t *testing.T) {
	tl := &TextureLoader{MaxSize: 16}
	img, err := tl.Decode(encodePNG(t, image.NewRGBA(image.Rect(0, 0, 64, 32))))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

const quadOBJ = `o Quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl brick
f 1/1 2/2 3/3 4/4
o Tri
v 0 0 1
v 1 0 1
v 0 1 1
vn 0 0 1
f 5//1 6//1 7//1
`

const quadMTL = `newmtl brick
Kd 0.5 0.25 1
map_Kd textures/brick.png
`

func TestDecodeOBJ(t *testing.T) {
	model, err := DecodeOBJ(strings.NewReader(quadOBJ), strings.NewReader(quadMTL), "models")
	require.NoError(t, err)
	require.Len(t, model.Meshes, 2)

	quad := model.Meshes[0]
	assert.Equal(t, "Quad", quad.Name)
	assert.Len(t, quad.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, quad.Indices)
	// v is flipped for the top-left image origin
	assert.Equal(t, mgl32.Vec2{1, 0}, quad.Vertices[2].TexCoord)
	assert.Equal(t, mgl32.Vec3{0.5, 0.25, 1}, quad.Vertices[0].Color)
	// no normals in the file, generated from the faces
	assert.InDelta(t, 1, quad.Vertices[0].Normal.Z(), 1e-5)

	tri := model.Meshes[1]
	assert.Len(t, tri.Indices, 3)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, tri.Vertices[0].Normal)

	require.Len(t, model.Materials, 1)
	assert.Equal(t, filepath.Join("models", "textures", "brick.png"), model.DiffuseTexture(0))
	// out of range material falls back to the first one
	assert.Equal(t, model.DiffuseTexture(0), model.DiffuseTexture(1))
	assert.Empty(t, model.DiffuseTexture(5))
}

func TestModelLoaderReadsSiblingMTL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(quadMTL), 0o644))

	ml := &ModelLoader{}
	model, err := ml.Load(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	assert.Equal(t, "quad", model.Name)
	assert.Equal(t, filepath.Join(dir, "textures", "brick.png"), model.DiffuseTexture(0))

	_, err = ml.Load(filepath.Join(dir, "nope.obj"))
	assert.Error(t, err)
}

func TestDecodeOBJWithoutFaces(t *testing.T) {
	_, err := DecodeOBJ(strings.NewReader("v 0 0 0\n"), strings.NewReader(""), ".")
	assert.ErrorIs(t, err, core.ErrEmptyMesh)
}

func rampHeightmap(cols, rows int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for z := 0; z < rows; z++ {
		for x := 0; x < cols; x++ {
			img.SetGray(x, z, color.Gray{Y: uint8(x * 10)})
		}
	}
	return img
}

func TestTerrainFromImage(t *testing.T) {
	terrain, err := TerrainFromImage(rampHeightmap(3, 3), 0.1, 2, 1)
	require.NoError(t, err)

	assert.Len(t, terrain.Mesh.Vertices, 9)
	assert.Len(t, terrain.Mesh.Indices, 2*2*6)
	assert.Equal(t, mgl32.Vec3{-2, 1, -2}, terrain.Extents.Min)
	assert.InDelta(t, 3, terrain.Extents.Max.Y(), 1e-5)

	for _, v := range terrain.Mesh.Vertices {
		assert.Greater(t, v.Normal.Y(), float32(0))
	}

	h, ok := terrain.HeightAt(0, 0, mgl32.Vec3{})
	require.True(t, ok)
	assert.InDelta(t, 2, h, 1e-5)

	h, ok = terrain.HeightAt(-1, 0.5, mgl32.Vec3{})
	require.True(t, ok)
	assert.InDelta(t, 1.5, h, 1e-5)

	h, ok = terrain.HeightAt(10, 0, mgl32.Vec3{10, 5, 0})
	require.True(t, ok)
	assert.InDelta(t, 7, h, 1e-5)

	_, ok = terrain.HeightAt(100, 0, mgl32.Vec3{})
	assert.False(t, ok)

	_, err = TerrainFromImage(image.NewGray(image.Rect(0, 0, 1, 5)), 1, 1, 0)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestLoadHeightmapFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heightmap.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, rampHeightmap(4, 2)), 0o644))

	terrain, err := LoadHeightmap(path, 0.15, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, path, terrain.Path)
	assert.Equal(t, 4, terrain.Columns)
	assert.Equal(t, 2, terrain.Rows)
}

func TestParseSPIRV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []uint32{spirvMagic, 0x00010000, 7}))

	code, err := ParseSPIRV(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000, 7}, code)

	_, err = ParseSPIRV([]byte{1, 2, 3})
	assert.Error(t, err)
	_, err = ParseSPIRV([]byte{0, 0, 0, 0})
	assert.Error(t, err)

	sl := &ShaderLoader{Dir: "shaders"}
	assert.Equal(t, filepath.Join("shaders", "phong.frag.spv"), sl.Path("phong", ShaderStageFragment))
}
