package catalogue

import (
	"image"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/math"
)

// Handle identifies a GPU resident resource. NoResource never resolves.
type Handle uint32

const NoResource Handle = 0

// MeshBuffers is the backend owned pair of vertex and index buffers.
type MeshBuffers interface {
	// Destroy frees the buffers before the memory they are bound to.
	Destroy()
}

// TextureImage is the backend owned image, memory, view and sampler.
type TextureImage interface {
	// Destroy frees the sampler and view before the image and its memory.
	Destroy()
}

// Allocator creates device local copies of CPU data through a staging buffer.
type Allocator interface {
	CreateMeshBuffers(vertices []math.Vertex, indices []uint32) (MeshBuffers, error)
	CreateTextureImage(img *image.RGBA) (TextureImage, error)
}

// TextureSource decodes the image stored at path.
type TextureSource interface {
	Load(path string) (*image.RGBA, error)
}

type MeshResources struct {
	Buffers     MeshBuffers
	VertexCount uint32
	IndexCount  uint32
}

type TextureResources struct {
	Image  TextureImage
	Width  uint32
	Height uint32
	// Path is the cache key the texture was uploaded under.
	Path string
}

// Catalogue owns every mesh and texture uploaded to the device. It never waits
// on the GPU: callers release resources only once no in-flight frame uses them.
// All methods must be called from the render thread.
type Catalogue struct {
	allocator Allocator
	source    TextureSource
	logger    *core.Logger

	meshes      map[Handle]*MeshResources
	textures    map[Handle]*TextureResources
	texturePath map[string]Handle

	meshIDs    *core.Identifier
	textureIDs *core.Identifier
	cleaned    bool
}

func New(allocator Allocator, source TextureSource, logger *core.Logger) *Catalogue {
	if logger == nil {
		logger = core.DefaultLogger()
	}
	return &Catalogue{
		allocator:   allocator,
		source:      source,
		logger:      logger,
		meshes:      make(map[Handle]*MeshResources),
		textures:    make(map[Handle]*TextureResources),
		texturePath: make(map[string]Handle),
		meshIDs:     core.NewIdentifier(),
		textureIDs:  core.NewIdentifier(),
	}
}

// UploadMesh copies the mesh to device local memory. Empty input or an allocation
// failure yields NoResource.
func (c *Catalogue) UploadMesh(vertices []math.Vertex, indices []uint32) Handle {
	h, err := c.uploadMesh(vertices, indices)
	if err != nil {
		c.logger.Warn("mesh upload failed: %s", err)
		return NoResource
	}
	return h
}

func (c *Catalogue) uploadMesh(vertices []math.Vertex, indices []uint32) (Handle, error) {
	if c.cleaned {
		return NoResource, core.ErrAlreadyCleaned
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return NoResource, errors.Wrapf(core.ErrEmptyMesh, "%d vertices, %d indices", len(vertices), len(indices))
	}
	buffers, err := c.allocator.CreateMeshBuffers(vertices, indices)
	if err != nil {
		return NoResource, errors.Wrap(err, "create mesh buffers")
	}
	h := Handle(c.meshIDs.Next())
	c.meshes[h] = &MeshResources{
		Buffers:     buffers,
		VertexCount: uint32(len(vertices)),
		IndexCount:  uint32(len(indices)),
	}
	c.logger.Debug("uploaded mesh %d (%d vertices, %d indices)", h, len(vertices), len(indices))
	return h, nil
}

// UploadTexture decodes and uploads the image at path. A path that was uploaded
// before returns its cached handle. Failures are not cached.
func (c *Catalogue) UploadTexture(path string) Handle {
	if h, ok := c.texturePath[textureKey(path)]; ok {
		return h
	}
	if c.source == nil {
		c.logger.Warn("texture upload of %s failed: no texture source", path)
		return NoResource
	}
	img, err := c.source.Load(path)
	if err != nil {
		c.logger.Warn("texture upload of %s failed: %s", path, err)
		return NoResource
	}
	return c.UploadTextureImage(path, img)
}

// UploadTextureImage uploads an already decoded image under key.
func (c *Catalogue) UploadTextureImage(key string, img *image.RGBA) Handle {
	key = textureKey(key)
	if h, ok := c.texturePath[key]; ok {
		return h
	}
	h, err := c.uploadTextureImage(key, img)
	if err != nil {
		c.logger.Warn("texture upload of %s failed: %s", key, err)
		return NoResource
	}
	return h
}

func (c *Catalogue) uploadTextureImage(key string, img *image.RGBA) (Handle, error) {
	if c.cleaned {
		return NoResource, core.ErrAlreadyCleaned
	}
	if img == nil || img.Bounds().Empty() {
		return NoResource, core.ErrInvalidImage
	}
	ti, err := c.allocator.CreateTextureImage(img)
	if err != nil {
		return NoResource, errors.Wrap(err, "create texture image")
	}
	h := Handle(c.textureIDs.Next())
	c.textures[h] = &TextureResources{
		Image:  ti,
		Width:  uint32(img.Bounds().Dx()),
		Height: uint32(img.Bounds().Dy()),
		Path:   key,
	}
	if key != "" {
		c.texturePath[key] = h
	}
	c.logger.Debug("uploaded texture %d from %s (%dx%d)", h, key, img.Bounds().Dx(), img.Bounds().Dy())
	return h, nil
}

// Mesh returns nil when h does not denote a live mesh.
func (c *Catalogue) Mesh(h Handle) *MeshResources {
	if h == NoResource {
		return nil
	}
	return c.meshes[h]
}

// Texture returns nil when h does not denote a live texture.
func (c *Catalogue) Texture(h Handle) *TextureResources {
	if h == NoResource {
		return nil
	}
	return c.textures[h]
}

// TextureHandle looks up the cached handle for path.
func (c *Catalogue) TextureHandle(path string) (Handle, bool) {
	h, ok := c.texturePath[textureKey(path)]
	return h, ok
}

// textureKey cleans file paths so every spelling of a file shares one cache
// entry. Keys with a scheme such as builtin://default are kept as given.
func textureKey(path string) string {
	if path == "" || strings.Contains(path, "://") {
		return path
	}
	return filepath.Clean(path)
}

func (c *Catalogue) ReleaseMesh(h Handle) {
	res, ok := c.meshes[h]
	if !ok {
		return
	}
	delete(c.meshes, h)
	if res.Buffers != nil {
		res.Buffers.Destroy()
	}
	c.logger.Debug("released mesh %d", h)
}

func (c *Catalogue) ReleaseTexture(h Handle) {
	res, ok := c.textures[h]
	if !ok {
		return
	}
	delete(c.textures, h)
	if cached, ok := c.texturePath[res.Path]; ok && cached == h {
		delete(c.texturePath, res.Path)
	}
	if res.Image != nil {
		res.Image.Destroy()
	}
	c.logger.Debug("released texture %d (%s)", h, res.Path)
}

// MeshHandles lists the live mesh handles in ascending order.
func (c *Catalogue) MeshHandles() []Handle {
	out := make([]Handle, 0, len(c.meshes))
	for h := range c.meshes {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// TextureHandles lists the live texture handles in ascending order.
func (c *Catalogue) TextureHandles() []Handle {
	out := make([]Handle, 0, len(c.textures))
	for h := range c.textures {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func (c *Catalogue) MeshCount() int {
	return len(c.meshes)
}

func (c *Catalogue) TextureCount() int {
	return len(c.textures)
}

// Cleanup releases everything. It must be called once, before the device is destroyed.
func (c *Catalogue) Cleanup() error {
	if c.cleaned {
		return core.ErrAlreadyCleaned
	}
	for h := range c.meshes {
		c.ReleaseMesh(h)
	}
	for h := range c.textures {
		c.ReleaseTexture(h)
	}
	c.cleaned = true
	c.logger.Info("resource catalogue cleaned up")
	return nil
}
