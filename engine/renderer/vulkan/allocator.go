package vulkan

import (
	"image"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/math"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

// TextureFormat is the format every uploaded texture is stored in.
const TextureFormat = vk.FormatR8g8b8a8Srgb

// VulkanMeshBuffers is the device local vertex and index buffer pair of a mesh.
type VulkanMeshBuffers struct {
	context *VulkanContext
	Vertex  *VulkanBuffer
	Index   *VulkanBuffer
}

func (m *VulkanMeshBuffers) Destroy() {
	if m.Index != nil {
		m.Index.Destroy(m.context)
		m.Index = nil
	}
	if m.Vertex != nil {
		m.Vertex.Destroy(m.context)
		m.Vertex = nil
	}
}

// Bind records the vertex and index buffer bindings.
func (m *VulkanMeshBuffers) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1, []vk.Buffer{m.Vertex.Handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(commandBuffer.Handle, m.Index.Handle, 0, vk.IndexTypeUint32)
}

// VulkanTexture is a sampled image with its view and sampler.
type VulkanTexture struct {
	context *VulkanContext
	Image   *VulkanImage
	Sampler vk.Sampler
}

func (t *VulkanTexture) Destroy() {
	if t.Sampler != nil {
		vk.DestroySampler(t.context.Device.LogicalDevice, t.Sampler, t.context.Allocator)
		t.Sampler = nil
	}
	if t.Image != nil {
		t.Image.Destroy(t.context)
		t.Image = nil
	}
}

// VulkanAllocator creates catalogue resources on the device.
type VulkanAllocator struct {
	context *VulkanContext
}

var _ catalogue.Allocator = (*VulkanAllocator)(nil)

func vertexBytes(vertices []math.Vertex) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(math.VertexSize))
}

func indexBytes(indices []uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}

func (a *VulkanAllocator) CreateMeshBuffers(vertices []math.Vertex, indices []uint32) (catalogue.MeshBuffers, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.New("mesh needs vertices and indices")
	}
	vertex, err := DeviceLocalBufferCreate(a.context, vertexBytes(vertices), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, errors.Wrap(err, "vertex buffer")
	}
	index, err := DeviceLocalBufferCreate(a.context, indexBytes(indices), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		vertex.Destroy(a.context)
		return nil, errors.Wrap(err, "index buffer")
	}
	return &VulkanMeshBuffers{context: a.context, Vertex: vertex, Index: index}, nil
}

func (a *VulkanAllocator) CreateTextureImage(img *image.RGBA) (catalogue.TextureImage, error) {
	bounds := img.Bounds()
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())
	if width == 0 || height == 0 {
		return nil, errors.New("texture has no pixels")
	}
	pixels := img.Pix
	if img.Stride != bounds.Dx()*4 {
		pixels = make([]byte, 0, width*height*4)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			start := img.PixOffset(bounds.Min.X, y)
			pixels = append(pixels, img.Pix[start:start+bounds.Dx()*4]...)
		}
	}

	staging, err := StagingBufferCreate(a.context, pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(a.context)

	mipLevels := uint32(1)
	if a.context.Device.SupportsLinearBlit(TextureFormat) {
		mipLevels = MipLevelCount(width, height)
	}

	out := &VulkanTexture{context: a.context}
	out.Image, err = ImageCreate(a.context, ImageOptions{
		Width:     width,
		Height:    height,
		MipLevels: mipLevels,
		Format:    TextureFormat,
		Usage: vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) |
			vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) |
			vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		CreateView: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "texture image")
	}

	err = RunSingleUse(a.context, func(cb *VulkanCommandBuffer) error {
		if err := out.Image.TransitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		out.Image.CopyFromBuffer(cb, staging)
		out.Image.GenerateMipmaps(cb)
		return nil
	})
	if err != nil {
		out.Destroy()
		return nil, errors.Wrap(err, "upload texture")
	}

	if out.Sampler, err = SamplerCreate(a.context, mipLevels); err != nil {
		out.Destroy()
		return nil, err
	}
	return out, nil
}

// SamplerCreate builds a linear, repeating sampler over mipLevels levels with
// anisotropy when the device enabled it.
func SamplerCreate(context *VulkanContext, mipLevels uint32) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MinLod:                  0,
		MaxLod:                  float32(max(mipLevels, 1)),
	}
	if context.Device.Features.SamplerAnisotropy == vk.True {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = context.Device.Properties.Limits.MaxSamplerAnisotropy
	}

	var sampler vk.Sampler
	if err := check(vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler), "vkCreateSampler"); err != nil {
		return nil, err
	}
	return sampler, nil
}
