package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/renderer"
)

const (
	uniformBinding = 0
	samplerBinding = 1
)

// VulkanDescriptors owns the per image uniform buffers and one descriptor set
// per draw entry and image. Everything except the set layout is rebuilt when
// the draw index changes.
type VulkanDescriptors struct {
	SetLayout vk.DescriptorSetLayout
	Pool      vk.DescriptorPool
	// Uniforms holds one host visible buffer per presentable image.
	Uniforms []*VulkanBuffer
	// Sets is indexed by image, then by entry binding.
	Sets [][]vk.DescriptorSet
}

// DescriptorSetLayoutCreate describes set 0: a dynamic uniform buffer for the
// vertex stage and a combined image sampler for the fragment stage.
func DescriptorSetLayoutCreate(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         uniformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		},
		{
			Binding:         samplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	return layout, nil
}

// Build replaces the pool, the uniform buffers and the sets with ones sized
// for index across images. The device must be idle.
func (d *VulkanDescriptors) Build(context *VulkanContext, images int, index *renderer.DrawIndex, res renderer.Resources) error {
	d.release(context)

	entries := index.Len()
	size := index.BufferSize()
	for i := 0; i < images; i++ {
		buffer, err := BufferCreate(context, size,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			d.release(context)
			return errors.Wrapf(err, "uniform buffer for image %d", i)
		}
		d.Uniforms = append(d.Uniforms, buffer)
	}
	if entries == 0 {
		d.Sets = make([][]vk.DescriptorSet, images)
		return nil
	}

	total := uint32(entries * images)
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: total},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: total},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       total,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if err := check(vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &d.Pool), "vkCreateDescriptorPool"); err != nil {
		d.release(context)
		return err
	}

	layouts := make([]vk.DescriptorSetLayout, entries)
	for i := range layouts {
		layouts[i] = d.SetLayout
	}
	d.Sets = make([][]vk.DescriptorSet, images)
	for img := 0; img < images; img++ {
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     d.Pool,
			DescriptorSetCount: uint32(entries),
			PSetLayouts:        layouts,
		}
		sets := make([]vk.DescriptorSet, entries)
		if err := check(vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &sets[0]), "vkAllocateDescriptorSets"); err != nil {
			d.release(context)
			return err
		}
		d.Sets[img] = sets
	}

	for _, entry := range index.Entries {
		texture := res.Texture(entry.Texture)
		if texture == nil {
			d.release(context)
			return errors.Newf("entity %d has no resolvable texture", entry.Entity)
		}
		vt, ok := texture.Image.(*VulkanTexture)
		if !ok {
			d.release(context)
			return errors.Newf("texture %d was not created by this device", entry.Texture)
		}
		for img := 0; img < images; img++ {
			d.write(context, d.Sets[img][entry.Binding], d.Uniforms[img], vt)
		}
	}
	return nil
}

func (d *VulkanDescriptors) write(context *VulkanContext, set vk.DescriptorSet, uniforms *VulkanBuffer, texture *VulkanTexture) {
	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: uniforms.Handle,
		Offset: 0,
		Range:  vk.DeviceSize(renderer.UniformBlockSize),
	}
	imageInfo := vk.DescriptorImageInfo{
		Sampler:     texture.Sampler,
		ImageView:   texture.Image.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uniformBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      samplerBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
		},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}

// Write copies data to the start of image's uniform buffer.
func (d *VulkanDescriptors) Write(context *VulkanContext, image uint32, data []byte) error {
	if int(image) >= len(d.Uniforms) {
		return errors.Newf("no uniform buffer for image %d", image)
	}
	return d.Uniforms[image].LoadData(context, 0, data)
}

// release frees the pool, which frees its sets, and the uniform buffers.
func (d *VulkanDescriptors) release(context *VulkanContext) {
	if d.Pool != nil {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, d.Pool, context.Allocator)
		d.Pool = nil
	}
	for _, buffer := range d.Uniforms {
		buffer.Destroy(context)
	}
	d.Uniforms = nil
	d.Sets = nil
}

func (d *VulkanDescriptors) Destroy(context *VulkanContext) {
	d.release(context)
	if d.SetLayout != nil {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, d.SetLayout, context.Allocator)
		d.SetLayout = nil
	}
}
