package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/core"
)

type VulkanBuffer struct {
	Handle     vk.Buffer
	Memory     vk.DeviceMemory
	Size       uint64
	Usage      vk.BufferUsageFlags
	Properties vk.MemoryPropertyFlags
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, errors.New("buffer size must be greater than zero")
	}
	device := context.Device.LogicalDevice
	out := &VulkanBuffer{Size: size, Usage: usage, Properties: properties}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	cleanup := core.NewCleanup()
	defer cleanup.Run()

	if err := check(vk.CreateBuffer(device, &bufferInfo, context.Allocator, &out.Handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}
	cleanup.Add(func() { vk.DestroyBuffer(device, out.Handle, context.Allocator) })

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, out.Handle, &requirements)
	requirements.Deref()

	memoryType, err := context.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if err != nil {
		return nil, errors.Wrap(err, "buffer memory")
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	if err := check(vk.AllocateMemory(device, &allocInfo, context.Allocator, &out.Memory), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	cleanup.Add(func() { vk.FreeMemory(device, out.Memory, context.Allocator) })

	if err := check(vk.BindBufferMemory(device, out.Handle, out.Memory, 0), "vkBindBufferMemory"); err != nil {
		return nil, err
	}
	cleanup.Release()
	return out, nil
}

// LoadData copies data into host visible memory at offset.
func (vb *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if offset+uint64(len(data)) > vb.Size {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, vb.Size)
	}
	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(context.Device.LogicalDevice, vb.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr), "vkMapMemory"); err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, vb.Memory)
	return nil
}

// CopyTo records a full copy of vb into dst.
func (vb *VulkanBuffer) CopyTo(commandBuffer *VulkanCommandBuffer, dst *VulkanBuffer, size uint64) {
	region := vk.BufferCopy{Size: vk.DeviceSize(size)}
	vk.CmdCopyBuffer(commandBuffer.Handle, vb.Handle, dst.Handle, 1, []vk.BufferCopy{region})
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vb.Handle != nil {
		vk.DestroyBuffer(device, vb.Handle, context.Allocator)
		vb.Handle = nil
	}
	if vb.Memory != nil {
		vk.FreeMemory(device, vb.Memory, context.Allocator)
		vb.Memory = nil
	}
}

// StagingBufferCreate returns a host visible transfer source holding data.
func StagingBufferCreate(context *VulkanContext, data []byte) (*VulkanBuffer, error) {
	staging, err := BufferCreate(context, uint64(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, errors.Wrap(err, "staging buffer")
	}
	if err := staging.LoadData(context, 0, data); err != nil {
		staging.Destroy(context)
		return nil, err
	}
	return staging, nil
}

// DeviceLocalBufferCreate uploads data through a staging buffer into a device
// local buffer with the given usage.
func DeviceLocalBufferCreate(context *VulkanContext, data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	staging, err := StagingBufferCreate(context, data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	buffer, err := BufferCreate(context, uint64(len(data)),
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	err = RunSingleUse(context, func(cb *VulkanCommandBuffer) error {
		staging.CopyTo(cb, buffer, uint64(len(data)))
		return nil
	})
	if err != nil {
		buffer.Destroy(context)
		return nil, errors.Wrap(err, "copy staging buffer")
	}
	return buffer, nil
}
