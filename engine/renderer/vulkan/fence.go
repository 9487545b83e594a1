package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if err := check(vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence), "vkCreateFence"); err != nil {
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence signals. IsSignaled is sticky until Reset, so a
// second wait on the same fence returns at once.
func (vf *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	if result == vk.Timeout {
		context.logger.Warn("fence wait timed out after %dns", timeoutNs)
	}
	if err := check(result, "vkWaitForFences"); err != nil {
		return err
	}
	vf.IsSignaled = true
	return nil
}

func (vf *VulkanFence) Reset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if err := check(vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}), "vkResetFences"); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}

func NewSemaphore(context *VulkanContext) (vk.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := check(vk.CreateSemaphore(context.Device.LogicalDevice, &createInfo, context.Allocator, &semaphore), "vkCreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return semaphore, nil
}

// SyncObjects holds the per slot fences and image available semaphores and
// one render complete semaphore per presentable image.
type SyncObjects struct {
	InFlight       []*VulkanFence
	ImageAvailable []vk.Semaphore
	RenderComplete []vk.Semaphore
}

func SyncObjectsCreate(context *VulkanContext, slots, images int) (*SyncObjects, error) {
	cleanup := core.NewCleanup()
	defer cleanup.Run()

	sync := &SyncObjects{}
	for i := 0; i < slots; i++ {
		fence, err := NewFence(context, true)
		if err != nil {
			return nil, err
		}
		sync.InFlight = append(sync.InFlight, fence)
		cleanup.Add(func() { fence.Destroy(context) })

		semaphore, err := NewSemaphore(context)
		if err != nil {
			return nil, err
		}
		sync.ImageAvailable = append(sync.ImageAvailable, semaphore)
		cleanup.Add(func() { vk.DestroySemaphore(context.Device.LogicalDevice, semaphore, context.Allocator) })
	}
	if err := sync.resizeRenderComplete(context, images); err != nil {
		return nil, err
	}
	cleanup.Release()
	return sync, nil
}

// resizeRenderComplete recreates the per image semaphores after the image
// count changes.
func (so *SyncObjects) resizeRenderComplete(context *VulkanContext, images int) error {
	device := context.Device.LogicalDevice
	for _, semaphore := range so.RenderComplete {
		vk.DestroySemaphore(device, semaphore, context.Allocator)
	}
	so.RenderComplete = nil
	semaphores, err := createN(images,
		func() (vk.Semaphore, error) { return NewSemaphore(context) },
		func(s vk.Semaphore) { vk.DestroySemaphore(device, s, context.Allocator) })
	if err != nil {
		return err
	}
	so.RenderComplete = semaphores
	return nil
}

// createN creates n objects. When one fails, the ones already created are
// destroyed in reverse order before the error is returned.
func createN[T any](n int, create func() (T, error), destroy func(T)) ([]T, error) {
	cleanup := core.NewCleanup()
	defer cleanup.Run()

	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		obj, err := create()
		if err != nil {
			return nil, errors.Wrapf(err, "object %d of %d", i+1, n)
		}
		out = append(out, obj)
		cleanup.Add(func() { destroy(obj) })
	}
	cleanup.Release()
	return out, nil
}

func (so *SyncObjects) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	for _, fence := range so.InFlight {
		fence.Destroy(context)
	}
	for _, semaphore := range so.ImageAvailable {
		vk.DestroySemaphore(device, semaphore, context.Allocator)
	}
	for _, semaphore := range so.RenderComplete {
		vk.DestroySemaphore(device, semaphore, context.Allocator)
	}
	so.InFlight, so.ImageAvailable, so.RenderComplete = nil, nil, nil
}
