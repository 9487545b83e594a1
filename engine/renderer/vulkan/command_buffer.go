package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanCommandBufferState int

const (
	CommandBufferStateNotAllocated VulkanCommandBufferState = iota
	CommandBufferStateReady
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

// CommandBuffersAllocate allocates count primary command buffers from pool.
func CommandBuffersAllocate(context *VulkanContext, pool vk.CommandPool, count int) ([]*VulkanCommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: uint32(count),
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, count)
	if err := check(vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles), "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]*VulkanCommandBuffer, count)
	for i, handle := range handles {
		out[i] = &VulkanCommandBuffer{Handle: handle, State: CommandBufferStateReady}
	}
	return out, nil
}

func CommandBuffersFree(context *VulkanContext, pool vk.CommandPool, buffers []*VulkanCommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	handles := make([]vk.CommandBuffer, len(buffers))
	for i, cb := range buffers {
		handles[i] = cb.Handle
		cb.Handle = nil
		cb.State = CommandBufferStateNotAllocated
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, uint32(len(handles)), handles)
}

func (v *VulkanCommandBuffer) Begin(singleUse, renderpassContinue, simultaneousUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if renderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if simultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := check(vk.BeginCommandBuffer(v.Handle, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	v.State = CommandBufferStateRecording
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := check(vk.EndCommandBuffer(v.Handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	v.State = CommandBufferStateRecordingEnded
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = CommandBufferStateSubmitted
}

// Reset drops the recorded commands. The pool must allow per buffer resets.
func (v *VulkanCommandBuffer) Reset() error {
	if err := check(vk.ResetCommandBuffer(v.Handle, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	v.State = CommandBufferStateReady
	return nil
}

// AllocateAndBeginSingleUse allocates a buffer and begins a one time recording.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	buffers, err := CommandBuffersAllocate(context, pool, 1)
	if err != nil {
		return nil, err
	}
	cb := buffers[0]
	if err := cb.Begin(true, false, false); err != nil {
		CommandBuffersFree(context, pool, buffers)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends the recording, submits it, waits for the queue to drain
// and frees the buffer.
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) error {
	defer CommandBuffersFree(context, pool, []*VulkanCommandBuffer{v})

	if err := v.End(); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	if err := check(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence), "vkQueueSubmit"); err != nil {
		return err
	}
	v.UpdateSubmitted()
	return check(vk.QueueWaitIdle(queue), "vkQueueWaitIdle")
}

// RunSingleUse records fn into a one time buffer and blocks until the graphics
// queue has executed it.
func RunSingleUse(context *VulkanContext, fn func(cb *VulkanCommandBuffer) error) error {
	device := context.Device
	cb, err := AllocateAndBeginSingleUse(context, device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	if err := fn(cb); err != nil {
		_ = cb.End()
		CommandBuffersFree(context, device.GraphicsCommandPool, []*VulkanCommandBuffer{cb})
		return err
	}
	return cb.EndSingleUse(context, device.GraphicsCommandPool, device.GraphicsQueue)
}
