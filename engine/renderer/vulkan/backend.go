package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/renderer"
	"github.com/spaghettifunk/anima-editor/engine/renderer/catalogue"
)

type Config struct {
	ApplicationName string
	// Debug enables the validation layer and the debug report callback.
	Debug          bool
	FramesInFlight int
	// MaxSamples caps the MSAA sample count. Zero or less means no cap.
	MaxSamples int
	VSync      bool
	ClearColor [4]float32
}

// VulkanRenderer implements renderer.Device.
type VulkanRenderer struct {
	cfg     Config
	window  Window
	shaders ShaderSource
	logger  *core.Logger

	context   *VulkanContext
	allocator *VulkanAllocator

	descriptors    VulkanDescriptors
	pipelineLayout vk.PipelineLayout
	pipelines      *VulkanPipelineSet
	commandBuffers []*VulkanCommandBuffer
	sync           *SyncObjects

	// base holds objects that live as long as the device, sized the ones
	// rebuilt with the presentable chain.
	base  *core.Cleanup
	sized *core.Cleanup

	shutdown bool
}

var _ renderer.Device = (*VulkanRenderer)(nil)

// New brings up the instance, surface, device and every size dependent object
// for the window's current framebuffer.
func New(cfg Config, window Window, shaders ShaderSource, logger *core.Logger) (*VulkanRenderer, error) {
	if cfg.FramesInFlight < 1 {
		cfg.FramesInFlight = 2
	}
	vr := &VulkanRenderer{
		cfg:     cfg,
		window:  window,
		shaders: shaders,
		logger:  logger,
		context: &VulkanContext{logger: logger},
		base:    core.NewCleanup(),
		sized:   core.NewCleanup(),
	}
	vr.allocator = &VulkanAllocator{context: vr.context}

	procAddr := window.InstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("vkGetInstanceProcAddr is not available")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize vulkan loader")
	}

	if err := vr.createBase(); err != nil {
		vr.base.Run()
		return nil, err
	}
	if err := vr.createPresentation(); err != nil {
		vr.sized.Run()
		vr.base.Run()
		return nil, err
	}

	sync, err := SyncObjectsCreate(vr.context, cfg.FramesInFlight, vr.ImageCount())
	if err != nil {
		vr.sized.Run()
		vr.base.Run()
		return nil, errors.Wrap(err, "sync objects")
	}
	vr.sync = sync
	logger.Info("Vulkan renderer initialized with %dx MSAA", vr.context.Samples)
	return vr, nil
}

func (vr *VulkanRenderer) createBase() error {
	context := vr.context
	if err := InstanceCreate(context, vr.cfg.ApplicationName, vr.window, vr.cfg.Debug); err != nil {
		return err
	}
	vr.base.Add(func() { InstanceDestroy(context) })

	if err := SurfaceCreate(context, vr.window); err != nil {
		return err
	}
	vr.base.Add(func() { SurfaceDestroy(context) })

	device, err := SelectPhysicalDevice(context)
	if err != nil {
		return err
	}
	context.Device = device
	if err := DeviceCreate(context); err != nil {
		return err
	}
	vr.base.Add(func() { DeviceDestroy(context) })
	context.Samples = device.MaxUsableSampleCount(vr.cfg.MaxSamples)

	setLayout, err := DescriptorSetLayoutCreate(context)
	if err != nil {
		return err
	}
	vr.descriptors.SetLayout = setLayout
	vr.base.Add(func() { vr.descriptors.Destroy(context) })

	layout, err := PipelineLayoutCreate(context, setLayout)
	if err != nil {
		return err
	}
	vr.pipelineLayout = layout
	vr.base.Add(func() { vk.DestroyPipelineLayout(device.LogicalDevice, layout, context.Allocator) })
	return nil
}

// createPresentation builds the chain, the targets, the render pass, the
// framebuffers, the pipelines and one command buffer per image. On failure
// the caller runs vr.sized.
func (vr *VulkanRenderer) createPresentation() error {
	context := vr.context
	width, height := vr.window.FramebufferSize()
	if width == 0 || height == 0 {
		return core.ErrWindowMinimized
	}

	swapchain, err := SwapchainCreate(context, width, height, vr.cfg.VSync)
	if err != nil {
		return err
	}
	context.Swapchain = swapchain
	vr.sized.Add(func() {
		swapchain.Destroy(context)
		context.Swapchain = nil
	})

	renderpass, err := RenderpassCreate(context, vr.cfg.ClearColor, 1.0, 0)
	if err != nil {
		return errors.Wrap(err, "render pass")
	}
	context.MainRenderpass = renderpass
	vr.sized.Add(func() {
		renderpass.Destroy(context)
		context.MainRenderpass = nil
	})

	if err := FramebuffersCreate(context, swapchain, renderpass); err != nil {
		return errors.Wrap(err, "framebuffers")
	}
	vr.sized.Add(func() {
		for _, fb := range swapchain.Framebuffers {
			fb.Destroy(context)
		}
		swapchain.Framebuffers = nil
	})

	pipelines, err := PipelineSetCreate(context, vr.shaders, renderpass, vr.pipelineLayout)
	if err != nil {
		return err
	}
	vr.pipelines = pipelines
	vr.sized.Add(func() {
		pipelines.Destroy(context)
		vr.pipelines = nil
	})

	buffers, err := CommandBuffersAllocate(context, context.Device.GraphicsCommandPool, int(swapchain.ImageCount))
	if err != nil {
		return errors.Wrap(err, "command buffers")
	}
	vr.commandBuffers = buffers
	vr.sized.Add(func() {
		CommandBuffersFree(context, context.Device.GraphicsCommandPool, buffers)
		vr.commandBuffers = nil
	})
	return nil
}

// Allocator returns the catalogue allocator backed by this device.
func (vr *VulkanRenderer) Allocator() catalogue.Allocator {
	return vr.allocator
}

func (vr *VulkanRenderer) WaitForSlot(slot int) error {
	return vr.sync.InFlight[slot].Wait(vr.context, math.MaxUint64)
}

func (vr *VulkanRenderer) AcquireImage(slot int) (uint32, error) {
	return vr.context.Swapchain.AcquireNextImageIndex(vr.context, math.MaxUint64, vr.sync.ImageAvailable[slot])
}

func (vr *VulkanRenderer) Submit(slot int, image uint32) error {
	fence := vr.sync.InFlight[slot]
	if err := fence.Reset(vr.context); err != nil {
		return err
	}
	cb := vr.commandBuffers[image]
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{vr.sync.ImageAvailable[slot]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.sync.RenderComplete[image]},
	}
	if err := check(vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle), "vkQueueSubmit"); err != nil {
		return err
	}
	cb.UpdateSubmitted()
	return nil
}

func (vr *VulkanRenderer) Present(image uint32) error {
	return vr.context.Swapchain.Present(vr.context, vr.sync.RenderComplete[image], image)
}

func (vr *VulkanRenderer) MinUniformAlignment() uint32 {
	return vr.context.Device.MinUniformAlignment()
}

func (vr *VulkanRenderer) ImageCount() int {
	if vr.context.Swapchain == nil {
		return 0
	}
	return int(vr.context.Swapchain.ImageCount)
}

func (vr *VulkanRenderer) Extent() (uint32, uint32) {
	if vr.context.Swapchain == nil {
		return 0, 0
	}
	return vr.context.Swapchain.Extent.Width, vr.context.Swapchain.Extent.Height
}

func (vr *VulkanRenderer) BuildBindings(index *renderer.DrawIndex, res renderer.Resources) error {
	return vr.descriptors.Build(vr.context, vr.ImageCount(), index, res)
}

// RecordCommands records every image's command buffer from index. Hidden
// entries bind their descriptor set but draw nothing.
func (vr *VulkanRenderer) RecordCommands(index *renderer.DrawIndex, res renderer.Resources) error {
	context := vr.context
	swapchain := context.Swapchain
	calls := index.DrawCalls()

	for img, cb := range vr.commandBuffers {
		if err := cb.Reset(); err != nil {
			return err
		}
		if err := cb.Begin(false, false, false); err != nil {
			return err
		}
		context.MainRenderpass.Begin(cb, swapchain.Framebuffers[img], swapchain.Extent)

		vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{{
			Width:    float32(swapchain.Extent.Width),
			Height:   float32(swapchain.Extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		}})
		vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{{Extent: swapchain.Extent}})

		bound := renderer.PipelineCount
		for _, call := range calls {
			if call.Pipeline != bound {
				vr.pipelines.Get(call.Pipeline).Bind(cb, vk.PipelineBindPointGraphics)
				bound = call.Pipeline
			}
			set := vr.descriptors.Sets[img][call.Binding]
			vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, vr.pipelineLayout, 0, 1,
				[]vk.DescriptorSet{set}, 1, []uint32{call.Offset})
			if !call.Draw {
				continue
			}
			mesh := res.Mesh(call.Mesh)
			if mesh == nil {
				continue
			}
			buffers, ok := mesh.Buffers.(*VulkanMeshBuffers)
			if !ok {
				return errors.Newf("mesh %d was not created by this device", call.Mesh)
			}
			buffers.Bind(cb)
			vk.CmdDrawIndexed(cb.Handle, mesh.IndexCount, 1, 0, 0, 0)
		}

		context.MainRenderpass.End(cb)
		if err := cb.End(); err != nil {
			return err
		}
	}
	return nil
}

func (vr *VulkanRenderer) WriteUniforms(image uint32, data []byte) error {
	return vr.descriptors.Write(vr.context, image, data)
}

// Rebuild recreates the chain and everything sized by it. The caller has
// waited for the device to go idle.
func (vr *VulkanRenderer) Rebuild() error {
	if vr.shutdown {
		return core.ErrAlreadyCleaned
	}
	width, height := vr.window.FramebufferSize()
	if width == 0 || height == 0 {
		return core.ErrWindowMinimized
	}

	vr.sized.Run()
	vr.descriptors.release(vr.context)

	if err := vr.createPresentation(); err != nil {
		vr.sized.Run()
		return err
	}
	if err := vr.sync.resizeRenderComplete(vr.context, vr.ImageCount()); err != nil {
		return errors.Wrap(err, "render complete semaphores")
	}
	return nil
}

func (vr *VulkanRenderer) WaitIdle() error {
	if vr.shutdown || vr.context.Device == nil || vr.context.Device.LogicalDevice == nil {
		return nil
	}
	return check(vk.DeviceWaitIdle(vr.context.Device.LogicalDevice), "vkDeviceWaitIdle")
}

// Shutdown destroys sync objects, command buffers, pipelines, the render
// pass, the chain, the device and finally the surface and instance.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.shutdown {
		return core.ErrAlreadyCleaned
	}
	err := vr.WaitIdle()
	vr.shutdown = true

	if vr.sync != nil {
		vr.sync.Destroy(vr.context)
		vr.sync = nil
	}
	vr.sized.Run()
	vr.base.Run()
	vr.logger.Info("Vulkan renderer shut down")
	return err
}
