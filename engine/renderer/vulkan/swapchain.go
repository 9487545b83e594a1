package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/core"
	anmath "github.com/spaghettifunk/anima-editor/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	Handle      vk.Swapchain
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	// ColorAttachment is the multisampled target resolved into the image. It
	// is nil when rendering single sampled.
	ColorAttachment *VulkanImage
	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// ChooseSurfaceFormat prefers 8 bit BGRA sRGB and falls back to the first
// reported format.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	if len(formats) == 0 {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every
// driver supports. vsync always selects FIFO.
func ChoosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's extent when the driver fixes it, otherwise
// the window size clamped to the allowed range.
func ChooseExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}
	return vk.Extent2D{
		Width:  anmath.Clamp(width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: anmath.Clamp(height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image above the minimum, within the maximum
// when the driver sets one.
func ChooseImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	count := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}

// SwapchainCreate builds the image chain, its views and the color and depth
// targets for the current surface size.
func SwapchainCreate(context *VulkanContext, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	device := context.Device
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface, &device.SwapchainSupport); err != nil {
		return nil, err
	}
	support := device.SwapchainSupport

	swapchain := &VulkanSwapchain{
		ImageFormat: ChooseSurfaceFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes, vsync),
		Extent:      ChooseExtent(support.Capabilities, width, height),
	}
	if swapchain.Extent.Width == 0 || swapchain.Extent.Height == 0 {
		return nil, core.ErrWindowMinimized
	}
	imageCount := ChooseImageCount(support.Capabilities)

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(device.GraphicsQueueIndex), uint32(device.PresentQueueIndex)}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	cleanup := core.NewCleanup()
	defer cleanup.Run()

	var handle vk.Swapchain
	if err := check(vk.CreateSwapchain(device.LogicalDevice, &createInfo, context.Allocator, &handle), "vkCreateSwapchain"); err != nil {
		return nil, err
	}
	swapchain.Handle = handle
	cleanup.Add(func() { vk.DestroySwapchain(device.LogicalDevice, handle, context.Allocator) })

	var count uint32
	if err := check(vk.GetSwapchainImages(device.LogicalDevice, handle, &count, nil), "vkGetSwapchainImages"); err != nil {
		return nil, err
	}
	swapchain.Images = make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(device.LogicalDevice, handle, &count, swapchain.Images), "vkGetSwapchainImages"); err != nil {
		return nil, err
	}
	swapchain.ImageCount = count

	swapchain.Views = make([]vk.ImageView, 0, count)
	for _, image := range swapchain.Images {
		view, err := ImageViewCreate(context, image, swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1)
		if err != nil {
			return nil, errors.Wrap(err, "swapchain image view")
		}
		swapchain.Views = append(swapchain.Views, view)
		cleanup.Add(func() { vk.DestroyImageView(device.LogicalDevice, view, context.Allocator) })
	}

	if context.Samples != vk.SampleCount1Bit {
		color, err := ImageCreate(context, ImageOptions{
			Width:   swapchain.Extent.Width,
			Height:  swapchain.Extent.Height,
			Format:  swapchain.ImageFormat.Format,
			Samples: context.Samples,
			Usage: vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit) |
				vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
			Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			CreateView: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "color attachment")
		}
		swapchain.ColorAttachment = color
		cleanup.Add(func() { color.Destroy(context) })
	}

	depth, err := ImageCreate(context, ImageOptions{
		Width:      swapchain.Extent.Width,
		Height:     swapchain.Extent.Height,
		Format:     device.DepthFormat,
		Samples:    context.Samples,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		Aspect:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		CreateView: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "depth attachment")
	}
	swapchain.DepthAttachment = depth

	cleanup.Release()
	context.FramebufferWidth = swapchain.Extent.Width
	context.FramebufferHeight = swapchain.Extent.Height
	context.logger.Info("swapchain created: %dx%d, %d images", swapchain.Extent.Width, swapchain.Extent.Height, count)
	return swapchain, nil
}

// Destroy releases the framebuffers, the targets, the views and the chain.
// The images belong to the chain and are destroyed with it.
func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	for _, fb := range vs.Framebuffers {
		fb.Destroy(context)
	}
	vs.Framebuffers = nil
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy(context)
		vs.DepthAttachment = nil
	}
	if vs.ColorAttachment != nil {
		vs.ColorAttachment.Destroy(context)
		vs.ColorAttachment = nil
	}
	for _, view := range vs.Views {
		vk.DestroyImageView(device, view, context.Allocator)
	}
	vs.Views = nil
	if vs.Handle != nil {
		vk.DestroySwapchain(device, vs.Handle, context.Allocator)
		vs.Handle = nil
	}
	vs.Images = nil
	vs.ImageCount = 0
}

// AcquireNextImageIndex returns core.ErrPresentationStale when the chain is out
// of date. A suboptimal chain still yields a usable image.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailable vk.Semaphore) (uint32, error) {
	var index uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailable, vk.NullFence, &index)
	switch result {
	case vk.Success, vk.Suboptimal:
		return index, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrPresentationStale
	}
	return 0, check(result, "vkAcquireNextImage")
}

// Present returns core.ErrPresentationStale when the chain is out of date or
// suboptimal.
func (vs *VulkanSwapchain) Present(context *VulkanContext, renderComplete vk.Semaphore, imageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	result := vk.QueuePresent(context.Device.PresentQueue, &presentInfo)
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrPresentationStale
	}
	return check(result, "vkQueuePresent")
}
