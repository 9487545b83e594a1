package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/renderer"
)

const portabilitySubset = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

type physicalDeviceCandidate struct {
	handle     vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	features   vk.PhysicalDeviceFeatures
	queues     VulkanPhysicalDeviceQueueFamilyInfo
	support    VulkanSwapchainSupportInfo
	extensions []string
}

// SelectPhysicalDevice enumerates every adapter and keeps the first one able
// to render and present to the context's surface.
func SelectPhysicalDevice(context *VulkanContext) (*VulkanDevice, error) {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(context.Instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	handles := make([]vk.PhysicalDevice, count)
	if count > 0 {
		if err := check(vk.EnumeratePhysicalDevices(context.Instance, &count, handles), "vkEnumeratePhysicalDevices"); err != nil {
			return nil, err
		}
	}

	candidates := make([]physicalDeviceCandidate, 0, count)
	infos := make([]renderer.AdapterInfo, 0, count)
	for _, handle := range handles {
		candidate, info := describePhysicalDevice(handle, context.Surface)
		context.logger.Info("adapter %q: graphics=%t present=%t swapchain=%t formats=%d modes=%d anisotropy=%t",
			info.Name, info.GraphicsQueue, info.PresentQueue, info.SwapchainExtension,
			info.SurfaceFormats, info.PresentModes, info.SamplerAnisotropy)
		candidates = append(candidates, candidate)
		infos = append(infos, info)
	}

	selected, err := renderer.SelectAdapter(infos)
	if err != nil {
		return nil, err
	}
	chosen := candidates[selected]

	device := &VulkanDevice{
		PhysicalDevice:     chosen.handle,
		SwapchainSupport:   chosen.support,
		GraphicsQueueIndex: chosen.queues.GraphicsFamilyIndex,
		PresentQueueIndex:  chosen.queues.PresentFamilyIndex,
		Properties:         chosen.properties,
		Features:           chosen.features,
	}
	vk.GetPhysicalDeviceMemoryProperties(chosen.handle, &device.Memory)
	device.Memory.Deref()

	logDeviceInfo(context, device, infos[selected])
	return device, nil
}

func describePhysicalDevice(handle vk.PhysicalDevice, surface vk.Surface) (physicalDeviceCandidate, renderer.AdapterInfo) {
	candidate := physicalDeviceCandidate{handle: handle}
	vk.GetPhysicalDeviceProperties(handle, &candidate.properties)
	candidate.properties.Deref()
	candidate.properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(handle, &candidate.features)
	candidate.features.Deref()

	candidate.queues = findQueueFamilies(handle, surface)
	candidate.extensions = deviceExtensions(handle)
	_ = DeviceQuerySwapchainSupport(handle, surface, &candidate.support)

	info := renderer.AdapterInfo{
		Name:               cString(candidate.properties.DeviceName[:]),
		GraphicsQueue:      candidate.queues.GraphicsFamilyIndex >= 0,
		PresentQueue:       candidate.queues.PresentFamilyIndex >= 0,
		SwapchainExtension: hasExtension(candidate.extensions, vk.KhrSwapchainExtensionName),
		SurfaceFormats:     len(candidate.support.Formats),
		PresentModes:       len(candidate.support.PresentModes),
		SamplerAnisotropy:  candidate.features.SamplerAnisotropy == vk.True,
		Discrete:           candidate.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
	}
	return candidate, info
}

// findQueueFamilies prefers a family that can both draw and present.
func findQueueFamilies(handle vk.PhysicalDevice, surface vk.Surface) VulkanPhysicalDeviceQueueFamilyInfo {
	out := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &count, families)

	for i := range families {
		families[i].Deref()
		graphics := vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0

		var supportsPresent vk.Bool32
		if vk.GetPhysicalDeviceSurfaceSupport(handle, uint32(i), surface, &supportsPresent) != vk.Success {
			supportsPresent = vk.False
		}
		present := supportsPresent == vk.True

		if graphics && present {
			out.GraphicsFamilyIndex = int32(i)
			out.PresentFamilyIndex = int32(i)
			return out
		}
		if graphics && out.GraphicsFamilyIndex < 0 {
			out.GraphicsFamilyIndex = int32(i)
		}
		if present && out.PresentFamilyIndex < 0 {
			out.PresentFamilyIndex = int32(i)
		}
	}
	return out
}

func deviceExtensions(handle vk.PhysicalDevice) []string {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(handle, "", &count, nil) != vk.Success || count == 0 {
		return nil
	}
	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(handle, "", &count, available) != vk.Success {
		return nil
	}
	names := make([]string, 0, count)
	for i := range available {
		available[i].Deref()
		names = append(names, cString(available[i].ExtensionName[:]))
	}
	return names
}

func hasExtension(extensions []string, name string) bool {
	for _, ext := range extensions {
		if ext == name {
			return true
		}
	}
	return false
}

func logDeviceInfo(context *VulkanContext, device *VulkanDevice, info renderer.AdapterInfo) {
	kind := "unknown"
	switch device.Properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		kind = "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		kind = "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		kind = "virtual"
	case vk.PhysicalDeviceTypeCpu:
		kind = "cpu"
	}
	api := vk.Version(device.Properties.ApiVersion)
	context.logger.Info("selected device %q (%s), Vulkan API %d.%d.%d", info.Name, kind, api.Major(), api.Minor(), api.Patch())

	for j := uint32(0); j < device.Memory.MemoryHeapCount; j++ {
		heap := device.Memory.MemoryHeaps[j]
		heap.Deref()
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			context.logger.Info("local GPU memory: %.2f GiB", gib)
		} else {
			context.logger.Info("shared system memory: %.2f GiB", gib)
		}
	}
}

// DeviceCreate selects the adapter and creates the logical device, its queues
// and the graphics command pool.
func DeviceCreate(context *VulkanContext) error {
	device, err := SelectPhysicalDevice(context)
	if err != nil {
		return err
	}
	context.Device = device
	context.logger.Info("creating logical device")

	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, uint32(device.PresentQueueIndex))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}
	if device.Features.FillModeNonSolid == vk.True {
		deviceFeatures.FillModeNonSolid = vk.True
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if hasExtension(deviceExtensions(device.PhysicalDevice), portabilitySubset) {
		context.logger.Info("adding required extension %s", portabilitySubset)
		extensionNames = append(extensionNames, portabilitySubset)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if err := check(vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical), "vkCreateDevice"); err != nil {
		return err
	}
	device.LogicalDevice = logical

	vk.GetDeviceQueue(logical, uint32(device.GraphicsQueueIndex), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(logical, uint32(device.PresentQueueIndex), 0, &device.PresentQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := check(vk.CreateCommandPool(logical, &poolCreateInfo, context.Allocator, &pool), "vkCreateCommandPool"); err != nil {
		vk.DestroyDevice(logical, context.Allocator)
		device.LogicalDevice = nil
		return err
	}
	device.GraphicsCommandPool = pool

	if !DeviceDetectDepthFormat(device) {
		DeviceDestroy(context)
		return errors.New("no supported depth format")
	}
	context.logger.Info("logical device created")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	if device.GraphicsCommandPool != nil {
		context.logger.Debug("destroying command pool")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nil
	}
	if device.LogicalDevice != nil {
		context.logger.Debug("destroying logical device")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
}

// DeviceQuerySwapchainSupport refreshes the surface capabilities, formats and
// present modes of physicalDevice.
func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return err
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return err
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount > 0 {
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
			return err
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return err
	}
	supportInfo.PresentModes = make([]vk.PresentMode, modeCount)
	if modeCount > 0 {
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, supportInfo.PresentModes), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
			return err
		}
	}
	return nil
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags || properties.LinearTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	device.DepthFormat = vk.FormatUndefined
	return false
}

// MinUniformAlignment is the minimum dynamic uniform offset alignment.
func (d *VulkanDevice) MinUniformAlignment() uint32 {
	return uint32(d.Properties.Limits.MinUniformBufferOffsetAlignment)
}

// MaxUsableSampleCount is the largest sample count supported by both color
// and depth framebuffers, capped at limit (0 means no cap).
func (d *VulkanDevice) MaxUsableSampleCount(limit int) vk.SampleCountFlagBits {
	counts := d.Properties.Limits.FramebufferColorSampleCounts & d.Properties.Limits.FramebufferDepthSampleCounts
	return pickSampleCount(vk.SampleCountFlags(counts), limit)
}

func pickSampleCount(counts vk.SampleCountFlags, limit int) vk.SampleCountFlagBits {
	candidates := []struct {
		bit     vk.SampleCountFlagBits
		samples int
	}{
		{vk.SampleCount64Bit, 64},
		{vk.SampleCount32Bit, 32},
		{vk.SampleCount16Bit, 16},
		{vk.SampleCount8Bit, 8},
		{vk.SampleCount4Bit, 4},
		{vk.SampleCount2Bit, 2},
	}
	for _, c := range candidates {
		if limit > 0 && c.samples > limit {
			continue
		}
		if counts&vk.SampleCountFlags(c.bit) != 0 {
			return c.bit
		}
	}
	return vk.SampleCount1Bit
}

// SupportsLinearBlit reports whether optimally tiled images of format can be
// blitted with linear filtering, which mip generation needs.
func (vd *VulkanDevice) SupportsLinearBlit(format vk.Format) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(vd.PhysicalDevice, format, &props)
	props.Deref()
	return linearBlitSupported(props.OptimalTilingFeatures)
}

func linearBlitSupported(features vk.FormatFeatureFlags) bool {
	need := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit) |
		vk.FormatFeatureFlags(vk.FormatFeatureBlitSrcBit) |
		vk.FormatFeatureFlags(vk.FormatFeatureBlitDstBit)
	return features&need == need
}
