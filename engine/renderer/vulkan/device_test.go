package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestPickSampleCount(t *testing.T) {
	counts := vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit | vk.SampleCount8Bit)

	assert.Equal(t, vk.SampleCount8Bit, pickSampleCount(counts, 0))
	assert.Equal(t, vk.SampleCount4Bit, pickSampleCount(counts, 4))
	assert.Equal(t, vk.SampleCount2Bit, pickSampleCount(counts, 3))
	assert.Equal(t, vk.SampleCount1Bit, pickSampleCount(counts, 1))
	assert.Equal(t, vk.SampleCount1Bit, pickSampleCount(vk.SampleCountFlags(vk.SampleCount1Bit), 0))
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_SUCCESS", VulkanResultString(vk.Success))
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate))
	assert.Equal(t, "VK_RESULT_UNKNOWN", VulkanResultString(vk.Result(12345)))

	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestCheckWrapsFailures(t *testing.T) {
	assert.NoError(t, check(vk.Success, "vkTest"))
	err := check(vk.ErrorOutOfHostMemory, "vkTest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "vkTest")
}

func TestVertexAttributesFollowVertexLayout(t *testing.T) {
	attrs := VertexAttributeDescriptions()
	assert.Len(t, attrs, 4)
	for i, a := range attrs {
		assert.Equal(t, uint32(i), a.Location)
	}
	assert.Equal(t, uint32(44), VertexBindingDescription().Stride)
	assert.Equal(t, vk.FormatR32g32Sfloat, attrs[3].Format)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "VK_LAYER", cString([]byte{'V', 'K', '_', 'L', 'A', 'Y', 'E', 'R', 0, 'x'}))
	assert.Equal(t, "abc", cString([]byte("abc")))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
}

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, uint32(1), MipLevelCount(1, 1))
	assert.Equal(t, uint32(1), MipLevelCount(0, 0))
	assert.Equal(t, uint32(9), MipLevelCount(256, 256))
	assert.Equal(t, uint32(10), MipLevelCount(300, 512))
	assert.Equal(t, uint32(7), MipLevelCount(64, 3))
}

func TestLinearBlitSupported(t *testing.T) {
	all := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit) |
		vk.FormatFeatureFlags(vk.FormatFeatureBlitSrcBit) |
		vk.FormatFeatureFlags(vk.FormatFeatureBlitDstBit)
	assert.True(t, linearBlitSupported(all))
	assert.True(t, linearBlitSupported(all|vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit)))
	assert.False(t, linearBlitSupported(all&^vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit)))
	assert.False(t, linearBlitSupported(vk.FormatFeatureFlags(vk.FormatFeatureBlitSrcBit)))
}

func TestSPIRVCodeSize(t *testing.T) {
	assert.Equal(t, uint64(0), spirvCodeSize(nil))
	assert.Equal(t, uint64(12), spirvCodeSize([]uint32{0x07230203, 0, 1}))
}
