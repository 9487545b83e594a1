package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/assets/loaders"
)

// ShaderSource returns compiled SPIR-V words for a named shader stage.
// *assets.AssetManager implements it.
type ShaderSource interface {
	LoadShader(name string, stage loaders.ShaderStage) ([]uint32, error)
}

// VulkanShaderStage is one compiled module and the stage info that uses it.
type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func ShaderModuleCreate(context *VulkanContext, source ShaderSource, name string, stage loaders.ShaderStage) (*VulkanShaderStage, error) {
	code, err := source.LoadShader(name, stage)
	if err != nil {
		return nil, errors.Wrapf(err, "load shader %s.%s", name, stage)
	}
	if len(code) == 0 {
		return nil, errors.Newf("shader %s.%s is empty", name, stage)
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: spirvCodeSize(code),
		PCode:    code,
	}
	out := &VulkanShaderStage{}
	if err := check(vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &out.Handle), "vkCreateShaderModule"); err != nil {
		return nil, errors.Wrapf(err, "shader %s.%s", name, stage)
	}

	flag := vk.ShaderStageVertexBit
	if stage == loaders.ShaderStageFragment {
		flag = vk.ShaderStageFragmentBit
	}
	out.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  flag,
		Module: out.Handle,
		PName:  VulkanSafeString("main"),
	}
	return out, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
	}
}

// spirvCodeSize is the module size in bytes.
func spirvCodeSize(code []uint32) uint64 {
	return uint64(len(code)) * 4
}
