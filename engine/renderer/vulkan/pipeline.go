package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-editor/engine/assets/loaders"
	"github.com/spaghettifunk/anima-editor/engine/core"
	"github.com/spaghettifunk/anima-editor/engine/math"
	"github.com/spaghettifunk/anima-editor/engine/renderer"
)

// VulkanPipeline holds a pipeline handle. The layout is shared by the set.
type VulkanPipeline struct {
	Handle vk.Pipeline
}

type VulkanPipelineConfig struct {
	Renderpass *VulkanRenderpass
	Layout     vk.PipelineLayout
	Stages     []vk.PipelineShaderStageCreateInfo
	Topology   vk.PrimitiveTopology
	CullMode   vk.CullModeFlagBits
	Samples    vk.SampleCountFlagBits
}

// pipelineSources lists the shader program and topology of each pipeline.
var pipelineSources = [renderer.PipelineCount]struct {
	shader   string
	topology vk.PrimitiveTopology
}{
	renderer.PipelineUnlit: {"shader", vk.PrimitiveTopologyTriangleList},
	renderer.PipelinePhong: {"phong", vk.PrimitiveTopologyTriangleList},
	renderer.PipelineLine:  {"shader", vk.PrimitiveTopologyLineList},
	renderer.PipelinePoint: {"shader", vk.PrimitiveTopologyPointList},
}

// VertexBindingDescription describes one interleaved math.Vertex per vertex.
func VertexBindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    math.VertexSize,
		InputRate: vk.VertexInputRateVertex,
	}
}

// VertexAttributeDescriptions maps locations 0 to 3 to position, color,
// normal and texture coordinate.
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: math.VertexPositionOffset},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: math.VertexColorOffset},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: math.VertexNormalOffset},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: math.VertexTexCoordOffset},
	}
}

func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	// Viewport and scissor are dynamic, only the counts are fixed here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(config.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: config.Samples,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MaxDepthBounds:        1.0,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	attributes := VertexAttributeDescriptions()
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{VertexBindingDescription()},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               config.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              config.Layout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pipelines), "vkCreateGraphicsPipelines"); err != nil {
		return nil, err
	}
	return &VulkanPipeline{Handle: pipelines[0]}, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
	}
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, pipeline.Handle)
}

// VulkanPipelineSet is the shared layout and one pipeline per shading mode.
type VulkanPipelineSet struct {
	Layout    vk.PipelineLayout
	Pipelines [renderer.PipelineCount]*VulkanPipeline
}

func PipelineLayoutCreate(context *VulkanContext, setLayout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	var layout vk.PipelineLayout
	if err := check(vk.CreatePipelineLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout), "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}
	return layout, nil
}

// PipelineSetCreate compiles every pipeline against renderpass. Shader
// modules are released once the pipelines exist.
func PipelineSetCreate(context *VulkanContext, shaders ShaderSource, renderpass *VulkanRenderpass, layout vk.PipelineLayout) (*VulkanPipelineSet, error) {
	modules := map[string][]*VulkanShaderStage{}
	defer func() {
		for _, stages := range modules {
			for _, stage := range stages {
				stage.Destroy(context)
			}
		}
	}()

	cleanup := core.NewCleanup()
	defer cleanup.Run()

	set := &VulkanPipelineSet{Layout: layout}
	for p, source := range pipelineSources {
		stages, ok := modules[source.shader]
		if !ok {
			for _, stage := range []loaders.ShaderStage{loaders.ShaderStageVertex, loaders.ShaderStageFragment} {
				module, err := ShaderModuleCreate(context, shaders, source.shader, stage)
				if err != nil {
					return nil, err
				}
				stages = append(stages, module)
				modules[source.shader] = stages
			}
		}

		pipeline, err := NewGraphicsPipeline(context, &VulkanPipelineConfig{
			Renderpass: renderpass,
			Layout:     layout,
			Stages:     []vk.PipelineShaderStageCreateInfo{stages[0].ShaderStageCreateInfo, stages[1].ShaderStageCreateInfo},
			Topology:   source.topology,
			CullMode:   vk.CullModeBackBit,
			Samples:    context.Samples,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "%s pipeline", renderer.Pipeline(p))
		}
		set.Pipelines[p] = pipeline
		cleanup.Add(func() { pipeline.Destroy(context) })
	}
	cleanup.Release()
	context.logger.Debug("%d graphics pipelines created", len(set.Pipelines))
	return set, nil
}

// Get returns the pipeline for p, falling back to unlit for unknown modes.
func (ps *VulkanPipelineSet) Get(p renderer.Pipeline) *VulkanPipeline {
	if p >= renderer.PipelineCount {
		return ps.Pipelines[renderer.PipelineUnlit]
	}
	return ps.Pipelines[p]
}

// Destroy releases the pipelines. The layout outlives them and is destroyed
// by its owner.
func (ps *VulkanPipelineSet) Destroy(context *VulkanContext) {
	for _, pipeline := range ps.Pipelines {
		if pipeline != nil {
			pipeline.Destroy(context)
		}
	}
}
