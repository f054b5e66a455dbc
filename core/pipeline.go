// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/devblok/penumbra/gfx"
	"github.com/devblok/penumbra/gfx/vkr"
	"github.com/devblok/penumbra/model"
	vk "github.com/vulkan-go/vulkan"
)

// NoShader marks a pipeline stage as not used
const NoShader = ""

// SamplerBinding is a combined image sampler slot of a pipeline.
type SamplerBinding struct {
	Binding uint32
	Stages  vk.ShaderStageFlagBits
}

// PipelineDescription declares a graphics pipeline. Binding 0 is always
// the uniform buffer of UniformSize bytes.
type PipelineDescription struct {
	Name string

	VertexShader   string
	GeometryShader string
	FragmentShader string

	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription

	Topology  vk.PrimitiveTopology
	CullMode  vk.CullModeFlagBits
	FrontFace vk.FrontFace
	Samples   vk.SampleCountFlagBits

	DepthTest    bool
	DepthWrite   bool
	DepthCompare vk.CompareOp

	DepthBias         bool
	DepthBiasConstant float32
	DepthBiasSlope    float32

	ColorAttachments int
	BlendEnable      bool
	ColorWriteMask   vk.ColorComponentFlagBits

	DynamicStates []vk.DynamicState

	UniformSize   int
	UniformStages vk.ShaderStageFlagBits
	Samplers      []SamplerBinding
	PushConstants []vk.PushConstantRange
}

// shaders lists the used stages in pipeline order.
func (d PipelineDescription) shaders() []string {
	var paths []string
	for _, p := range []string{d.VertexShader, d.GeometryShader, d.FragmentShader} {
		if p != NoShader {
			paths = append(paths, p)
		}
	}
	return paths
}

func (d PipelineDescription) validate() error {
	if d.VertexShader == NoShader {
		return errors.New("vertex shader is required")
	}
	expected := map[string]ShaderType{
		d.VertexShader:   VertexShaderType,
		d.GeometryShader: GeometryShaderType,
		d.FragmentShader: FragmentShaderType,
	}
	seen := make(map[ShaderType]bool)
	for _, path := range d.shaders() {
		st := shaderTypeFromPath(path)
		if st != expected[path] {
			return fmt.Errorf("%s is in the wrong stage slot", path)
		}
		if seen[st] {
			return fmt.Errorf("stage of %s given twice", path)
		}
		seen[st] = true
	}
	if d.UniformSize <= 0 {
		return errors.New("uniform size must be positive")
	}
	for _, s := range d.Samplers {
		if s.Binding == 0 {
			return errors.New("binding 0 is reserved for the uniform buffer")
		}
	}
	return nil
}

// clone deep copies the slices so the pipeline owns them.
func (d PipelineDescription) clone() PipelineDescription {
	d.Bindings = append([]vk.VertexInputBindingDescription(nil), d.Bindings...)
	d.Attributes = append([]vk.VertexInputAttributeDescription(nil), d.Attributes...)
	d.DynamicStates = append([]vk.DynamicState(nil), d.DynamicStates...)
	d.Samplers = append([]SamplerBinding(nil), d.Samplers...)
	d.PushConstants = append([]vk.PushConstantRange(nil), d.PushConstants...)
	return d
}

// Pipeline is a graphics pipeline together with its descriptor sets and
// one persistently mapped uniform buffer per frame in flight.
type Pipeline struct {
	device      vk.Device
	description PipelineDescription

	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	sets      []vk.DescriptorSet
	uniforms  []vkr.Buffer

	layout   vk.PipelineLayout
	pipeline vk.Pipeline
}

// NewPipeline builds the pipeline for renderPass. Any failure is wrapped
// in ErrPipelineCreation.
func NewPipeline(dev *Device, renderPass vk.RenderPass, desc PipelineDescription, framesInFlight int, src gfx.Source) (*Pipeline, error) {
	if err := desc.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPipelineCreation, desc.Name, err)
	}

	p := &Pipeline{
		device:      dev.Logical(),
		description: desc.clone(),
	}
	if err := p.build(dev, renderPass, framesInFlight, src); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("%w: %s: %v", ErrPipelineCreation, desc.Name, err)
	}
	return p, nil
}

func (p *Pipeline) build(dev *Device, renderPass vk.RenderPass, framesInFlight int, src gfx.Source) error {
	if err := p.createDescriptors(dev.Allocator(), framesInFlight); err != nil {
		return err
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{p.setLayout},
		PushConstantRangeCount: uint32(len(p.description.PushConstants)),
		PPushConstantRanges:    p.description.PushConstants,
	}
	if err := vkr.Check("vk.CreatePipelineLayout()", vk.CreatePipelineLayout(p.device, &plci, nil, &p.layout)); err != nil {
		return err
	}

	var shaders []*VulkanShader
	defer func() {
		for _, s := range shaders {
			s.Destroy()
		}
	}()
	var stages []vk.PipelineShaderStageCreateInfo
	for _, path := range p.description.shaders() {
		shader, err := NewVulkanShader(p.device, src, path)
		if err != nil {
			return err
		}
		shaders = append(shaders, shader)
		stages = append(stages, shader.stageInfo())
	}

	gpci := p.createInfo(stages, renderPass)
	pipelines := make([]vk.Pipeline, 1)
	if err := vkr.Check("vk.CreateGraphicsPipelines()", vk.CreateGraphicsPipelines(p.device, dev.PipelineCache(), 1, []vk.GraphicsPipelineCreateInfo{gpci}, nil, pipelines)); err != nil {
		return err
	}
	p.pipeline = pipelines[0]
	return nil
}

func (p *Pipeline) createInfo(stages []vk.PipelineShaderStageCreateInfo, renderPass vk.RenderPass) vk.GraphicsPipelineCreateInfo {
	d := p.description

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, d.ColorAttachments)
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.Bool32(boolToUint(d.BlendEnable)),
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      vk.ColorComponentFlags(d.ColorWriteMask),
		}
	}

	samples := d.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}

	keep := vk.StencilOpState{
		FailOp:    vk.StencilOpKeep,
		PassOp:    vk.StencilOpKeep,
		CompareOp: vk.CompareOpAlways,
	}

	return vk.GraphicsPipelineCreateInfo{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(d.Bindings)),
			PVertexBindingDescriptions:      d.Bindings,
			VertexAttributeDescriptionCount: uint32(len(d.Attributes)),
			PVertexAttributeDescriptions:    d.Attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: d.Topology,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode:             vk.PolygonModeFill,
			CullMode:                vk.CullModeFlags(d.CullMode),
			FrontFace:               d.FrontFace,
			DepthBiasEnable:         vk.Bool32(boolToUint(d.DepthBias)),
			DepthBiasConstantFactor: d.DepthBiasConstant,
			DepthBiasSlopeFactor:    d.DepthBiasSlope,
			LineWidth:               1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       vk.Bool32(boolToUint(d.DepthTest)),
			DepthWriteEnable:      vk.Bool32(boolToUint(d.DepthWrite)),
			DepthCompareOp:        d.DepthCompare,
			DepthBoundsTestEnable: vk.False,
			StencilTestEnable:     vk.False,
			Front:                 keep,
			Back:                  keep,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: samples,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blendAttachments)),
			PAttachments:    blendAttachments,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(d.DynamicStates)),
			PDynamicStates:    d.DynamicStates,
		},
		Layout:     p.layout,
		RenderPass: renderPass,
	}
}

func (p *Pipeline) createDescriptors(ma *vkr.MemoryAllocator, framesInFlight int) error {
	d := p.description

	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(d.UniformStages),
	}}
	for _, s := range d.Samplers {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         s.Binding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(s.Stages),
		})
	}

	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if err := vkr.Check("vk.CreateDescriptorSetLayout()", vk.CreateDescriptorSetLayout(p.device, &dslci, nil, &p.setLayout)); err != nil {
		return err
	}

	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: uint32(framesInFlight),
	}}
	if len(d.Samplers) > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(framesInFlight * len(d.Samplers)),
		})
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(framesInFlight),
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if err := vkr.Check("vk.CreateDescriptorPool()", vk.CreateDescriptorPool(p.device, &dpci, nil, &p.pool)); err != nil {
		return err
	}

	layouts := make([]vk.DescriptorSetLayout, framesInFlight)
	for i := range layouts {
		layouts[i] = p.setLayout
	}
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.pool,
		DescriptorSetCount: uint32(framesInFlight),
		PSetLayouts:        layouts,
	}
	p.sets = make([]vk.DescriptorSet, framesInFlight)
	if err := vkr.Check("vk.AllocateDescriptorSets()", vk.AllocateDescriptorSets(p.device, &dsai, &p.sets[0])); err != nil {
		return err
	}

	for slot := 0; slot < framesInFlight; slot++ {
		buf, err := vkr.NewHostBuffer(ma, d.UniformSize, vk.BufferUsageUniformBufferBit)
		if err != nil {
			return err
		}
		p.uniforms = append(p.uniforms, buf)
		if _, err := p.uniforms[slot].Mem().Map(); err != nil {
			return err
		}

		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          p.sets[slot],
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buf.Get(),
				Offset: 0,
				Range:  vk.DeviceSize(d.UniformSize),
			}},
		}
		vk.UpdateDescriptorSets(p.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	}
	return nil
}

// Description returns the description the pipeline was built from.
func (p *Pipeline) Description() PipelineDescription {
	return p.description.clone()
}

// Handle returns the vulkan pipeline.
func (p *Pipeline) Handle() vk.Pipeline {
	return p.pipeline
}

// Layout returns the pipeline layout.
func (p *Pipeline) Layout() vk.PipelineLayout {
	return p.layout
}

// Set returns the descriptor set of a frame slot.
func (p *Pipeline) Set(slot int) vk.DescriptorSet {
	return p.sets[slot]
}

// BindImage points a sampler binding of every slot's set at view.
func (p *Pipeline) BindImage(binding uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	for slot := range p.sets {
		p.BindSlotImage(slot, binding, view, sampler, layout)
	}
}

// BindSlotImage points a sampler binding of one slot's set at view.
func (p *Pipeline) BindSlotImage(slot int, binding uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          p.sets[slot],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: layout,
		}},
	}
	vk.UpdateDescriptorSets(p.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// WriteUniform copies size bytes at ptr into the slot's uniform buffer.
// The slot's fence must have been waited on.
func (p *Pipeline) WriteUniform(slot int, ptr unsafe.Pointer, size int) error {
	if size > p.description.UniformSize {
		return fmt.Errorf("%s: uniform of %d bytes does not fit %d", p.description.Name, size, p.description.UniformSize)
	}
	return p.uniforms[slot].Mem().Write(vkr.Bytes(ptr, size))
}

// Destroy implements interface
func (p *Pipeline) Destroy() {
	if p.pipeline != nil {
		vk.DestroyPipeline(p.device, p.pipeline, nil)
		p.pipeline = nil
	}
	if p.layout != nil {
		vk.DestroyPipelineLayout(p.device, p.layout, nil)
		p.layout = nil
	}
	for i := range p.uniforms {
		p.uniforms[i].Release()
	}
	p.uniforms = nil
	if p.pool != nil {
		vk.DestroyDescriptorPool(p.device, p.pool, nil)
		p.pool = nil
	}
	p.sets = nil
	if p.setLayout != nil {
		vk.DestroyDescriptorSetLayout(p.device, p.setLayout, nil)
		p.setLayout = nil
	}
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func dynamicViewport() []vk.DynamicState {
	return []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
}

func colorMask() vk.ColorComponentFlagBits {
	return vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit
}

// Scene binds: 1 texture, 2 directional shadow map, 3 point shadow cubemap.
const (
	textureBinding           = 1
	directionalShadowBinding = 2
	pointShadowBinding       = 3
	cubemapBinding           = 1
)

func sceneDescription(dir string, samples vk.SampleCountFlagBits) PipelineDescription {
	return PipelineDescription{
		Name:             "scene",
		VertexShader:     dir + "/scene.vert.spv",
		FragmentShader:   dir + "/scene.frag.spv",
		Bindings:         model.VertexBindingDescriptions(),
		Attributes:       model.VertexAttributeDescriptions(),
		Topology:         vk.PrimitiveTopologyTriangleList,
		CullMode:         vk.CullModeBackBit,
		FrontFace:        vk.FrontFaceCounterClockwise,
		Samples:          samples,
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     vk.CompareOpLessOrEqual,
		ColorAttachments: 1,
		ColorWriteMask:   colorMask(),
		DynamicStates:    dynamicViewport(),
		UniformSize:      int(unsafe.Sizeof(SceneUniform{})),
		UniformStages:    vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit,
		Samplers: []SamplerBinding{
			{Binding: textureBinding, Stages: vk.ShaderStageFragmentBit},
			{Binding: directionalShadowBinding, Stages: vk.ShaderStageFragmentBit},
			{Binding: pointShadowBinding, Stages: vk.ShaderStageFragmentBit},
		},
		PushConstants: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       modelPushSize,
		}},
	}
}

func normalsDescription(dir string, samples vk.SampleCountFlagBits) PipelineDescription {
	return PipelineDescription{
		Name:             "normals",
		VertexShader:     dir + "/normals.vert.spv",
		GeometryShader:   dir + "/normals.geom.spv",
		FragmentShader:   dir + "/normals.frag.spv",
		Bindings:         model.VertexBindingDescriptions(),
		Attributes:       model.VertexAttributeDescriptions(),
		Topology:         vk.PrimitiveTopologyTriangleList,
		CullMode:         vk.CullModeNone,
		FrontFace:        vk.FrontFaceCounterClockwise,
		Samples:          samples,
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     vk.CompareOpLessOrEqual,
		ColorAttachments: 1,
		ColorWriteMask:   colorMask(),
		DynamicStates:    dynamicViewport(),
		UniformSize:      int(unsafe.Sizeof(NormalsUniform{})),
		UniformStages:    vk.ShaderStageVertexBit | vk.ShaderStageGeometryBit,
		PushConstants: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       modelPushSize,
		}},
	}
}

func skyboxDescription(dir string, samples vk.SampleCountFlagBits) PipelineDescription {
	return PipelineDescription{
		Name:           "skybox",
		VertexShader:   dir + "/skybox.vert.spv",
		FragmentShader: dir + "/skybox.frag.spv",
		Bindings:       model.PositionBindingDescriptions(),
		Attributes:     model.PositionAttributeDescriptions(),
		Topology:       vk.PrimitiveTopologyTriangleList,
		CullMode:       vk.CullModeFrontBit,
		FrontFace:      vk.FrontFaceCounterClockwise,
		Samples:        samples,
		// Drawn first, behind everything
		DepthTest:        false,
		DepthWrite:       false,
		DepthCompare:     vk.CompareOpLessOrEqual,
		ColorAttachments: 1,
		ColorWriteMask:   colorMask(),
		DynamicStates:    dynamicViewport(),
		UniformSize:      int(unsafe.Sizeof(SkyboxUniform{})),
		UniformStages:    vk.ShaderStageVertexBit,
		Samplers: []SamplerBinding{
			{Binding: cubemapBinding, Stages: vk.ShaderStageFragmentBit},
		},
	}
}

func directionalShadowDescription(dir string) PipelineDescription {
	return PipelineDescription{
		Name:              "directional shadow",
		VertexShader:      dir + "/shadow.vert.spv",
		Bindings:          model.VertexBindingDescriptions(),
		Attributes:        model.VertexAttributeDescriptions(),
		Topology:          vk.PrimitiveTopologyTriangleList,
		CullMode:          vk.CullModeNone,
		FrontFace:         vk.FrontFaceCounterClockwise,
		Samples:           vk.SampleCount1Bit,
		DepthTest:         true,
		DepthWrite:        true,
		DepthCompare:      vk.CompareOpLessOrEqual,
		DepthBias:         true,
		DepthBiasConstant: 1.25,
		DepthBiasSlope:    1.75,
		DynamicStates:     dynamicViewport(),
		UniformSize:       int(unsafe.Sizeof(DirectionalShadowUniform{})),
		UniformStages:     vk.ShaderStageVertexBit,
		PushConstants: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       shadowPushSize,
		}},
	}
}

func pointShadowDescription(dir string) PipelineDescription {
	return PipelineDescription{
		Name:             "point shadow",
		VertexShader:     dir + "/pointshadow.vert.spv",
		FragmentShader:   dir + "/pointshadow.frag.spv",
		Bindings:         model.VertexBindingDescriptions(),
		Attributes:       model.VertexAttributeDescriptions(),
		Topology:         vk.PrimitiveTopologyTriangleList,
		CullMode:         vk.CullModeNone,
		FrontFace:        vk.FrontFaceCounterClockwise,
		Samples:          vk.SampleCount1Bit,
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     vk.CompareOpLessOrEqual,
		DynamicStates:    dynamicViewport(),
		UniformSize:      int(unsafe.Sizeof(PointShadowUniform{})),
		UniformStages:    vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit,
		PushConstants: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       pointShadowPushSize,
		}},
	}
}
