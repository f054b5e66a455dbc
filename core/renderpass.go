// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/penumbra/gfx/vkr"
	vk "github.com/vulkan-go/vulkan"
)

// PassKind tags the render passes of a frame.
type PassKind int

// Frames record their passes in this order
const (
	DirectionalShadowPass PassKind = iota
	PointShadowPass
	MainPass
)

func (k PassKind) String() string {
	switch k {
	case DirectionalShadowPass:
		return "directional shadow"
	case PointShadowPass:
		return "point shadow"
	case MainPass:
		return "main"
	}
	return fmt.Sprintf("PassKind(%d)", int(k))
}

// faces returns how many framebuffers the pass needs per frame in flight.
func (k PassKind) faces() int {
	if k == PointShadowPass {
		return 6
	}
	return 1
}

// RenderPassDescription is everything needed to build a pass of a given kind.
type RenderPassDescription struct {
	Kind        PassKind
	ColorFormat vk.Format
	DepthFormat vk.Format
	Samples     vk.SampleCountFlagBits
}

func newRenderPass(dev vk.Device, desc RenderPassDescription) (vk.RenderPass, error) {
	var rpci vk.RenderPassCreateInfo
	switch desc.Kind {
	case DirectionalShadowPass, PointShadowPass:
		rpci = shadowRenderPass(desc)
	case MainPass:
		rpci = mainRenderPass(desc)
	default:
		return nil, fmt.Errorf("unknown render pass kind %s", desc.Kind)
	}

	var renderPass vk.RenderPass
	if err := vkr.Check("vk.CreateRenderPass()", vk.CreateRenderPass(dev, &rpci, nil, &renderPass)); err != nil {
		return nil, err
	}
	return renderPass, nil
}

// shadowRenderPass writes depth only, the result is sampled by the main pass.
func shadowRenderPass(desc RenderPassDescription) vk.RenderPassCreateInfo {
	attachments := []vk.AttachmentDescription{{
		Format:         desc.DepthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilReadOnlyOptimal,
	}}

	depthRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    0,
		PDepthStencilAttachment: &depthRef,
	}

	dependencies := []vk.SubpassDependency{{
		SrcSubpass:      vk.SubpassExternal,
		DstSubpass:      0,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
		DstAccessMask:   vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
	}, {
		SrcSubpass:      0,
		DstSubpass:      vk.SubpassExternal,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		SrcAccessMask:   vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		DstAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
		DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
	}}

	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
}

// mainRenderPass draws color and depth into the swapchain image. With
// multisampling the color target is resolved into the swapchain image.
func mainRenderPass(desc RenderPassDescription) vk.RenderPassCreateInfo {
	multisampled := desc.Samples != vk.SampleCount1Bit

	colorFinal := vk.ImageLayoutPresentSrc
	colorStore := vk.AttachmentStoreOpStore
	if multisampled {
		colorFinal = vk.ImageLayoutColorAttachmentOptimal
		colorStore = vk.AttachmentStoreOpDontCare
	}

	attachments := []vk.AttachmentDescription{{
		Format:         desc.ColorFormat,
		Samples:        desc.Samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        colorStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    colorFinal,
	}, {
		Format:         desc.DepthFormat,
		Samples:        desc.Samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}}

	colorRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRef)),
		PColorAttachments:       colorRef,
		PDepthStencilAttachment: &depthRef,
	}

	if multisampled {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         desc.ColorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		})
		subpass.PResolveAttachments = []vk.AttachmentReference{{
			Attachment: 2,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
}

// mainAttachments orders framebuffer views the way mainRenderPass expects them.
func mainAttachments(samples vk.SampleCountFlagBits, swapchainView, colorView, depthView vk.ImageView) []vk.ImageView {
	if samples == vk.SampleCount1Bit {
		return []vk.ImageView{swapchainView, depthView}
	}
	return []vk.ImageView{colorView, depthView, swapchainView}
}

// clearValues returns the clear values for a pass of kind k.
func clearValues(k PassKind, samples vk.SampleCountFlagBits) []vk.ClearValue {
	if k != MainPass {
		return []vk.ClearValue{vk.NewClearDepthStencil(1, 0)}
	}
	values := []vk.ClearValue{
		vk.NewClearValue([]float32{0.005, 0.005, 0.005, 1}),
		vk.NewClearDepthStencil(1, 0),
	}
	if samples != vk.SampleCount1Bit {
		values = append(values, vk.NewClearValue([]float32{0.005, 0.005, 0.005, 1}))
	}
	return values
}
