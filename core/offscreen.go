// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/devblok/penumbra/gfx"
	"github.com/devblok/penumbra/gfx/vkr"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// cubeFaceTransforms are the light views of the point shadow faces,
// in layer order +X, -X, +Y, -Y, +Z, -Z.
var cubeFaceTransforms = [6]glm.Mat4{
	glm.HomogRotate3DY(glm.DegToRad(90)).Mul4(glm.HomogRotate3DX(glm.DegToRad(180))),
	glm.HomogRotate3DY(glm.DegToRad(-90)).Mul4(glm.HomogRotate3DX(glm.DegToRad(180))),
	glm.HomogRotate3DX(glm.DegToRad(-90)),
	glm.HomogRotate3DX(glm.DegToRad(90)),
	glm.HomogRotate3DX(glm.DegToRad(180)),
	glm.HomogRotate3DZ(glm.DegToRad(180)),
}

// CubeFaceTransforms returns the view rotation of every cube face.
func CubeFaceTransforms() [6]glm.Mat4 {
	return cubeFaceTransforms
}

// Bounds is a bounding sphere.
type Bounds struct {
	Center glm.Vec3
	Radius float32
}

const shadowNear = 0.1

// directionalLightSpace fits an orthographic light frustum around bounds,
// looking along dir.
func directionalLightSpace(dir glm.Vec3, bounds Bounds) glm.Mat4 {
	r := bounds.Radius
	if r <= 0 {
		r = 1
	}
	dir = dir.Normalize()
	up := glm.Vec3{0, 1, 0}
	if abs32(dir.Dot(up)) > 0.99 {
		up = glm.Vec3{0, 0, 1}
	}
	eye := bounds.Center.Sub(dir.Mul(2 * r))
	view := glm.LookAtV(eye, bounds.Center, up)
	proj := vulkanProjection(glm.Ortho(-r, r, -r, r, shadowNear, 4*r))
	return proj.Mul4(view)
}

// pointLightProjection covers one cube face. The face rotations
// already orient the result, so only depth is remapped.
func pointLightProjection(far float32) glm.Mat4 {
	return depthCorrection.Mul4(glm.Perspective(glm.DegToRad(90), 1, shadowNear, far))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// shadowTarget is the depth image a single frame slot renders shadows into.
// shadowSamplerOptions describe a comparison sampler, shadow maps are read
// through sampler2DShadow and samplerCubeShadow. Lookups outside the map
// compare against the far plane and come out lit.
func shadowSamplerOptions() vkr.SamplerOptions {
	return vkr.SamplerOptions{
		Filter:      vk.FilterLinear,
		AddressMode: vk.SamplerAddressModeClampToBorder,
		BorderColor: vk.BorderColorFloatOpaqueWhite,
		Compare:     true,
		CompareOp:   vk.CompareOpLessOrEqual,
	}
}

type shadowTarget struct {
	image        vkr.Image
	view         vk.ImageView
	faceViews    []vk.ImageView
	framebuffers []vk.Framebuffer
}

// OffscreenOperation renders depth from a light's point of view into
// per slot images sampled later by the main pass.
type OffscreenOperation struct {
	kind   PassKind
	device vk.Device
	size   uint32
	format vk.Format

	renderPass vk.RenderPass
	pipeline   *Pipeline
	sampler    vk.Sampler
	targets    []shadowTarget

	log *log.Entry
}

// NewOffscreenOperation creates a shadow pass of kind with square
// size x size depth targets, one per frame in flight.
func NewOffscreenOperation(dev *Device, kind PassKind, size uint32, framesInFlight int, shaderDir string, src gfx.Source) (*OffscreenOperation, error) {
	var desc PipelineDescription
	switch kind {
	case DirectionalShadowPass:
		desc = directionalShadowDescription(shaderDir)
	case PointShadowPass:
		desc = pointShadowDescription(shaderDir)
	default:
		return nil, fmt.Errorf("%s is not an offscreen pass", kind)
	}
	if size == 0 {
		return nil, fmt.Errorf("%s: shadow map size must be positive", kind)
	}

	format, err := dev.DepthFormat()
	if err != nil {
		return nil, err
	}

	o := &OffscreenOperation{
		kind:   kind,
		device: dev.Logical(),
		size:   size,
		format: format,
		log:    log.WithField("component", "offscreen").WithField("pass", kind.String()),
	}

	if o.renderPass, err = newRenderPass(o.device, RenderPassDescription{Kind: kind, DepthFormat: format}); err != nil {
		return nil, err
	}
	for slot := 0; slot < framesInFlight; slot++ {
		target, err := o.createTarget(dev.Allocator())
		if err != nil {
			o.Destroy()
			return nil, err
		}
		o.targets = append(o.targets, target)
	}

	o.sampler, err = vkr.NewSampler(o.device, shadowSamplerOptions())
	if err != nil {
		o.Destroy()
		return nil, err
	}

	if o.pipeline, err = NewPipeline(dev, o.renderPass, desc, framesInFlight, src); err != nil {
		o.Destroy()
		return nil, err
	}

	o.log.WithFields(log.Fields{
		"size":         size,
		"framebuffers": len(o.targets) * kind.faces(),
	}).Debug("offscreen pass ready")
	return o, nil
}

func (o *OffscreenOperation) createTarget(ma *vkr.MemoryAllocator) (shadowTarget, error) {
	faces := uint32(o.kind.faces())
	var t shadowTarget
	var err error

	t.image, err = vkr.NewImage(ma, vkr.ImageOptions{
		Width:  o.size,
		Height: o.size,
		Format: o.format,
		Usage:  vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit,
		Layers: faces,
		Cube:   o.kind == PointShadowPass,
	})
	if err != nil {
		return t, err
	}

	switch o.kind {
	case DirectionalShadowPass:
		t.view, err = vkr.NewImageView(t.image, vk.ImageViewType2d, vk.ImageAspectDepthBit, 0, 1)
		if err != nil {
			o.destroyTarget(t)
			return t, err
		}
		t.faceViews = []vk.ImageView{t.view}
	case PointShadowPass:
		t.view, err = vkr.NewImageView(t.image, vk.ImageViewTypeCube, vk.ImageAspectDepthBit, 0, faces)
		if err != nil {
			o.destroyTarget(t)
			return t, err
		}
		for face := uint32(0); face < faces; face++ {
			view, err := vkr.NewImageView(t.image, vk.ImageViewType2d, vk.ImageAspectDepthBit, face, 1)
			if err != nil {
				o.destroyTarget(t)
				return t, err
			}
			t.faceViews = append(t.faceViews, view)
		}
	}

	for _, view := range t.faceViews {
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      o.renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           o.size,
			Height:          o.size,
			Layers:          1,
		}
		var framebuffer vk.Framebuffer
		if err := vkr.Check("vk.CreateFramebuffer()", vk.CreateFramebuffer(o.device, &fci, nil, &framebuffer)); err != nil {
			o.destroyTarget(t)
			return t, err
		}
		t.framebuffers = append(t.framebuffers, framebuffer)
	}
	return t, nil
}

func (o *OffscreenOperation) destroyTarget(t shadowTarget) {
	for _, fb := range t.framebuffers {
		vk.DestroyFramebuffer(o.device, fb, nil)
	}
	for _, view := range t.faceViews {
		if view != t.view {
			vk.DestroyImageView(o.device, view, nil)
		}
	}
	if t.view != nil {
		vk.DestroyImageView(o.device, t.view, nil)
	}
	t.image.Release()
}

// Kind of the pass
func (o *OffscreenOperation) Kind() PassKind {
	return o.kind
}

// Extent of every face
func (o *OffscreenOperation) Extent() vk.Extent2D {
	return vk.Extent2D{Width: o.size, Height: o.size}
}

// RenderPass returns the depth only render pass.
func (o *OffscreenOperation) RenderPass() vk.RenderPass {
	return o.renderPass
}

// Pipeline returns the pipeline drawing into the pass.
func (o *OffscreenOperation) Pipeline() *Pipeline {
	return o.pipeline
}

// Framebuffer returns the framebuffer of a slot's face.
func (o *OffscreenOperation) Framebuffer(slot, face int) vk.Framebuffer {
	return o.targets[slot].framebuffers[face]
}

// Framebuffers counts framebuffers over all slots.
func (o *OffscreenOperation) Framebuffers() int {
	n := 0
	for _, t := range o.targets {
		n += len(t.framebuffers)
	}
	return n
}

// View returns the view the main pass samples for slot.
func (o *OffscreenOperation) View(slot int) vk.ImageView {
	return o.targets[slot].view
}

// Sampler returns the shadow map sampler.
func (o *OffscreenOperation) Sampler() vk.Sampler {
	return o.sampler
}

// Destroy implements interface
func (o *OffscreenOperation) Destroy() {
	if o.pipeline != nil {
		o.pipeline.Destroy()
		o.pipeline = nil
	}
	if o.sampler != nil {
		vk.DestroySampler(o.device, o.sampler, nil)
		o.sampler = nil
	}
	for _, t := range o.targets {
		o.destroyTarget(t)
	}
	o.targets = nil
	if o.renderPass != nil {
		vk.DestroyRenderPass(o.device, o.renderPass, nil)
		o.renderPass = nil
	}
}
