// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// commandRecorder is the subset of command buffer recording the frame uses.
type commandRecorder interface {
	BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clear []vk.ClearValue)
	EndRenderPass()
	SetViewport(extent vk.Extent2D)
	SetScissor(extent vk.Extent2D)
	BindPipeline(pipeline vk.Pipeline)
	BindVertexBuffer(buffer vk.Buffer)
	BindIndexBuffer(buffer vk.Buffer)
	BindDescriptorSet(layout vk.PipelineLayout, set vk.DescriptorSet)
	PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, data unsafe.Pointer)
	Draw(vertexCount uint32)
	DrawIndexed(indexCount uint32)
}

// vkRecorder records into a vulkan command buffer.
type vkRecorder struct {
	cmd vk.CommandBuffer
}

func (r vkRecorder) BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clear []vk.ClearValue) {
	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{
				X: 0, Y: 0,
			},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}
	vk.CmdBeginRenderPass(r.cmd, &rpbi, vk.SubpassContentsInline)
}

func (r vkRecorder) EndRenderPass() {
	vk.CmdEndRenderPass(r.cmd)
}

func (r vkRecorder) SetViewport(extent vk.Extent2D) {
	vk.CmdSetViewport(r.cmd, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (r vkRecorder) SetScissor(extent vk.Extent2D) {
	vk.CmdSetScissor(r.cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}})
}

func (r vkRecorder) BindPipeline(pipeline vk.Pipeline) {
	vk.CmdBindPipeline(r.cmd, vk.PipelineBindPointGraphics, pipeline)
}

func (r vkRecorder) BindVertexBuffer(buffer vk.Buffer) {
	vk.CmdBindVertexBuffers(r.cmd, 0, 1, []vk.Buffer{buffer}, []vk.DeviceSize{0})
}

func (r vkRecorder) BindIndexBuffer(buffer vk.Buffer) {
	vk.CmdBindIndexBuffer(r.cmd, buffer, 0, vk.IndexTypeUint32)
}

func (r vkRecorder) BindDescriptorSet(layout vk.PipelineLayout, set vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(r.cmd, vk.PipelineBindPointGraphics, layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
}

func (r vkRecorder) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, data unsafe.Pointer) {
	vk.CmdPushConstants(r.cmd, layout, stages, offset, size, data)
}

func (r vkRecorder) Draw(vertexCount uint32) {
	vk.CmdDraw(r.cmd, vertexCount, 1, 0, 0)
}

func (r vkRecorder) DrawIndexed(indexCount uint32) {
	vk.CmdDrawIndexed(r.cmd, indexCount, 1, 0, 0, 0)
}

// sceneObject is a mesh placed in the world.
type sceneObject struct {
	mesh  *Mesh
	model glm.Mat4
}

// frameInputs is everything recorded into one slot's command buffer.
type frameInputs struct {
	slot int

	directional *OffscreenOperation
	point       *OffscreenOperation

	mainPass    vk.RenderPass
	framebuffer vk.Framebuffer
	extent      vk.Extent2D
	samples     vk.SampleCountFlagBits

	skybox  *Pipeline
	scene   *Pipeline
	normals *Pipeline // nil without geometry shader support

	skyboxMesh *Mesh
	objects    []sceneObject
}

func beginPass(rec commandRecorder, renderPass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clear []vk.ClearValue) {
	rec.BeginRenderPass(renderPass, framebuffer, extent, clear)
	rec.SetViewport(extent)
	rec.SetScissor(extent)
}

// recordFrame records the directional shadow, the six point shadow
// faces and the main pass, always in that order.
func recordFrame(rec commandRecorder, in frameInputs) {
	d := in.directional
	beginPass(rec, d.RenderPass(), d.Framebuffer(in.slot, 0), d.Extent(), clearValues(DirectionalShadowPass, vk.SampleCount1Bit))
	for _, obj := range in.objects {
		push := shadowPush{Model: obj.model}
		recordDraw(rec, d.Pipeline(), in.slot, obj.mesh, unsafe.Pointer(&push))
	}
	rec.EndRenderPass()

	p := in.point
	faces := CubeFaceTransforms()
	for face := range faces {
		beginPass(rec, p.RenderPass(), p.Framebuffer(in.slot, face), p.Extent(), clearValues(PointShadowPass, vk.SampleCount1Bit))
		for _, obj := range in.objects {
			push := pointShadowPush{Face: faces[face], Model: obj.model}
			recordDraw(rec, p.Pipeline(), in.slot, obj.mesh, unsafe.Pointer(&push))
		}
		rec.EndRenderPass()
	}

	beginPass(rec, in.mainPass, in.framebuffer, in.extent, clearValues(MainPass, in.samples))
	recordDraw(rec, in.skybox, in.slot, in.skyboxMesh, nil)
	for _, obj := range in.objects {
		push := modelPush{Model: obj.model, Normal: normalMatrix(obj.model)}
		recordDraw(rec, in.scene, in.slot, obj.mesh, unsafe.Pointer(&push))
	}
	if in.normals != nil {
		for _, obj := range in.objects {
			push := modelPush{Model: obj.model, Normal: normalMatrix(obj.model)}
			recordDraw(rec, in.normals, in.slot, obj.mesh, unsafe.Pointer(&push))
		}
	}
	rec.EndRenderPass()
}

// recordDraw draws mesh with pipeline. push must point to a value laid out
// like the pipeline's push constant ranges, or be nil when it has none.
// Each range is pushed from its own offset into that value.
func recordDraw(rec commandRecorder, pipeline *Pipeline, slot int, mesh *Mesh, push unsafe.Pointer) {
	rec.BindVertexBuffer(mesh.vertices.Get())
	if mesh.Indexed() {
		rec.BindIndexBuffer(mesh.indices.Get())
	}
	rec.BindDescriptorSet(pipeline.Layout(), pipeline.Set(slot))
	rec.BindPipeline(pipeline.Handle())
	if push != nil {
		for _, r := range pipeline.description.PushConstants {
			rec.PushConstants(pipeline.Layout(), r.StageFlags, r.Offset, r.Size, unsafe.Pointer(uintptr(push)+uintptr(r.Offset)))
		}
	}
	if mesh.Indexed() {
		rec.DrawIndexed(uint32(mesh.IndexCount()))
	} else {
		rec.Draw(uint32(mesh.VertexCount()))
	}
}
