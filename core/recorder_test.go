package core

import (
	"fmt"
	"strings"
	"testing"
	"unsafe"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// fakeRecorder logs commands as text.
type fakeRecorder struct {
	events  []string
	pushed  []glm.Mat4
	offsets []uint32
}

func (r *fakeRecorder) log(format string, args ...interface{}) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *fakeRecorder) BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, extent vk.Extent2D, clear []vk.ClearValue) {
	r.log("begin %dx%d clear %d", extent.Width, extent.Height, len(clear))
}
func (r *fakeRecorder) EndRenderPass()                    { r.log("end") }
func (r *fakeRecorder) SetViewport(extent vk.Extent2D)    { r.log("viewport") }
func (r *fakeRecorder) SetScissor(extent vk.Extent2D)     { r.log("scissor") }
func (r *fakeRecorder) BindPipeline(pipeline vk.Pipeline) { r.log("pipeline") }
func (r *fakeRecorder) BindVertexBuffer(buffer vk.Buffer) { r.log("vertices") }
func (r *fakeRecorder) BindIndexBuffer(buffer vk.Buffer)  { r.log("indices") }
func (r *fakeRecorder) BindDescriptorSet(layout vk.PipelineLayout, set vk.DescriptorSet) {
	r.log("set")
}
func (r *fakeRecorder) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, data unsafe.Pointer) {
	r.log("push %d", size)
	r.pushed = append(r.pushed, *(*glm.Mat4)(data))
	r.offsets = append(r.offsets, offset)
}
func (r *fakeRecorder) Draw(vertexCount uint32)       { r.log("draw %d", vertexCount) }
func (r *fakeRecorder) DrawIndexed(indexCount uint32) { r.log("indexed %d", indexCount) }

func (r *fakeRecorder) count(prefix string) int {
	n := 0
	for _, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func testPipeline(name string, push uint32) *Pipeline {
	desc := PipelineDescription{Name: name}
	if push > 0 {
		desc.PushConstants = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       push,
		}}
	}
	return &Pipeline{
		sets:        make([]vk.DescriptorSet, 2),
		description: desc,
	}
}

func testOffscreen(kind PassKind, size uint32, pipeline *Pipeline) *OffscreenOperation {
	targets := make([]shadowTarget, 2)
	for i := range targets {
		targets[i].framebuffers = make([]vk.Framebuffer, kind.faces())
	}
	return &OffscreenOperation{
		kind:     kind,
		size:     size,
		pipeline: pipeline,
		targets:  targets,
	}
}

func testInputs(normals bool) frameInputs {
	in := frameInputs{
		slot:        1,
		directional: testOffscreen(DirectionalShadowPass, 1024, testPipeline("directional shadow", shadowPushSize)),
		point:       testOffscreen(PointShadowPass, 512, testPipeline("point shadow", pointShadowPushSize)),
		extent:      vk.Extent2D{Width: 800, Height: 600},
		samples:     vk.SampleCount4Bit,
		skybox:      testPipeline("skybox", 0),
		scene:       testPipeline("scene", modelPushSize),
		skyboxMesh:  &Mesh{name: "skybox", vertexCount: 36, indexCount: CountNotApplicable},
		objects: []sceneObject{
			{mesh: &Mesh{name: "quad", vertexCount: CountNotApplicable, indexCount: 6}, model: glm.Translate3D(-1, 0, 0)},
			{mesh: &Mesh{name: "tri", vertexCount: 3, indexCount: CountNotApplicable}, model: glm.Translate3D(1, 0, 0)},
		},
	}
	if normals {
		in.normals = testPipeline("normals", modelPushSize)
	}
	return in
}

func TestRecordPassOrder(t *testing.T) {
	c := qt.New(t)

	rec := &fakeRecorder{}
	recordFrame(rec, testInputs(true))

	var passes []string
	for _, e := range rec.events {
		if strings.HasPrefix(e, "begin") {
			passes = append(passes, e)
		}
	}
	want := []string{"begin 1024x1024 clear 1"}
	for i := 0; i < 6; i++ {
		want = append(want, "begin 512x512 clear 1")
	}
	want = append(want, "begin 800x600 clear 3")
	c.Assert(passes, qt.DeepEquals, want)
	c.Assert(rec.count("end"), qt.Equals, len(want))
}

func TestViewportBeforeDraw(t *testing.T) {
	c := qt.New(t)

	rec := &fakeRecorder{}
	recordFrame(rec, testInputs(true))

	inPass, viewport, scissor := false, false, false
	for i, e := range rec.events {
		switch {
		case strings.HasPrefix(e, "begin"):
			c.Assert(inPass, qt.Equals, false, qt.Commentf("nested pass at %d", i))
			inPass, viewport, scissor = true, false, false
		case e == "viewport":
			viewport = true
		case e == "scissor":
			scissor = true
		case e == "end":
			inPass = false
		case strings.HasPrefix(e, "draw"), strings.HasPrefix(e, "indexed"):
			c.Assert(inPass, qt.Equals, true, qt.Commentf("draw outside a pass at %d", i))
			c.Assert(viewport && scissor, qt.Equals, true, qt.Commentf("draw before viewport at %d", i))
		}
	}
}

func TestPointFacesPushTransforms(t *testing.T) {
	c := qt.New(t)

	in := testInputs(false)
	in.objects = in.objects[:1]
	rec := &fakeRecorder{}
	recordFrame(rec, in)

	// directional, then one push per face, then the scene
	c.Assert(rec.pushed, qt.HasLen, 1+6+1)
	faces := CubeFaceTransforms()
	for face := 0; face < 6; face++ {
		c.Assert(rec.pushed[1+face], qt.Equals, faces[face], qt.Commentf("face %d", face))
	}
	c.Assert(rec.pushed[0], qt.Equals, in.objects[0].model)
	c.Assert(rec.pushed[7], qt.Equals, in.objects[0].model)
}

func TestDrawPathExclusive(t *testing.T) {
	c := qt.New(t)

	in := testInputs(false)
	rec := &fakeRecorder{}
	recordDraw(rec, in.scene, 0, in.objects[0].mesh, nil)
	c.Assert(rec.events, qt.DeepEquals, []string{"vertices", "indices", "set", "pipeline", "indexed 6"})

	rec = &fakeRecorder{}
	recordDraw(rec, in.scene, 0, in.objects[1].mesh, nil)
	c.Assert(rec.events, qt.DeepEquals, []string{"vertices", "set", "pipeline", "draw 3"})

	rec = &fakeRecorder{}
	push := modelPush{Model: glm.Ident4()}
	recordDraw(rec, in.scene, 0, in.objects[1].mesh, unsafe.Pointer(&push))
	c.Assert(rec.events, qt.DeepEquals, []string{"vertices", "set", "pipeline", fmt.Sprintf("push %d", modelPushSize), "draw 3"})
}

func TestPushConstantRangesUseOffsets(t *testing.T) {
	c := qt.New(t)

	mat := uint32(unsafe.Sizeof(glm.Mat4{}))
	pipeline := testPipeline("split", 0)
	pipeline.description.PushConstants = []vk.PushConstantRange{
		{StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit), Offset: 0, Size: mat},
		{StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Offset: mat, Size: mat},
	}
	push := struct {
		Vertex   glm.Mat4
		Fragment glm.Mat4
	}{glm.Translate3D(1, 2, 3), glm.Scale3D(2, 2, 2)}

	rec := &fakeRecorder{}
	recordDraw(rec, pipeline, 0, &Mesh{vertexCount: 3, indexCount: CountNotApplicable}, unsafe.Pointer(&push))

	c.Assert(rec.offsets, qt.DeepEquals, []uint32{0, mat})
	c.Assert(rec.pushed, qt.DeepEquals, []glm.Mat4{push.Vertex, push.Fragment})
}

func TestNormalsSkippedWithoutPipeline(t *testing.T) {
	c := qt.New(t)

	with := &fakeRecorder{}
	recordFrame(with, testInputs(true))
	without := &fakeRecorder{}
	recordFrame(without, testInputs(false))

	// skybox, then per object: directional, six faces, scene and optionally normals
	objects := 2
	c.Assert(with.count("indexed")+with.count("draw"), qt.Equals, 1+objects*(1+6+1+1))
	c.Assert(without.count("indexed")+without.count("draw"), qt.Equals, 1+objects*(1+6+1))
}

func TestMainPassDrawsSkyboxFirst(t *testing.T) {
	c := qt.New(t)

	rec := &fakeRecorder{}
	recordFrame(rec, testInputs(false))

	var main []string
	for i := len(rec.events) - 1; i >= 0; i-- {
		if strings.HasPrefix(rec.events[i], "begin 800x600") {
			main = rec.events[i:]
			break
		}
	}
	c.Assert(main, qt.Not(qt.HasLen), 0)
	for _, e := range main {
		if strings.HasPrefix(e, "draw") || strings.HasPrefix(e, "indexed") {
			c.Assert(e, qt.Equals, "draw 36")
			break
		}
	}
}
