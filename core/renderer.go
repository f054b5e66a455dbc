// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path"
	"unsafe"

	"github.com/devblok/penumbra/gfx"
	"github.com/devblok/penumbra/gfx/vkr"
	"github.com/devblok/penumbra/model"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// NewVulkanRenderer creates an uninitialised renderer drawing on the
// instance's surface. Assets and shaders are read from src.
func NewVulkanRenderer(instance Instance, cfg RendererConfiguration, src gfx.Source, clock *Time) (*VulkanRenderer, error) {
	if cfg.FramesInFlight <= 0 {
		return nil, fmt.Errorf("frames in flight must be positive, got %d", cfg.FramesInFlight)
	}
	if len(cfg.DeviceExtensions) == 0 {
		cfg.DeviceExtensions = DefaultDeviceExtensions
	}
	if cfg.ShadowMapSize == 0 {
		cfg.ShadowMapSize = 2048
	}
	return &VulkanRenderer{
		instance: instance,
		cfg:      cfg,
		src:      src,
		clock:    clock,
		log:      log.WithField("component", "renderer"),
	}, nil
}

// VulkanRenderer draws the shadowed scene with Vulkan.
type VulkanRenderer struct {
	instance Instance
	cfg      RendererConfiguration
	src      gfx.Source
	clock    *Time

	device    *Device
	samples   vk.SampleCountFlagBits
	swapchain *Swapchain
	mainPass  vk.RenderPass

	directional *OffscreenOperation
	point       *OffscreenOperation

	skybox  *Pipeline
	scene   *Pipeline
	normals *Pipeline

	skyboxMesh *Mesh
	meshes     []*Mesh
	texture    *Texture
	cubemap    *Texture

	world *Scene
	syncs []frameSync
	loop  *FrameLoop

	log *log.Entry
}

// Initialise implements interface
func (r *VulkanRenderer) Initialise(ctx *Context) error {
	var err error
	if r.device, err = NewDevice(r.instance, r.cfg.DeviceExtensions); err != nil {
		return err
	}

	r.samples = r.device.SampleCount(r.cfg.Samples)
	depthFormat, err := r.device.DepthFormat()
	if err != nil {
		return err
	}

	if r.swapchain, err = NewSwapchain(r.device, r.samples, depthFormat, r.cfg.FramesInFlight); err != nil {
		return err
	}
	r.mainPass, err = newRenderPass(r.device.Logical(), RenderPassDescription{
		Kind:        MainPass,
		ColorFormat: r.swapchain.Format(),
		DepthFormat: depthFormat,
		Samples:     r.samples,
	})
	if err != nil {
		return err
	}
	width, height := ctx.Window.FramebufferSize()
	if err := r.swapchain.Create(r.mainPass, width, height); err != nil {
		return err
	}

	n := r.cfg.FramesInFlight
	dir := r.cfg.ShaderDirectory
	if r.directional, err = NewOffscreenOperation(r.device, DirectionalShadowPass, r.cfg.ShadowMapSize, n, dir, r.src); err != nil {
		return err
	}
	if r.point, err = NewOffscreenOperation(r.device, PointShadowPass, r.cfg.ShadowMapSize, n, dir, r.src); err != nil {
		return err
	}

	if r.skybox, err = NewPipeline(r.device, r.mainPass, skyboxDescription(dir, r.samples), n, r.src); err != nil {
		return err
	}
	if r.scene, err = NewPipeline(r.device, r.mainPass, sceneDescription(dir, r.samples), n, r.src); err != nil {
		return err
	}
	if r.device.SupportsGeometryShader() {
		if r.normals, err = NewPipeline(r.device, r.mainPass, normalsDescription(dir, r.samples), n, r.src); err != nil {
			return err
		}
	} else {
		r.log.Warn("geometry shaders unsupported, normals are not drawn")
	}

	if err := r.loadAssets(); err != nil {
		return err
	}
	r.bindImages()

	if r.syncs, err = newFrameSyncs(r.device, n); err != nil {
		return err
	}
	r.world = newScene(r.meshes)
	r.loop = newFrameLoop(r, n)

	r.log.WithFields(log.Fields{
		"samples":        r.samples,
		"framesInFlight": n,
		"meshes":         len(r.meshes),
	}).Info("renderer initialised")
	return nil
}

func (r *VulkanRenderer) loadAssets() error {
	var err error
	if r.skyboxMesh, err = NewSkyboxMesh(r.device); err != nil {
		return err
	}

	for _, name := range r.cfg.Models {
		data, err := r.src.ReadFile(name)
		if err != nil {
			return err
		}
		obj, err := model.ImportColladaObject(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		mesh, err := NewObjectMesh(r.device, obj)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.meshes = append(r.meshes, mesh)
		r.log.WithFields(log.Fields{
			"model":    name,
			"vertices": len(obj.Vertices),
			"indices":  len(obj.Indices),
		}).Debug("model loaded")
	}
	if len(r.meshes) == 0 {
		return errors.New("no models configured")
	}

	texture := solidImage(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	if r.cfg.Texture != "" {
		if texture, err = r.readImage(r.cfg.Texture); err != nil {
			return err
		}
	}
	if r.texture, err = NewTexture(r.device, texture); err != nil {
		return err
	}

	faces := make([]image.Image, len(model.CubemapFaces))
	for i, face := range model.CubemapFaces {
		if r.cfg.CubemapDir == "" {
			faces[i] = solidImage(color.RGBA{R: 20, G: 22, B: 28, A: 255})
			continue
		}
		if faces[i], err = r.readImage(path.Join(r.cfg.CubemapDir, face)); err != nil {
			return err
		}
	}
	r.cubemap, err = NewCubemap(r.device, faces)
	return err
}

func (r *VulkanRenderer) readImage(name string) (image.Image, error) {
	data, err := r.src.ReadFile(name)
	if err != nil {
		return nil, err
	}
	img, err := model.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return img, nil
}

func solidImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	return img
}

// bindImages points the samplers at the textures and each slot's shadow maps.
func (r *VulkanRenderer) bindImages() {
	shadowLayout := vk.ImageLayoutDepthStencilReadOnlyOptimal
	r.scene.BindImage(textureBinding, r.texture.View(), r.texture.Sampler(), vk.ImageLayoutShaderReadOnlyOptimal)
	for slot := 0; slot < r.cfg.FramesInFlight; slot++ {
		r.scene.BindSlotImage(slot, directionalShadowBinding, r.directional.View(slot), r.directional.Sampler(), shadowLayout)
		r.scene.BindSlotImage(slot, pointShadowBinding, r.point.View(slot), r.point.Sampler(), shadowLayout)
	}
	r.skybox.BindImage(cubemapBinding, r.cubemap.View(), r.cubemap.Sampler(), vk.ImageLayoutShaderReadOnlyOptimal)
}

// Draw implements interface
func (r *VulkanRenderer) Draw(ctx *Context) error {
	if r.loop == nil {
		return errors.New("renderer is not initialised")
	}
	return r.loop.Tick(ctx)
}

func (r *VulkanRenderer) waitForSlot(slot int) error {
	fences := []vk.Fence{r.syncs[slot].inFlight}
	return vkr.Check("vk.WaitForFences()", vk.WaitForFences(r.device.Logical(), 1, fences, vk.True, vk.MaxUint64))
}

func (r *VulkanRenderer) acquireImage(slot int) (uint32, SwapchainStatus, error) {
	return r.swapchain.Acquire(r.syncs[slot].imageAvailable)
}

func (r *VulkanRenderer) resetSlot(slot int) error {
	return vkr.Check("vk.ResetFences()", vk.ResetFences(r.device.Logical(), 1, []vk.Fence{r.syncs[slot].inFlight}))
}

func (r *VulkanRenderer) recordSlot(ctx *Context, slot int, imageIndex uint32) error {
	if err := r.writeUniforms(ctx, slot); err != nil {
		return err
	}

	cmd := r.syncs[slot].commands
	if err := vkr.Check("vk.ResetCommandBuffer()", vk.ResetCommandBuffer(cmd, 0)); err != nil {
		return err
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vkr.Check("vk.BeginCommandBuffer()", vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return err
	}

	recordFrame(vkRecorder{cmd: cmd}, frameInputs{
		slot:        slot,
		directional: r.directional,
		point:       r.point,
		mainPass:    r.mainPass,
		framebuffer: r.swapchain.Framebuffer(imageIndex),
		extent:      r.swapchain.Extent(),
		samples:     r.samples,
		skybox:      r.skybox,
		scene:       r.scene,
		normals:     r.normals,
		skyboxMesh:  r.skyboxMesh,
		objects:     r.world.objects,
	})

	return vkr.Check("vk.EndCommandBuffer()", vk.EndCommandBuffer(cmd))
}

func (r *VulkanRenderer) writeUniforms(ctx *Context, slot int) error {
	if r.clock != nil {
		r.world.Animate(r.clock.Elapsed())
	}

	extent := r.swapchain.Extent()
	aspect := float32(extent.Width) / float32(extent.Height)
	projection := vulkanProjection(glm.Perspective(glm.DegToRad(45), aspect, 0.1, 100))
	view := ctx.Camera.View()
	lightSpace := directionalLightSpace(r.world.Sun.Direction, r.world.Bounds())
	lamp := r.world.Lamp

	scene := SceneUniform{
		Projection:      projection,
		View:            view,
		LightSpace:      lightSpace,
		LightDirection:  r.world.Sun.Direction.Normalize().Vec4(0),
		LightColor:      r.world.Sun.Color.Vec4(1),
		PointLight:      lamp.Position.Vec4(lamp.Far),
		PointLightColor: lamp.Color.Vec4(1),
		Eye:             ctx.Camera.Eye().Vec4(1),
	}
	if err := r.scene.WriteUniform(slot, unsafe.Pointer(&scene), int(unsafe.Sizeof(scene))); err != nil {
		return err
	}

	if r.normals != nil {
		normals := NormalsUniform{Projection: projection, View: view, Length: 0.05}
		if err := r.normals.WriteUniform(slot, unsafe.Pointer(&normals), int(unsafe.Sizeof(normals))); err != nil {
			return err
		}
	}

	skybox := SkyboxUniform{Projection: projection, View: withoutTranslation(view)}
	if err := r.skybox.WriteUniform(slot, unsafe.Pointer(&skybox), int(unsafe.Sizeof(skybox))); err != nil {
		return err
	}

	directional := DirectionalShadowUniform{LightSpace: lightSpace}
	if err := r.directional.Pipeline().WriteUniform(slot, unsafe.Pointer(&directional), int(unsafe.Sizeof(directional))); err != nil {
		return err
	}

	point := PointShadowUniform{
		Projection:    pointLightProjection(lamp.Far),
		LightPosition: lamp.Position.Vec4(lamp.Far),
	}
	return r.point.Pipeline().WriteUniform(slot, unsafe.Pointer(&point), int(unsafe.Sizeof(point)))
}

func (r *VulkanRenderer) submitSlot(slot int) error {
	s := r.syncs[slot]
	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.imageAvailable},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{s.commands},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{s.renderFinished},
	}}
	return vkr.Check("vk.QueueSubmit()", vk.QueueSubmit(r.device.GraphicsQueue(), 1, submit, s.inFlight))
}

func (r *VulkanRenderer) presentImage(slot int, imageIndex uint32) (SwapchainStatus, error) {
	return r.swapchain.Present(r.syncs[slot].renderFinished, imageIndex)
}

func (r *VulkanRenderer) recreate(ctx *Context) error {
	if err := r.swapchain.Recreate(ctx); err != nil {
		return err
	}
	r.log.WithFields(log.Fields{
		"generation": r.swapchain.Generation(),
		"width":      r.swapchain.Extent().Width,
		"height":     r.swapchain.Extent().Height,
	}).Info("swapchain recreated")
	return nil
}

// Device returns the device the renderer runs on, nil before Initialise.
func (r *VulkanRenderer) Device() *Device {
	return r.device
}

// Destroy implements interface
func (r *VulkanRenderer) Destroy() {
	if r.device == nil {
		return
	}
	if err := r.device.WaitIdle(); err != nil {
		r.log.WithError(err).Error("waiting for device before teardown")
	}

	destroyFrameSyncs(r.device, r.syncs)
	r.syncs = nil
	r.loop = nil

	if r.cubemap != nil {
		r.cubemap.Destroy()
	}
	if r.texture != nil {
		r.texture.Destroy()
	}
	if r.skyboxMesh != nil {
		r.skyboxMesh.Destroy()
	}
	for _, m := range r.meshes {
		m.Destroy()
	}
	r.meshes = nil

	for _, p := range []*Pipeline{r.normals, r.scene, r.skybox} {
		if p != nil {
			p.Destroy()
		}
	}
	for _, o := range []*OffscreenOperation{r.point, r.directional} {
		if o != nil {
			o.Destroy()
		}
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
	}
	if r.mainPass != nil {
		vk.DestroyRenderPass(r.device.Logical(), r.mainPass, nil)
		r.mainPass = nil
	}

	r.device.Destroy()
	r.device = nil
}
