// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"math"

	"github.com/devblok/penumbra/gfx/vkr"
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainStatus is the recoverable outcome of acquiring or presenting an image.
type SwapchainStatus int

// Swapchain statuses, anything but optimal asks for recreation
const (
	SwapchainOptimal SwapchainStatus = iota
	SwapchainSuboptimal
	SwapchainOutOfDate
)

func (s SwapchainStatus) String() string {
	switch s {
	case SwapchainOptimal:
		return "optimal"
	case SwapchainSuboptimal:
		return "suboptimal"
	case SwapchainOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// presentationStatus splits a result into a swapchain status and a hard error.
func presentationStatus(op string, result vk.Result) (SwapchainStatus, error) {
	switch result {
	case vk.Success:
		return SwapchainOptimal, nil
	case vk.Suboptimal:
		return SwapchainSuboptimal, nil
	case vk.ErrorOutOfDate:
		return SwapchainOutOfDate, nil
	}
	return SwapchainOutOfDate, vkr.Check(op, result)
}

// SwapchainState is the lifecycle of the image chain.
type SwapchainState int

// Swapchain states
const (
	SwapchainUninitialized SwapchainState = iota
	SwapchainReady
)

type surfaceSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func querySupport(physical vk.PhysicalDevice, surface vk.Surface) (surfaceSupport, error) {
	var support surfaceSupport
	if err := vkr.Check("vk.GetPhysicalDeviceSurfaceCapabilities()", vk.GetPhysicalDeviceSurfaceCapabilities(physical, surface, &support.Capabilities)); err != nil {
		return support, err
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := vkr.Check("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &formatCount, nil)); err != nil {
		return support, err
	}
	support.Formats = make([]vk.SurfaceFormat, formatCount)
	if err := vkr.Check("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &formatCount, support.Formats)); err != nil {
		return support, err
	}
	support.Formats = support.Formats[:formatCount]
	for i := range support.Formats {
		support.Formats[i].Deref()
	}

	var modeCount uint32
	if err := vkr.Check("vk.GetPhysicalDeviceSurfacePresentModes()", vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &modeCount, nil)); err != nil {
		return support, err
	}
	support.PresentModes = make([]vk.PresentMode, modeCount)
	if err := vkr.Check("vk.GetPhysicalDeviceSurfacePresentModes()", vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &modeCount, support.PresentModes)); err != nil {
		return support, err
	}
	support.PresentModes = support.PresentModes[:modeCount]
	return support, nil
}

var preferredSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Srgb,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// chooseSurfaceFormat returns BGRA8 sRGB with the sRGB nonlinear color space
// as soon as it is found, the first listed format otherwise.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	if len(formats) == 0 || (len(formats) == 1 && formats[0].Format == vk.FormatUndefined) {
		return preferredSurfaceFormat
	}
	for _, f := range formats {
		if f.Format == preferredSurfaceFormat.Format && f.ColorSpace == preferredSurfaceFormat.ColorSpace {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode prefers mailbox and falls back to FIFO, which is always available.
func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface extent unless the surface lets the
// swapchain decide, then the framebuffer size is clamped into bounds.
func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clampUint32(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for one image over the minimum and at least one image
// per frame in flight. A zero maximum means unbounded.
func chooseImageCount(caps vk.SurfaceCapabilities, framesInFlight int) uint32 {
	count := caps.MinImageCount + 1
	if framesInFlight > 0 && uint32(framesInFlight) > count {
		count = uint32(framesInFlight)
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func chooseCompositeAlpha(caps vk.SurfaceCapabilities) vk.CompositeAlphaFlagBits {
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for _, flag := range compositeAlphaFlags {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func clampUint32(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

type swapchainConfig struct {
	Format         vk.SurfaceFormat
	PresentMode    vk.PresentMode
	Extent         vk.Extent2D
	ImageCount     uint32
	Transform      vk.SurfaceTransformFlagBits
	CompositeAlpha vk.CompositeAlphaFlagBits
}

// resolveSwapchainConfig derives every creation parameter from the surface
// support and the framebuffer size. It has no side effects.
func resolveSwapchainConfig(support surfaceSupport, width, height uint32, framesInFlight int) swapchainConfig {
	caps := support.Capabilities
	transform := caps.CurrentTransform
	if caps.SupportedTransforms&vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit) != 0 {
		transform = vk.SurfaceTransformIdentityBit
	}
	return swapchainConfig{
		Format:         chooseSurfaceFormat(support.Formats),
		PresentMode:    choosePresentMode(support.PresentModes),
		Extent:         chooseExtent(caps, width, height),
		ImageCount:     chooseImageCount(caps, framesInFlight),
		Transform:      transform,
		CompositeAlpha: chooseCompositeAlpha(caps),
	}
}

// Swapchain owns the presentable image chain and everything sized after it:
// image views, the MSAA color and depth targets and the main framebuffers.
type Swapchain struct {
	device *Device

	state      SwapchainState
	generation int

	handle vk.Swapchain
	format vk.SurfaceFormat
	config swapchainConfig

	images       []vk.Image
	views        []vk.ImageView
	framebuffers []vk.Framebuffer

	framesInFlight int

	samples     vk.SampleCountFlagBits
	depthFormat vk.Format
	color       vkr.Image
	colorView   vk.ImageView
	depth       vkr.Image
	depthView   vk.ImageView

	renderPass vk.RenderPass

	log *log.Entry
}

// NewSwapchain selects the surface format so the main render pass can be
// built, the chain itself is created by Create.
func NewSwapchain(device *Device, samples vk.SampleCountFlagBits, depthFormat vk.Format, framesInFlight int) (*Swapchain, error) {
	support, err := querySupport(device.Physical(), device.surface)
	if err != nil {
		return nil, err
	}
	return &Swapchain{
		device:         device,
		format:         chooseSurfaceFormat(support.Formats),
		framesInFlight: framesInFlight,
		samples:        samples,
		depthFormat:    depthFormat,
		log:            log.WithField("component", "swapchain"),
	}, nil
}

// Format returns the surface format, fixed for the lifetime of the Swapchain.
func (s *Swapchain) Format() vk.Format {
	return s.format.Format
}

// Extent returns the current image extent.
func (s *Swapchain) Extent() vk.Extent2D {
	return s.config.Extent
}

// State returns the lifecycle state.
func (s *Swapchain) State() SwapchainState {
	return s.state
}

// Generation counts how many times the chain was built.
func (s *Swapchain) Generation() int {
	return s.generation
}

// ImageCount returns the number of presentable images.
func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// Framebuffer returns the main pass framebuffer of an image.
func (s *Swapchain) Framebuffer(image uint32) vk.Framebuffer {
	return s.framebuffers[image]
}

// Create builds the chain and its framebuffers for renderPass.
func (s *Swapchain) Create(renderPass vk.RenderPass, width, height uint32) error {
	if s.state != SwapchainUninitialized {
		return errors.New("swapchain already created")
	}
	s.renderPass = renderPass
	return s.build(vk.NullSwapchain, width, height)
}

func (s *Swapchain) build(old vk.Swapchain, width, height uint32) error {
	support, err := querySupport(s.device.Physical(), s.device.surface)
	if err != nil {
		return err
	}
	config := resolveSwapchainConfig(support, width, height, s.framesInFlight)
	if config.Format.Format != s.format.Format || config.Format.ColorSpace != s.format.ColorSpace {
		s.log.WithField("wanted", config.Format.Format).Debug("surface format changed, keeping the original")
		config.Format = s.format
	}

	families := s.device.Families()
	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.device.surface,
		MinImageCount:    config.ImageCount,
		ImageFormat:      config.Format.Format,
		ImageColorSpace:  config.Format.ColorSpace,
		ImageExtent:      config.Extent,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     config.Transform,
		CompositeAlpha:   config.CompositeAlpha,
		PresentMode:      config.PresentMode,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}
	if unique := families.Unique(); len(unique) > 1 {
		scci.ImageSharingMode = vk.SharingModeConcurrent
		scci.QueueFamilyIndexCount = uint32(len(unique))
		scci.PQueueFamilyIndices = unique
	}

	dev := s.device.Logical()
	swapchain, err := replaceSwapchain(old, func(swapchain *vk.Swapchain) vk.Result {
		return vk.CreateSwapchain(dev, &scci, nil, swapchain)
	}, func(retired vk.Swapchain) {
		vk.DestroySwapchain(dev, retired, nil)
	})
	if err != nil {
		return err
	}
	s.handle = swapchain
	s.config = config

	var numImages uint32
	if err := vkr.Check("vk.GetSwapchainImages()", vk.GetSwapchainImages(dev, swapchain, &numImages, nil)); err != nil {
		return err
	}
	images := make([]vk.Image, numImages)
	if err := vkr.Check("vk.GetSwapchainImages()", vk.GetSwapchainImages(dev, swapchain, &numImages, images)); err != nil {
		return err
	}
	s.images = images[:numImages]

	for _, img := range s.images {
		view, err := vkr.NewImageViewFor(dev, img, config.Format.Format, vk.ImageViewType2d, vk.ImageAspectColorBit, 0, 1)
		if err != nil {
			return err
		}
		s.views = append(s.views, view)
	}

	if err := s.createTargets(); err != nil {
		return err
	}
	if err := s.createFramebuffers(); err != nil {
		return err
	}

	s.state = SwapchainReady
	s.generation++
	s.log.WithFields(log.Fields{
		"generation": s.generation,
		"images":     len(s.images),
		"width":      config.Extent.Width,
		"height":     config.Extent.Height,
		"mode":       config.PresentMode,
	}).Info("swapchain created")
	return nil
}

func (s *Swapchain) createTargets() error {
	ma := s.device.Allocator()
	extent := s.config.Extent

	if s.samples != vk.SampleCount1Bit {
		color, err := vkr.NewImage(ma, vkr.ImageOptions{
			Width:   extent.Width,
			Height:  extent.Height,
			Format:  s.format.Format,
			Usage:   vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransientAttachmentBit,
			Samples: s.samples,
		})
		if err != nil {
			return err
		}
		s.color = color
		if s.colorView, err = vkr.NewImageView(color, vk.ImageViewType2d, vk.ImageAspectColorBit, 0, 1); err != nil {
			return err
		}
	}

	depth, err := vkr.NewImage(ma, vkr.ImageOptions{
		Width:   extent.Width,
		Height:  extent.Height,
		Format:  s.depthFormat,
		Usage:   vk.ImageUsageDepthStencilAttachmentBit,
		Samples: s.samples,
	})
	if err != nil {
		return err
	}
	s.depth = depth
	s.depthView, err = vkr.NewImageView(depth, vk.ImageViewType2d, vk.ImageAspectDepthBit, 0, 1)
	return err
}

func (s *Swapchain) createFramebuffers() error {
	extent := s.config.Extent
	for _, view := range s.views {
		attachments := mainAttachments(s.samples, view, s.colorView, s.depthView)
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      s.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}

		var framebuffer vk.Framebuffer
		if err := vkr.Check("vk.CreateFramebuffer()", vk.CreateFramebuffer(s.device.Logical(), &fci, nil, &framebuffer)); err != nil {
			return err
		}
		s.framebuffers = append(s.framebuffers, framebuffer)
	}
	return nil
}

// Acquire gets the next image, signaling semaphore once it's ready to be drawn to.
func (s *Swapchain) Acquire(semaphore vk.Semaphore) (uint32, SwapchainStatus, error) {
	var image uint32
	result := vk.AcquireNextImage(s.device.Logical(), s.handle, math.MaxUint64, semaphore, vk.NullFence, &image)
	status, err := presentationStatus("vk.AcquireNextImage()", result)
	return image, status, err
}

// Present queues image for presentation after wait is signaled.
func (s *Swapchain) Present(wait vk.Semaphore, image uint32) (SwapchainStatus, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{image},
	}
	return presentationStatus("vk.QueuePresent()", vk.QueuePresent(s.device.PresentQueue(), &presentInfo))
}

// Recreate rebuilds the chain after the surface changed. While the window
// is minimized it waits for events, returning ErrWindowClosed if the window
// is closed meanwhile. It then drains the device before destroying
// anything the GPU may still use.
func (s *Swapchain) Recreate(ctx *Context) error {
	width, height, err := waitForFramebuffer(ctx)
	if err != nil {
		return err
	}

	if err := s.device.WaitIdle(); err != nil {
		return err
	}

	old := s.handle
	s.destroyTargets()
	s.handle = vk.NullSwapchain
	s.state = SwapchainUninitialized
	return s.build(old, width, height)
}

// replaceSwapchain creates the successor of old. Old is retired by the
// creation call, so it is destroyed whether or not creation succeeded.
func replaceSwapchain(old vk.Swapchain, create func(*vk.Swapchain) vk.Result, destroy func(vk.Swapchain)) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	result := create(&swapchain)
	if old != vk.NullSwapchain {
		destroy(old)
	}
	if err := vkr.Check("vk.CreateSwapchain()", result); err != nil {
		return vk.NullSwapchain, err
	}
	return swapchain, nil
}

// waitForFramebuffer blocks while the framebuffer has no area.
func waitForFramebuffer(ctx *Context) (width, height uint32, err error) {
	width, height = ctx.Window.FramebufferSize()
	for width == 0 || height == 0 {
		if !ctx.Window.WaitEvents(ctx) {
			return 0, 0, ErrWindowClosed
		}
		width, height = ctx.Window.FramebufferSize()
	}
	return width, height, nil
}

func (s *Swapchain) destroyTargets() {
	dev := s.device.Logical()
	for _, fb := range s.framebuffers {
		vk.DestroyFramebuffer(dev, fb, nil)
	}
	s.framebuffers = nil

	for _, view := range s.views {
		vk.DestroyImageView(dev, view, nil)
	}
	s.views = nil
	s.images = nil

	if s.colorView != nil {
		vk.DestroyImageView(dev, s.colorView, nil)
		s.colorView = nil
	}
	s.color.Release()

	if s.depthView != nil {
		vk.DestroyImageView(dev, s.depthView, nil)
		s.depthView = nil
	}
	s.depth.Release()
}

// Destroy implements interface
func (s *Swapchain) Destroy() {
	s.destroyTargets()
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.device.Logical(), s.handle, nil)
		s.handle = vk.NullSwapchain
	}
	s.state = SwapchainUninitialized
}
