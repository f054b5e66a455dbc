// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core implements the Vulkan frame loop: device selection, the swapchain,
// the shadow passes and the pipelines drawn every frame.
package core

import (
	"errors"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// package errors
var (
	ErrDeviceNotFound   = errors.New("no physical device satisfies the renderer requirements")
	ErrPipelineCreation = errors.New("graphics pipeline creation failed")
	ErrWindowClosed     = errors.New("window closed")
)

// Destroyable is anything holding GPU objects that must be destroyed explicitly.
type Destroyable interface {
	Destroy()
}

// Instance describes a Vulkan instance and supporting methods.
// Once created it is ready to use.
type Instance interface {
	Destroyable

	// PhysicalDevicesInfo returns a struct for each Physical Device
	// along with info about those devices
	PhysicalDevicesInfo() []PhysicalDeviceInfo

	// AvailableDevices returns handles of Physical Devices
	// from the Vulkan API
	AvailableDevices() []vk.PhysicalDevice

	// SetSurface sets the window surface for rendering
	SetSurface(unsafe.Pointer)

	// Surface returns the window surface, if it's not set
	// it should return a valid but empty surface
	Surface() vk.Surface

	// Extensions returns enabled instance extensions
	Extensions() []string

	// Inner returns the inner handle of the underlying API
	Inner() vk.Instance
}

// Renderer describes the rendering machinery.
// It's created only with internal values set,
// it needs to be initialised with Initialise() before use.
type Renderer interface {
	Destroyable

	// Initialise sets up the configured rendering pipeline
	Initialise(ctx *Context) error

	// Draw runs one tick of the frame loop
	Draw(ctx *Context) error
}

// Window is the part of the platform window the renderer needs.
type Window interface {

	// FramebufferSize is the drawable size in pixels,
	// zero while the window is minimized.
	FramebufferSize() (width, height uint32)

	// WaitEvents blocks until the platform delivers an event and handles
	// whatever is queued. It returns false once the user asked to quit.
	WaitEvents(ctx *Context) bool
}

// Camera provides the viewer's transform.
type Camera interface {
	View() glm.Mat4
	Eye() glm.Vec3
}

// Context is the application state handed through the frame loop.
// The platform layer sets FramebufferResized, the frame loop polls
// it once per tick and clears it after recreating the swapchain.
type Context struct {
	Window Window
	Camera Camera

	FramebufferResized bool
}

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	GeometryShaderType
	FragmentShaderType
	UnknownShaderType
)

func (s ShaderType) stage() vk.ShaderStageFlagBits {
	switch s {
	case VertexShaderType:
		return vk.ShaderStageVertexBit
	case GeometryShaderType:
		return vk.ShaderStageGeometryBit
	case FragmentShaderType:
		return vk.ShaderStageFragmentBit
	}
	return 0
}
