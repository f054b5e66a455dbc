// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package window is the SDL2 platform layer: the Vulkan capable window,
// its surface and input.
package window

import (
	"unsafe"

	"github.com/devblok/penumbra/camera"
	"github.com/devblok/penumbra/core"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

// Input sensitivity
const (
	RadiansPerPixel = 0.005
	ZoomPerNotch    = 1
)

// New initialises SDL and opens a resizable Vulkan window.
// Must be called from the thread that will poll events.
func New(cfg core.WindowConfiguration) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, err
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, err
	}

	window, err := sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width),
		int32(cfg.Height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, err
	}

	return &Window{
		window: window,
		log:    log.WithField("component", "window"),
	}, nil
}

var _ core.Window = (*Window)(nil)

// Window wraps the SDL window and implements core.Window.
type Window struct {
	window *sdl.Window
	quit   bool
	log    *log.Entry
}

// Extensions are the instance extensions presentation needs.
func (w *Window) Extensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// ProcAddr is vkGetInstanceProcAddr of the loaded Vulkan library.
func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// CreateSurface creates the window surface and hands it to the instance.
func (w *Window) CreateSurface(instance core.Instance) error {
	surface, err := w.window.VulkanCreateSurface(instance.Inner())
	if err != nil {
		return err
	}
	instance.SetSurface(surface)
	return nil
}

// FramebufferSize is the drawable size in pixels, zero while minimized.
func (w *Window) FramebufferSize() (width, height uint32) {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	wd, ht := w.window.VulkanGetDrawableSize()
	if wd < 0 || ht < 0 {
		return 0, 0
	}
	return uint32(wd), uint32(ht)
}

// WaitEvents blocks until SDL delivers an event, then handles it and
// everything queued behind it. It returns false once the user asked to quit.
func (w *Window) WaitEvents(ctx *core.Context) bool {
	cam, _ := ctx.Camera.(*camera.Arcball)
	w.handleEvent(ctx, cam, sdl.WaitEvent())
	return w.PollEvents(ctx, cam)
}

// PollEvents drains the event queue. It returns false once the user asked to quit.
func (w *Window) PollEvents(ctx *core.Context, cam *camera.Arcball) bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handleEvent(ctx, cam, event)
	}
	return !w.quit
}

func (w *Window) handleEvent(ctx *core.Context, cam *camera.Arcball, event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.quit = true
	case *sdl.KeyboardEvent:
		if e.Keysym.Sym == sdl.K_ESCAPE {
			w.quit = true
		}
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.log.WithField("size", [2]int32{e.Data1, e.Data2}).Debug("window resized")
			ctx.FramebufferResized = true
		case sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
			ctx.FramebufferResized = true
		}
	case *sdl.MouseMotionEvent:
		if cam != nil && e.State&sdl.ButtonLMask() != 0 {
			cam.Rotate(-float32(e.XRel)*RadiansPerPixel, float32(e.YRel)*RadiansPerPixel)
		}
	case *sdl.MouseWheelEvent:
		if cam != nil {
			cam.Zoom(float32(e.Y) * ZoomPerNotch)
		}
	}
}

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
	}
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}
