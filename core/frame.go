// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// FrameState is where the frame loop is within a tick.
type FrameState int

// Frame states in the order a tick goes through them
const (
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameRecording
	FrameSubmitted
	FrameRecreating
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameAcquiring:
		return "acquiring"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	case FrameRecreating:
		return "recreating"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

// frameDriver does the GPU side of every tick step.
type frameDriver interface {
	// waitForSlot blocks on the slot's in flight fence.
	waitForSlot(slot int) error
	// acquireImage gets the next swapchain image, signaling the slot's image available semaphore.
	acquireImage(slot int) (uint32, SwapchainStatus, error)
	// resetSlot unsignals the slot's fence.
	resetSlot(slot int) error
	// recordSlot writes the slot's uniforms and re-records its command buffer.
	recordSlot(ctx *Context, slot int, image uint32) error
	// submitSlot submits the slot's commands, signaling its fence when done.
	submitSlot(slot int) error
	// presentImage queues image once the slot's render finished semaphore is signaled.
	presentImage(slot int, image uint32) (SwapchainStatus, error)
	// recreate rebuilds everything sized after the surface.
	recreate(ctx *Context) error
}

// FrameLoop drives frames through a bounded ring of slots.
// It is not safe for concurrent use.
type FrameLoop struct {
	driver         frameDriver
	framesInFlight int

	slot   int
	state  FrameState
	frames int64

	log *log.Entry
}

func newFrameLoop(driver frameDriver, framesInFlight int) *FrameLoop {
	return &FrameLoop{
		driver:         driver,
		framesInFlight: framesInFlight,
		log:            log.WithField("component", "frame"),
	}
}

// Slot is the frame slot the next tick uses.
func (f *FrameLoop) Slot() int {
	return f.slot
}

// State returns the current state.
func (f *FrameLoop) State() FrameState {
	return f.state
}

// Frames counts presented frames.
func (f *FrameLoop) Frames() int64 {
	return f.frames
}

// Tick renders and presents one frame. A stale swapchain is recreated,
// it never surfaces as an error. Returned errors are fatal.
func (f *FrameLoop) Tick(ctx *Context) error {
	slot := f.slot

	f.state = FrameAcquiring
	if err := f.driver.waitForSlot(slot); err != nil {
		return err
	}
	image, status, err := f.driver.acquireImage(slot)
	if err != nil {
		return err
	}
	if status == SwapchainOutOfDate {
		return f.recreate(ctx, status)
	}

	f.state = FrameRecording
	if err := f.driver.resetSlot(slot); err != nil {
		return err
	}
	if err := f.driver.recordSlot(ctx, slot, image); err != nil {
		return err
	}

	if err := f.driver.submitSlot(slot); err != nil {
		return err
	}

	// The slot belongs to the GPU until its fence signals.
	f.state = FrameSubmitted
	status, err = f.driver.presentImage(slot, image)
	if err != nil {
		return err
	}
	f.frames++

	if status != SwapchainOptimal || ctx.FramebufferResized {
		if err := f.recreate(ctx, status); err != nil {
			return err
		}
	}

	f.slot = (slot + 1) % f.framesInFlight
	f.state = FrameIdle
	return nil
}

func (f *FrameLoop) recreate(ctx *Context, status SwapchainStatus) error {
	f.state = FrameRecreating
	f.log.WithFields(log.Fields{
		"status":  status,
		"resized": ctx.FramebufferResized,
	}).Debug("recreating swapchain")
	if err := f.driver.recreate(ctx); err != nil {
		return err
	}
	ctx.FramebufferResized = false
	f.state = FrameIdle
	return nil
}
