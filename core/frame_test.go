package core

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

// fakeDriver stands in for the GPU. Fences signal as soon as work is submitted.
type fakeDriver struct {
	framesInFlight int

	signaled []bool
	waited   []bool

	acquire []SwapchainStatus
	present []SwapchainStatus

	acquireErr  error
	presentErr  error
	recreateErr error

	loop       *FrameLoop
	states     []string
	calls      []string
	violations []string
	recreated  int
	images     uint32
}

func newFakeDriver(n int) *fakeDriver {
	d := &fakeDriver{
		framesInFlight: n,
		signaled:       make([]bool, n),
		waited:         make([]bool, n),
	}
	for i := range d.signaled {
		d.signaled[i] = true
	}
	return d
}

func (d *fakeDriver) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

// note logs a call along with the loop state it happened in.
func (d *fakeDriver) note(call string) {
	d.calls = append(d.calls, call)
	if d.loop != nil {
		d.states = append(d.states, fmt.Sprintf("%s: %v", call, d.loop.State()))
	}
}

func (d *fakeDriver) waitForSlot(slot int) error {
	d.note(fmt.Sprintf("wait %d", slot))
	if !d.signaled[slot] {
		d.violate("slot %d fence never signals", slot)
	}
	d.waited[slot] = true
	return nil
}

func (d *fakeDriver) acquireImage(slot int) (uint32, SwapchainStatus, error) {
	d.note(fmt.Sprintf("acquire %d", slot))
	if d.acquireErr != nil {
		return 0, SwapchainOptimal, d.acquireErr
	}
	status := SwapchainOptimal
	if len(d.acquire) > 0 {
		status, d.acquire = d.acquire[0], d.acquire[1:]
	}
	image := d.images % 3
	d.images++
	return image, status, nil
}

func (d *fakeDriver) resetSlot(slot int) error {
	d.note(fmt.Sprintf("reset %d", slot))
	if !d.waited[slot] {
		d.violate("slot %d fence reset before it was waited on", slot)
	}
	d.signaled[slot] = false
	return nil
}

func (d *fakeDriver) recordSlot(ctx *Context, slot int, image uint32) error {
	d.note(fmt.Sprintf("record %d %d", slot, image))
	if !d.waited[slot] {
		d.violate("slot %d recorded while the GPU may still use it", slot)
	}
	if d.signaled[slot] {
		d.violate("slot %d recorded with its fence still signaled", slot)
	}
	return nil
}

func (d *fakeDriver) submitSlot(slot int) error {
	d.note(fmt.Sprintf("submit %d", slot))
	d.waited[slot] = false
	d.signaled[slot] = true
	return nil
}

func (d *fakeDriver) presentImage(slot int, image uint32) (SwapchainStatus, error) {
	d.note(fmt.Sprintf("present %d %d", slot, image))
	if d.presentErr != nil {
		return SwapchainOptimal, d.presentErr
	}
	status := SwapchainOptimal
	if len(d.present) > 0 {
		status, d.present = d.present[0], d.present[1:]
	}
	return status, nil
}

func (d *fakeDriver) recreate(ctx *Context) error {
	d.note("recreate")
	if d.recreateErr != nil {
		return d.recreateErr
	}
	if ctx.Window != nil {
		if _, _, err := waitForFramebuffer(ctx); err != nil {
			return err
		}
	}
	d.recreated++
	return nil
}

func TestTickOrder(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	loop := newFrameLoop(d, 2)
	c.Assert(loop.Tick(&Context{}), qt.IsNil)

	c.Assert(d.calls, qt.DeepEquals, []string{
		"wait 0",
		"acquire 0",
		"reset 0",
		"record 0 0",
		"submit 0",
		"present 0 0",
	})
	c.Assert(loop.State(), qt.Equals, FrameIdle)
	c.Assert(loop.Frames(), qt.Equals, int64(1))
}

func TestSlotsCycle(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(3)
	loop := newFrameLoop(d, 3)

	var slots []int
	for i := 0; i < 7; i++ {
		slots = append(slots, loop.Slot())
		c.Assert(loop.Tick(&Context{}), qt.IsNil)
	}
	c.Assert(slots, qt.DeepEquals, []int{0, 1, 2, 0, 1, 2, 0})
	c.Assert(loop.Slot(), qt.Equals, 1)
	c.Assert(loop.Frames(), qt.Equals, int64(7))
	c.Assert(d.violations, qt.HasLen, 0)
	c.Assert(d.recreated, qt.Equals, 0)
}

func TestAcquireOutOfDateAbortsFrame(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	d.acquire = []SwapchainStatus{SwapchainOutOfDate}
	loop := newFrameLoop(d, 2)
	ctx := &Context{FramebufferResized: true}

	c.Assert(loop.Tick(ctx), qt.IsNil)
	c.Assert(d.calls, qt.DeepEquals, []string{"wait 0", "acquire 0", "recreate"})
	c.Assert(loop.Slot(), qt.Equals, 0)
	c.Assert(loop.Frames(), qt.Equals, int64(0))
	c.Assert(ctx.FramebufferResized, qt.Equals, false)

	// The same slot renders on the next tick, its fence was never reset.
	d.calls = nil
	c.Assert(loop.Tick(ctx), qt.IsNil)
	c.Assert(d.calls[0], qt.Equals, "wait 0")
	c.Assert(d.calls, qt.HasLen, 6)
	c.Assert(loop.Slot(), qt.Equals, 1)
	c.Assert(d.violations, qt.HasLen, 0)
}

func TestAcquireSuboptimalStillRenders(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	d.acquire = []SwapchainStatus{SwapchainSuboptimal}
	loop := newFrameLoop(d, 2)

	c.Assert(loop.Tick(&Context{}), qt.IsNil)
	c.Assert(loop.Frames(), qt.Equals, int64(1))
	c.Assert(d.recreated, qt.Equals, 0)
}

func TestPresentStatusRecreates(t *testing.T) {
	c := qt.New(t)

	for _, status := range []SwapchainStatus{SwapchainSuboptimal, SwapchainOutOfDate} {
		d := newFakeDriver(2)
		d.present = []SwapchainStatus{status}
		loop := newFrameLoop(d, 2)

		c.Assert(loop.Tick(&Context{}), qt.IsNil)
		c.Assert(d.recreated, qt.Equals, 1, qt.Commentf("present %v", status))
		c.Assert(d.calls[len(d.calls)-1], qt.Equals, "recreate")
		c.Assert(loop.Slot(), qt.Equals, 1)
		c.Assert(loop.Frames(), qt.Equals, int64(1))
	}
}

func TestResizeFlagRecreates(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	loop := newFrameLoop(d, 2)
	ctx := &Context{}

	c.Assert(loop.Tick(ctx), qt.IsNil)
	c.Assert(d.recreated, qt.Equals, 0)

	ctx.FramebufferResized = true
	c.Assert(loop.Tick(ctx), qt.IsNil)
	c.Assert(d.recreated, qt.Equals, 1)
	c.Assert(ctx.FramebufferResized, qt.Equals, false)

	c.Assert(loop.Tick(ctx), qt.IsNil)
	c.Assert(d.recreated, qt.Equals, 1)
}

func TestErrorsAreFatal(t *testing.T) {
	c := qt.New(t)

	lost := errors.New("device lost")
	d := newFakeDriver(2)
	d.acquireErr = lost
	loop := newFrameLoop(d, 2)

	err := loop.Tick(&Context{})
	c.Assert(errors.Is(err, lost), qt.Equals, true)
	c.Assert(d.recreated, qt.Equals, 0)
	c.Assert(loop.Slot(), qt.Equals, 0)
}

func TestRecreateFailureKeepsFlag(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	d.recreateErr = errors.New("no surface")
	loop := newFrameLoop(d, 2)
	ctx := &Context{FramebufferResized: true}

	c.Assert(loop.Tick(ctx), qt.ErrorMatches, "no surface")
	c.Assert(ctx.FramebufferResized, qt.Equals, true)
	c.Assert(loop.State(), qt.Equals, FrameRecreating)
}

func TestClosedWhileMinimized(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	loop := newFrameLoop(d, 2)
	w := &fakeWindow{sizes: [][2]uint32{{0, 0}}, quitAt: 1}
	ctx := &Context{Window: w, FramebufferResized: true}

	err := loop.Tick(ctx)
	c.Assert(errors.Is(err, ErrWindowClosed), qt.Equals, true)
	c.Assert(w.waited, qt.Equals, 1)
	c.Assert(d.recreated, qt.Equals, 0)
	c.Assert(loop.State(), qt.Equals, FrameRecreating)
}

func TestMinimizedRecreatesOnRestore(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	loop := newFrameLoop(d, 2)
	w := &fakeWindow{sizes: [][2]uint32{{0, 0}, {0, 0}, {640, 480}}}
	ctx := &Context{Window: w, FramebufferResized: true}

	c.Assert(loop.Tick(ctx), qt.IsNil)
	c.Assert(w.waited, qt.Equals, 2)
	c.Assert(d.recreated, qt.Equals, 1)
	c.Assert(ctx.FramebufferResized, qt.Equals, false)
}

func TestTickStates(t *testing.T) {
	c := qt.New(t)

	d := newFakeDriver(2)
	d.present = []SwapchainStatus{SwapchainSuboptimal}
	loop := newFrameLoop(d, 2)
	d.loop = loop

	c.Assert(loop.Tick(&Context{}), qt.IsNil)
	c.Assert(d.states, qt.DeepEquals, []string{
		"wait 0: acquiring",
		"acquire 0: acquiring",
		"reset 0: recording",
		"record 0 0: recording",
		"submit 0: recording",
		"present 0 0: submitted",
		"recreate: recreating",
	})
	c.Assert(loop.State(), qt.Equals, FrameIdle)
}

func TestPresentErrorLeavesSubmitted(t *testing.T) {
	c := qt.New(t)

	lost := errors.New("surface lost")
	d := newFakeDriver(2)
	d.presentErr = lost
	loop := newFrameLoop(d, 2)

	err := loop.Tick(&Context{})
	c.Assert(errors.Is(err, lost), qt.Equals, true)
	c.Assert(loop.State(), qt.Equals, FrameSubmitted)
	c.Assert(loop.Frames(), qt.Equals, int64(0))
	c.Assert(loop.Slot(), qt.Equals, 0)
}

func TestFrameStateString(t *testing.T) {
	c := qt.New(t)

	c.Assert(FrameRecording.String(), qt.Equals, "recording")
	c.Assert(FrameState(42).String(), qt.Equals, "FrameState(42)")
}
