package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	t := &Time{
		fps:   cfg.FramesPerSecond,
		start: time.Now(),
	}
	if cfg.FramesPerSecond > 0 {
		t.fpsTicker = time.NewTicker(time.Second / time.Duration(cfg.FramesPerSecond))
	}
	return t
}

// Time paces the frame loop and keeps the clock scene animation runs on
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	start  time.Time
	frames int64
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// Wait blocks until the next frame may start, returns immediately when unlimited.
func (t *Time) Wait() {
	if t.fpsTicker != nil {
		<-t.fpsTicker.C
	}
	t.frames++
}

// Frames is the number of frames waited for so far
func (t *Time) Frames() int64 {
	return t.frames
}

// Elapsed returns seconds since the service was created
func (t *Time) Elapsed() float32 {
	return float32(time.Since(t.start).Seconds())
}

// Stop releases the ticker
func (t *Time) Stop() {
	if t.fpsTicker != nil {
		t.fpsTicker.Stop()
	}
}
