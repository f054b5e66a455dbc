// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package camera provides the viewer transform the renderer draws with.
package camera

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Limits of the arcball
const (
	MaxPitch    = math.Pi/2 - 0.01
	MinDistance = 0.5
	MaxDistance = 100
)

// NewArcball creates a camera orbiting target at the given distance,
// looking at it from the +Z side, slightly above.
func NewArcball(target glm.Vec3, distance float32) *Arcball {
	a := &Arcball{
		target: target,
		pitch:  0.3,
	}
	a.setDistance(distance)
	return a
}

// Arcball orbits a target point. Yaw is unbounded, pitch stops short of
// the poles so the up vector never flips.
type Arcball struct {
	target   glm.Vec3
	distance float32
	yaw      float32
	pitch    float32
}

// Rotate turns the camera by dx radians around the vertical axis and
// dy radians around the horizontal one.
func (a *Arcball) Rotate(dx, dy float32) {
	a.yaw = float32(math.Mod(float64(a.yaw+dx), 2*math.Pi))
	a.pitch = glm.Clamp(a.pitch+dy, -MaxPitch, MaxPitch)
}

// Zoom moves the camera towards the target, negative delta moves away.
func (a *Arcball) Zoom(delta float32) {
	a.setDistance(a.distance * float32(math.Pow(0.9, float64(delta))))
}

func (a *Arcball) setDistance(d float32) {
	a.distance = glm.Clamp(d, MinDistance, MaxDistance)
}

// Distance to the target
func (a *Arcball) Distance() float32 {
	return a.distance
}

// Pitch in radians
func (a *Arcball) Pitch() float32 {
	return a.pitch
}

// Eye is the camera position in world space.
func (a *Arcball) Eye() glm.Vec3 {
	sinYaw, cosYaw := math.Sincos(float64(a.yaw))
	sinPitch, cosPitch := math.Sincos(float64(a.pitch))
	offset := glm.Vec3{
		float32(cosPitch * sinYaw),
		float32(sinPitch),
		float32(cosPitch * cosYaw),
	}
	return a.target.Add(offset.Mul(a.distance))
}

// View is the world to camera transform.
func (a *Arcball) View() glm.Mat4 {
	return glm.LookAtV(a.Eye(), a.target, glm.Vec3{0, 1, 0})
}
