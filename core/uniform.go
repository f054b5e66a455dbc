package core

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Uniform layouts follow std140, every vec3 is padded out to a Vec4.

// SceneUniform feeds the lit scene pipeline.
type SceneUniform struct {
	Projection glm.Mat4
	View       glm.Mat4
	LightSpace glm.Mat4

	LightDirection glm.Vec4
	LightColor     glm.Vec4

	// PointLight W carries the shadow far plane
	PointLight      glm.Vec4
	PointLightColor glm.Vec4

	Eye glm.Vec4
}

// NormalsUniform feeds the normals visualisation pipeline.
type NormalsUniform struct {
	Projection glm.Mat4
	View       glm.Mat4
	Length     float32
	_          [3]float32
}

// SkyboxUniform feeds the cubemap pipeline. View has no translation.
type SkyboxUniform struct {
	Projection glm.Mat4
	View       glm.Mat4
}

// DirectionalShadowUniform feeds the directional shadow pipeline.
type DirectionalShadowUniform struct {
	LightSpace glm.Mat4
}

// PointShadowUniform feeds the point shadow pipeline.
type PointShadowUniform struct {
	Projection glm.Mat4

	// LightPosition W carries the far plane
	LightPosition glm.Vec4
}

type modelPush struct {
	Model  glm.Mat4
	Normal glm.Mat4
}

type shadowPush struct {
	Model glm.Mat4
}

type pointShadowPush struct {
	Face  glm.Mat4
	Model glm.Mat4
}

var (
	modelPushSize       = uint32(unsafe.Sizeof(modelPush{}))
	shadowPushSize      = uint32(unsafe.Sizeof(shadowPush{}))
	pointShadowPushSize = uint32(unsafe.Sizeof(pointShadowPush{}))
)

// mgl32 projections target OpenGL clip space, depth in [-1, 1] and Y up.
// These remap depth to [0, 1], clipCorrection also flips Y.
var (
	clipCorrection = glm.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	depthCorrection = glm.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
)

// vulkanProjection converts an mgl32 projection to Vulkan clip space.
func vulkanProjection(p glm.Mat4) glm.Mat4 {
	return clipCorrection.Mul4(p)
}

// normalMatrix is the inverse transpose of the model's upper 3x3.
func normalMatrix(model glm.Mat4) glm.Mat4 {
	return model.Mat3().Inv().Transpose().Mat4()
}

// withoutTranslation keeps only the rotation of a view.
func withoutTranslation(view glm.Mat4) glm.Mat4 {
	return view.Mat3().Mat4()
}
