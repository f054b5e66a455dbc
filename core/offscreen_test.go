package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

func TestCubeFaceTransforms(t *testing.T) {
	c := qt.New(t)

	deg := glm.DegToRad
	want := [6]glm.Mat4{
		glm.HomogRotate3DY(deg(90)).Mul4(glm.HomogRotate3DX(deg(180))),
		glm.HomogRotate3DY(deg(-90)).Mul4(glm.HomogRotate3DX(deg(180))),
		glm.HomogRotate3DX(deg(-90)),
		glm.HomogRotate3DX(deg(90)),
		glm.HomogRotate3DX(deg(180)),
		glm.HomogRotate3DZ(deg(180)),
	}
	faces := CubeFaceTransforms()
	for i := range faces {
		c.Assert(faces[i].ApproxEqual(want[i]), qt.Equals, true, qt.Commentf("face %d", i))
		for j := i + 1; j < len(faces); j++ {
			c.Assert(faces[i].ApproxEqualThreshold(faces[j], 1e-3), qt.Equals, false, qt.Commentf("faces %d and %d", i, j))
		}
	}

	// callers get a copy
	faces[0] = glm.Ident4()
	c.Assert(CubeFaceTransforms()[0].ApproxEqual(want[0]), qt.Equals, true)
}

func TestDirectionalLightSpaceCoversBounds(t *testing.T) {
	c := qt.New(t)

	bounds := Bounds{Center: glm.Vec3{1, 0, -2}, Radius: 3}
	for _, dir := range []glm.Vec3{{-0.4, -1, -0.3}, {0, -1, 0}, {1, 0, 0}} {
		lightSpace := directionalLightSpace(dir, bounds)

		// the center lands in the middle of the map, inside the depth range
		p := lightSpace.Mul4x1(bounds.Center.Vec4(1))
		c.Assert(glm.FloatEqualThreshold(p.X(), 0, 1e-4), qt.Equals, true, qt.Commentf("dir %v", dir))
		c.Assert(glm.FloatEqualThreshold(p.Y(), 0, 1e-4), qt.Equals, true, qt.Commentf("dir %v", dir))
		c.Assert(p.Z() > 0 && p.Z() < 1, qt.Equals, true, qt.Commentf("dir %v depth %f", dir, p.Z()))

		// points on the sphere along the light stay in the depth range
		near := lightSpace.Mul4x1(bounds.Center.Sub(dir.Normalize().Mul(bounds.Radius)).Vec4(1))
		far := lightSpace.Mul4x1(bounds.Center.Add(dir.Normalize().Mul(bounds.Radius)).Vec4(1))
		c.Assert(near.Z() >= 0 && near.Z() < p.Z(), qt.Equals, true)
		c.Assert(far.Z() > p.Z() && far.Z() <= 1, qt.Equals, true)
	}
}

func TestPointLightProjection(t *testing.T) {
	c := qt.New(t)

	proj := pointLightProjection(25)
	// 90 degrees with a square aspect scales x and y equally
	c.Assert(glm.FloatEqualThreshold(proj[0], proj[5], 1e-5), qt.Equals, true)
	c.Assert(proj[5] > 0, qt.Equals, true)
}

func TestProjectionDepthRange(t *testing.T) {
	c := qt.New(t)

	proj := vulkanProjection(glm.Perspective(glm.DegToRad(45), 1, 0.1, 100))
	near := proj.Mul4x1(glm.Vec4{0, 1, -0.1, 1})
	far := proj.Mul4x1(glm.Vec4{0, 0, -100, 1})
	c.Assert(glm.FloatEqualThreshold(near.Z()/near.W(), 0, 1e-4), qt.Equals, true)
	c.Assert(glm.FloatEqualThreshold(far.Z()/far.W(), 1, 1e-4), qt.Equals, true)
	// up in the world is down on screen
	c.Assert(near.Y() < 0, qt.Equals, true)

	cube := pointLightProjection(25).Mul4x1(glm.Vec4{0, 1, -0.1, 1})
	c.Assert(glm.FloatEqualThreshold(cube.Z()/cube.W(), 0, 1e-4), qt.Equals, true)
	c.Assert(cube.Y() > 0, qt.Equals, true)
}

func TestShadowSamplerCompares(t *testing.T) {
	c := qt.New(t)

	opts := shadowSamplerOptions()
	c.Assert(opts.Compare, qt.Equals, true)
	c.Assert(opts.CompareOp, qt.Equals, vk.CompareOpLessOrEqual)
	// outside the map reads the far plane
	c.Assert(opts.AddressMode, qt.Equals, vk.SamplerAddressModeClampToBorder)
	c.Assert(opts.BorderColor, qt.Equals, vk.BorderColorFloatOpaqueWhite)
}
