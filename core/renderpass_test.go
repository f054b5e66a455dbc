package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
	vk "github.com/vulkan-go/vulkan"
)

func TestMainAttachments(t *testing.T) {
	c := qt.New(t)

	var swapchainView, colorView, depthView vk.ImageView
	c.Assert(mainAttachments(vk.SampleCount1Bit, swapchainView, colorView, depthView), qt.HasLen, 2)
	c.Assert(mainAttachments(vk.SampleCount4Bit, swapchainView, colorView, depthView), qt.HasLen, 3)
}

func TestClearValues(t *testing.T) {
	c := qt.New(t)

	c.Assert(clearValues(DirectionalShadowPass, vk.SampleCount1Bit), qt.HasLen, 1)
	c.Assert(clearValues(PointShadowPass, vk.SampleCount8Bit), qt.HasLen, 1)
	c.Assert(clearValues(MainPass, vk.SampleCount1Bit), qt.HasLen, 2)
	c.Assert(clearValues(MainPass, vk.SampleCount4Bit), qt.HasLen, 3)
}

func TestPassKind(t *testing.T) {
	c := qt.New(t)

	c.Assert(PointShadowPass.faces(), qt.Equals, 6)
	c.Assert(DirectionalShadowPass.faces(), qt.Equals, 1)
	c.Assert(MainPass.faces(), qt.Equals, 1)
	c.Assert(PointShadowPass.String(), qt.Equals, "point shadow")
	c.Assert(PassKind(9).String(), qt.Equals, "PassKind(9)")
}

func TestRenderPassInfo(t *testing.T) {
	c := qt.New(t)

	shadow := shadowRenderPass(RenderPassDescription{Kind: PointShadowPass, DepthFormat: vk.FormatD32Sfloat})
	c.Assert(shadow.AttachmentCount, qt.Equals, uint32(1))
	c.Assert(shadow.PAttachments[0].FinalLayout, qt.Equals, vk.ImageLayoutDepthStencilReadOnlyOptimal)

	msaa := mainRenderPass(RenderPassDescription{
		Kind:        MainPass,
		ColorFormat: vk.FormatB8g8r8a8Srgb,
		DepthFormat: vk.FormatD32Sfloat,
		Samples:     vk.SampleCount4Bit,
	})
	c.Assert(msaa.AttachmentCount, qt.Equals, uint32(3))
	c.Assert(msaa.PAttachments[2].FinalLayout, qt.Equals, vk.ImageLayoutPresentSrc)

	single := mainRenderPass(RenderPassDescription{
		Kind:        MainPass,
		ColorFormat: vk.FormatB8g8r8a8Srgb,
		DepthFormat: vk.FormatD32Sfloat,
		Samples:     vk.SampleCount1Bit,
	})
	c.Assert(single.AttachmentCount, qt.Equals, uint32(2))
	c.Assert(single.PAttachments[0].FinalLayout, qt.Equals, vk.ImageLayoutPresentSrc)
}
