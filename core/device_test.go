package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
	vk "github.com/vulkan-go/vulkan"
)

func family(flags vk.QueueFlagBits, count uint32) vk.QueueFamilyProperties {
	return vk.QueueFamilyProperties{
		QueueFlags: vk.QueueFlags(flags),
		QueueCount: count,
	}
}

func presentOn(families ...uint32) func(uint32) bool {
	return func(idx uint32) bool {
		for _, f := range families {
			if f == idx {
				return true
			}
		}
		return false
	}
}

func TestQueueFamiliesShared(t *testing.T) {
	c := qt.New(t)

	families := []vk.QueueFamilyProperties{
		family(vk.QueueTransferBit, 1),
		family(vk.QueueGraphicsBit, 1),
		family(vk.QueueGraphicsBit|vk.QueueComputeBit, 4),
	}
	indices := findQueueFamilies(families, presentOn(0, 2))
	c.Assert(indices.Complete(true), qt.Equals, true)
	c.Assert(indices.Graphics, qt.Equals, uint32(2))
	c.Assert(indices.Present, qt.Equals, uint32(2))
	c.Assert(indices.Unique(), qt.DeepEquals, []uint32{2})
}

func TestQueueFamiliesSeparate(t *testing.T) {
	c := qt.New(t)

	families := []vk.QueueFamilyProperties{
		family(vk.QueueGraphicsBit, 1),
		family(vk.QueueTransferBit, 1),
	}
	indices := findQueueFamilies(families, presentOn(1))
	c.Assert(indices.Complete(true), qt.Equals, true)
	c.Assert(indices.Graphics, qt.Equals, uint32(0))
	c.Assert(indices.Present, qt.Equals, uint32(1))
	c.Assert(indices.Unique(), qt.DeepEquals, []uint32{0, 1})
}

func TestQueueFamiliesIncomplete(t *testing.T) {
	c := qt.New(t)

	// a graphics family without queues does not count
	families := []vk.QueueFamilyProperties{
		family(vk.QueueGraphicsBit, 0),
		family(vk.QueueComputeBit, 1),
	}
	indices := findQueueFamilies(families, presentOn(1))
	c.Assert(indices.Complete(true), qt.Equals, false)
	c.Assert(indices.Complete(false), qt.Equals, false)

	indices = findQueueFamilies([]vk.QueueFamilyProperties{family(vk.QueueGraphicsBit, 1)}, nil)
	c.Assert(indices.Complete(true), qt.Equals, false)
	c.Assert(indices.Complete(false), qt.Equals, true)
}

func TestMissingExtensions(t *testing.T) {
	c := qt.New(t)

	available := []string{"VK_KHR_swapchain", "VK_KHR_maintenance1"}
	c.Assert(missingExtensions(available, DefaultDeviceExtensions), qt.HasLen, 0)
	c.Assert(missingExtensions(available[1:], DefaultDeviceExtensions), qt.DeepEquals, []string{"VK_KHR_swapchain"})
}

func TestChooseSampleCount(t *testing.T) {
	c := qt.New(t)

	supported := vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit)
	c.Assert(chooseSampleCount(supported, 8), qt.Equals, vk.SampleCount4Bit)
	c.Assert(chooseSampleCount(supported, 4), qt.Equals, vk.SampleCount4Bit)
	c.Assert(chooseSampleCount(supported, 3), qt.Equals, vk.SampleCount2Bit)
	c.Assert(chooseSampleCount(supported, 1), qt.Equals, vk.SampleCount1Bit)
	c.Assert(chooseSampleCount(supported, 0), qt.Equals, vk.SampleCount1Bit)
}

func TestDepthFormatsHaveNoStencil(t *testing.T) {
	c := qt.New(t)

	c.Assert(depthFormats[0], qt.Equals, vk.FormatD32Sfloat)
	for _, format := range depthFormats {
		switch format {
		case vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint, vk.FormatS8Uint:
			c.Fatalf("depth format %v carries stencil", format)
		}
	}
}
