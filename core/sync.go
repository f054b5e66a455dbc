package core

import (
	"github.com/devblok/penumbra/gfx/vkr"
	vk "github.com/vulkan-go/vulkan"
)

// frameSync is what a single frame in flight synchronizes on.
type frameSync struct {
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       vk.Fence
	commands       vk.CommandBuffer
}

// newFrameSyncs creates n sets, the fences start signaled so the
// first wait on every slot returns at once.
func newFrameSyncs(dev *Device, n int) ([]frameSync, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        dev.CommandPool(),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}
	commands := make([]vk.CommandBuffer, n)
	if err := vkr.Check("vk.AllocateCommandBuffers()", vk.AllocateCommandBuffers(dev.Logical(), &cbai, commands)); err != nil {
		return nil, err
	}

	syncs := make([]frameSync, n)
	for i := range syncs {
		syncs[i].commands = commands[i]

		sci := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if err := vkr.Check("vk.CreateSemaphore()", vk.CreateSemaphore(dev.Logical(), &sci, nil, &syncs[i].imageAvailable)); err != nil {
			destroyFrameSyncs(dev, syncs)
			return nil, err
		}
		if err := vkr.Check("vk.CreateSemaphore()", vk.CreateSemaphore(dev.Logical(), &sci, nil, &syncs[i].renderFinished)); err != nil {
			destroyFrameSyncs(dev, syncs)
			return nil, err
		}

		fci := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}
		if err := vkr.Check("vk.CreateFence()", vk.CreateFence(dev.Logical(), &fci, nil, &syncs[i].inFlight)); err != nil {
			destroyFrameSyncs(dev, syncs)
			return nil, err
		}
	}
	return syncs, nil
}

func destroyFrameSyncs(dev *Device, syncs []frameSync) {
	var commands []vk.CommandBuffer
	for _, s := range syncs {
		if s.imageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(dev.Logical(), s.imageAvailable, nil)
		}
		if s.renderFinished != vk.NullSemaphore {
			vk.DestroySemaphore(dev.Logical(), s.renderFinished, nil)
		}
		if s.inFlight != vk.NullFence {
			vk.DestroyFence(dev.Logical(), s.inFlight, nil)
		}
		if s.commands != nil {
			commands = append(commands, s.commands)
		}
	}
	if len(commands) > 0 {
		vk.FreeCommandBuffers(dev.Logical(), dev.CommandPool(), uint32(len(commands)), commands)
	}
}
