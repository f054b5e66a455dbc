// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandContext submits one-shot transfer work onto a queue.
// Every submission blocks until the queue is idle, so it is
// meant for load time, never for the frame loop.
type CommandContext struct {
	Device vk.Device
	Queue  vk.Queue
	Pool   vk.CommandPool
}

// Begin allocates and begins a one time submit command buffer.
func (cc CommandContext) Begin() (vk.CommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        cc.Pool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := Check("vk.AllocateCommandBuffers()", vk.AllocateCommandBuffers(cc.Device, &cbai, commandBuffers)); err != nil {
		return nil, err
	}
	commandBuffer := commandBuffers[0]

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}

	if err := Check("vk.BeginCommandBuffer()", vk.BeginCommandBuffer(commandBuffer, &cbbi)); err != nil {
		vk.FreeCommandBuffers(cc.Device, cc.Pool, 1, commandBuffers)
		return nil, err
	}
	return commandBuffer, nil
}

// End ends, submits and waits for the command buffer, then frees it.
func (cc CommandContext) End(commandBuffer vk.CommandBuffer) error {
	defer vk.FreeCommandBuffers(cc.Device, cc.Pool, 1, []vk.CommandBuffer{commandBuffer})

	if err := Check("vk.EndCommandBuffer()", vk.EndCommandBuffer(commandBuffer)); err != nil {
		return err
	}

	si := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer},
	}
	if err := Check("vk.QueueSubmit()", vk.QueueSubmit(cc.Queue, 1, []vk.SubmitInfo{si}, nil)); err != nil {
		return err
	}
	return Check("vk.QueueWaitIdle()", vk.QueueWaitIdle(cc.Queue))
}

// Run records fn into a one-shot command buffer and waits for it to execute.
func (cc CommandContext) Run(fn func(cmd vk.CommandBuffer)) error {
	cmd, err := cc.Begin()
	if err != nil {
		return err
	}
	fn(cmd)
	return cc.End(cmd)
}
