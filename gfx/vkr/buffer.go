// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the vulkan resource layer.
package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// NewBuffer creates, configures, allocates and binds a new buffer.
// The memory type is the first one satisfying props.
func NewBuffer(ma *MemoryAllocator, size int, usage vk.BufferUsageFlagBits, props vk.MemoryPropertyFlagBits) (Buffer, error) {
	if size <= 0 {
		return Buffer{}, fmt.Errorf("buffer size must be positive, got %d", size)
	}
	dev := ma.Device()
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := Check("vk.CreateBuffer()", vk.CreateBuffer(dev, &createInfo, nil, &buffer)); err != nil {
		return Buffer{}, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &req)
	req.Deref()

	memory, err := ma.Malloc(req, props)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return Buffer{}, err
	}

	if err := Check("vk.BindBufferMemory()", vk.BindBufferMemory(dev, buffer, memory.Get(), 0)); err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		memory.Release()
		return Buffer{}, err
	}

	return Buffer{
		device: dev,
		buffer: buffer,
		size:   vk.DeviceSize(size),
		memory: memory,
	}, nil
}

// NewHostBuffer creates a host visible and coherent buffer, that
// does not need explicit flushes after writes.
func NewHostBuffer(ma *MemoryAllocator, size int, usage vk.BufferUsageFlagBits) (Buffer, error) {
	return NewBuffer(ma, size, usage, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
}

// NewDataBuffer puts data into a device local buffer by going through
// a host visible staging buffer. Blocks until the copy is done.
func NewDataBuffer(cc CommandContext, ma *MemoryAllocator, data []byte, usage vk.BufferUsageFlagBits) (Buffer, error) {
	staging, err := NewHostBuffer(ma, len(data), vk.BufferUsageTransferSrcBit)
	if err != nil {
		return Buffer{}, err
	}
	defer staging.Release()

	if err := staging.Mem().Write(data); err != nil {
		return Buffer{}, err
	}
	staging.Mem().Unmap()

	buffer, err := NewBuffer(ma, len(data), usage|vk.BufferUsageTransferDstBit, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return Buffer{}, err
	}

	if err := CopyBuffer(cc, staging, buffer, buffer.Size()); err != nil {
		buffer.Release()
		return Buffer{}, err
	}
	return buffer, nil
}

// CopyBuffer copies size bytes from src to dst.
func CopyBuffer(cc CommandContext, src, dst Buffer, size vk.DeviceSize) error {
	return cc.Run(func(cmd vk.CommandBuffer) {
		vk.CmdCopyBuffer(cmd, src.Get(), dst.Get(), 1, []vk.BufferCopy{{Size: size}})
	})
}

// ReadBuffer copies the first size bytes of buf back to the host.
// buf must have been created with transfer source usage.
func ReadBuffer(cc CommandContext, ma *MemoryAllocator, buf Buffer, size int) ([]byte, error) {
	readback, err := NewHostBuffer(ma, size, vk.BufferUsageTransferDstBit)
	if err != nil {
		return nil, err
	}
	defer readback.Release()

	if err := CopyBuffer(cc, buf, readback, vk.DeviceSize(size)); err != nil {
		return nil, err
	}

	ptr, err := readback.Mem().Map()
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, (*[1 << 30]byte)(ptr)[:size:size])
	return out, nil
}

// Buffer implements a generic vulkan buffer.
type Buffer struct {
	device vk.Device
	buffer vk.Buffer
	size   vk.DeviceSize

	memory Memory
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return &b.memory
}

// Get returns the vulkan Buffer handle.
func (b Buffer) Get() vk.Buffer {
	return b.buffer
}

// Size is the requested size of the buffer.
func (b Buffer) Size() vk.DeviceSize {
	return b.size
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	if b.buffer == nil {
		return
	}
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
	b.buffer = nil
}

// Bytes reinterprets a pointer to a plain value as a byte slice
// of the given size, for uploading uniform and vertex data.
func Bytes(ptr unsafe.Pointer, size int) []byte {
	return (*[1 << 30]byte)(ptr)[:size:size]
}
