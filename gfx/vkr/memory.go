// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Memory defines a usable memory region.
type Memory struct {
	mapped unsafe.Pointer
	len    vk.DeviceSize
	device vk.Device
	memory vk.DeviceMemory
}

// Len returns the length of assigned memory.
func (m *Memory) Len() vk.DeviceSize {
	return m.len
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Map maps the entire memory region and returns a pointer to it.
// Mapping twice returns the existing pointer.
func (m *Memory) Map() (unsafe.Pointer, error) {
	if m.mapped != nil {
		return m.mapped, nil
	}
	var memMapped unsafe.Pointer
	if err := Check("vk.MapMemory()", vk.MapMemory(m.device, m.memory, 0, m.len, 0, &memMapped)); err != nil {
		return nil, err
	}
	m.mapped = memMapped
	return memMapped, nil
}

// Mapped returns the pointer of a mapped region, nil if not mapped.
func (m *Memory) Mapped() unsafe.Pointer {
	return m.mapped
}

// Write copies data to the start of the mapped region, mapping it first if needed.
func (m *Memory) Write(data []byte) error {
	if vk.DeviceSize(len(data)) > m.len {
		return fmt.Errorf("write of %d bytes overflows %d byte region", len(data), m.len)
	}
	ptr, err := m.Map()
	if err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	return nil
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped != nil {
		vk.UnmapMemory(m.device, m.memory)
		m.mapped = nil
	}
}

// Release frees memory after unmapping it if previously mapped.
func (m *Memory) Release() {
	m.Unmap()
	vk.FreeMemory(m.device, m.memory, nil)
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()

	return &MemoryAllocator{
		device:        device,
		memProperties: memProperties,
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device        vk.Device
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Device returns the logical device allocations are made on.
func (ma *MemoryAllocator) Device() vk.Device {
	return ma.device
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (Memory, error) {
	memTypeIdx, err := FindMemoryType(ma.memProperties, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return Memory{}, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := Check("vk.AllocateMemory()", vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return Memory{}, err
	}

	return Memory{
		len:    req.Size,
		device: ma.device,
		memory: memory,
	}, nil
}

// FindMemoryType returns the lowest memory type index allowed by filter
// whose property flags contain every flag of prop.
func FindMemoryType(props vk.PhysicalDeviceMemoryProperties, filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < props.MemoryTypeCount && int(idx) < len(props.MemoryTypes); idx++ {
		props.MemoryTypes[idx].Deref()
		if filter&(1<<idx) != 0 && (props.MemoryTypes[idx].PropertyFlags&prop) == prop {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("filter %#x, properties %#x: %w", filter, prop, ErrMemoryTypeUnavailable)
}
