// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"unsafe"

	"github.com/devblok/penumbra/gfx/vkr"
	vk "github.com/vulkan-go/vulkan"
)

// DefaultVulkanApplicationInfo application info describes a Vulkan application
var DefaultVulkanApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   safeString("Penumbra"),
	PEngineName:        safeString("Penumbra"),
}

// PhysicalDeviceInfo is a summary of a single GPU
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Suitable      bool
	Extensions    []string
	Layers        []string
	Memory        uint
}

// NewVulkanInstance creates a Vulkan instance. procAddr is the loader entry point
// handed out by the window system, when nil the default system loader is used.
func NewVulkanInstance(appInfo *vk.ApplicationInfo, procAddr unsafe.Pointer, cfg InstanceConfiguration) (*VulkanInstance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, "VK_LAYER_KHRONOS_validation")
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, vkr.Wrap("vk.SetDefaultGetInstanceProcAddr()", err)
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, vkr.Wrap("vk.Init()", err)
	}

	/* Create instance */
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vkr.Check("vk.CreateInstance()", vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, vkr.Wrap("vk.InitInstance()", err)
	}

	/* Enumerate devices */
	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	return &VulkanInstance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
	}, nil
}

// VulkanInstance describes a Vulkan API Instance
type VulkanInstance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vkr.Check("vk.EnumeratePhysicalDevices()", vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, err
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vkr.Check("vk.EnumeratePhysicalDevices()", vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, err
	}
	return availableDevices[:deviceCount], nil
}

// PhysicalDevicesInfo implements interface
func (v *VulkanInstance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, device := range v.availableDevices {
		// Get extension info
		extensions, err := deviceExtensions(device)
		if err != nil {
			pdi[i].Invalid = true
		}
		pdi[i].Extensions = extensions

		// Get layers info
		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		// Get memory info
		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(device, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += uint(memoryProperties.MemoryHeaps[iMem].Size)
		}

		// Get general device info
		var physicalDeviceProperties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &physicalDeviceProperties)
		physicalDeviceProperties.Deref()
		pdi[i].ID = int(physicalDeviceProperties.DeviceID)
		pdi[i].VendorID = int(physicalDeviceProperties.VendorID)
		pdi[i].Name = vk.ToString(physicalDeviceProperties.DeviceName[:])
		pdi[i].DriverVersion = int(physicalDeviceProperties.DriverVersion)

		_, err = checkDevice(device, v.Surface(), DefaultDeviceExtensions)
		pdi[i].Suitable = err == nil
	}
	return pdi
}

// SetSurface implements interface
func (v *VulkanInstance) SetSurface(pSurface unsafe.Pointer) {
	v.surface = vk.SurfaceFromPointer(uintptr(pSurface))
}

// Surface implements interface
func (v *VulkanInstance) Surface() vk.Surface {
	if v.surface == nil {
		return vk.NullSurface
	}
	return v.surface
}

// Inner implements interface
func (v *VulkanInstance) Inner() vk.Instance {
	return v.instance
}

// Extensions implements interface
func (v *VulkanInstance) Extensions() []string {
	return v.configuration.Extensions
}

// AvailableDevices implements interface
func (v *VulkanInstance) AvailableDevices() []vk.PhysicalDevice {
	return v.availableDevices
}

// Destroy implements interface
func (v *VulkanInstance) Destroy() {
	v.availableDevices = nil
	if v.surface != nil {
		vk.DestroySurface(v.instance, v.surface, nil)
		v.surface = nil
	}
	vk.DestroyInstance(v.instance, nil)
}
