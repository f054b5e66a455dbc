// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/devblok/penumbra/gfx/vkr"
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// QueueFamilyIndices are the queue families the renderer submits to.
type QueueFamilyIndices struct {
	Graphics uint32
	Present  uint32

	hasGraphics bool
	hasPresent  bool
}

// Complete reports whether every needed family was found.
func (q QueueFamilyIndices) Complete(needPresent bool) bool {
	return q.hasGraphics && (q.hasPresent || !needPresent)
}

// Unique lists the distinct families, graphics first.
func (q QueueFamilyIndices) Unique() []uint32 {
	if !q.hasPresent || q.Present == q.Graphics {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

// findQueueFamilies picks the first graphics family and the first family able to present.
// A single family doing both is preferred when there is one.
func findQueueFamilies(families []vk.QueueFamilyProperties, supportsPresent func(idx uint32) bool) QueueFamilyIndices {
	var indices QueueFamilyIndices
	for i := range families {
		idx := uint32(i)
		families[i].Deref()
		if families[i].QueueCount == 0 {
			continue
		}

		graphics := families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		present := supportsPresent != nil && supportsPresent(idx)
		if graphics && present {
			indices.Graphics, indices.Present = idx, idx
			indices.hasGraphics, indices.hasPresent = true, true
			return indices
		}
		if graphics && !indices.hasGraphics {
			indices.Graphics, indices.hasGraphics = idx, true
		}
		if present && !indices.hasPresent {
			indices.Present, indices.hasPresent = idx, true
		}
	}
	return indices
}

// missingExtensions returns the required names not present in available.
func missingExtensions(available, required []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, a := range available {
		have[a] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := have[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// chooseSampleCount returns the highest supported count not above requested.
func chooseSampleCount(supported vk.SampleCountFlags, requested int) vk.SampleCountFlagBits {
	counts := []vk.SampleCountFlagBits{
		vk.SampleCount64Bit,
		vk.SampleCount32Bit,
		vk.SampleCount16Bit,
		vk.SampleCount8Bit,
		vk.SampleCount4Bit,
		vk.SampleCount2Bit,
	}
	for _, c := range counts {
		if int(c) <= requested && supported&vk.SampleCountFlags(c) != 0 {
			return c
		}
	}
	return vk.SampleCount1Bit
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vkr.Check("vk.EnumerateDeviceExtensionProperties()", vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vkr.Check("vk.EnumerateDeviceExtensionProperties()", vk.EnumerateDeviceExtensionProperties(device, "", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range props[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func queueFamilies(device vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)
	return families[:count]
}

// checkDevice resolves the queue families of device, the error tells why it is unsuitable.
// With a null surface presentation is not checked.
func checkDevice(device vk.PhysicalDevice, surface vk.Surface, required []string) (QueueFamilyIndices, error) {
	needPresent := surface != vk.NullSurface
	if !needPresent {
		required = nil
	}

	available, err := deviceExtensions(device)
	if err != nil {
		return QueueFamilyIndices{}, err
	}
	if missing := missingExtensions(available, required); len(missing) > 0 {
		return QueueFamilyIndices{}, fmt.Errorf("missing extensions %s", strings.Join(missing, ", "))
	}

	if needPresent {
		support, err := querySupport(device, surface)
		if err != nil {
			return QueueFamilyIndices{}, err
		}
		if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			return QueueFamilyIndices{}, errors.New("surface has no formats or present modes")
		}
	}

	indices := findQueueFamilies(queueFamilies(device), func(idx uint32) bool {
		if !needPresent {
			return false
		}
		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, idx, surface, &supported)
		return supported.B()
	})
	if !indices.Complete(needPresent) {
		return QueueFamilyIndices{}, errors.New("no graphics and present capable queue families")
	}
	return indices, nil
}

// selectPhysicalDevice returns the first device meeting the requirements.
// There is no ranking between suitable devices.
func selectPhysicalDevice(devices []vk.PhysicalDevice, surface vk.Surface, required []string) (vk.PhysicalDevice, QueueFamilyIndices, error) {
	var reasons []string
	for idx, device := range devices {
		indices, err := checkDevice(device, surface, required)
		if err == nil {
			return device, indices, nil
		}
		reasons = append(reasons, fmt.Sprintf("device %d: %s", idx, err))
	}
	return nil, QueueFamilyIndices{}, fmt.Errorf("%w (%s)", ErrDeviceNotFound, strings.Join(reasons, "; "))
}

// Device is the GPU context everything else is created on.
// It does not change after creation and is destroyed last.
type Device struct {
	physical vk.PhysicalDevice
	device   vk.Device
	surface  vk.Surface

	graphicsQueue vk.Queue
	presentQueue  vk.Queue
	families      QueueFamilyIndices

	properties     vk.PhysicalDeviceProperties
	geometryShader bool
	anisotropy     float32

	commandPool   vk.CommandPool
	pipelineCache vk.PipelineCache
	allocator     *vkr.MemoryAllocator

	log *log.Entry
}

// NewDevice selects a physical device able to render to the instance's
// surface and creates the logical device with its queues.
func NewDevice(instance Instance, extensions []string) (*Device, error) {
	logger := log.WithField("component", "device")
	surface := instance.Surface()
	if surface == vk.NullSurface {
		extensions = nil
	}

	physical, indices, err := selectPhysicalDevice(instance.AvailableDevices(), surface, extensions)
	if err != nil {
		return nil, err
	}

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physical, &properties)
	properties.Deref()
	properties.Limits.Deref()

	var supported vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(physical, &supported)
	supported.Deref()

	enabled := vk.PhysicalDeviceFeatures{
		GeometryShader:    supported.GeometryShader,
		SamplerAnisotropy: supported.SamplerAnisotropy,
	}

	device, err := createLogicalDevice(physical, indices, extensions, enabled)
	if err != nil {
		return nil, err
	}

	d := &Device{
		physical:       physical,
		device:         device,
		surface:        surface,
		families:       indices,
		properties:     properties,
		geometryShader: supported.GeometryShader.B(),
		log:            logger,
	}
	if supported.SamplerAnisotropy.B() {
		d.anisotropy = properties.Limits.MaxSamplerAnisotropy
	}

	vk.GetDeviceQueue(device, indices.Graphics, 0, &d.graphicsQueue)
	d.presentQueue = d.graphicsQueue
	if indices.hasPresent {
		vk.GetDeviceQueue(device, indices.Present, 0, &d.presentQueue)
	}

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: indices.Graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := vkr.Check("vk.CreateCommandPool()", vk.CreateCommandPool(device, &cpci, nil, &d.commandPool)); err != nil {
		vk.DestroyDevice(device, nil)
		return nil, err
	}

	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if err := vkr.Check("vk.CreatePipelineCache()", vk.CreatePipelineCache(device, &pcci, nil, &d.pipelineCache)); err != nil {
		vk.DestroyCommandPool(device, d.commandPool, nil)
		vk.DestroyDevice(device, nil)
		return nil, err
	}

	d.allocator = vkr.NewMemoryAllocator(device, physical)

	logger.WithFields(log.Fields{
		"name":     vk.ToString(properties.DeviceName[:]),
		"graphics": indices.Graphics,
		"present":  indices.Present,
	}).Info("device selected")
	return d, nil
}

// createLogicalDevice requests one queue per unique family at priority 1.0.
func createLogicalDevice(physical vk.PhysicalDevice, indices QueueFamilyIndices, extensions []string, features vk.PhysicalDeviceFeatures) (vk.Device, error) {
	var queueInfos []vk.DeviceQueueCreateInfo
	for _, family := range indices.Unique() {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}

	var device vk.Device
	if err := vkr.Check("vk.CreateDevice()", vk.CreateDevice(physical, &dci, nil, &device)); err != nil {
		return nil, err
	}
	return device, nil
}

// Physical returns the selected physical device
func (d *Device) Physical() vk.PhysicalDevice {
	return d.physical
}

// Logical returns the logical device handle
func (d *Device) Logical() vk.Device {
	return d.device
}

// GraphicsQueue is where all rendering work is submitted
func (d *Device) GraphicsQueue() vk.Queue {
	return d.graphicsQueue
}

// PresentQueue is where images are presented, may be the graphics queue
func (d *Device) PresentQueue() vk.Queue {
	return d.presentQueue
}

// Families returns the queue family indices in use
func (d *Device) Families() QueueFamilyIndices {
	return d.families
}

// Allocator returns the device memory allocator
func (d *Device) Allocator() *vkr.MemoryAllocator {
	return d.allocator
}

// CommandPool is the resettable pool for the graphics family
func (d *Device) CommandPool() vk.CommandPool {
	return d.commandPool
}

// PipelineCache is shared by all pipelines built on the device
func (d *Device) PipelineCache() vk.PipelineCache {
	return d.pipelineCache
}

// Commands returns a context for one-shot transfer commands
func (d *Device) Commands() vkr.CommandContext {
	return vkr.CommandContext{
		Device: d.device,
		Queue:  d.graphicsQueue,
		Pool:   d.commandPool,
	}
}

// SupportsGeometryShader reports whether geometry shaders were enabled
func (d *Device) SupportsGeometryShader() bool {
	return d.geometryShader
}

// Anisotropy is the sampler anisotropy to use, 0 when unsupported
func (d *Device) Anisotropy() float32 {
	return d.anisotropy
}

// SampleCount returns the usable MSAA sample count closest to requested
func (d *Device) SampleCount(requested int) vk.SampleCountFlagBits {
	limits := d.properties.Limits
	return chooseSampleCount(limits.FramebufferColorSampleCounts&limits.FramebufferDepthSampleCounts, requested)
}

// depthFormats are tried in order. Depth targets are viewed through the
// depth aspect only, so formats carrying stencil are left out.
var depthFormats = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD16Unorm,
}

// DepthFormat returns the first depth format usable both as an attachment and a sampled image
func (d *Device) DepthFormat() (vk.Format, error) {
	want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit | vk.FormatFeatureSampledImageBit)
	for _, format := range depthFormats {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physical, format, &props)
		props.Deref()
		if props.OptimalTilingFeatures&want == want {
			return format, nil
		}
	}
	return vk.FormatUndefined, errors.New("no supported depth format")
}

// WaitIdle blocks until all submitted work has finished
func (d *Device) WaitIdle() error {
	return vkr.Check("vk.DeviceWaitIdle()", vk.DeviceWaitIdle(d.device))
}

// Destroy implements interface
func (d *Device) Destroy() {
	vk.DestroyPipelineCache(d.device, d.pipelineCache, nil)
	vk.DestroyCommandPool(d.device, d.commandPool, nil)
	vk.DestroyDevice(d.device, nil)
}
