// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ImageOptions describe a device local image.
type ImageOptions struct {
	Width, Height uint32
	Format        vk.Format
	Usage         vk.ImageUsageFlagBits
	Samples       vk.SampleCountFlagBits

	// Layers is the array layer count, 1 if zero.
	Layers uint32

	// Cube makes the image cube compatible, Layers must be 6.
	Cube bool
}

// NewImage creates a new optimally tiled, device local image and binds memory to it.
func NewImage(ma *MemoryAllocator, opts ImageOptions) (Image, error) {
	if opts.Layers == 0 {
		opts.Layers = 1
	}
	if opts.Samples == 0 {
		opts.Samples = vk.SampleCount1Bit
	}
	if opts.Cube && opts.Layers != 6 {
		return Image{}, fmt.Errorf("cube image needs 6 layers, got %d", opts.Layers)
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  opts.Width,
			Height: opts.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   opts.Layers,
		Format:        opts.Format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(opts.Usage),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       opts.Samples,
	}
	if opts.Cube {
		createInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	dev := ma.Device()
	var image vk.Image
	if err := Check("vk.CreateImage()", vk.CreateImage(dev, &createInfo, nil, &image)); err != nil {
		return Image{}, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image, &req)
	req.Deref()

	memory, err := ma.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(dev, image, nil)
		return Image{}, err
	}

	if err := Check("vk.BindImageMemory()", vk.BindImageMemory(dev, image, memory.Get(), 0)); err != nil {
		vk.DestroyImage(dev, image, nil)
		memory.Release()
		return Image{}, err
	}

	return Image{
		device: dev,
		image:  image,
		memory: memory,
		format: opts.Format,
		layers: opts.Layers,
	}, nil
}

// Image implements and abstracts vulkan image primitive.
type Image struct {
	device vk.Device
	image  vk.Image
	memory Memory
	format vk.Format
	layers uint32
}

// Get returns the vulkan Image handle.
func (i Image) Get() vk.Image {
	return i.image
}

// Format returns the format the image was created with.
func (i Image) Format() vk.Format {
	return i.format
}

// Layers returns the number of array layers.
func (i Image) Layers() uint32 {
	return i.layers
}

// Mem returns the underlying memory of the Image.
func (i *Image) Mem() *Memory {
	return &i.memory
}

// Release destroys the image and frees its memory.
func (i *Image) Release() {
	if i.image == nil {
		return
	}
	vk.DestroyImage(i.device, i.image, nil)
	i.memory.Release()
	i.image = nil
}

// NewImageView creates a view over layerCount layers of img starting at baseLayer.
func NewImageView(img Image, viewType vk.ImageViewType, aspect vk.ImageAspectFlagBits, baseLayer, layerCount uint32) (vk.ImageView, error) {
	return NewImageViewFor(img.device, img.image, img.format, viewType, aspect, baseLayer, layerCount)
}

// NewImageViewFor creates a view for an image not owned by this package,
// such as the presentable images of a swapchain.
func NewImageViewFor(dev vk.Device, image vk.Image, format vk.Format, viewType vk.ImageViewType, aspect vk.ImageAspectFlagBits, baseLayer, layerCount uint32) (vk.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
	}

	var view vk.ImageView
	if err := Check("vk.CreateImageView()", vk.CreateImageView(dev, &ivci, nil, &view)); err != nil {
		return nil, err
	}
	return view, nil
}

// Transition moves every layer of img from the old to the new layout.
// Only the transitions needed for uploading sampled textures are supported.
func Transition(cc CommandContext, img Image, old, new vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           old,
		NewLayout:           new,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     img.layers,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlagBits
	switch {
	case old == vk.ImageLayoutUndefined && new == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageTransferBit
	case old == vk.ImageLayoutTransferDstOptimal && new == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	default:
		return fmt.Errorf("unsupported layout transition %d -> %d", old, new)
	}

	return cc.Run(func(cmd vk.CommandBuffer) {
		vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	})
}

// CopyBufferToImage copies tightly packed layers from buf into img.
// Each layer occupies layerSize consecutive bytes.
func CopyBufferToImage(cc CommandContext, buf Buffer, img Image, width, height uint32, layerSize vk.DeviceSize) error {
	regions := make([]vk.BufferImageCopy, img.layers)
	for layer := uint32(0); layer < img.layers; layer++ {
		regions[layer] = vk.BufferImageCopy{
			BufferOffset: layerSize * vk.DeviceSize(layer),
			ImageExtent: vk.Extent3D{
				Width:  width,
				Height: height,
				Depth:  1,
			},
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       0,
				BaseArrayLayer: layer,
				LayerCount:     1,
			},
		}
	}
	return cc.Run(func(cmd vk.CommandBuffer) {
		vk.CmdCopyBufferToImage(cmd, buf.Get(), img.image, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
	})
}

// SamplerOptions configure a sampler.
type SamplerOptions struct {
	Filter      vk.Filter
	AddressMode vk.SamplerAddressMode
	BorderColor vk.BorderColor
	Anisotropy  float32

	// Compare turns on depth comparison with CompareOp,
	// for sampling through shadow samplers.
	Compare   bool
	CompareOp vk.CompareOp
}

// NewSampler creates a sampler, anisotropy is enabled when it is above 1.
func NewSampler(dev vk.Device, opts SamplerOptions) (vk.Sampler, error) {
	sci := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               opts.Filter,
		MinFilter:               opts.Filter,
		AddressModeU:            opts.AddressMode,
		AddressModeV:            opts.AddressMode,
		AddressModeW:            opts.AddressMode,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             opts.BorderColor,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MaxLod:                  1,
	}
	if opts.Anisotropy > 1 {
		sci.AnisotropyEnable = vk.True
		sci.MaxAnisotropy = opts.Anisotropy
	}
	if opts.Compare {
		sci.CompareEnable = vk.True
		sci.CompareOp = opts.CompareOp
	}

	var sampler vk.Sampler
	if err := Check("vk.CreateSampler()", vk.CreateSampler(dev, &sci, nil, &sampler)); err != nil {
		return nil, err
	}
	return sampler, nil
}
