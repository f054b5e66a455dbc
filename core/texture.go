// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"image"

	"github.com/devblok/penumbra/gfx/vkr"
	vk "github.com/vulkan-go/vulkan"
)

// Texture is a sampled color image, either 2D or a cubemap.
type Texture struct {
	device  vk.Device
	image   vkr.Image
	view    vk.ImageView
	sampler vk.Sampler
}

// NewTexture uploads a single image as an sRGB texture.
func NewTexture(dev *Device, img image.Image) (*Texture, error) {
	return newTexture(dev, []image.Image{img}, false)
}

// NewCubemap uploads six equally sized faces in the order
// +X, -X, +Y, -Y, +Z, -Z.
func NewCubemap(dev *Device, faces []image.Image) (*Texture, error) {
	if len(faces) != 6 {
		return nil, fmt.Errorf("cubemap needs 6 faces, got %d", len(faces))
	}
	return newTexture(dev, faces, true)
}

// layerPixels converts each layer to packed RGBA, all layers must be the same size.
func layerPixels(layers []image.Image) ([]byte, uint32, uint32, error) {
	size := layers[0].Bounds().Size()
	var pixels []byte
	for i, img := range layers {
		if img.Bounds().Size() != size {
			return nil, 0, 0, fmt.Errorf("layer %d is %v, expected %v", i, img.Bounds().Size(), size)
		}
		layer, err := GetPixels(img, 0)
		if err != nil {
			return nil, 0, 0, err
		}
		pixels = append(pixels, layer...)
	}
	return pixels, uint32(size.X), uint32(size.Y), nil
}

func newTexture(dev *Device, layers []image.Image, cube bool) (*Texture, error) {
	pixels, width, height, err := layerPixels(layers)
	if err != nil {
		return nil, err
	}

	cc := dev.Commands()
	ma := dev.Allocator()

	staging, err := vkr.NewHostBuffer(ma, len(pixels), vk.BufferUsageTransferSrcBit)
	if err != nil {
		return nil, err
	}
	defer staging.Release()
	if err := staging.Mem().Write(pixels); err != nil {
		return nil, err
	}
	staging.Mem().Unmap()

	t := &Texture{device: dev.Logical()}
	t.image, err = vkr.NewImage(ma, vkr.ImageOptions{
		Width:  width,
		Height: height,
		Format: vk.FormatR8g8b8a8Srgb,
		Usage:  vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit,
		Layers: uint32(len(layers)),
		Cube:   cube,
	})
	if err != nil {
		return nil, err
	}

	layerSize := vk.DeviceSize(len(pixels) / len(layers))
	if err := vkr.Transition(cc, t.image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := vkr.CopyBufferToImage(cc, staging, t.image, width, height, layerSize); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := vkr.Transition(cc, t.image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		t.Destroy()
		return nil, err
	}

	viewType := vk.ImageViewType2d
	addressMode := vk.SamplerAddressModeRepeat
	if cube {
		viewType = vk.ImageViewTypeCube
		addressMode = vk.SamplerAddressModeClampToEdge
	}
	t.view, err = vkr.NewImageView(t.image, viewType, vk.ImageAspectColorBit, 0, t.image.Layers())
	if err != nil {
		t.Destroy()
		return nil, err
	}

	t.sampler, err = vkr.NewSampler(t.device, vkr.SamplerOptions{
		Filter:      vk.FilterLinear,
		AddressMode: addressMode,
		BorderColor: vk.BorderColorIntOpaqueBlack,
		Anisotropy:  dev.Anisotropy(),
	})
	if err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// View returns the sampled image view.
func (t *Texture) View() vk.ImageView {
	return t.view
}

// Sampler returns the texture's sampler.
func (t *Texture) Sampler() vk.Sampler {
	return t.sampler
}

// Destroy implements interface
func (t *Texture) Destroy() {
	if t.sampler != nil {
		vk.DestroySampler(t.device, t.sampler, nil)
		t.sampler = nil
	}
	if t.view != nil {
		vk.DestroyImageView(t.device, t.view, nil)
		t.view = nil
	}
	t.image.Release()
}
