// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/devblok/penumbra/core"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"
)

var (
	StaticResources packr.Box
	testImage       image.Image
)

func init() {
	StaticResources = packr.NewBox("./testdata")
	img, err := png.Decode(bytes.NewReader(StaticResources.Bytes("bricks.png")))
	if err != nil {
		panic(err)
	}
	testImage = img
}

func TestGetPixels(t *testing.T) {
	c := qt.New(t)

	pixels, err := core.GetPixels(testImage, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(pixels, qt.HasLen, 64*64*4)

	// mortar in the top left corner
	c.Assert(pixels[:4], qt.DeepEquals, []uint8{180, 180, 170, 255})
}

func TestGetPixelsRowPitch(t *testing.T) {
	c := qt.New(t)

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	pixels, err := core.GetPixels(img, 16)
	c.Assert(err, qt.IsNil)
	c.Assert(pixels, qt.HasLen, 32)
	c.Assert(pixels[16+4:16+8], qt.DeepEquals, []uint8{1, 2, 3, 255})

	// a pitch smaller than a row is ignored
	pixels, err = core.GetPixels(img, 4)
	c.Assert(err, qt.IsNil)
	c.Assert(pixels, qt.HasLen, 16)

	_, err = core.GetPixels(image.NewRGBA(image.Rect(0, 0, 0, 0)), 0)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)

	words := core.SliceUint32([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0, 0xff})
	c.Assert(words, qt.HasLen, 2)
	c.Assert(words[1], qt.Equals, uint32(1))
}

func BenchmarkGetPixelsNoRowPitch(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.GetPixels(testImage, 0)
	}
}

func BenchmarkGetPixelsSmallRowPitch(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.GetPixels(testImage, 4)
	}
}

func BenchmarkGetPixelsMediumRowPitch(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.GetPixels(testImage, 200)
	}
}

func BenchmarkGetPixelsBigRowPitch(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.GetPixels(testImage, 1000)
	}
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	data := make([]byte, 1000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}
