package core

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/image/draw"
)

const shaderSuffix = ".spv"

// shaderTypeFromPath reads the stage from a compiled shader file name.
// It is important that the file name does not contain more than two dots,
// the first is always the name of the shader, second is type, and the third one
// ensures that the shader is compiled (only compiled shaders have an .spv extension).
func shaderTypeFromPath(path string) ShaderType {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, shaderSuffix) {
		return UnknownShaderType
	}
	nodes := strings.Split(strings.TrimSuffix(name, shaderSuffix), ".")
	if len(nodes) != 2 {
		return UnknownShaderType
	}

	switch nodes[1] {
	case "vert":
		return VertexShaderType
	case "geom":
		return GeometryShaderType
	case "frag":
		return FragmentShaderType
	}
	return UnknownShaderType
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// SliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

// GetPixels transforms a given image into right arrangement of pixels
// by drawing the decoded image onto a controlled RGBA canvas.
// Rows are rowPitch bytes apart when it's wider than a packed row.
func GetPixels(img image.Image, rowPitch int) ([]uint8, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	stride := 4 * bounds.Dx()
	if rowPitch > stride {
		stride = rowPitch
	}
	canvas := &image.RGBA{
		Pix:    make([]uint8, stride*bounds.Dy()),
		Stride: stride,
		Rect:   image.Rect(0, 0, bounds.Dx(), bounds.Dy()),
	}
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return canvas.Pix, nil
}
