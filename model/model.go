// Package model holds the engine side representation of imported assets.
package model

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Object is an imported model, ready to be uploaded.
// Vertices are indexed by Indices.
type Object struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Vertex is a model vertex
type Vertex struct {
	Pos    glm.Vec3
	Normal glm.Vec3
	UV     glm.Vec2
}

// VertexBindingDescriptions return Vulkan Vertex descriptors
func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// VertexAttributeDescriptions return Vulkan attribute descriptors
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Normal)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.UV)),
		},
	}
}

// PositionBindingDescriptions describe vertices that are only a position
func PositionBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(glm.Vec3{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// PositionAttributeDescriptions describe vertices that are only a position
func PositionAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{{
		Binding:  0,
		Location: 0,
		Format:   vk.FormatR32g32b32Sfloat,
		Offset:   0,
	}}
}

// SkyboxVertices is an unindexed cube of 36 positions around the origin
func SkyboxVertices() []glm.Vec3 {
	corners := [8]glm.Vec3{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	faces := [6][4]int{
		{1, 5, 6, 2}, // +X
		{4, 0, 3, 7}, // -X
		{3, 2, 6, 7}, // +Y
		{4, 5, 1, 0}, // -Y
		{5, 4, 7, 6}, // +Z
		{0, 1, 2, 3}, // -Z
	}
	vertices := make([]glm.Vec3, 0, 36)
	for _, f := range faces {
		for _, i := range [6]int{0, 1, 2, 0, 2, 3} {
			vertices = append(vertices, corners[f[i]])
		}
	}
	return vertices
}

// CubemapFaces are the file names of a cubemap's faces,
// in layer order +X, -X, +Y, -Y, +Z, -Z
var CubemapFaces = []string{
	"px.png", "nx.png", "py.png", "ny.png", "pz.png", "nz.png",
}
