// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"unsafe"

	"github.com/devblok/penumbra/gfx/vkr"
	"github.com/devblok/penumbra/model"
	vk "github.com/vulkan-go/vulkan"
)

// CountNotApplicable is the count of the draw path a mesh does not use
const CountNotApplicable = -1

// drawCounts picks the draw path, indexed when there are indices.
func drawCounts(vertexCount int, indices []uint32) (vertices, indexes int) {
	if len(indices) > 0 {
		return CountNotApplicable, len(indices)
	}
	return vertexCount, CountNotApplicable
}

// Mesh is geometry uploaded to device local memory. It is drawn either
// by index or by vertex count, never both.
type Mesh struct {
	name string

	vertices vkr.Buffer
	indices  vkr.Buffer

	vertexCount int
	indexCount  int
}

// NewMesh uploads vertex data, and indices when there are any.
func NewMesh(dev *Device, name string, vertexData []byte, vertexCount int, indices []uint32) (*Mesh, error) {
	if len(vertexData) == 0 || vertexCount <= 0 {
		return nil, errors.New("mesh has no vertices")
	}

	cc := dev.Commands()
	vertices, err := vkr.NewDataBuffer(cc, dev.Allocator(), vertexData, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}

	m := &Mesh{
		name:     name,
		vertices: vertices,
	}
	m.vertexCount, m.indexCount = drawCounts(vertexCount, indices)

	if m.Indexed() {
		data := vkr.Bytes(unsafe.Pointer(&indices[0]), len(indices)*4)
		m.indices, err = vkr.NewDataBuffer(cc, dev.Allocator(), data, vk.BufferUsageIndexBufferBit)
		if err != nil {
			m.Destroy()
			return nil, err
		}
	}
	return m, nil
}

// NewObjectMesh uploads an imported model.
func NewObjectMesh(dev *Device, obj model.Object) (*Mesh, error) {
	if len(obj.Vertices) == 0 {
		return nil, errors.New("object has no vertices")
	}
	size := len(obj.Vertices) * int(unsafe.Sizeof(model.Vertex{}))
	data := vkr.Bytes(unsafe.Pointer(&obj.Vertices[0]), size)
	return NewMesh(dev, obj.Name, data, len(obj.Vertices), obj.Indices)
}

// NewSkyboxMesh uploads the unindexed skybox cube.
func NewSkyboxMesh(dev *Device) (*Mesh, error) {
	positions := model.SkyboxVertices()
	size := len(positions) * int(unsafe.Sizeof(positions[0]))
	data := vkr.Bytes(unsafe.Pointer(&positions[0]), size)
	return NewMesh(dev, "skybox", data, len(positions), nil)
}

// Name of the mesh
func (m *Mesh) Name() string {
	return m.name
}

// Indexed tells whether the mesh is drawn with an index buffer.
func (m *Mesh) Indexed() bool {
	return m.indexCount != CountNotApplicable
}

// VertexCount is CountNotApplicable for indexed meshes.
func (m *Mesh) VertexCount() int {
	return m.vertexCount
}

// IndexCount is CountNotApplicable for unindexed meshes.
func (m *Mesh) IndexCount() int {
	return m.indexCount
}

// Destroy implements interface
func (m *Mesh) Destroy() {
	m.vertices.Release()
	m.indices.Release()
}
