package model

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/devblok/penumbra/util/collada"
	glm "github.com/go-gl/mathgl/mgl32"
)

// ErrNoGeometry is returned for documents without a triangle mesh
var ErrNoGeometry = errors.New("collada document has no triangle geometry")

// CubeScale is applied instead of normalization to models whose root node is named "cube"
const CubeScale = 0.5

// cubeNodeName marks a model that keeps its own proportions
const cubeNodeName = "cube"

// corner identifies a unique combination of position, normal and uv indices
type corner struct {
	pos, normal, uv int
}

// ImportColladaObject reads given file and converts Collada object to
// engine's internal object. Corners sharing the same attributes are
// merged and indexed. Positions are normalized into [-1, 1] around the
// origin, unless the model is the cube, which is scaled by CubeScale.
func ImportColladaObject(fileContents []byte) (Object, error) {
	var doc collada.Collada
	if err := xml.Unmarshal(fileContents, &doc); err != nil {
		return Object{}, err
	}
	if len(doc.Geometries) == 0 || len(doc.Geometries[0].Mesh.Triangles.Index) == 0 {
		return Object{}, ErrNoGeometry
	}

	geometry := doc.Geometries[0]
	obj, err := indexMesh(geometry.Mesh)
	if err != nil {
		return Object{}, fmt.Errorf("geometry %s: %w", geometry.ID, err)
	}
	obj.Name = geometry.Name

	if isCube(doc.RootNodeNames()) {
		scale(obj.Vertices, CubeScale)
	} else {
		normalize(obj.Vertices)
	}
	return obj, nil
}

func isCube(names []string) bool {
	for _, n := range names {
		if strings.EqualFold(n, cubeNodeName) {
			return true
		}
	}
	return false
}

func indexMesh(mesh collada.Mesh) (Object, error) {
	tris := mesh.Triangles
	stride := tris.Stride()

	vertexInput, ok := tris.Input("VERTEX")
	if !ok {
		return Object{}, errors.New("triangles have no VERTEX input")
	}
	positions, err := mesh.Resolve(vertexInput)
	if err != nil {
		return Object{}, err
	}

	var (
		normals, uvs             collada.Source
		normalOffset, uvOffset   = -1, -1
		hasNormals, hasTexcoords bool
	)
	if in, ok := tris.Input("NORMAL"); ok {
		if normals, err = mesh.Resolve(in); err != nil {
			return Object{}, err
		}
		normalOffset, hasNormals = int(in.Offset), true
	}
	if in, ok := tris.Input("TEXCOORD"); ok {
		if uvs, err = mesh.Resolve(in); err != nil {
			return Object{}, err
		}
		uvOffset, hasTexcoords = int(in.Offset), true
	}

	if len(tris.Index)%(stride*3) != 0 {
		return Object{}, fmt.Errorf("index count %d is not a multiple of %d", len(tris.Index), stride*3)
	}

	var obj Object
	seen := make(map[corner]uint32)
	for i := 0; i < len(tris.Index); i += stride {
		p := tris.Index[i : i+stride]
		key := corner{pos: p[vertexInput.Offset], normal: -1, uv: -1}
		if hasNormals {
			key.normal = p[normalOffset]
		}
		if hasTexcoords {
			key.uv = p[uvOffset]
		}

		if idx, ok := seen[key]; ok {
			obj.Indices = append(obj.Indices, idx)
			continue
		}

		var v Vertex
		pos, err := positions.Element(key.pos)
		if err != nil {
			return Object{}, err
		}
		v.Pos = glm.Vec3{pos[0], pos[1], pos[2]}
		if hasNormals {
			n, err := normals.Element(key.normal)
			if err != nil {
				return Object{}, err
			}
			v.Normal = glm.Vec3{n[0], n[1], n[2]}
		}
		if hasTexcoords {
			uv, err := uvs.Element(key.uv)
			if err != nil {
				return Object{}, err
			}
			// Collada's V axis points up, Vulkan samples top down
			v.UV = glm.Vec2{uv[0], 1 - uv[1]}
		}

		idx := uint32(len(obj.Vertices))
		seen[key] = idx
		obj.Vertices = append(obj.Vertices, v)
		obj.Indices = append(obj.Indices, idx)
	}
	return obj, nil
}

// normalize centres vertices on the origin and scales the largest
// extent to fit [-1, 1], keeping proportions.
func normalize(vertices []Vertex) {
	if len(vertices) == 0 {
		return
	}
	min, max := vertices[0].Pos, vertices[0].Pos
	for _, v := range vertices[1:] {
		for i := 0; i < 3; i++ {
			if v.Pos[i] < min[i] {
				min[i] = v.Pos[i]
			}
			if v.Pos[i] > max[i] {
				max[i] = v.Pos[i]
			}
		}
	}

	center := min.Add(max).Mul(0.5)
	extent := max.Sub(min).Mul(0.5)
	half := extent[0]
	if extent[1] > half {
		half = extent[1]
	}
	if extent[2] > half {
		half = extent[2]
	}
	if half == 0 {
		half = 1
	}

	for i := range vertices {
		vertices[i].Pos = vertices[i].Pos.Sub(center).Mul(1 / half)
	}
}

func scale(vertices []Vertex, s float32) {
	for i := range vertices {
		vertices[i].Pos = vertices[i].Pos.Mul(s)
	}
}
