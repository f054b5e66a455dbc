// Package collada decodes the subset of Collada (.dae) used for static meshes.
package collada

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Collada is the top-level Collada object
type Collada struct {
	Geometries   []Geometry    `xml:"library_geometries>geometry"`
	VisualScenes []VisualScene `xml:"library_visual_scenes>visual_scene"`
}

// RootNodeNames lists the names of the top level nodes of every visual scene
func (c Collada) RootNodeNames() []string {
	var names []string
	for _, scene := range c.VisualScenes {
		for _, node := range scene.Nodes {
			names = append(names, node.Name)
		}
	}
	return names
}

// VisualScene places geometry instances in a scene
type VisualScene struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Nodes []Node `xml:"node"`
}

// Node is an element of a visual scene
type Node struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// Geometry represents Collada's geometry
type Geometry struct {
	Mesh Mesh   `xml:"mesh"`
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// Mesh contains all the primitive data
type Mesh struct {
	Source    []Source  `xml:"source"`
	Vertices  Vertices  `xml:"vertices"`
	Triangles Triangles `xml:"triangles"`
}

// FindSource looks a source up by id, a leading # is ignored
func (m Mesh) FindSource(id string) (Source, error) {
	id = strings.TrimPrefix(id, "#")
	for _, s := range m.Source {
		if s.ID == id {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("source %s not found", id)
}

// Resolve finds the source of a triangles input. VERTEX inputs
// are followed through the vertices element to its POSITION.
func (m Mesh) Resolve(input Input) (Source, error) {
	if input.Semantic != "VERTEX" {
		return m.FindSource(input.Source)
	}
	if strings.TrimPrefix(input.Source, "#") != m.Vertices.ID {
		return Source{}, fmt.Errorf("vertices %s not found", input.Source)
	}
	for _, vi := range m.Vertices.Inputs {
		if vi.Semantic == "POSITION" {
			return m.FindSource(vi.Source)
		}
	}
	return Source{}, fmt.Errorf("vertices %s have no POSITION input", m.Vertices.ID)
}

// Source links to other sources where data is present
type Source struct {
	ID       string   `xml:"id,attr"`
	Floats   Floats   `xml:"float_array"`
	Accessor Accessor `xml:"technique_common>accessor"`
}

// Stride is the number of floats per element, 1 when not given
func (s Source) Stride() int {
	if s.Accessor.Stride == 0 {
		return 1
	}
	return s.Accessor.Stride
}

// Element returns the floats of the i-th element
func (s Source) Element(i int) ([]float32, error) {
	stride := s.Stride()
	if i < 0 || (i+1)*stride > len(s.Floats.Data) {
		return nil, fmt.Errorf("element %d out of range in %s", i, s.ID)
	}
	return s.Floats.Data[i*stride : (i+1)*stride], nil
}

// Accessor describes how to read a source array
type Accessor struct {
	Source string `xml:"source,attr"`
	Count  int    `xml:"count,attr"`
	Stride int    `xml:"stride,attr"`
}

// Floats is the array of floats
type Floats struct {
	ID   string
	Data []float32
}

// UnmarshalXML unmarshals the array of floats
func (f *Floats) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			f.ID = attr.Value
		}
	}
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	for _, r := range strings.Fields(raw) {
		num, err := strconv.ParseFloat(r, 32)
		if err != nil {
			return err
		}
		f.Data = append(f.Data, float32(num))
	}
	return nil
}

// Vertices contains the list of vertices
type Vertices struct {
	ID     string  `xml:"id,attr"`
	Inputs []Input `xml:"input"`
}

// Triangles contain the list of triangles
type Triangles struct {
	Count    int     `xml:"count,attr"`
	Material string  `xml:"material,attr"`
	Inputs   []Input `xml:"input"`
	Index    []int
}

// Stride is the number of indices per triangle corner
func (t Triangles) Stride() int {
	stride := 0
	for _, in := range t.Inputs {
		if int(in.Offset)+1 > stride {
			stride = int(in.Offset) + 1
		}
	}
	return stride
}

// Input returns the input with the given semantic
func (t Triangles) Input(semantic string) (Input, bool) {
	for _, in := range t.Inputs {
		if in.Semantic == semantic {
			return in, true
		}
	}
	return Input{}, false
}

// UnmarshalXML parses the index list
func (t *Triangles) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "count":
			num, err := strconv.Atoi(attr.Value)
			if err != nil {
				return err
			}
			t.Count = num
		case "material":
			t.Material = attr.Value
		}
	}

	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "input":
				var input Input
				err := d.DecodeElement(&input, &el)
				if err != nil {
					return err
				}
				t.Inputs = append(t.Inputs, input)
			case "p":
				var raw string
				if err := d.DecodeElement(&raw, &el); err != nil {
					return err
				}
				fields := strings.Fields(raw)
				ints := make([]int, 0, len(fields))
				for _, r := range fields {
					num, err := strconv.Atoi(r)
					if err != nil {
						return err
					}
					ints = append(ints, num)
				}
				t.Index = ints
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if el == start.End() {
				return nil
			}
		}
	}
}

// Input is Collada'a input type
type Input struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   uint   `xml:"offset,attr"`
}
