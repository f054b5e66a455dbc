package core

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// DirectionalLight lights everything from one direction.
type DirectionalLight struct {
	Direction glm.Vec3
	Color     glm.Vec3
}

// PointLight lights around a position up to Far.
type PointLight struct {
	Position glm.Vec3
	Color    glm.Vec3
	Far      float32
}

// Orbit moves a point light around Center.
type Orbit struct {
	Center glm.Vec3
	Radius float32
	Height float32

	// Speed in radians per second
	Speed float32
}

// Position at t seconds.
func (o Orbit) Position(t float32) glm.Vec3 {
	angle := float64(o.Speed * t)
	return o.Center.Add(glm.Vec3{
		o.Radius * float32(math.Cos(angle)),
		o.Height,
		o.Radius * float32(math.Sin(angle)),
	})
}

// Scene is what gets drawn every frame.
type Scene struct {
	objects []sceneObject

	Sun   DirectionalLight
	Lamp  PointLight
	Orbit Orbit
}

// objectSpacing separates models laid out side by side, they are all
// normalized into a unit cube.
const objectSpacing = 2.5

// newScene lays meshes out along X, centred on the origin.
func newScene(meshes []*Mesh) *Scene {
	s := &Scene{
		Sun: DirectionalLight{
			Direction: glm.Vec3{-0.4, -1, -0.3},
			Color:     glm.Vec3{0.8, 0.8, 0.75},
		},
		Lamp: PointLight{
			Color: glm.Vec3{1, 0.85, 0.6},
			Far:   25,
		},
		Orbit: Orbit{
			Radius: 3,
			Height: 2,
			Speed:  0.6,
		},
	}
	offset := float32(len(meshes)-1) / 2
	for i, mesh := range meshes {
		x := (float32(i) - offset) * objectSpacing
		s.objects = append(s.objects, sceneObject{
			mesh:  mesh,
			model: glm.Translate3D(x, 0, 0),
		})
	}
	s.Lamp.Position = s.Orbit.Position(0)
	return s
}

// Animate moves the lamp along its orbit.
func (s *Scene) Animate(elapsed float32) {
	s.Lamp.Position = s.Orbit.Position(elapsed)
}

// Bounds is a sphere enclosing every object.
func (s *Scene) Bounds() Bounds {
	return sceneBounds(s.objects)
}

// sceneBounds treats each object as its unit cube under the model transform.
func sceneBounds(objects []sceneObject) Bounds {
	if len(objects) == 0 {
		return Bounds{Radius: 1}
	}

	var center glm.Vec3
	for _, obj := range objects {
		center = center.Add(obj.model.Col(3).Vec3())
	}
	center = center.Mul(1 / float32(len(objects)))

	var radius float32
	for _, obj := range objects {
		r := objectRadius(obj.model) + obj.model.Col(3).Vec3().Sub(center).Len()
		if r > radius {
			radius = r
		}
	}
	return Bounds{Center: center, Radius: radius}
}

// objectRadius encloses a [-1, 1] cube scaled by the largest axis of model.
func objectRadius(model glm.Mat4) float32 {
	var scale float32
	for i := 0; i < 3; i++ {
		if l := model.Col(i).Vec3().Len(); l > scale {
			scale = l
		}
	}
	return scale * float32(math.Sqrt(3))
}
