// Package sample builds demonstration scenes.
package sample

import (
	"fmt"

	"github.com/Faultbox/buildplate/pkg/math"
	"github.com/Faultbox/buildplate/pkg/model"
)

// Names of the available scenes.
const (
	SceneComponents = "components"
	SceneCube       = "cube"
)

// Scenes lists every scene name accepted by Build.
var Scenes = []string{SceneComponents, SceneCube}

// Cube returns an axis-aligned box from the origin to (sx, sy, sz) with
// outward-facing counter-clockwise triangles.
func Cube(sx, sy, sz float32) ([]math.Vec3, []model.Triangle) {
	vertices := []math.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: sx, Y: 0, Z: 0},
		{X: sx, Y: sy, Z: 0},
		{X: 0, Y: sy, Z: 0},
		{X: 0, Y: 0, Z: sz},
		{X: sx, Y: 0, Z: sz},
		{X: sx, Y: sy, Z: sz},
		{X: 0, Y: sy, Z: sz},
	}
	triangles := []model.Triangle{
		{2, 1, 0}, {0, 3, 2}, // bottom
		{4, 5, 6}, {6, 7, 4}, // top
		{0, 1, 5}, {5, 4, 0},
		{2, 3, 7}, {7, 6, 2},
		{1, 2, 6}, {6, 5, 1},
		{3, 0, 4}, {4, 7, 3},
	}
	return vertices, triangles
}

// Build populates m with the named scene.
func Build(m *model.Model, scene string) error {
	switch scene {
	case SceneComponents:
		_, _, err := ComponentsScene(m)
		return err
	case SceneCube:
		box, err := addBox(m)
		if err != nil {
			return err
		}
		return m.AddBuildItem(box, math.Identity())
	default:
		return fmt.Errorf("unknown scene %q", scene)
	}
}

// ComponentsScene adds a 10x20x30 box, a components object holding three
// translated instances of it, two build items for the components object and
// one translated build item for the box itself.
func ComponentsScene(m *model.Model) (*model.MeshObject, *model.ComponentsObject, error) {
	box, err := addBox(m)
	if err != nil {
		return nil, nil, err
	}

	group, err := m.AddComponentsObject()
	if err != nil {
		return nil, nil, err
	}
	for _, offset := range []math.Vec3{{X: 0, Y: 0, Z: 0}, {X: 40, Y: 60, Z: 80}, {X: 120, Y: 30, Z: 70}} {
		if err := group.AddComponent(box, math.Translation(offset.X, offset.Y, offset.Z)); err != nil {
			return nil, nil, err
		}
	}

	if err := m.AddBuildItem(group, math.Translation(0, 0, 0)); err != nil {
		return nil, nil, err
	}
	if err := m.AddBuildItem(group, math.Translation(200, 40, 10)); err != nil {
		return nil, nil, err
	}
	if err := m.AddBuildItem(box, math.Translation(-40, 0, 20)); err != nil {
		return nil, nil, err
	}
	return box, group, nil
}

func addBox(m *model.Model) (*model.MeshObject, error) {
	box, err := m.AddMeshObject()
	if err != nil {
		return nil, err
	}
	if err := box.SetName("Box"); err != nil {
		return nil, err
	}
	v, t := Cube(10, 20, 30)
	if err := box.SetGeometry(v, t); err != nil {
		return nil, err
	}
	return box, nil
}
