package formats

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/buildplate/pkg/math"
	"github.com/Faultbox/buildplate/pkg/model"
)

// ErrTooManyVertices means an expanded build cannot be indexed with 32 bits.
var ErrTooManyVertices = errors.New("too many vertices in expanded build")

// maxFlatVertices bounds FlatMesh vertex indices.
var maxFlatVertices uint64 = gomath.MaxUint32

// FlatMesh is a build expanded into a single indexed triangle mesh in world
// coordinates. Vertices are not shared between instances.
type FlatMesh struct {
	Vertices  []math.Vec3
	Triangles []model.Triangle
}

// Flatten expands every build item of doc. Components are resolved
// recursively with child-then-parent transform composition; instances whose
// world transform mirrors space get reversed winding.
func Flatten(doc *model.Document) (*FlatMesh, error) {
	const op = "Flatten"
	byID := make(map[model.ObjectID]model.Resource, len(doc.Resources))
	for _, r := range doc.Resources {
		byID[r.ResourceID()] = r
	}

	flat := &FlatMesh{}
	active := make(map[model.ObjectID]bool)

	var expand func(id model.ObjectID, world math.Transform) error
	expand = func(id model.ObjectID, world math.Transform) error {
		res, ok := byID[id]
		if !ok {
			return &model.Error{Code: model.CodeDanglingReference, Op: op, Msg: fmt.Sprintf("object %d does not exist", id)}
		}
		if active[id] {
			return &model.Error{Code: model.CodeCyclicReference, Op: op, Msg: fmt.Sprintf("object %d references itself", id)}
		}

		switch r := res.(type) {
		case *model.MeshResource:
			if err := flat.appendMesh(r, world); err != nil {
				return err
			}
		case *model.ComponentsResource:
			active[id] = true
			for _, c := range r.Components {
				if err := expand(c.ObjectID, c.Transform.Compose(world)); err != nil {
					return err
				}
			}
			delete(active, id)
		}
		return nil
	}

	for _, item := range doc.Build {
		if err := expand(item.ObjectID, item.Transform); err != nil {
			return nil, err
		}
	}
	return flat, nil
}

func (f *FlatMesh) appendMesh(r *model.MeshResource, world math.Transform) error {
	if total := uint64(len(f.Vertices)) + uint64(len(r.Vertices)); total > maxFlatVertices {
		return fmt.Errorf("%w: %d", ErrTooManyVertices, total)
	}
	base := uint32(len(f.Vertices))
	for _, v := range r.Vertices {
		f.Vertices = append(f.Vertices, world.Apply(v))
	}
	mirrored := world.Determinant() < 0
	for _, t := range r.Triangles {
		if mirrored {
			t[1], t[2] = t[2], t[1]
		}
		f.Triangles = append(f.Triangles, model.Triangle{t[0] + base, t[1] + base, t[2] + base})
	}
	return nil
}

// Facet returns the corners of triangle i.
func (f *FlatMesh) Facet(i int) (a, b, c math.Vec3) {
	t := f.Triangles[i]
	return f.Vertices[t[0]], f.Vertices[t[1]], f.Vertices[t[2]]
}
