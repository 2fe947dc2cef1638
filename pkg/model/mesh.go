package model

import (
	"go.uber.org/zap"

	"github.com/Faultbox/buildplate/pkg/math"
)

// MeshObject is a handle to a triangle mesh.
type MeshObject struct {
	handle
}

// Kind returns KindMesh.
func (*MeshObject) Kind() ObjectKind { return KindMesh }

func (o *MeshObject) data(op string) (*meshData, error) {
	obj, err := o.m.get(op, o.id)
	if err != nil {
		return nil, err
	}
	md, ok := obj.payload.(*meshData)
	if !ok {
		return nil, newError(CodeDanglingReference, op, "object %d is not a mesh", o.id)
	}
	return md, nil
}

// SetGeometry replaces the vertex and triangle buffers. The buffers are
// copied. On error the previous geometry is kept.
func (o *MeshObject) SetGeometry(vertices []math.Vec3, triangles []Triangle) error {
	const op = "SetGeometry"
	md, err := o.data(op)
	if err != nil {
		return err
	}
	if err := validateGeometry(op, vertices, triangles); err != nil {
		return err
	}
	md.vertices = append([]math.Vec3(nil), vertices...)
	md.triangles = append([]Triangle(nil), triangles...)
	o.m.log.Debug("set mesh geometry",
		zap.Uint32("id", uint32(o.id)),
		zap.Int("vertices", len(vertices)),
		zap.Int("triangles", len(triangles)))
	return nil
}

// Vertices returns a copy of the vertex buffer.
func (o *MeshObject) Vertices() ([]math.Vec3, error) {
	md, err := o.data("Vertices")
	if err != nil {
		return nil, err
	}
	return append([]math.Vec3(nil), md.vertices...), nil
}

// Triangles returns a copy of the triangle buffer.
func (o *MeshObject) Triangles() ([]Triangle, error) {
	md, err := o.data("Triangles")
	if err != nil {
		return nil, err
	}
	return append([]Triangle(nil), md.triangles...), nil
}

// VertexCount returns the number of vertices.
func (o *MeshObject) VertexCount() (int, error) {
	md, err := o.data("VertexCount")
	if err != nil {
		return 0, err
	}
	return len(md.vertices), nil
}

// TriangleCount returns the number of triangles.
func (o *MeshObject) TriangleCount() (int, error) {
	md, err := o.data("TriangleCount")
	if err != nil {
		return 0, err
	}
	return len(md.triangles), nil
}

// validateGeometry checks index bounds, degenerate index triples and
// buffer count consistency.
func validateGeometry(op string, vertices []math.Vec3, triangles []Triangle) error {
	if len(vertices) == 0 && len(triangles) > 0 {
		return newError(CodeInvalidGeometry, op, "%d triangles but no vertices", len(triangles))
	}
	if len(vertices) > 0 && len(triangles) == 0 {
		return newError(CodeInvalidGeometry, op, "%d vertices but no triangles", len(vertices))
	}
	for i, v := range vertices {
		if !v.IsFinite() {
			return newError(CodeInvalidGeometry, op, "vertex %d is not finite", i)
		}
	}
	n := uint32(len(vertices))
	for i, t := range triangles {
		for _, idx := range t {
			if idx >= n {
				return newError(CodeInvalidGeometry, op, "triangle %d index %d out of range [0, %d)", i, idx, n)
			}
		}
		if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			return newError(CodeInvalidGeometry, op, "triangle %d repeats a vertex index", i)
		}
	}
	return nil
}
