package model

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/buildplate/pkg/math"
)

// Document is a detached snapshot of a model, the unit of exchange between
// a Model and the codecs.
//
// Documents produced by Model.Document list resources in dependency order:
// mesh objects first, then every components object after the objects it
// references. Documents produced by decoders carry file identifiers and are
// validated when imported.
type Document struct {
	Unit      Unit
	Metadata  []Metadata
	Resources []Resource
	Build     []BuildItem
}

// Resource is a serialized object: *MeshResource or *ComponentsResource.
type Resource interface {
	ResourceID() ObjectID
	ResourceName() string
	isResource()
}

// MeshResource is the serialized form of a mesh object.
type MeshResource struct {
	ID        ObjectID
	Name      string
	Vertices  []math.Vec3
	Triangles []Triangle
}

func (r *MeshResource) ResourceID() ObjectID { return r.ID }
func (r *MeshResource) ResourceName() string { return r.Name }
func (*MeshResource) isResource()            {}

// ComponentsResource is the serialized form of a components object.
type ComponentsResource struct {
	ID         ObjectID
	Name       string
	Components []Component
}

func (r *ComponentsResource) ResourceID() ObjectID { return r.ID }
func (r *ComponentsResource) ResourceName() string { return r.Name }
func (*ComponentsResource) isResource()            {}

// Lookup returns the resource with the given id.
func (d *Document) Lookup(id ObjectID) (Resource, bool) {
	for _, r := range d.Resources {
		if r.ResourceID() == id {
			return r, true
		}
	}
	return nil, false
}

// Document returns a dependency-ordered snapshot of the model.
func (m *Model) Document() (*Document, error) {
	const op = "Document"
	if err := m.checkOpen(op); err != nil {
		return nil, err
	}
	order, err := m.topologicalOrder(op)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Unit:      m.unit,
		Metadata:  append([]Metadata(nil), m.metadata...),
		Resources: make([]Resource, 0, len(order)),
		Build:     append([]BuildItem(nil), m.build...),
	}
	for _, id := range order {
		obj := m.objects[id]
		switch p := obj.payload.(type) {
		case *meshData:
			doc.Resources = append(doc.Resources, &MeshResource{
				ID:        obj.id,
				Name:      obj.name,
				Vertices:  append([]math.Vec3(nil), p.vertices...),
				Triangles: append([]Triangle(nil), p.triangles...),
			})
		case *componentsData:
			doc.Resources = append(doc.Resources, &ComponentsResource{
				ID:         obj.id,
				Name:       obj.name,
				Components: append([]Component(nil), p.components...),
			})
		}
	}
	return doc, nil
}

// topologicalOrder lists meshes in creation order followed by components
// objects in post-order of their references.
func (m *Model) topologicalOrder(op string) ([]ObjectID, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ObjectID]int, len(m.order))
	order := make([]ObjectID, 0, len(m.order))

	for _, id := range m.order {
		if _, ok := m.objects[id].payload.(*meshData); ok {
			state[id] = done
			order = append(order, id)
		}
	}

	var visit func(id ObjectID) error
	visit = func(id ObjectID) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return newError(CodeCyclicReference, op, "object %d is part of a reference cycle", id)
		}
		obj, ok := m.objects[id]
		if !ok {
			return newError(CodeDanglingReference, op, "object %d does not exist", id)
		}
		state[id] = visiting
		if cd, ok := obj.payload.(*componentsData); ok {
			for _, c := range cd.components {
				if err := visit(c.ObjectID); err != nil {
					return err
				}
			}
		}
		state[id] = done
		order = append(order, id)
		return nil
	}

	for _, id := range m.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Validate checks every structural invariant and reports all violations.
func (m *Model) Validate() error {
	const op = "Validate"
	if err := m.checkOpen(op); err != nil {
		return err
	}

	var errs error
	for _, id := range m.order {
		obj := m.objects[id]
		switch p := obj.payload.(type) {
		case *meshData:
			if err := validateGeometry(op, p.vertices, p.triangles); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("object %d: %w", id, err))
			}
		case *componentsData:
			for i, c := range p.components {
				if _, ok := m.objects[c.ObjectID]; !ok {
					errs = multierr.Append(errs, newError(CodeDanglingReference, op,
						"object %d component %d references missing object %d", id, i, c.ObjectID))
				}
			}
		}
	}
	for i, item := range m.build {
		if _, ok := m.objects[item.ObjectID]; !ok {
			errs = multierr.Append(errs, newError(CodeDanglingReference, op,
				"build item %d references missing object %d", i, item.ObjectID))
		}
	}
	if _, err := m.topologicalOrder(op); err != nil && CodeOf(err) == CodeCyclicReference {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// importDocument validates an untrusted document in declaration order and
// appends its objects and build items to the model. Object IDs are remapped
// to fresh model IDs. Nothing is changed unless the whole document is valid.
func (m *Model) importDocument(op string, doc *Document) error {
	if err := m.checkOpen(op); err != nil {
		return err
	}
	malformed := func(format string, args ...any) error {
		return newError(CodeMalformedDocument, op, format, args...)
	}
	if doc == nil {
		return malformed("empty document")
	}

	if doc.Unit != "" && !doc.Unit.Valid() {
		return malformed("unknown unit %q", string(doc.Unit))
	}
	// Coordinates are not rescaled, so appending needs matching units.
	if len(m.order) > 0 && doc.Unit != "" && doc.Unit != m.unit {
		return newError(CodeInvalidParameter, op, "document unit %q differs from model unit %q", string(doc.Unit), string(m.unit))
	}
	seenMeta := make(map[string]bool, len(doc.Metadata))
	for _, md := range doc.Metadata {
		if md.Name == "" {
			return malformed("metadata without name")
		}
		if seenMeta[md.Name] {
			return malformed("duplicate metadata %q", md.Name)
		}
		seenMeta[md.Name] = true
	}

	idMap := make(map[ObjectID]ObjectID, len(doc.Resources))
	staged := make([]*object, 0, len(doc.Resources))
	next := m.nextID

	for i, res := range doc.Resources {
		fileID := res.ResourceID()
		if fileID == 0 {
			return malformed("resource %d has no id", i)
		}
		if _, dup := idMap[fileID]; dup {
			return malformed("duplicate object id %d", fileID)
		}

		obj := &object{id: next, name: res.ResourceName()}
		switch r := res.(type) {
		case *MeshResource:
			if err := validateGeometry(op, r.Vertices, r.Triangles); err != nil {
				return &Error{Code: CodeMalformedDocument, Op: op, Msg: fmt.Sprintf("object %d", fileID), Err: err}
			}
			obj.payload = &meshData{
				vertices:  append([]math.Vec3(nil), r.Vertices...),
				triangles: append([]Triangle(nil), r.Triangles...),
			}
		case *ComponentsResource:
			cd := &componentsData{components: make([]Component, 0, len(r.Components))}
			for j, c := range r.Components {
				// Only previously declared objects may be referenced, which
				// also rules out cycles.
				target, ok := idMap[c.ObjectID]
				if !ok {
					return malformed("object %d component %d references undeclared object %d", fileID, j, c.ObjectID)
				}
				if !c.Transform.IsFinite() {
					return malformed("object %d component %d has a non-finite transform", fileID, j)
				}
				cd.components = append(cd.components, Component{ObjectID: target, Transform: c.Transform})
			}
			obj.payload = cd
		default:
			return malformed("resource %d has unsupported type %T", i, res)
		}

		idMap[fileID] = next
		staged = append(staged, obj)
		next++
	}

	build := make([]BuildItem, 0, len(doc.Build))
	for i, item := range doc.Build {
		target, ok := idMap[item.ObjectID]
		if !ok {
			return malformed("build item %d references undeclared object %d", i, item.ObjectID)
		}
		if !item.Transform.IsFinite() {
			return malformed("build item %d has a non-finite transform", i)
		}
		build = append(build, BuildItem{ObjectID: target, Transform: item.Transform, PartNumber: item.PartNumber})
	}

	// Commit.
	if len(m.order) == 0 && doc.Unit != "" {
		m.unit = doc.Unit
	}
	for _, md := range doc.Metadata {
		m.setMetadata(md.Name, md.Value)
	}
	for _, obj := range staged {
		m.insert(obj)
	}
	m.nextID = next
	m.build = append(m.build, build...)

	m.log.Debug("imported document",
		zap.Int("objects", len(staged)),
		zap.Int("build_items", len(build)))
	return nil
}
