// Package model holds the in-memory 3MF model: meshes, component
// hierarchies, build items and the codecs that serialize them.
//
// A Model owns every object. Handles returned by the Add methods are
// lightweight (model, id) pairs; all validity checks go through the Model.
// A Model is not safe for concurrent mutation.
package model

import (
	"go.uber.org/zap"

	"github.com/Faultbox/buildplate/pkg/math"
)

// Model is the root container of objects and build items.
type Model struct {
	objects  map[ObjectID]*object
	order    []ObjectID // creation order
	nextID   ObjectID
	build    []BuildItem
	unit     Unit
	metadata []Metadata
	closed   bool
	log      *zap.Logger
}

// Option configures a new Model.
type Option func(*Model)

// WithLogger sets the logger used for debug output.
func WithLogger(log *zap.Logger) Option {
	return func(m *Model) {
		if log != nil {
			m.log = log
		}
	}
}

// WithUnit sets the model unit.
func WithUnit(u Unit) Option {
	return func(m *Model) {
		if u.Valid() {
			m.unit = u
		}
	}
}

// New creates an empty model.
func New(opts ...Option) *Model {
	m := &Model{
		objects: make(map[ObjectID]*object),
		nextID:  1,
		unit:    UnitMillimeter,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close releases the model. Every handle, writer and reader derived from
// it reports UseAfterFree afterwards. Close is idempotent.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.objects = nil
	m.order = nil
	m.build = nil
	m.metadata = nil
	m.log.Debug("model closed")
}

func (m *Model) checkOpen(op string) error {
	if m == nil || m.closed {
		return newError(CodeUseAfterFree, op, "model is closed")
	}
	return nil
}

func (m *Model) allocID() ObjectID {
	id := m.nextID
	m.nextID++
	return id
}

func (m *Model) insert(obj *object) {
	m.objects[obj.id] = obj
	m.order = append(m.order, obj.id)
}

// AddMeshObject creates an empty mesh object.
func (m *Model) AddMeshObject() (*MeshObject, error) {
	if err := m.checkOpen("AddMeshObject"); err != nil {
		return nil, err
	}
	obj := &object{id: m.allocID(), payload: &meshData{}}
	m.insert(obj)
	m.log.Debug("added mesh object", zap.Uint32("id", uint32(obj.id)))
	return &MeshObject{handle{m: m, id: obj.id}}, nil
}

// AddComponentsObject creates an empty components object.
func (m *Model) AddComponentsObject() (*ComponentsObject, error) {
	if err := m.checkOpen("AddComponentsObject"); err != nil {
		return nil, err
	}
	obj := &object{id: m.allocID(), payload: &componentsData{}}
	m.insert(obj)
	m.log.Debug("added components object", zap.Uint32("id", uint32(obj.id)))
	return &ComponentsObject{handle{m: m, id: obj.id}}, nil
}

// Object returns a handle for id.
func (m *Model) Object(id ObjectID) (Object, error) {
	obj, err := m.get("Object", id)
	if err != nil {
		return nil, err
	}
	return m.handleFor(obj), nil
}

// Objects returns handles for every object in creation order.
func (m *Model) Objects() ([]Object, error) {
	if err := m.checkOpen("Objects"); err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.handleFor(m.objects[id]))
	}
	return out, nil
}

// MeshObjects returns handles for every mesh object in creation order.
func (m *Model) MeshObjects() ([]*MeshObject, error) {
	if err := m.checkOpen("MeshObjects"); err != nil {
		return nil, err
	}
	var out []*MeshObject
	for _, id := range m.order {
		if _, ok := m.objects[id].payload.(*meshData); ok {
			out = append(out, &MeshObject{handle{m: m, id: id}})
		}
	}
	return out, nil
}

// ComponentsObjects returns handles for every components object in creation order.
func (m *Model) ComponentsObjects() ([]*ComponentsObject, error) {
	if err := m.checkOpen("ComponentsObjects"); err != nil {
		return nil, err
	}
	var out []*ComponentsObject
	for _, id := range m.order {
		if _, ok := m.objects[id].payload.(*componentsData); ok {
			out = append(out, &ComponentsObject{handle{m: m, id: id}})
		}
	}
	return out, nil
}

// ObjectCount returns the number of objects.
func (m *Model) ObjectCount() (int, error) {
	if err := m.checkOpen("ObjectCount"); err != nil {
		return 0, err
	}
	return len(m.order), nil
}

// RemoveObject deletes an object. It fails with ReferencedObjectInUse while
// any component or build item still refers to it.
func (m *Model) RemoveObject(ref Object) error {
	const op = "RemoveObject"
	obj, err := m.resolve(op, ref)
	if err != nil {
		return err
	}

	for _, id := range m.order {
		cd, ok := m.objects[id].payload.(*componentsData)
		if !ok {
			continue
		}
		for _, c := range cd.components {
			if c.ObjectID == obj.id {
				return newError(CodeReferencedObjectInUse, op, "object %d is a component of object %d", obj.id, id)
			}
		}
	}
	for i, item := range m.build {
		if item.ObjectID == obj.id {
			return newError(CodeReferencedObjectInUse, op, "object %d is referenced by build item %d", obj.id, i)
		}
	}

	delete(m.objects, obj.id)
	for i, id := range m.order {
		if id == obj.id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.log.Debug("removed object", zap.Uint32("id", uint32(obj.id)))
	return nil
}

// AddBuildItem appends a build item placing ref with transform t.
func (m *Model) AddBuildItem(ref Object, t math.Transform) error {
	return m.AddBuildItemWithPartNumber(ref, t, "")
}

// AddBuildItemWithPartNumber appends a build item carrying a part number.
func (m *Model) AddBuildItemWithPartNumber(ref Object, t math.Transform, partNumber string) error {
	const op = "AddBuildItem"
	obj, err := m.resolve(op, ref)
	if err != nil {
		return err
	}
	if !t.IsFinite() {
		return newError(CodeInvalidGeometry, op, "transform contains non-finite values")
	}
	m.build = append(m.build, BuildItem{ObjectID: obj.id, Transform: t, PartNumber: partNumber})
	m.log.Debug("added build item",
		zap.Uint32("object", uint32(obj.id)),
		zap.Stringer("transform", t))
	return nil
}

// BuildItems returns a copy of the build item list.
func (m *Model) BuildItems() ([]BuildItem, error) {
	if err := m.checkOpen("BuildItems"); err != nil {
		return nil, err
	}
	return append([]BuildItem(nil), m.build...), nil
}

// RemoveBuildItem deletes the build item at index.
func (m *Model) RemoveBuildItem(index int) error {
	const op = "RemoveBuildItem"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	if index < 0 || index >= len(m.build) {
		return newError(CodeInvalidParameter, op, "build item index %d out of range [0, %d)", index, len(m.build))
	}
	m.build = append(m.build[:index], m.build[index+1:]...)
	return nil
}

// Unit returns the model unit.
func (m *Model) Unit() (Unit, error) {
	if err := m.checkOpen("Unit"); err != nil {
		return "", err
	}
	return m.unit, nil
}

// SetUnit sets the model unit.
func (m *Model) SetUnit(u Unit) error {
	const op = "SetUnit"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	if !u.Valid() {
		return newError(CodeInvalidParameter, op, "unknown unit %q", string(u))
	}
	m.unit = u
	return nil
}

// SetMetadata sets or replaces the metadata entry name.
func (m *Model) SetMetadata(name, value string) error {
	const op = "SetMetadata"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	if name == "" {
		return newError(CodeInvalidParameter, op, "metadata name is empty")
	}
	m.setMetadata(name, value)
	return nil
}

func (m *Model) setMetadata(name, value string) {
	for i := range m.metadata {
		if m.metadata[i].Name == name {
			m.metadata[i].Value = value
			return
		}
	}
	m.metadata = append(m.metadata, Metadata{Name: name, Value: value})
}

// Metadata returns a copy of the metadata entries in insertion order.
func (m *Model) Metadata() ([]Metadata, error) {
	if err := m.checkOpen("Metadata"); err != nil {
		return nil, err
	}
	return append([]Metadata(nil), m.metadata...), nil
}

// RemoveMetadata deletes the entry name. Missing names are ignored.
func (m *Model) RemoveMetadata(name string) error {
	if err := m.checkOpen("RemoveMetadata"); err != nil {
		return err
	}
	for i := range m.metadata {
		if m.metadata[i].Name == name {
			m.metadata = append(m.metadata[:i], m.metadata[i+1:]...)
			return nil
		}
	}
	return nil
}

// get returns the object for id.
func (m *Model) get(op string, id ObjectID) (*object, error) {
	if err := m.checkOpen(op); err != nil {
		return nil, err
	}
	obj, ok := m.objects[id]
	if !ok {
		return nil, newError(CodeDanglingReference, op, "object %d does not exist", id)
	}
	return obj, nil
}

// resolve checks that ref is a live object of this model.
func (m *Model) resolve(op string, ref Object) (*object, error) {
	if err := m.checkOpen(op); err != nil {
		return nil, err
	}
	if isNil(ref) {
		return nil, newError(CodeDanglingReference, op, "nil object reference")
	}
	if ref.owner() != m {
		return nil, newError(CodeDanglingReference, op, "object %d belongs to a different model", ref.ID())
	}
	return m.get(op, ref.ID())
}

func (m *Model) handleFor(obj *object) Object {
	h := handle{m: m, id: obj.id}
	switch obj.payload.(type) {
	case *meshData:
		return &MeshObject{h}
	case *componentsData:
		return &ComponentsObject{h}
	default:
		panic("model: unknown object payload")
	}
}

// reachable reports whether target can be reached from start by following
// component references.
func (m *Model) reachable(start, target ObjectID) bool {
	seen := make(map[ObjectID]bool)
	stack := []ObjectID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		obj, ok := m.objects[id]
		if !ok {
			continue
		}
		if cd, ok := obj.payload.(*componentsData); ok {
			for _, c := range cd.components {
				stack = append(stack, c.ObjectID)
			}
		}
	}
	return false
}
