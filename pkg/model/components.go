package model

import (
	"go.uber.org/zap"

	"github.com/Faultbox/buildplate/pkg/math"
)

// ComponentsObject is a handle to a group of transformed object references.
type ComponentsObject struct {
	handle
}

// Kind returns KindComponents.
func (*ComponentsObject) Kind() ObjectKind { return KindComponents }

func (o *ComponentsObject) data(op string) (*componentsData, error) {
	obj, err := o.m.get(op, o.id)
	if err != nil {
		return nil, err
	}
	cd, ok := obj.payload.(*componentsData)
	if !ok {
		return nil, newError(CodeDanglingReference, op, "object %d is not a components object", o.id)
	}
	return cd, nil
}

// AddComponent appends a reference to ref placed with transform t.
// ref must belong to the same model, and adding it must not close a cycle.
func (o *ComponentsObject) AddComponent(ref Object, t math.Transform) error {
	const op = "AddComponent"
	cd, err := o.data(op)
	if err != nil {
		return err
	}
	target, err := o.m.resolve(op, ref)
	if err != nil {
		return err
	}
	if !t.IsFinite() {
		return newError(CodeInvalidGeometry, op, "transform contains non-finite values")
	}
	if target.id == o.id || o.m.reachable(target.id, o.id) {
		return newError(CodeCyclicReference, op, "object %d already reaches object %d", target.id, o.id)
	}

	cd.components = append(cd.components, Component{ObjectID: target.id, Transform: t})
	o.m.log.Debug("added component",
		zap.Uint32("parent", uint32(o.id)),
		zap.Uint32("object", uint32(target.id)))
	return nil
}

// Components returns a copy of the components in order.
func (o *ComponentsObject) Components() ([]Component, error) {
	cd, err := o.data("Components")
	if err != nil {
		return nil, err
	}
	return append([]Component(nil), cd.components...), nil
}

// ComponentCount returns the number of components.
func (o *ComponentsObject) ComponentCount() (int, error) {
	cd, err := o.data("ComponentCount")
	if err != nil {
		return 0, err
	}
	return len(cd.components), nil
}
