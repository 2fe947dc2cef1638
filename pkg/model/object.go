package model

import (
	"fmt"

	"github.com/Faultbox/buildplate/pkg/math"
)

// ObjectID identifies an object within its Model. IDs start at 1 and are
// never reused.
type ObjectID uint32

// ObjectKind distinguishes the object variants.
type ObjectKind int

const (
	KindMesh       ObjectKind = 1
	KindComponents ObjectKind = 2
)

// String returns a human-readable kind name.
func (k ObjectKind) String() string {
	switch k {
	case KindMesh:
		return "Mesh"
	case KindComponents:
		return "Components"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Triangle holds three vertex indices into the owning mesh.
type Triangle [3]uint32

// Component places an object inside a components object.
type Component struct {
	ObjectID  ObjectID
	Transform math.Transform
}

// BuildItem declares an object instance to be manufactured.
type BuildItem struct {
	ObjectID   ObjectID
	Transform  math.Transform
	PartNumber string
}

// Metadata is a named model-level string value.
type Metadata struct {
	Name  string
	Value string
}

// Unit is the length unit of model coordinates.
type Unit string

// Units defined by the 3MF core specification.
const (
	UnitMicron     Unit = "micron"
	UnitMillimeter Unit = "millimeter"
	UnitCentimeter Unit = "centimeter"
	UnitInch       Unit = "inch"
	UnitFoot       Unit = "foot"
	UnitMeter      Unit = "meter"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitMicron, UnitMillimeter, UnitCentimeter, UnitInch, UnitFoot, UnitMeter:
		return true
	}
	return false
}

// object is an arena entry. payload is one of *meshData or *componentsData.
type object struct {
	id      ObjectID
	name    string
	payload payload
}

type payload interface {
	kind() ObjectKind
}

type meshData struct {
	vertices  []math.Vec3
	triangles []Triangle
}

func (*meshData) kind() ObjectKind { return KindMesh }

type componentsData struct {
	components []Component
}

func (*componentsData) kind() ObjectKind { return KindComponents }

// Object is a handle to a mesh or components object.
type Object interface {
	ID() ObjectID
	Kind() ObjectKind
	Name() (string, error)
	SetName(name string) error
	owner() *Model
}

type handle struct {
	m  *Model
	id ObjectID
}

// ID returns the object identifier.
func (h handle) ID() ObjectID { return h.id }

func (h handle) owner() *Model { return h.m }

// Name returns the display name.
func (h handle) Name() (string, error) {
	obj, err := h.m.get("Name", h.id)
	if err != nil {
		return "", err
	}
	return obj.name, nil
}

// SetName sets the display name. Names need not be unique.
func (h handle) SetName(name string) error {
	obj, err := h.m.get("SetName", h.id)
	if err != nil {
		return err
	}
	obj.name = name
	return nil
}

func isNil(ref Object) bool {
	switch r := ref.(type) {
	case nil:
		return true
	case *MeshObject:
		return r == nil
	case *ComponentsObject:
		return r == nil
	}
	return false
}
