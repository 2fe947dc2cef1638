package formats

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Faultbox/buildplate/pkg/math"
	"github.com/Faultbox/buildplate/pkg/model"
	"github.com/Faultbox/buildplate/pkg/opc"
)

// 3MF package constants.
const (
	NamespaceCore     = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	ModelPart         = "/3D/3dmodel.model"
	ModelContentType  = "application/vnd.ms-package.3dmanufacturing-3dmodel+xml"
	StartPartRelation = "http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"
	defaultLanguage   = "en-US"
)

// 3MF format errors.
var (
	ErrInvalidNamespace  = errors.New("not a 3MF core model")
	ErrRequiredExtension = errors.New("unsupported required extension")
	ErrInvalidObject     = errors.New("invalid 3MF object")
)

type xmlModel struct {
	XMLName            xml.Name      `xml:"model"`
	Unit               string        `xml:"unit,attr,omitempty"`
	Lang               string        `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	RequiredExtensions string        `xml:"requiredextensions,attr,omitempty"`
	Metadata           []xmlMetadata `xml:"metadata"`
	Resources          xmlResources  `xml:"resources"`
	Build              xmlBuild      `xml:"build"`
}

// Child elements record their XMLName so that elements from other
// namespaces can be skipped on decode. A zero XMLName marshals with the
// field tag and inherits the core default namespace.
type xmlMetadata struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
	Value   string `xml:",chardata"`
}

type xmlResources struct {
	Objects []xmlObject `xml:"object"`
}

type xmlObject struct {
	XMLName    xml.Name
	ID         uint32         `xml:"id,attr"`
	Name       string         `xml:"name,attr,omitempty"`
	Type       string         `xml:"type,attr,omitempty"`
	Mesh       *xmlMesh       `xml:"mesh"`
	Components *xmlComponents `xml:"components"`
}

type xmlMesh struct {
	XMLName   xml.Name
	Vertices  []xmlVertex   `xml:"vertices>vertex"`
	Triangles []xmlTriangle `xml:"triangles>triangle"`
}

type xmlVertex struct {
	XMLName xml.Name
	X       string `xml:"x,attr"`
	Y       string `xml:"y,attr"`
	Z       string `xml:"z,attr"`
}

// Indices stay strings so that a missing attribute is not read as 0.
type xmlTriangle struct {
	XMLName xml.Name
	V1      string `xml:"v1,attr"`
	V2      string `xml:"v2,attr"`
	V3      string `xml:"v3,attr"`
}

type xmlComponents struct {
	XMLName    xml.Name
	Components []xmlComponent `xml:"component"`
}

type xmlComponent struct {
	XMLName   xml.Name
	ObjectID  uint32 `xml:"objectid,attr"`
	Transform string `xml:"transform,attr,omitempty"`
}

type xmlBuild struct {
	Items []xmlItem `xml:"item"`
}

type xmlItem struct {
	XMLName    xml.Name
	ObjectID   uint32 `xml:"objectid,attr"`
	Transform  string `xml:"transform,attr,omitempty"`
	PartNumber string `xml:"partnumber,attr,omitempty"`
}

// threeMFCodec reads and writes 3MF packages.
type threeMFCodec struct{}

// Encode writes doc as a 3MF package.
func (threeMFCodec) Encode(w io.Writer, doc *model.Document) error {
	data, err := MarshalModel(doc)
	if err != nil {
		return err
	}

	pkg := opc.NewWriter(w)
	pkg.AddDefaultContentType("model", ModelContentType)
	if err := pkg.AddPart(ModelPart, ModelContentType, data); err != nil {
		return err
	}
	pkg.AddRelationship("/", opc.Relationship{ID: "rel0", Type: StartPartRelation, Target: ModelPart})
	return pkg.Close()
}

// Decode reads the start part of a 3MF package.
func (threeMFCodec) Decode(data []byte) (*model.Document, error) {
	pkg, err := opc.Open(data)
	if err != nil {
		return nil, err
	}
	part, err := startPart(pkg)
	if err != nil {
		return nil, err
	}
	content, err := pkg.Read(part)
	if err != nil {
		return nil, err
	}
	return UnmarshalModel(content)
}

// startPart follows the package start relationship, falling back to the
// conventional model part name.
func startPart(pkg *opc.Package) (string, error) {
	rels, err := pkg.Relationships("/")
	if err != nil {
		return "", err
	}
	for _, r := range rels {
		if r.Type == StartPartRelation {
			return r.Target, nil
		}
	}
	if !pkg.Contains(ModelPart) {
		return "", fmt.Errorf("%w: no 3MF model part", opc.ErrPartNotFound)
	}
	return ModelPart, nil
}

// MarshalModel renders the 3MF model XML for doc. Resources are emitted in
// document order and identity transforms are omitted.
func MarshalModel(doc *model.Document) ([]byte, error) {
	unit := doc.Unit
	if unit == "" {
		unit = model.UnitMillimeter
	}
	x := xmlModel{
		XMLName: xml.Name{Space: NamespaceCore, Local: "model"},
		Unit:    string(unit),
		Lang:    defaultLanguage,
	}
	for _, md := range doc.Metadata {
		x.Metadata = append(x.Metadata, xmlMetadata{Name: md.Name, Value: md.Value})
	}

	for _, res := range doc.Resources {
		obj := xmlObject{ID: uint32(res.ResourceID()), Name: res.ResourceName(), Type: "model"}
		switch r := res.(type) {
		case *model.MeshResource:
			mesh := &xmlMesh{
				Vertices:  make([]xmlVertex, len(r.Vertices)),
				Triangles: make([]xmlTriangle, len(r.Triangles)),
			}
			for i, v := range r.Vertices {
				mesh.Vertices[i] = xmlVertex{
					X: math.FormatNumber(v.X),
					Y: math.FormatNumber(v.Y),
					Z: math.FormatNumber(v.Z),
				}
			}
			for i, t := range r.Triangles {
				mesh.Triangles[i] = xmlTriangle{
					V1: strconv.FormatUint(uint64(t[0]), 10),
					V2: strconv.FormatUint(uint64(t[1]), 10),
					V3: strconv.FormatUint(uint64(t[2]), 10),
				}
			}
			obj.Mesh = mesh
		case *model.ComponentsResource:
			comps := &xmlComponents{Components: make([]xmlComponent, len(r.Components))}
			for i, c := range r.Components {
				comps.Components[i] = xmlComponent{ObjectID: uint32(c.ObjectID), Transform: transformAttr(c.Transform)}
			}
			obj.Components = comps
		default:
			return nil, fmt.Errorf("%w: resource %d has type %T", ErrInvalidObject, res.ResourceID(), res)
		}
		x.Resources.Objects = append(x.Resources.Objects, obj)
	}

	for _, item := range doc.Build {
		x.Build.Items = append(x.Build.Items, xmlItem{
			ObjectID:   uint32(item.ObjectID),
			Transform:  transformAttr(item.Transform),
			PartNumber: item.PartNumber,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", " ")
	if err := enc.Encode(x); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// UnmarshalModel parses 3MF model XML into an untrusted document.
func UnmarshalModel(data []byte) (*model.Document, error) {
	var x xmlModel
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	if x.XMLName.Space != NamespaceCore {
		return nil, fmt.Errorf("%w: namespace %q", ErrInvalidNamespace, x.XMLName.Space)
	}
	if x.RequiredExtensions != "" {
		return nil, fmt.Errorf("%w: %s", ErrRequiredExtension, x.RequiredExtensions)
	}

	doc := &model.Document{Unit: model.Unit(x.Unit)}
	if doc.Unit == "" {
		doc.Unit = model.UnitMillimeter
	}
	for _, md := range x.Metadata {
		if !isCore(md.XMLName) {
			continue
		}
		doc.Metadata = append(doc.Metadata, model.Metadata{Name: md.Name, Value: md.Value})
	}

	for _, obj := range x.Resources.Objects {
		if !isCore(obj.XMLName) {
			continue
		}
		if obj.Mesh != nil && !isCore(obj.Mesh.XMLName) {
			obj.Mesh = nil
		}
		if obj.Components != nil && !isCore(obj.Components.XMLName) {
			obj.Components = nil
		}
		id := model.ObjectID(obj.ID)
		switch {
		case obj.Mesh != nil && obj.Components != nil:
			return nil, fmt.Errorf("%w: object %d has both mesh and components", ErrInvalidObject, obj.ID)
		case obj.Mesh != nil:
			r := &model.MeshResource{
				ID:        id,
				Name:      obj.Name,
				Vertices:  make([]math.Vec3, 0, len(obj.Mesh.Vertices)),
				Triangles: make([]model.Triangle, 0, len(obj.Mesh.Triangles)),
			}
			for _, v := range obj.Mesh.Vertices {
				if !isCore(v.XMLName) {
					continue
				}
				p, err := parseVertex(v)
				if err != nil {
					return nil, fmt.Errorf("object %d vertex %d: %w", obj.ID, len(r.Vertices), err)
				}
				r.Vertices = append(r.Vertices, p)
			}
			for _, t := range obj.Mesh.Triangles {
				if !isCore(t.XMLName) {
					continue
				}
				tri, err := parseTriangle(t)
				if err != nil {
					return nil, fmt.Errorf("object %d triangle %d: %w", obj.ID, len(r.Triangles), err)
				}
				r.Triangles = append(r.Triangles, tri)
			}
			doc.Resources = append(doc.Resources, r)
		case obj.Components != nil:
			r := &model.ComponentsResource{ID: id, Name: obj.Name}
			for i, c := range obj.Components.Components {
				if !isCore(c.XMLName) {
					continue
				}
				t, err := parseTransformAttr(c.Transform)
				if err != nil {
					return nil, fmt.Errorf("object %d component %d: %w", obj.ID, i, err)
				}
				r.Components = append(r.Components, model.Component{ObjectID: model.ObjectID(c.ObjectID), Transform: t})
			}
			doc.Resources = append(doc.Resources, r)
		default:
			return nil, fmt.Errorf("%w: object %d has neither mesh nor components", ErrInvalidObject, obj.ID)
		}
	}

	for i, item := range x.Build.Items {
		if !isCore(item.XMLName) {
			continue
		}
		t, err := parseTransformAttr(item.Transform)
		if err != nil {
			return nil, fmt.Errorf("build item %d: %w", i, err)
		}
		doc.Build = append(doc.Build, model.BuildItem{
			ObjectID:   model.ObjectID(item.ObjectID),
			Transform:  t,
			PartNumber: item.PartNumber,
		})
	}
	return doc, nil
}

func parseVertex(v xmlVertex) (math.Vec3, error) {
	var xyz [3]float32
	for i, s := range [3]string{v.X, v.Y, v.Z} {
		f, err := math.ParseNumber(s)
		if err != nil {
			return math.Vec3{}, err
		}
		xyz[i] = f
	}
	return math.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func parseTriangle(t xmlTriangle) (model.Triangle, error) {
	var tri model.Triangle
	for i, s := range [3]string{t.V1, t.V2, t.V3} {
		if s == "" {
			return tri, fmt.Errorf("%w: triangle without v%d", ErrInvalidObject, i+1)
		}
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return tri, fmt.Errorf("%w: triangle index v%d=%q", ErrInvalidObject, i+1, s)
		}
		tri[i] = uint32(v)
	}
	return tri, nil
}

// isCore reports whether an element belongs to the 3MF core namespace.
func isCore(n xml.Name) bool {
	return n.Space == NamespaceCore
}

func transformAttr(t math.Transform) string {
	if t.IsIdentity() {
		return ""
	}
	return t.String()
}

func parseTransformAttr(s string) (math.Transform, error) {
	if s == "" {
		return math.Identity(), nil
	}
	return math.ParseTransform(s)
}
