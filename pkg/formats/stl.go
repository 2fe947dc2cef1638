package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"strconv"
	"strings"

	"github.com/Faultbox/buildplate/pkg/encoding"
	"github.com/Faultbox/buildplate/pkg/math"
	"github.com/Faultbox/buildplate/pkg/model"
)

// STL format errors.
var (
	ErrTruncatedSTL    = errors.New("truncated STL data")
	ErrInvalidSTL      = errors.New("invalid STL data")
	ErrTooManyFacets   = errors.New("too many facets for STL")
	ErrSTLSizeMismatch = errors.New("STL facet count does not match data size")
)

const (
	stlHeaderSize = 80
	stlFacetSize  = 50
	stlMinSize    = stlHeaderSize + 4
	defaultSolid  = "buildplate"
)

// stlFacet is the on-disk binary facet record.
type stlFacet struct {
	Normal    [3]float32
	Vertices  [3][3]float32
	Attribute uint16
}

// STL is the decoded content of an STL file.
type STL struct {
	Name  string
	Mesh  FlatMesh
	ASCII bool
}

// stlCodec writes flattened builds and reads single-solid STL files.
type stlCodec struct {
	ascii bool
}

// Encode flattens the document's build and writes it as STL.
func (c stlCodec) Encode(w io.Writer, doc *model.Document) error {
	flat, err := Flatten(doc)
	if err != nil {
		return err
	}
	if c.ascii {
		return WriteSTLASCII(w, solidName(doc), flat)
	}
	return WriteSTL(w, solidName(doc), flat)
}

// Decode parses binary or ASCII STL into a one-object document.
func (stlCodec) Decode(data []byte) (*model.Document, error) {
	s, err := ParseSTL(data)
	if err != nil {
		return nil, err
	}
	return &model.Document{
		Resources: []model.Resource{&model.MeshResource{
			ID:        1,
			Name:      s.Name,
			Vertices:  s.Mesh.Vertices,
			Triangles: s.Mesh.Triangles,
		}},
		Build: []model.BuildItem{{ObjectID: 1, Transform: math.Identity()}},
	}, nil
}

// solidName picks the STL solid name: the document title, else the name of
// the first named build object.
func solidName(doc *model.Document) string {
	for _, md := range doc.Metadata {
		if md.Name == "Title" && md.Value != "" {
			return md.Value
		}
	}
	for _, item := range doc.Build {
		if r, ok := doc.Lookup(item.ObjectID); ok && r.ResourceName() != "" {
			return r.ResourceName()
		}
	}
	return defaultSolid
}

// WriteSTL writes mesh as binary STL.
func WriteSTL(w io.Writer, name string, mesh *FlatMesh) error {
	if uint64(len(mesh.Triangles)) > gomath.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrTooManyFacets, len(mesh.Triangles))
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(encoding.FixedName(name, stlHeaderSize)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(mesh.Triangles))); err != nil {
		return err
	}
	for i := range mesh.Triangles {
		a, b, c := mesh.Facet(i)
		n := math.TriangleNormal(a, b, c)
		rec := stlFacet{
			Normal:   [3]float32{n.X, n.Y, n.Z},
			Vertices: [3][3]float32{{a.X, a.Y, a.Z}, {b.X, b.Y, b.Z}, {c.X, c.Y, c.Z}},
		}
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSTLASCII writes mesh as ASCII STL.
func WriteSTLASCII(w io.Writer, name string, mesh *FlatMesh) error {
	name = encoding.SolidName(name)
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", name)
	for i := range mesh.Triangles {
		a, b, c := mesh.Facet(i)
		n := math.TriangleNormal(a, b, c)
		fmt.Fprintf(bw, "  facet normal %s\n", asciiCoords(n))
		bw.WriteString("    outer loop\n")
		for _, v := range [3]math.Vec3{a, b, c} {
			fmt.Fprintf(bw, "      vertex %s\n", asciiCoords(v))
		}
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

// asciiCoords formats v in the shortest exponent form that reads back as
// the same float32 values.
func asciiCoords(v math.Vec3) string {
	return strconv.FormatFloat(float64(v.X), 'e', -1, 32) + " " +
		strconv.FormatFloat(float64(v.Y), 'e', -1, 32) + " " +
		strconv.FormatFloat(float64(v.Z), 'e', -1, 32)
}

// ParseSTL parses STL data. Binary and ASCII encodings are told apart by
// the binary size law, then by the "solid" keyword. Identical coordinates
// are welded into one vertex; facets that collapse are dropped.
func ParseSTL(data []byte) (*STL, error) {
	if isBinarySTL(data) {
		return parseBinarySTL(data)
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("solid")) {
		return parseASCIISTL(trimmed)
	}
	if len(data) < stlMinSize {
		return nil, ErrTruncatedSTL
	}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return nil, fmt.Errorf("%w: %d facets in %d bytes", ErrSTLSizeMismatch, count, len(data))
}

func isBinarySTL(data []byte) bool {
	if len(data) < stlMinSize {
		return false
	}
	count := uint64(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	return uint64(len(data)) == stlMinSize+count*stlFacetSize
}

func parseBinarySTL(data []byte) (*STL, error) {
	s := &STL{Name: encoding.DecodeName(data[:stlHeaderSize])}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize:])

	facets := make([]stlFacet, count)
	r := bytes.NewReader(data[stlMinSize:])
	if err := binary.Read(r, binary.LittleEndian, facets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedSTL, err)
	}

	w := newWelder(int(count))
	for i, f := range facets {
		var corners [3]math.Vec3
		for j, v := range f.Vertices {
			corners[j] = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
			if !corners[j].IsFinite() {
				return nil, fmt.Errorf("%w: facet %d has a non-finite vertex", ErrInvalidSTL, i)
			}
		}
		w.add(corners)
	}
	s.Mesh = w.mesh
	return s, nil
}

func parseASCIISTL(data []byte) (*STL, error) {
	s := &STL{ASCII: true}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	w := newWelder(0)
	var (
		corners  [3]math.Vec3
		n        int
		inFacet  bool
		line     int
		sawSolid bool
		ended    bool
	)
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: line %d: %s", ErrInvalidSTL, line, fmt.Sprintf(format, args...))
	}

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if ended {
			return nil, fail("content after endsolid")
		}
		switch fields[0] {
		case "solid":
			if sawSolid {
				return nil, fail("nested solid")
			}
			sawSolid = true
			s.Name = strings.Join(fields[1:], " ")
		case "facet":
			if inFacet {
				return nil, fail("facet inside facet")
			}
			inFacet, n = true, 0
		case "outer", "endloop":
		case "vertex":
			if !inFacet || n == 3 {
				return nil, fail("unexpected vertex")
			}
			if len(fields) != 4 {
				return nil, fail("vertex needs 3 coordinates")
			}
			var xyz [3]float32
			for i := range xyz {
				f, err := math.ParseNumber(fields[i+1])
				if err != nil {
					return nil, fail("%v", err)
				}
				xyz[i] = f
			}
			corners[n] = math.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}
			n++
		case "endfacet":
			if !inFacet || n != 3 {
				return nil, fail("facet with %d vertices", n)
			}
			w.add(corners)
			inFacet = false
		case "endsolid":
			if inFacet {
				return nil, fail("unterminated facet")
			}
			ended = true
		default:
			return nil, fail("unknown keyword %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
	}
	if !ended {
		return nil, ErrTruncatedSTL
	}
	s.Mesh = w.mesh
	return s, nil
}

// welder merges vertices with identical coordinates.
type welder struct {
	index map[math.Vec3]uint32
	mesh  FlatMesh
}

func newWelder(facets int) *welder {
	return &welder{
		index: make(map[math.Vec3]uint32, facets/2),
		mesh: FlatMesh{
			Vertices:  make([]math.Vec3, 0, facets/2),
			Triangles: make([]model.Triangle, 0, facets),
		},
	}
}

func (w *welder) add(corners [3]math.Vec3) {
	if corners[0] == corners[1] || corners[1] == corners[2] || corners[0] == corners[2] {
		return
	}
	var t model.Triangle
	for i, v := range corners {
		idx, ok := w.index[v]
		if !ok {
			idx = uint32(len(w.mesh.Vertices))
			w.index[v] = idx
			w.mesh.Vertices = append(w.mesh.Vertices, v)
		}
		t[i] = idx
	}
	w.mesh.Triangles = append(w.mesh.Triangles, t)
}
