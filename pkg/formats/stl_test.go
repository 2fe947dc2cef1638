package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	gomath "math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/buildplate/internal/sample"
	"github.com/Faultbox/buildplate/pkg/math"
	"github.com/Faultbox/buildplate/pkg/model"
)

func TestSTLBinaryLayout(t *testing.T) {
	doc := sceneDocument(t)

	var buf bytes.Buffer
	require.NoError(t, stlCodec{}.Encode(&buf, doc))
	data := buf.Bytes()

	require.Len(t, data, 84+50*84)
	assert.Equal(t, uint32(84), binary.LittleEndian.Uint32(data[80:]))
	assert.True(t, bytes.HasPrefix(data, []byte("Box\x00")), "header %q", data[:8])

	// The first facet is the bottom of the first instance: normal -Z.
	normalZ := binary.LittleEndian.Uint32(data[84+8:])
	assert.Equal(t, float32(-1), gomath.Float32frombits(normalZ))
	attr := binary.LittleEndian.Uint16(data[84+48:])
	assert.Zero(t, attr)
}

func TestSTLRoundTrip(t *testing.T) {
	doc := sceneDocument(t)
	flat, err := Flatten(doc)
	require.NoError(t, err)

	for _, ascii := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, stlCodec{ascii: ascii}.Encode(&buf, doc))

		s, err := ParseSTL(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, ascii, s.ASCII)
		assert.Equal(t, "Box", s.Name)
		// No two instances touch, so welding restores the expanded counts.
		assert.Len(t, s.Mesh.Vertices, len(flat.Vertices))
		assert.Len(t, s.Mesh.Triangles, len(flat.Triangles))

		for i := range flat.Triangles {
			wa, wb, wc := flat.Facet(i)
			ga, gb, gc := s.Mesh.Facet(i)
			assert.True(t, wa.Distance(ga) < 1e-4 && wb.Distance(gb) < 1e-4 && wc.Distance(gc) < 1e-4,
				"facet %d: got %v %v %v, want %v %v %v", i, ga, gb, gc, wa, wb, wc)
		}
	}
}

func TestSTLASCIIKeepsFloat32Precision(t *testing.T) {
	// Neighbouring values below 7 significant digits apart.
	mesh := &FlatMesh{
		Vertices: []math.Vec3{
			{X: 1234.5677, Y: 0.1, Z: 0.3},
			{X: 1234.5679, Y: 0.1, Z: 0.3},
			{X: 1000.0001, Y: 2.5, Z: -7.125e-5},
			{X: 1000.0002, Y: 2.5, Z: -7.125e-5},
		},
		Triangles: []model.Triangle{{0, 1, 2}, {2, 3, 0}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSTLASCII(&buf, "precise", mesh))

	s, err := ParseSTL(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, mesh.Vertices, s.Mesh.Vertices)
	assert.Equal(t, mesh.Triangles, s.Mesh.Triangles)
}

func TestSTLSolidName(t *testing.T) {
	doc := sceneDocument(t)
	doc.Metadata = []model.Metadata{{Name: "Title", Value: "Plate\n1"}}

	var buf bytes.Buffer
	require.NoError(t, stlCodec{ascii: true}.Encode(&buf, doc))
	assert.True(t, strings.HasPrefix(buf.String(), "solid Plate 1\n"))
	assert.True(t, strings.HasSuffix(buf.String(), "endsolid Plate 1\n"))

	assert.Equal(t, defaultSolid, solidName(&model.Document{}))
}

func TestParseSTLBinaryWithSolidHeader(t *testing.T) {
	v, tri := sample.Cube(1, 1, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, "solid exported by a CAD tool", &FlatMesh{Vertices: v, Triangles: tri}))

	s, err := ParseSTL(buf.Bytes())
	require.NoError(t, err)
	assert.False(t, s.ASCII)
	assert.Equal(t, "solid exported by a CAD tool", s.Name)
	assert.Len(t, s.Mesh.Vertices, 8)
	assert.Len(t, s.Mesh.Triangles, 12)
}

func TestParseSTLWelding(t *testing.T) {
	input := `solid quad
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 1 1 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 0
    outer loop
      vertex 5 5 5
      vertex 5 5 5
      vertex 6 5 5
    endloop
  endfacet
endsolid quad
`
	s, err := ParseSTL([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "quad", s.Name)
	assert.Len(t, s.Mesh.Vertices, 4, "shared corners are welded and degenerate facets dropped")
	assert.Equal(t, []model.Triangle{{0, 1, 2}, {0, 2, 3}}, s.Mesh.Triangles)
}

func TestParseSTLErrors(t *testing.T) {
	mismatch := make([]byte, 84+50)
	binary.LittleEndian.PutUint32(mismatch[80:], 2)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrTruncatedSTL},
		{"short binary", []byte{1, 2, 3}, ErrTruncatedSTL},
		{"size mismatch", mismatch, ErrSTLSizeMismatch},
		{"missing endsolid", []byte("solid a\n"), ErrTruncatedSTL},
		{"short facet", []byte("solid a\nfacet normal 0 0 0\nouter loop\nvertex 0 0 0\nendloop\nendfacet\nendsolid a\n"), ErrInvalidSTL},
		{"bad number", []byte("solid a\nfacet normal 0 0 0\nouter loop\nvertex 0 x 0\n"), ErrInvalidSTL},
		{"non-finite", []byte("solid a\nfacet normal 0 0 0\nouter loop\nvertex 0 nan 0\n"), ErrInvalidSTL},
		{"unknown keyword", []byte("solid a\nfacet normal 0 0 0\nouter loop\ncolor 1 0 0\n"), ErrInvalidSTL},
		{"trailing content", []byte("solid a\nendsolid a\nsolid b\n"), ErrInvalidSTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSTL(tt.data)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestSTLReaderImport(t *testing.T) {
	v, tri := sample.Cube(10, 20, 30)
	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, "Box", &FlatMesh{Vertices: v, Triangles: tri}))

	m := model.New(model.WithUnit(model.UnitInch))
	defer m.Close()
	r, err := m.QueryReader(FormatSTL)
	require.NoError(t, err)
	require.NoError(t, r.ReadFromBuffer(buf.Bytes()))

	meshes, err := m.MeshObjects()
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	name, _ := meshes[0].Name()
	assert.Equal(t, "Box", name)
	n, _ := meshes[0].TriangleCount()
	assert.Equal(t, 12, n)

	items, _ := m.BuildItems()
	require.Len(t, items, 1)
	assert.True(t, items[0].Transform.IsIdentity())

	// STL carries no unit, so the model keeps its own.
	u, _ := m.Unit()
	assert.Equal(t, model.UnitInch, u)

	err = r.ReadFromBuffer([]byte("solid broken\n"))
	assert.True(t, errors.Is(err, model.ErrMalformedDocument), "got %v", err)
	assert.True(t, errors.Is(err, ErrTruncatedSTL), "got %v", err)
}

func TestWriteSTLEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, "", &FlatMesh{}))
	assert.Len(t, buf.Bytes(), 84)

	s, err := ParseSTL(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, s.Mesh.Triangles)
	assert.Empty(t, s.Mesh.Vertices)
}
