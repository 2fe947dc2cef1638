// Package formats provides the 3MF and STL codecs. Importing it registers
// the "3mf", "stl" and "stl-ascii" formats with the model package.
package formats

import (
	"fmt"
	"os"

	"github.com/h2non/filetype"

	"github.com/Faultbox/buildplate/pkg/model"
)

// Format names.
const (
	Format3MF      = "3mf"
	FormatSTL      = "stl"
	FormatSTLASCII = "stl-ascii"
)

func init() {
	model.RegisterFormat(model.Format{
		Name:       Format3MF,
		Extensions: []string{".3mf"},
		Encoder:    threeMFCodec{},
		Decoder:    threeMFCodec{},
	})
	model.RegisterFormat(model.Format{
		Name:       FormatSTL,
		Extensions: []string{".stl"},
		Encoder:    stlCodec{},
		Decoder:    stlCodec{},
	})
	model.RegisterFormat(model.Format{
		Name:    FormatSTLASCII,
		Encoder: stlCodec{ascii: true},
		Decoder: stlCodec{},
	})
}

// Detect returns the readable format of data: "3mf" for zip containers,
// otherwise "stl".
func Detect(data []byte) string {
	if filetype.Is(data, "zip") {
		return Format3MF
	}
	return FormatSTL
}

// ReadFile reads a 3MF or STL file into a new model. The format is sniffed
// from the content, not the file name.
func ReadFile(path string, opts ...model.Option) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m := model.New(opts...)
	r, err := m.QueryReader(Detect(data))
	if err != nil {
		m.Close()
		return nil, err
	}
	if err := r.ReadFromBuffer(data); err != nil {
		m.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
