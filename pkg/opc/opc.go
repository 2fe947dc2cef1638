// Package opc reads and writes Open Packaging Conventions containers, the
// zip-based package layout used by 3MF.
package opc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Well-known part names and content types.
const (
	ContentTypesPart  = "[Content_Types].xml"
	RelationshipsType = "application/vnd.openxmlformats-package.relationships+xml"
)

// maxPartSize bounds the uncompressed size of a single part.
const maxPartSize = 1 << 30

// OPC errors.
var (
	ErrNotZip          = errors.New("not a zip package")
	ErrPartNotFound    = errors.New("part not found")
	ErrPartTooLarge    = errors.New("part exceeds size limit")
	ErrDuplicatePart   = errors.New("duplicate part")
	ErrInvalidPartName = errors.New("invalid part name")
)

// Relationship links a source part (or the package) to a target part.
type Relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type xmlRelationships struct {
	XMLName       xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

type xmlTypes struct {
	XMLName   xml.Name      `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []xmlDefault  `xml:"Default"`
	Overrides []xmlOverride `xml:"Override"`
}

type xmlDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type xmlOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Package is an opened OPC container.
type Package struct {
	parts     map[string]*zip.File
	defaults  map[string]string // extension -> content type
	overrides map[string]string // normalized part name -> content type
}

// Open parses an OPC container held in memory.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotZip, err)
	}

	p := &Package{
		parts:     make(map[string]*zip.File, len(zr.File)),
		defaults:  make(map[string]string),
		overrides: make(map[string]string),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		p.parts[normalizePath(f.Name)] = f
	}

	if err := p.readContentTypes(); err != nil {
		return nil, fmt.Errorf("reading content types: %w", err)
	}
	return p, nil
}

func (p *Package) readContentTypes() error {
	data, err := p.Read(ContentTypesPart)
	if err != nil {
		return err
	}
	var types xmlTypes
	if err := xml.Unmarshal(data, &types); err != nil {
		return err
	}
	for _, d := range types.Defaults {
		p.defaults[strings.ToLower(d.Extension)] = d.ContentType
	}
	for _, o := range types.Overrides {
		p.overrides[normalizePath(o.PartName)] = o.ContentType
	}
	return nil
}

// List returns every part name in the package, sorted.
func (p *Package) List() []string {
	result := make([]string, 0, len(p.parts))
	for _, f := range p.parts {
		result = append(result, "/"+strings.TrimPrefix(f.Name, "/"))
	}
	sort.Strings(result)
	return result
}

// Contains reports whether the part exists. Part names are case-insensitive.
func (p *Package) Contains(name string) bool {
	_, ok := p.parts[normalizePath(name)]
	return ok
}

// Read returns the content of a part.
func (p *Package) Read(name string) ([]byte, error) {
	f, ok := p.parts[normalizePath(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	if f.UncompressedSize64 > maxPartSize {
		return nil, fmt.Errorf("%w: %s", ErrPartTooLarge, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("%w: %s", ErrPartTooLarge, name)
	}
	return data, nil
}

// ContentType returns the content type of a part, or "" if unknown.
func (p *Package) ContentType(name string) string {
	if ct, ok := p.overrides[normalizePath(name)]; ok {
		return ct
	}
	ext := strings.TrimPrefix(path.Ext(name), ".")
	return p.defaults[strings.ToLower(ext)]
}

// Relationships returns the relationships whose source is the given part.
// Use "/" for package-level relationships. Targets are resolved to absolute
// part names. A missing relationships part yields no relationships.
func (p *Package) Relationships(source string) ([]Relationship, error) {
	relsPart := RelationshipsPart(source)
	if !p.Contains(relsPart) {
		return nil, nil
	}
	data, err := p.Read(relsPart)
	if err != nil {
		return nil, err
	}
	var rels xmlRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", relsPart, err)
	}

	base := path.Dir("/" + strings.TrimPrefix(source, "/"))
	out := make([]Relationship, 0, len(rels.Relationships))
	for _, r := range rels.Relationships {
		target := r.Target
		if !strings.HasPrefix(target, "/") {
			target = path.Join(base, target)
		}
		r.Target = path.Clean(target)
		out = append(out, r)
	}
	return out, nil
}

// RelationshipsPart returns the name of the relationships part for source.
func RelationshipsPart(source string) string {
	source = strings.TrimPrefix(source, "/")
	if source == "" {
		return "/_rels/.rels"
	}
	dir, file := path.Split(source)
	return "/" + dir + "_rels/" + file + ".rels"
}

// normalizePath turns a part name into its lookup key.
func normalizePath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "/")
	return strings.ToLower(name)
}
