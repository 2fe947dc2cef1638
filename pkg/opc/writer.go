package opc

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Writer builds an OPC container. Parts are streamed to the underlying zip;
// content types and relationships are written by Close.
type Writer struct {
	zw        *zip.Writer
	written   map[string]bool
	defaults  map[string]string
	overrides map[string]string
	rels      map[string][]Relationship
}

// NewWriter starts a package on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw:        zip.NewWriter(w),
		written:   make(map[string]bool),
		defaults:  map[string]string{"rels": RelationshipsType},
		overrides: make(map[string]string),
		rels:      make(map[string][]Relationship),
	}
}

// AddDefaultContentType maps a file extension (without dot) to a content type.
func (w *Writer) AddDefaultContentType(ext, contentType string) {
	w.defaults[strings.ToLower(ext)] = contentType
}

// AddPart writes a part. If contentType differs from the default for the
// part's extension, an override is recorded.
func (w *Writer) AddPart(name, contentType string, data []byte) error {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.HasSuffix(name, "/") || strings.EqualFold(name, ContentTypesPart) {
		return fmt.Errorf("%w: %q", ErrInvalidPartName, name)
	}
	key := normalizePath(name)
	if w.written[key] {
		return fmt.Errorf("%w: %s", ErrDuplicatePart, name)
	}

	if err := w.writeEntry(name, data); err != nil {
		return err
	}
	w.written[key] = true

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if contentType != "" && w.defaults[ext] != contentType {
		w.overrides["/"+name] = contentType
	}
	return nil
}

// AddRelationship records a relationship from source ("/" for the package).
// An empty ID is assigned automatically.
func (w *Writer) AddRelationship(source string, rel Relationship) {
	if rel.ID == "" {
		rel.ID = fmt.Sprintf("rel%d", len(w.rels[source]))
	}
	w.rels[source] = append(w.rels[source], rel)
}

// Close writes the relationships and content types parts and finishes the zip.
func (w *Writer) Close() error {
	sources := make([]string, 0, len(w.rels))
	for s := range w.rels {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		data, err := marshalXML(xmlRelationships{Relationships: w.rels[s]})
		if err != nil {
			return err
		}
		if err := w.writeEntry(strings.TrimPrefix(RelationshipsPart(s), "/"), data); err != nil {
			return err
		}
	}

	var types xmlTypes
	exts := make([]string, 0, len(w.defaults))
	for e := range w.defaults {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	for _, e := range exts {
		types.Defaults = append(types.Defaults, xmlDefault{Extension: e, ContentType: w.defaults[e]})
	}
	parts := make([]string, 0, len(w.overrides))
	for p := range w.overrides {
		parts = append(parts, p)
	}
	sort.Strings(parts)
	for _, p := range parts {
		types.Overrides = append(types.Overrides, xmlOverride{PartName: p, ContentType: w.overrides[p]})
	}

	data, err := marshalXML(types)
	if err != nil {
		return err
	}
	if err := w.writeEntry(ContentTypesPart, data); err != nil {
		return err
	}
	return w.zw.Close()
}

func (w *Writer) writeEntry(name string, data []byte) error {
	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func marshalXML(v any) ([]byte, error) {
	data, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}
