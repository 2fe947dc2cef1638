package model

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
	"go.uber.org/zap"
)

// Encoder serializes a document.
type Encoder interface {
	Encode(w io.Writer, doc *Document) error
}

// Decoder parses serialized bytes into an untrusted document.
type Decoder interface {
	Decode(data []byte) (*Document, error)
}

// Format describes a registered file format. Either codec may be nil.
type Format struct {
	Name       string   // lookup key, e.g. "3mf"
	Extensions []string // file extensions including the dot, e.g. ".3mf"
	Encoder    Encoder
	Decoder    Decoder
}

var (
	formatsMu sync.RWMutex
	formats   = make(map[string]Format)
)

// RegisterFormat makes a format available to QueryWriter and QueryReader.
// Registering a name twice replaces the earlier format.
func RegisterFormat(f Format) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	formats[strings.ToLower(f.Name)] = f
}

// Formats returns every registered format sorted by name.
func Formats() []Format {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupFormat returns the format registered under name.
func LookupFormat(name string) (Format, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	f, ok := formats[strings.ToLower(name)]
	return f, ok
}

// FormatForExtension returns the first format (by name) that claims ext.
func FormatForExtension(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	for _, f := range Formats() {
		for _, e := range f.Extensions {
			if strings.ToLower(e) == ext {
				return f, true
			}
		}
	}
	return Format{}, false
}

// QueryWriter returns a writer for the named format.
func (m *Model) QueryWriter(format string) (*Writer, error) {
	const op = "QueryWriter"
	if err := m.checkOpen(op); err != nil {
		return nil, err
	}
	f, ok := LookupFormat(format)
	if !ok || f.Encoder == nil {
		return nil, newError(CodeUnsupportedFormat, op, "no writer for format %q", format)
	}
	return &Writer{model: m, format: f}, nil
}

// QueryReader returns a reader for the named format.
func (m *Model) QueryReader(format string) (*Reader, error) {
	const op = "QueryReader"
	if err := m.checkOpen(op); err != nil {
		return nil, err
	}
	f, ok := LookupFormat(format)
	if !ok || f.Decoder == nil {
		return nil, newError(CodeUnsupportedFormat, op, "no reader for format %q", format)
	}
	return &Reader{model: m, format: f}, nil
}

// Writer serializes its model in one format. Writing never modifies the model.
type Writer struct {
	model  *Model
	format Format
}

// Format returns the writer's format name.
func (w *Writer) Format() string { return w.format.Name }

// Write encodes the model to out.
func (w *Writer) Write(out io.Writer) error {
	doc, err := w.model.Document()
	if err != nil {
		return err
	}
	if err := w.format.Encoder.Encode(out, doc); err != nil {
		if CodeOf(err) != 0 {
			return err
		}
		return wrapError(CodeWriteIO, "Write", err)
	}
	w.model.log.Debug("wrote model",
		zap.String("format", w.format.Name),
		zap.Int("objects", len(doc.Resources)),
		zap.Int("build_items", len(doc.Build)))
	return nil
}

// WriteToBuffer encodes the model into memory.
func (w *Writer) WriteToBuffer() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteToFile encodes the model and stores it at path. The file is only
// created once encoding has succeeded.
func (w *Writer) WriteToFile(path string) error {
	data, err := w.WriteToBuffer()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return wrapError(CodeWriteIO, "WriteToFile", err)
	}
	return nil
}

// WriteToFS encodes the model and stores it as name in fsys.
func (w *Writer) WriteToFS(fsys hackpadfs.FS, name string) error {
	data, err := w.WriteToBuffer()
	if err != nil {
		return err
	}
	if err := hackpadfs.WriteFullFile(fsys, name, data, 0644); err != nil {
		return wrapError(CodeWriteIO, "WriteToFS", err)
	}
	return nil
}

// Reader decodes serialized models into its model.
type Reader struct {
	model  *Model
	format Format
}

// Format returns the reader's format name.
func (r *Reader) Format() string { return r.format.Name }

// ReadFromBuffer decodes data and appends its content to the model.
// Invalid input fails with MalformedDocument and leaves the model unchanged.
func (r *Reader) ReadFromBuffer(data []byte) error {
	const op = "Read"
	if err := r.model.checkOpen(op); err != nil {
		return err
	}
	doc, err := r.format.Decoder.Decode(data)
	if err != nil {
		if CodeOf(err) != 0 {
			return err
		}
		return wrapError(CodeMalformedDocument, op, err)
	}
	return r.model.importDocument(op, doc)
}

// Read consumes in and decodes it.
func (r *Reader) Read(in io.Reader) error {
	if err := r.model.checkOpen("Read"); err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading %s input: %w", r.format.Name, err)
	}
	return r.ReadFromBuffer(data)
}

// ReadFromFile decodes the file at path.
func (r *Reader) ReadFromFile(path string) error {
	if err := r.model.checkOpen("ReadFromFile"); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s file: %w", r.format.Name, err)
	}
	return r.ReadFromBuffer(data)
}

// ReadFromFS decodes the file name in fsys.
func (r *Reader) ReadFromFS(fsys hackpadfs.FS, name string) error {
	if err := r.model.checkOpen("ReadFromFS"); err != nil {
		return err
	}
	data, err := hackpadfs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s file: %w", r.format.Name, err)
	}
	return r.ReadFromBuffer(data)
}
