// Package encoding transcodes the legacy 8-bit text found in STL headers and
// solid names. STL carries no charset marker; Windows-1252 is assumed.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeName converts Windows-1252 bytes to a UTF-8 string. Text after the
// first NUL byte and trailing spaces are dropped.
func DecodeName(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return strings.TrimRight(string(data), " ")
	}
	return strings.TrimRight(string(result), " ")
}

// EncodeName converts a UTF-8 string to Windows-1252. Characters outside the
// charset become '?'.
func EncodeName(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// FixedName encodes s into a NUL-padded buffer of the given size, truncating
// if needed.
func FixedName(s string, size int) []byte {
	out := make([]byte, size)
	copy(out, EncodeName(s))
	return out
}

// SolidName sanitizes a name for an ASCII STL "solid" line: line breaks are
// folded to spaces and surrounding whitespace is trimmed.
func SolidName(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
