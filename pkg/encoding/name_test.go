package encoding

import (
	"bytes"
	"testing"
)

func TestDecodeName(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("Box"), "Box"},
		{"nul terminated", []byte("Box\x00garbage"), "Box"},
		{"space padded", []byte("Box     "), "Box"},
		{"latin1 range", []byte{'C', 'a', 'f', 0xE9}, "Café"},
		{"cp1252 specific", []byte{0x80, '5'}, "€5"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeName(tt.input); got != tt.want {
				t.Errorf("DecodeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEncodeName(t *testing.T) {
	if got := EncodeName("Café"); !bytes.Equal(got, []byte{'C', 'a', 'f', 0xE9}) {
		t.Errorf("EncodeName(Café) = %v", got)
	}
	if got := EncodeName("日本"); string(got) != "??" {
		t.Errorf("unsupported runes: got %q, want ??", got)
	}
	if got := DecodeName(EncodeName("€ part")); got != "€ part" {
		t.Errorf("round trip = %q", got)
	}
}

func TestFixedName(t *testing.T) {
	got := FixedName("Box", 8)
	if !bytes.Equal(got, []byte("Box\x00\x00\x00\x00\x00")) {
		t.Errorf("FixedName = %q", got)
	}
	if got := FixedName("LongerThanSize", 4); string(got) != "Long" {
		t.Errorf("truncated FixedName = %q", got)
	}
}

func TestSolidName(t *testing.T) {
	if got := SolidName("  a\nb\tc  "); got != "a b c" {
		t.Errorf("SolidName = %q", got)
	}
}
