package pchar

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeLatin(t *testing.T) {
	tests := []string{"", "Groceries", "Café", "naïve résumé", "5 €"}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			got := Decode(Encode(s))
			if got != s {
				t.Errorf("round trip = %q, want %q", got, s)
			}
		})
	}
}

func TestEncodeSingleByte(t *testing.T) {
	b := Encode("é")
	if !bytes.Equal(b, []byte{0xe9}) {
		t.Errorf("Encode(é) = %x, want e9", b)
	}
}

func TestEncodeUnsupportedRune(t *testing.T) {
	b := Encode("a中b")
	if len(b) != 3 || b[0] != 'a' || b[2] != 'b' {
		t.Errorf("Encode = %q, want one replacement byte between a and b", b)
	}
}

func TestTruncate(t *testing.T) {
	b := Truncate("Personal errands list", 15)
	if len(b) != 15 {
		t.Errorf("len = %d, want 15", len(b))
	}
	if string(b) != "Personal errand" {
		t.Errorf("Truncate = %q", b)
	}
	if got := Truncate("Work", 15); string(got) != "Work" {
		t.Errorf("short Truncate = %q", got)
	}
}
