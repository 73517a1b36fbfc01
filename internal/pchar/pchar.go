// Package pchar converts text between UTF-8 and the handheld character set.
package pchar

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Charset is the character set handhelds store text in.
var Charset = charmap.Windows1252

// Encode converts s into device bytes. Runes the device cannot represent
// become the charset replacement byte.
func Encode(s string) []byte {
	out, err := encoding.ReplaceUnsupported(Charset.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// Decode converts device bytes into UTF-8.
func Decode(b []byte) string {
	out, err := Charset.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Truncate encodes s and cuts it to at most n device bytes.
func Truncate(s string, n int) []byte {
	b := Encode(s)
	if len(b) > n {
		b = b[:n]
	}
	return b
}
