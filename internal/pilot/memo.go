package pilot

import "bytes"

// Memo is an unpacked Memo record.
type Memo struct {
	Text string
}

// Pack serializes m in the handheld layout.
func (m *Memo) Pack() []byte {
	var buf bytes.Buffer
	writeString(&buf, m.Text)
	return buf.Bytes()
}

// UnpackMemo parses a packed Memo record.
func UnpackMemo(b []byte) (*Memo, error) {
	text, _ := readString(b)
	return &Memo{Text: text}, nil
}
