package pilot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/matheus3301/pimsync/internal/pchar"
)

const (
	dateIndefinite = 0xffff
	completeBit    = 0x80

	// The packed date holds a 7-bit year offset from 1904.
	MinDueYear = 1904
	MaxDueYear = 1904 + 0x7f
)

// ToDo is an unpacked ToDo record.
type ToDo struct {
	Indefinite bool
	// Due carries only a calendar date. Zero means the device stored no date.
	Due         time.Time
	Priority    int
	Complete    bool
	Description string
	Note        string
}

// Pack serializes t in the handheld layout.
func (t *ToDo) Pack() []byte {
	var buf bytes.Buffer
	var due uint16 = dateIndefinite
	if !t.Indefinite && DueInRange(t.Due) {
		due = packDate(t.Due)
	}
	_ = binary.Write(&buf, binary.BigEndian, due)
	prio := byte(t.Priority) &^ completeBit
	if t.Complete {
		prio |= completeBit
	}
	buf.WriteByte(prio)
	writeString(&buf, t.Description)
	writeString(&buf, t.Note)
	return buf.Bytes()
}

// UnpackToDo parses a packed ToDo record.
func UnpackToDo(b []byte) (*ToDo, error) {
	if len(b) < 3 {
		return nil, fmt.Errorf("todo record: need 3 bytes, have %d", len(b))
	}
	t := &ToDo{}
	d := binary.BigEndian.Uint16(b)
	if d == dateIndefinite {
		t.Indefinite = true
	} else {
		t.Due = unpackDate(d)
	}
	t.Complete = b[2]&completeBit != 0
	t.Priority = int(b[2] &^ completeBit)
	rest := b[3:]
	t.Description, rest = readString(rest)
	t.Note, _ = readString(rest)
	return t, nil
}

// DueInRange reports whether d fits the packed date. The zero time packs
// as "no date" and is in range.
func DueInRange(d time.Time) bool {
	return d.IsZero() || (d.Year() >= MinDueYear && d.Year() <= MaxDueYear)
}

// packDate encodes a date as ((year-1904)<<9 | month<<5 | day).
func packDate(t time.Time) uint16 {
	if t.IsZero() {
		return 0
	}
	return uint16((t.Year()-1904)<<9 | int(t.Month())<<5 | t.Day())
}

func unpackDate(d uint16) time.Time {
	if d == 0 {
		return time.Time{}
	}
	year := int(d>>9) + 1904
	month := time.Month((d >> 5) & 0x0f)
	day := int(d & 0x1f)
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func writeString(buf *bytes.Buffer, s string) {
	buf.Write(pchar.Encode(s))
	buf.WriteByte(0)
}

// readString returns the NUL-terminated string at the head of b and the
// bytes after it. A missing terminator consumes all of b.
func readString(b []byte) (string, []byte) {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		return pchar.Decode(b), nil
	}
	return pchar.Decode(b[:n]), b[n+1:]
}
