// Package category maps desktop free-text categories onto the fixed
// 16-slot category table a handheld keeps in each database's
// application-info block.
package category

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/matheus3301/pimsync/internal/pchar"
)

const (
	// Slots is the number of categories a handheld database holds.
	Slots = 16
	// NameSize is the on-device size of a category name, NUL included.
	NameSize = 16
	// NameLen is the longest visible category name.
	NameLen = NameSize - 1
	// Unfiled is the reserved slot records fall into without a category.
	Unfiled = 0
	// PackedSize is the length of a packed table.
	PackedSize = 2 + Slots*NameSize + Slots + 4
)

// Table is a handheld category table. An empty name marks a free slot.
type Table struct {
	Renamed      [Slots]bool
	Names        [Slots]string
	IDs          [Slots]uint8
	LastUniqueID uint8
}

// NewTable returns a table holding only the Unfiled slot.
func NewTable() *Table {
	return &Table{Names: [Slots]string{Unfiled: "Unfiled"}}
}

// Lookup returns the slot whose name matches name on its first NameLen
// device characters, ignoring the Unfiled slot.
func (t *Table) Lookup(name string) (int, bool) {
	want := pchar.Truncate(name, NameLen)
	if len(want) == 0 {
		return Unfiled, false
	}
	for i := 1; i < Slots; i++ {
		if t.Names[i] == "" {
			continue
		}
		if bytes.Equal(pchar.Truncate(t.Names[i], NameLen), want) {
			return i, true
		}
	}
	return Unfiled, false
}

// Name returns the name held in slot, or "" when slot is out of range.
func (t *Table) Name(slot int) string {
	if slot < 0 || slot >= Slots {
		return ""
	}
	return t.Names[slot]
}

func (t *Table) hasID(id int) bool {
	for _, v := range t.IDs {
		if int(v) == id {
			return true
		}
	}
	return false
}

// Pack serializes t in the handheld byte layout.
func (t *Table) Pack() []byte {
	buf := make([]byte, PackedSize)
	var renamed uint16
	for i, r := range t.Renamed {
		if r {
			renamed |= 1 << i
		}
	}
	binary.BigEndian.PutUint16(buf, renamed)
	off := 2
	for _, name := range t.Names {
		copy(buf[off:off+NameLen], pchar.Truncate(name, NameLen))
		off += NameSize
	}
	copy(buf[off:], t.IDs[:])
	off += Slots
	buf[off] = t.LastUniqueID
	return buf
}

// Unpack reads a table from b and returns the number of bytes consumed.
func Unpack(b []byte) (*Table, int, error) {
	if len(b) < PackedSize {
		return nil, 0, fmt.Errorf("category table: need %d bytes, have %d", PackedSize, len(b))
	}
	t := &Table{}
	renamed := binary.BigEndian.Uint16(b)
	off := 2
	for i := range Slots {
		t.Renamed[i] = renamed&(1<<i) != 0
		raw := b[off : off+NameSize]
		if n := bytes.IndexByte(raw, 0); n >= 0 {
			raw = raw[:n]
		}
		t.Names[i] = pchar.Decode(raw)
		off += NameSize
	}
	copy(t.IDs[:], b[off:off+Slots])
	off += Slots
	t.LastUniqueID = b[off]
	return t, PackedSize, nil
}
