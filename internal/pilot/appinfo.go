package pilot

import (
	"encoding/binary"
	"fmt"

	"github.com/matheus3301/pimsync/internal/category"
)

// AppInfo is a decoded application-info block. Every block starts with a
// category table.
type AppInfo interface {
	Categories() *category.Table
	Pack() []byte
}

// ToDoAppInfo is the application-info block of ToDoDB.
type ToDoAppInfo struct {
	Category       *category.Table
	Dirty          uint16
	SortByPriority bool
}

func (ai *ToDoAppInfo) Categories() *category.Table { return ai.Category }

// Pack serializes the block in the handheld layout.
func (ai *ToDoAppInfo) Pack() []byte {
	buf := ai.Category.Pack()
	buf = binary.BigEndian.AppendUint16(buf, ai.Dirty)
	buf = append(buf, boolByte(ai.SortByPriority), 0)
	return buf
}

// UnpackToDoAppInfo parses the application-info block of ToDoDB.
func UnpackToDoAppInfo(b []byte) (*ToDoAppInfo, error) {
	table, n, err := category.Unpack(b)
	if err != nil {
		return nil, err
	}
	rest := b[n:]
	if len(rest) < 3 {
		return nil, fmt.Errorf("todo app info: need %d bytes, have %d", n+3, len(b))
	}
	return &ToDoAppInfo{
		Category:       table,
		Dirty:          binary.BigEndian.Uint16(rest),
		SortByPriority: rest[2] != 0,
	}, nil
}

// MemoAppInfo is the application-info block of MemoDB.
type MemoAppInfo struct {
	Category    *category.Table
	SortByAlpha bool
}

func (ai *MemoAppInfo) Categories() *category.Table { return ai.Category }

// Pack serializes the block in the handheld layout.
func (ai *MemoAppInfo) Pack() []byte {
	buf := ai.Category.Pack()
	buf = binary.BigEndian.AppendUint16(buf, 0)
	buf = append(buf, boolByte(ai.SortByAlpha), 0)
	return buf
}

// UnpackMemoAppInfo parses the application-info block of MemoDB. Blocks
// written by old devices end after the category table.
func UnpackMemoAppInfo(b []byte) (*MemoAppInfo, error) {
	table, n, err := category.Unpack(b)
	if err != nil {
		return nil, err
	}
	ai := &MemoAppInfo{Category: table}
	if rest := b[n:]; len(rest) >= 4 {
		ai.SortByAlpha = rest[2] != 0
	}
	return ai, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
