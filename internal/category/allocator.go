package category

import (
	"slices"

	"go.uber.org/zap"
)

const (
	firstDesktopID = 128
	lastDesktopID  = 255
)

// Allocator adds desktop categories to a Table for the duration of one
// sync session. IDs it hands out are unique within the session.
type Allocator struct {
	table  *Table
	next   int
	logger *zap.Logger
}

// NewAllocator returns an allocator writing into table.
func NewAllocator(table *Table, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{table: table, next: firstDesktopID, logger: logger}
}

// Reset points the allocator at table and restarts its ID counter.
func (a *Allocator) Reset(table *Table) {
	a.table = table
	a.next = firstDesktopID
}

// Table returns the table being allocated into.
func (a *Allocator) Table() *Table {
	return a.table
}

// Add places name in the first free slot and returns the slot. A full
// table yields Unfiled.
func (a *Allocator) Add(name string) int {
	for i := 0; i < Slots; i++ {
		if a.table.Names[i] != "" {
			continue
		}
		if len([]rune(name)) > NameLen {
			a.logger.Warn("desktop category too long for handheld, truncating", zap.String("category", name))
		}
		a.table.Names[i] = truncateName(name)
		a.table.IDs[i] = uint8(a.nextID())
		a.table.Renamed[i] = true
		return i
	}
	a.logger.Warn("not adding category, category list already full", zap.String("category", name))
	return Unfiled
}

func (a *Allocator) nextID() int {
	id := a.next
	for id <= lastDesktopID && a.table.hasID(id) {
		id++
	}
	if id > lastDesktopID {
		a.logger.Warn("no more category ids available on desktop")
		id = lastDesktopID
	}
	a.next = id + 1
	return id
}

// ToRemote picks the device slot for a desktop category list: the first
// category already present in the table, else a newly allocated slot for
// the first category. No categories yields Unfiled.
func (a *Allocator) ToRemote(categories []string) int {
	for _, c := range categories {
		if slot, ok := a.table.Lookup(c); ok {
			return slot
		}
	}
	if len(categories) == 0 || categories[0] == "" {
		return Unfiled
	}
	return a.Add(categories[0])
}

// FromRemote applies device slot to a desktop category list. The slot's
// name moves to the front of the list; Unfiled clears it.
func FromRemote(slot int, table *Table, categories []string) []string {
	name := table.Name(slot)
	if slot == Unfiled || name == "" {
		return nil
	}
	out := []string{name}
	for _, c := range categories {
		if c != name {
			out = append(out, c)
		}
	}
	return slices.Clip(out)
}

// truncateName cuts name to what fits in a device slot.
func truncateName(name string) string {
	r := []rune(name)
	if len(r) > NameLen {
		r = r[:NameLen]
	}
	return string(r)
}
