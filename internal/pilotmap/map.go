// Package pilotmap keeps the link between desktop UIDs and handheld record
// IDs across sync sessions.
package pilotmap

import (
	"cmp"
	"slices"
	"time"
)

// FirstPilotID is the high-water mark above which desktop-allocated IDs live.
const FirstPilotID = 128

// Entry is one UID to pilot ID mapping.
type Entry struct {
	PilotID  uint32
	UID      string
	Archived bool

	touched bool
}

// Map is a bidirectional UID and pilot ID map. At most one entry exists
// per pilot ID and per UID.
type Map struct {
	byPID map[uint32]*Entry
	byUID map[string]*Entry

	// WriteTouchedOnly limits Write to entries used since the map was read.
	WriteTouchedOnly bool
	// Since is the time the map was last written.
	Since time.Time
}

// New returns an empty map.
func New() *Map {
	return &Map{
		byPID: make(map[uint32]*Entry),
		byUID: make(map[string]*Entry),
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.byPID)
}

// Insert maps pid to uid, replacing whatever either side was mapped to.
func (m *Map) Insert(pid uint32, uid string, archived bool) {
	if old, ok := m.byPID[pid]; ok {
		m.drop(old)
	}
	if old, ok := m.byUID[uid]; ok {
		m.drop(old)
	}
	e := &Entry{PilotID: pid, UID: uid, Archived: archived, touched: true}
	m.byPID[pid] = e
	m.byUID[uid] = e
}

func (m *Map) drop(e *Entry) {
	delete(m.byPID, e.PilotID)
	delete(m.byUID, e.UID)
}

// LookupPID returns the pilot ID of uid. When uid is unknown it returns 0,
// or with create allocates the lowest free ID above FirstPilotID.
func (m *Map) LookupPID(uid string, create bool) uint32 {
	if e, ok := m.byUID[uid]; ok {
		e.touched = true
		return e.PilotID
	}
	if !create {
		return 0
	}
	pid := uint32(FirstPilotID + 1)
	for {
		if _, used := m.byPID[pid]; !used {
			break
		}
		pid++
	}
	m.Insert(pid, uid, false)
	return pid
}

// LookupUID returns the UID mapped to pid. Archived entries are hidden
// when onlyIfNotArchived is set.
func (m *Map) LookupUID(pid uint32, onlyIfNotArchived bool) (string, bool) {
	e, ok := m.byPID[pid]
	if !ok || (onlyIfNotArchived && e.Archived) {
		return "", false
	}
	e.touched = true
	return e.UID, true
}

// UIDIsArchived reports whether uid is mapped and archived.
func (m *Map) UIDIsArchived(uid string) bool {
	e, ok := m.byUID[uid]
	return ok && e.Archived
}

// PIDIsArchived reports whether pid is mapped and archived.
func (m *Map) PIDIsArchived(pid uint32) bool {
	e, ok := m.byPID[pid]
	return ok && e.Archived
}

// RemoveByUID drops the mapping of uid.
func (m *Map) RemoveByUID(uid string) {
	if e, ok := m.byUID[uid]; ok {
		m.drop(e)
	}
}

// Clear drops every mapping.
func (m *Map) Clear() {
	clear(m.byPID)
	clear(m.byUID)
}

// Entries returns a copy of every entry ordered by pilot ID.
func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, len(m.byPID))
	for _, e := range m.byPID {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.PilotID, b.PilotID)
	})
	return out
}

// Touched reports whether the entry was used since the map was read.
func (e Entry) Touched() bool {
	return e.touched
}
