package mail

import (
	"slices"

	"github.com/matheus3301/pimsync/internal/bus"
)

// ChangeInfo accumulates the uids a folder operation touched until it is
// published.
type ChangeInfo struct {
	Folder  string
	Added   []string
	Removed []string
	Changed []string
}

// NewChangeInfo returns an empty accumulator for folder.
func NewChangeInfo(folder string) *ChangeInfo {
	return &ChangeInfo{Folder: folder}
}

func (c *ChangeInfo) Add(uid string)    { c.Added = append(c.Added, uid) }
func (c *ChangeInfo) Remove(uid string) { c.Removed = append(c.Removed, uid) }
func (c *ChangeInfo) Change(uid string) { c.Changed = append(c.Changed, uid) }

// Empty reports whether nothing was recorded.
func (c *ChangeInfo) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Clear drops everything recorded.
func (c *ChangeInfo) Clear() {
	c.Added, c.Removed, c.Changed = nil, nil, nil
}

// Notify publishes a copy of c as a folder-changed event, then clears c.
func (c *ChangeInfo) Notify(b *bus.Bus) {
	if c.Empty() {
		return
	}
	b.Emit(bus.FolderChanged, ChangeInfo{
		Folder:  c.Folder,
		Added:   slices.Clone(c.Added),
		Removed: slices.Clone(c.Removed),
		Changed: slices.Clone(c.Changed),
	})
	c.Clear()
}
