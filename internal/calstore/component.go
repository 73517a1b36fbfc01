package calstore

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Kind is the iCalendar component type a store holds.
type Kind string

const (
	KindTodo    Kind = "VTODO"
	KindJournal Kind = "VJOURNAL"
)

const (
	StatusNeedsAction = "NEEDS-ACTION"
	StatusInProcess   = "IN-PROCESS"
	StatusCompleted   = "COMPLETED"
	StatusCancelled   = "CANCELLED"
)

const (
	ClassPublic       = "PUBLIC"
	ClassPrivate      = "PRIVATE"
	ClassConfidential = "CONFIDENTIAL"
)

const (
	TranspOpaque      = "OPAQUE"
	TranspTransparent = "TRANSPARENT"
)

// DateTime is an iCalendar date or date-time with its zone.
type DateTime struct {
	Time     time.Time `json:"time"`
	TZID     string    `json:"tzid,omitempty"`
	DateOnly bool      `json:"date_only,omitempty"`
}

// Component is a task or journal entry in the desktop store.
type Component struct {
	UID            string     `json:"uid"`
	Kind           Kind       `json:"kind"`
	Summary        string     `json:"summary,omitempty"`
	Description    []string   `json:"description,omitempty"`
	Comment        []string   `json:"comment,omitempty"`
	Categories     []string   `json:"categories,omitempty"`
	Due            *DateTime  `json:"due,omitempty"`
	Completed      *time.Time `json:"completed,omitempty"`
	Percent        *int       `json:"percent,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       *int       `json:"priority,omitempty"`
	Classification string     `json:"classification,omitempty"`
	Transparency   string     `json:"transparency,omitempty"`
	Created        *time.Time `json:"created,omitempty"`
	LastModified   *time.Time `json:"last_modified,omitempty"`
	Sequence       int        `json:"sequence,omitempty"`
}

// NewComponent returns an empty component of kind with the given uid.
func NewComponent(kind Kind, uid string) *Component {
	return &Component{UID: uid, Kind: kind}
}

// Clone returns a deep copy of c.
func (c *Component) Clone() *Component {
	dup := *c
	dup.Description = slices.Clone(c.Description)
	dup.Comment = slices.Clone(c.Comment)
	dup.Categories = slices.Clone(c.Categories)
	if c.Due != nil {
		due := *c.Due
		dup.Due = &due
	}
	dup.Completed = clonePtr(c.Completed)
	dup.Percent = clonePtr(c.Percent)
	dup.Priority = clonePtr(c.Priority)
	dup.Created = clonePtr(c.Created)
	dup.LastModified = clonePtr(c.LastModified)
	return &dup
}

// FirstDescription returns the first description text, or "".
func (c *Component) FirstDescription() string {
	if len(c.Description) == 0 {
		return ""
	}
	return c.Description[0]
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// GenUID returns a fresh globally unique component UID.
func GenUID() string {
	return uuid.NewString()
}
