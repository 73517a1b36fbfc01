// Package pilot models the handheld side of a sync: packed records, the
// application-info blocks and the transport a conduit talks to.
package pilot

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_database.go -package=mocks github.com/matheus3301/pimsync/internal/pilot Database

import (
	"context"
	"errors"
)

// MaxAppBlockSize bounds an application-info block.
const MaxAppBlockSize = 0xffff

// ErrNotFound is returned when a record ID is unknown to the handheld.
var ErrNotFound = errors.New("pilot: record not found")

// Attr is the sync status of a record.
type Attr int

const (
	AttrNothing Attr = iota
	AttrNew
	AttrModified
	AttrDeleted
)

func (a Attr) String() string {
	switch a {
	case AttrNew:
		return "new"
	case AttrModified:
		return "modified"
	case AttrDeleted:
		return "deleted"
	default:
		return "nothing"
	}
}

// Record is a packed handheld record. ID 0 means not yet assigned.
type Record struct {
	ID       uint32
	Category int
	Attr     Attr
	Archived bool
	Secret   bool
	Data     []byte
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	dup := *r
	dup.Data = append([]byte(nil), r.Data...)
	return &dup
}

// Database is a handheld database connection. Every call names the
// database it acts on (for example "ToDoDB").
type Database interface {
	ReadAppBlock(ctx context.Context, dbName string) ([]byte, error)
	WriteAppBlock(ctx context.Context, dbName string, data []byte) error
	ReadRecordByID(ctx context.Context, dbName string, id uint32) (*Record, error)
	// Records returns every record, deleted and archived ones included.
	Records(ctx context.Context, dbName string) ([]*Record, error)
	// ModifiedRecords returns records whose Attr is not AttrNothing.
	ModifiedRecords(ctx context.Context, dbName string) ([]*Record, error)
	// WriteRecord stores rec and returns its ID, assigning one when rec.ID is 0.
	WriteRecord(ctx context.Context, dbName string, rec *Record) (uint32, error)
	DeleteRecord(ctx context.Context, dbName string, id uint32) error
	ResetSyncFlags(ctx context.Context, dbName string) error
	// CleanUp purges deleted and archived records.
	CleanUp(ctx context.Context, dbName string) error
}
