package bus

import "time"

// Event kinds published inside pimsync. Subscribers match on prefix,
// so "sync." receives every sync event.
const (
	FolderChanged    = "folder.changed"
	SyncStateChanged = "sync.state_changed"
	SyncCompleted    = "sync.completed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
