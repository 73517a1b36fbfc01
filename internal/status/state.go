package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/pimsync/internal/bus"
)

// State is a phase of one conduit sync session.
type State string

const (
	Idle            State = "IDLE"
	PreSync         State = "PRE_SYNC"
	SlowSync        State = "SLOW_SYNC"
	FastSync        State = "FAST_SYNC"
	IterateLocal    State = "ITERATE_LOCAL"
	IterateModified State = "ITERATE_MODIFIED"
	Record          State = "PER_RECORD"
	PostSync        State = "POST_SYNC"
	Done            State = "DONE"
	Abort           State = "ABORT"
)

var working = []State{IterateLocal, IterateModified, Record, PostSync, Abort}

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:            {PreSync},
	PreSync:         {SlowSync, FastSync, Abort},
	SlowSync:        working,
	FastSync:        working,
	IterateLocal:    {IterateModified, Record, PostSync, Abort},
	IterateModified: {IterateLocal, Record, PostSync, Abort},
	Record:          {IterateLocal, IterateModified, PostSync, Abort},
	PostSync:        {Done, Abort},
	Done:            {PreSync},
	Abort:           {PreSync},
}

// Machine tracks and enforces the phase of a conduit session.
type Machine struct {
	mu      sync.RWMutex
	name    string
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine in Idle. name identifies the conduit in events.
func NewMachine(name string, b *bus.Bus) *Machine {
	return &Machine{
		name:    name,
		current: Idle,
		bus:     b,
	}
}

// Name returns the conduit name carried in events.
func (m *Machine) Name() string {
	return m.name
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.SyncStateChanged, StatusChange{
		Conduit: m.name,
		From:    from,
		To:      to,
	})
	return nil
}

// Enter moves to state unless the machine is already there. Iterators and
// per-record callbacks call it on every invocation.
func (m *Machine) Enter(to State) error {
	if m.Current() == to {
		return nil
	}
	return m.Transition(to)
}

// Fail moves to Abort from any state that allows it.
func (m *Machine) Fail() {
	_ = m.Enter(Abort)
}

// StatusChange is the payload for state change events.
type StatusChange struct {
	Conduit string
	From    State
	To      State
}
