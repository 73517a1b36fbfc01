package bus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bus carries folder and sync events between pimsync components. Delivery
// is by namespace prefix and never blocks the publisher.
// A nil *Bus is valid and drops everything.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Uint64
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends evt to every subscriber whose namespace is a prefix of
// evt.Kind. A subscriber with a full buffer loses the event.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Emit publishes payload under kind, stamped with the current time.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Dropped returns how many deliveries were lost to full buffers.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Subscribe returns a channel receiving events under namespace, and the
// function that ends the subscription.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Handle calls fn for every event under namespace until ctx is done. The
// returned channel is closed once the handler goroutine has exited.
func (b *Bus) Handle(ctx context.Context, namespace string, bufSize int, fn func(Event)) <-chan struct{} {
	ch, unsub := b.Subscribe(namespace, bufSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				fn(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
