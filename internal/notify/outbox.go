package notify

import (
	"context"
	"sync"
)

// DefaultOutboxSize is used when NewOutbox gets a non-positive size.
const DefaultOutboxSize = 256

// Outbox is a bounded in-memory queue of notifications waiting for the UI to
// pick them up. When full, the oldest entry is dropped.
type Outbox struct {
	mu      sync.Mutex
	items   []Notification
	size    int
	dropped uint64
}

// NewOutbox returns an Outbox holding at most size notifications.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{size: size}
}

// Deliver enqueues n.
func (o *Outbox) Deliver(_ context.Context, n Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) >= o.size {
		o.items = o.items[1:]
		o.dropped++
	}
	o.items = append(o.items, n)
	return nil
}

// Drain returns and removes all queued notifications, oldest first.
func (o *Outbox) Drain() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Len returns the number of queued notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Dropped returns how many notifications were evicted because the outbox was full.
func (o *Outbox) Dropped() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
