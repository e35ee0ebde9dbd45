package engine

import (
	"slices"
	"sync"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventRunStart      EventKind = "run_start"
	EventRunEnd        EventKind = "run_end"
	EventMessageStored EventKind = "message_stored"
	EventError         EventKind = "error"
)

// Event describes one step of a run. Data holds the stored or returned
// message.Message for message_stored and run_end, and the error for error.
type Event struct {
	Kind         EventKind
	Conversation string
	Provider     string
	Timestamp    time.Time
	Data         any
}

// Subscription delivers events on C until it is unsubscribed or the bus is
// closed.
type Subscription struct {
	C <-chan Event

	ch    chan Event
	kinds []EventKind
}

func (s *Subscription) wants(k EventKind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, k)
}

// EventBus fans events out to subscribers without ever blocking the
// publisher: a subscriber with a full buffer misses the event.
type EventBus struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a subscriber with a buffer of bufSize events. When
// kinds are given, only events of those kinds are delivered. Subscribing to a
// closed bus returns an already closed subscription.
func (b *EventBus) Subscribe(bufSize int, kinds ...EventKind) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, kinds: kinds}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}
	b.subs = append(b.subs, sub)

	return sub
}

// Unsubscribe removes sub and closes its channel. Unknown or already removed
// subscriptions are ignored.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.Index(b.subs, sub)
	if i < 0 {
		return
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	close(sub.ch)
}

// Publish delivers e to every interested subscriber.
func (b *EventBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.wants(e.Kind) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// Close closes every subscription. Later publishes are dropped.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
