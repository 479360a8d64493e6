package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventRequestCreated       = "request_created"
	EventRequestStatusChanged = "request_status_changed"
	EventRequestDeleted       = "request_deleted"
)

// RequestEventPayload is the changed-row snapshot delivered to
// subscribers. Receivers must treat it as a "something changed"
// signal, not an authoritative diff: delivery is at-least-once and
// ordering follows the publisher, not the table.
type RequestEventPayload struct {
	RequestID   string    `json:"request_id"`
	Status      string    `json:"status,omitempty"`
	Name        string    `json:"name,omitempty"`
	ServiceType string    `json:"service_type,omitempty"`
	Location    string    `json:"location,omitempty"`
	Urgency     string    `json:"urgency,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`
}

// Event is a lightweight domain event with a JSON payload.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Handler reacts to an event. Errors are the handler's own problem;
// the bus never retries.
type Handler func(event *Event) error

// Subscription identifies one registered handler so it can be
// released later.
type Subscription struct {
	id int64
}

// ChangeBus is an in-process pub/sub for request change events.
// Handlers registered without a type filter receive every event.
type ChangeBus struct {
	mu       sync.RWMutex
	nextID   int64
	handlers map[int64]busEntry
}

type busEntry struct {
	eventType string // empty means all types
	handler   Handler
}

// NewChangeBus constructs an empty bus.
func NewChangeBus() *ChangeBus {
	return &ChangeBus{handlers: make(map[int64]busEntry)}
}

// Subscribe registers a handler for a single event type.
func (b *ChangeBus) Subscribe(eventType string, handler Handler) *Subscription {
	return b.add(eventType, handler)
}

// SubscribeAll registers a handler for every event on the bus.
func (b *ChangeBus) SubscribeAll(handler Handler) *Subscription {
	return b.add("", handler)
}

func (b *ChangeBus) add(eventType string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[b.nextID] = busEntry{eventType: eventType, handler: handler}
	return &Subscription{id: b.nextID}
}

// Unsubscribe releases a subscription. Safe on nil and on an already
// released handle.
func (b *ChangeBus) Unsubscribe(sub *Subscription) {
	if b == nil || sub == nil {
		return
	}
	b.mu.Lock()
	delete(b.handlers, sub.id)
	b.mu.Unlock()
}

// Publish notifies matching subscribers synchronously, in registration
// order. The caller decides the concurrency model.
func (b *ChangeBus) Publish(event *Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	b.mu.RLock()
	ids := make([]int64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	entries := make([]busEntry, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		entries = append(entries, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, e := range entries {
		if e.eventType != "" && e.eventType != event.Type {
			continue
		}
		_ = e.handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus
// swallows the publish so optional wiring stays simple.
func (b *ChangeBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

func sortedIDs(ids []int64) []int64 {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}
