package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventJobCreated = "job_created"
	EventJobClaimed = "job_claimed"
	EventJobDone    = "job_done"
	EventJobFailed  = "job_failed"
)

// JobEventTypes lists every job lifecycle event in publishing order.
var JobEventTypes = []string{EventJobCreated, EventJobClaimed, EventJobDone, EventJobFailed}

// JobEventPayload is the job snapshot delivered to event consumers. The ticket payload is never included.
type JobEventPayload struct {
	JobID        int64     `json:"job_id"`
	TenantID     int64     `json:"tenant_id"`
	RestaurantID int64     `json:"restaurant_id"`
	OrderID      int64     `json:"order_id"`
	PrinterID    int64     `json:"printer_id"`
	DeviceID     *int64    `json:"device_id,omitempty"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Generation   int       `json:"generation"`
	Attempts     int       `json:"attempts"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeJobs registers the handler for every job lifecycle event.
func (b *EventBus) SubscribeJobs(handler EventHandler) {
	for _, t := range JobEventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now().UTC()})
	return nil
}
