package events

import (
	"encoding/json"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe(EventJobCreated, handler)

	payload := JobEventPayload{JobID: 7, TenantID: 1, Role: "receipt", Status: "pending"}
	err := bus.PublishJSON(EventJobCreated, payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventJobCreated {
		t.Errorf("expected type %s, got %s", EventJobCreated, received.Type)
	}

	var decoded JobEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded.JobID != 7 || decoded.Role != "receipt" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusSubscribeJobs(t *testing.T) {
	bus := NewEventBus()
	seen := map[string]int{}
	bus.SubscribeJobs(func(e *Event) error { seen[e.Type]++; return nil })

	for _, typ := range JobEventTypes {
		bus.Publish(&Event{Type: typ})
	}
	bus.Publish(&Event{Type: "other"})

	if len(seen) != len(JobEventTypes) {
		t.Fatalf("expected %d event types, got %v", len(JobEventTypes), seen)
	}
	if seen["other"] != 0 {
		t.Errorf("unrelated event delivered")
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	err := bus.PublishJSON("unknown", nil)
	if err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestEventBusNil(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(EventJobDone, JobEventPayload{}); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}
