// Package eventbus implements the sidecar's publish/subscribe channel
// (C8): bounded per-event-type queues with wait-with-timeout semantics.
// Ordering is preserved within one event_type; across event_types no
// ordering is promised. Delivery is single-consumer per wait — the
// contract this package implements does not guarantee fan-out to
// multiple simultaneous waiters (spec.md §11, Open Question 3).
package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxEventsPerType bounds how much history one event_type queue retains;
// older events are discarded first. There is no durable storage (spec.md
// §4.6).
const maxEventsPerType = 4096

// Event is spec.md §3's Event entity.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Publisher     string          `json:"publisher"`
	Topic         string          `json:"topic"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	TTL           *time.Duration  `json:"ttl,omitempty"`
}

type queue struct {
	mu     sync.Mutex
	events []Event
	cursor int
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{})}
}

// Bus is the event bus: one ordered queue per event_type, a single shared
// read cursor per queue (single-consumer-per-wait, per spec.md §4.6).
type Bus struct {
	mu     sync.Mutex
	queues map[string]*queue
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{queues: make(map[string]*queue)}
}

func (b *Bus) queueFor(eventType string) *queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[eventType]
	if !ok {
		q = newQueue()
		b.queues[eventType] = q
	}
	return q
}

// Publish appends an event to its event_type's queue and wakes any
// waiters. Non-blocking, O(1) amortized per spec.md §4.6.
func (b *Bus) Publish(eventType, publisher, topic string, data json.RawMessage) string {
	eventID := uuid.NewString()
	q := b.queueFor(eventType)

	q.mu.Lock()
	q.events = append(q.events, Event{
		EventID:   eventID,
		EventType: eventType,
		Publisher: publisher,
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if overflow := len(q.events) - maxEventsPerType; overflow > 0 {
		q.events = q.events[overflow:]
		q.cursor -= overflow
		if q.cursor < 0 {
			q.cursor = 0
		}
	}
	ready := q.notify
	q.notify = make(chan struct{})
	q.mu.Unlock()

	close(ready)
	return eventID
}

// WaitForEvent returns every event of eventType delivered since the
// shared cursor's last read, or waits up to timeout for at least one new
// event. timeout=0 returns immediately with whatever is already buffered
// (spec.md §10: "wait_for_event with timeout=0 returns immediately with
// whatever is buffered"). On timeout it returns an empty, non-error batch.
func (b *Bus) WaitForEvent(ctx context.Context, eventType string, timeout time.Duration) []Event {
	q := b.queueFor(eventType)

	if batch, ok := q.drain(); ok {
		return batch
	}
	if timeout <= 0 {
		return nil
	}

	q.mu.Lock()
	notify := q.notify
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-notify:
		batch, _ := q.drain()
		return batch
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (q *queue) drain() ([]Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cursor >= len(q.events) {
		return nil, false
	}
	batch := append([]Event(nil), q.events[q.cursor:]...)
	q.cursor = len(q.events)
	return batch, true
}
