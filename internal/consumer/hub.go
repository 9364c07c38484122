package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"example.com/routine/internal/domain"
	"example.com/routine/internal/outbox"
)

type hubKey struct {
	identity domain.Identity
	date     domain.DateKey
}

// DeliverFunc receives the activities from a decoded record update.
type DeliverFunc func(records []domain.ActivityRecord)

type hubEntry struct {
	mu        sync.Mutex
	cancelled bool
	deliver   DeliverFunc
}

func (e *hubEntry) fire(records []domain.ActivityRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled {
		return
	}
	e.deliver(records)
}

// Hub routes decoded record updates to the live subscription for the matching
// (identity, date). Updates with no registered listener are dropped: after a
// date switch, late events for the old date land here and go nowhere.
type Hub struct {
	mu      sync.Mutex
	entries map[hubKey]map[int]*hubEntry
	nextID  int
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{entries: make(map[hubKey]map[int]*hubEntry)}
}

var _ Handler = (*Hub)(nil)

// Listen registers a delivery target for (identity, date). The returned
// cancel is idempotent; no delivery starts after it returns.
func (h *Hub) Listen(identity domain.Identity, date domain.DateKey, deliver DeliverFunc) (cancel func()) {
	key := hubKey{identity: identity, date: date}
	entry := &hubEntry{deliver: deliver}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.entries[key] == nil {
		h.entries[key] = make(map[int]*hubEntry)
	}
	h.entries[key][id] = entry
	h.mu.Unlock()

	return func() {
		entry.mu.Lock()
		entry.cancelled = true
		entry.mu.Unlock()

		h.mu.Lock()
		delete(h.entries[key], id)
		h.mu.Unlock()
	}
}

// Handle decodes a record update and fans it out to listeners.
func (h *Hub) Handle(_ context.Context, msg Message) error {
	if msg.EventType != outbox.EventTypeRecordUpdated {
		// Unknown event types are skipped, not failed, so the feed keeps moving.
		return nil
	}

	var event outbox.RecordUpdated
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("record update payload: %w", err)
	}

	key := hubKey{identity: domain.Identity(event.Identity), date: domain.DateKey(event.Date)}

	h.mu.Lock()
	targets := make([]*hubEntry, 0, len(h.entries[key]))
	for _, entry := range h.entries[key] {
		targets = append(targets, entry)
	}
	h.mu.Unlock()

	for _, entry := range targets {
		records := make([]domain.ActivityRecord, len(event.Activities))
		copy(records, event.Activities)
		entry.fire(records)
	}
	return nil
}
