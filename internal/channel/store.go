package channel

import (
	"context"
	"sync"

	"example.com/routine/internal/consumer"
	"example.com/routine/internal/domain"
)

// RecordStore is the durable half of the sync contract, implemented by the
// Postgres repository.
type RecordStore interface {
	GetRecord(ctx context.Context, identity domain.Identity, date domain.DateKey) ([]domain.ActivityRecord, error)
	PutRecord(ctx context.Context, identity domain.Identity, date domain.DateKey, schedule domain.DailySchedule) error
}

// StoreChannel implements Channel on top of a durable store and the change
// feed hub. Subscriptions read the current document once, then receive every
// remote overwrite routed through the hub.
type StoreChannel struct {
	store RecordStore
	hub   *consumer.Hub
}

// NewStoreChannel constructs a StoreChannel.
func NewStoreChannel(store RecordStore, hub *consumer.Hub) *StoreChannel {
	return &StoreChannel{store: store, hub: hub}
}

var _ Channel = (*StoreChannel)(nil)

// Subscribe registers a feed listener, then loads and delivers the current
// record. The listener is registered first so no overwrite emitted during the
// initial load is missed; if the feed delivers before the initial load
// completes, the older initial snapshot is suppressed.
func (c *StoreChannel) Subscribe(ctx context.Context, identity domain.Identity, date domain.DateKey, onSnapshot SnapshotFunc, onError ErrorFunc) (func(), error) {
	if identity == "" {
		return nil, domain.ErrNoIdentity
	}

	// One mutex serializes the initial snapshot against feed deliveries so a
	// stale initial read can never arrive after a fresher overwrite.
	var (
		mu      sync.Mutex
		fedOnce bool
	)

	cancel := c.hub.Listen(identity, date, func(records []domain.ActivityRecord) {
		mu.Lock()
		defer mu.Unlock()
		fedOnce = true
		onSnapshot(records)
	})

	records, err := c.store.GetRecord(ctx, identity, date)
	if err != nil {
		cancel()
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if !fedOnce {
		onSnapshot(records)
	}

	return cancel, nil
}

// Persist performs the full overwrite. The change event reaches other
// subscribers through the outbox and feed, not through this call.
func (c *StoreChannel) Persist(ctx context.Context, identity domain.Identity, date domain.DateKey, schedule domain.DailySchedule) error {
	if identity == "" {
		return domain.ErrNoIdentity
	}
	return c.store.PutRecord(ctx, identity, date, schedule)
}
