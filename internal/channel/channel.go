// Package channel abstracts the remote record store behind a live
// subscribe/persist contract.
package channel

import (
	"context"

	"example.com/routine/internal/domain"
)

// SnapshotFunc receives the persisted record for the subscribed date. records
// is nil when no record exists yet. Callbacks for one subscription are
// delivered in store emission order.
type SnapshotFunc func(records []domain.ActivityRecord)

// ErrorFunc receives non-fatal subscription failures.
type ErrorFunc func(err error)

// Channel is the sync boundary between a session and the remote store.
//
// Callers must resolve an identity before using it; the channel does not
// defend against a missing identity beyond returning domain.ErrNoIdentity.
type Channel interface {
	// Subscribe opens a live feed for (identity, date). onSnapshot fires once
	// immediately with the current value or absence, then on every remote
	// change, until the returned cancel func runs. Cancel is idempotent and
	// guarantees no callback is delivered after it returns.
	Subscribe(ctx context.Context, identity domain.Identity, date domain.DateKey, onSnapshot SnapshotFunc, onError ErrorFunc) (cancel func(), err error)

	// Persist overwrites the full record at (identity, date). No partial
	// merges, no internal retries.
	Persist(ctx context.Context, identity domain.Identity, date domain.DateKey, schedule domain.DailySchedule) error
}
