// Package memory provides an in-process record store for local development
// and tests. It implements the full channel contract, including live
// change notification to subscribers.
package memory

import (
	"context"
	"sync"

	"example.com/routine/internal/channel"
	"example.com/routine/internal/domain"
)

type recordKey struct {
	identity domain.Identity
	date     domain.DateKey
}

type watcher struct {
	mu        sync.Mutex
	cancelled bool
	lastSeq   uint64
	fn        channel.SnapshotFunc
}

// deliver invokes the callback unless the watcher was cancelled or has already
// delivered a newer write. seq is assigned under the store lock, so dropping
// anything below lastSeq keeps delivery order equal to write order even when
// overwrites race. Holding the watcher lock across the call is what makes
// cancel-after-fire safe: once cancel acquires the lock, no further callback
// can start.
func (w *watcher) deliver(seq uint64, records []domain.ActivityRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled || seq < w.lastSeq {
		return
	}
	w.lastSeq = seq
	w.fn(records)
}

func (w *watcher) cancel() {
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()
}

// Store keeps records in memory keyed by (identity, date) and fans out every
// overwrite to active subscribers of that key.
type Store struct {
	mu       sync.Mutex
	records  map[recordKey][]domain.ActivityRecord
	watchers map[recordKey]map[int]*watcher
	nextID   int
	seq      uint64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		records:  make(map[recordKey][]domain.ActivityRecord),
		watchers: make(map[recordKey]map[int]*watcher),
	}
}

var (
	_ channel.Channel     = (*Store)(nil)
	_ channel.RecordStore = (*Store)(nil)
)

// Subscribe registers a live feed for (identity, date) and delivers the
// current value (or absence) before returning.
func (s *Store) Subscribe(ctx context.Context, identity domain.Identity, date domain.DateKey, onSnapshot channel.SnapshotFunc, onError channel.ErrorFunc) (func(), error) {
	if identity == "" {
		return nil, domain.ErrNoIdentity
	}

	key := recordKey{identity: identity, date: date}
	w := &watcher{fn: onSnapshot}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]*watcher)
	}
	s.watchers[key][id] = w
	initial := cloneRecords(s.records[key])
	seq := s.seq
	s.mu.Unlock()

	w.deliver(seq, initial)

	cancel := func() {
		w.cancel()
		s.mu.Lock()
		delete(s.watchers[key], id)
		s.mu.Unlock()
	}
	return cancel, nil
}

// Persist overwrites the record at (identity, date) and notifies subscribers.
func (s *Store) Persist(ctx context.Context, identity domain.Identity, date domain.DateKey, schedule domain.DailySchedule) error {
	if identity == "" {
		return domain.ErrNoIdentity
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := recordKey{identity: identity, date: date}
	stored := cloneRecords(schedule)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.records[key] = stored
	targets := make([]*watcher, 0, len(s.watchers[key]))
	for _, w := range s.watchers[key] {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	for _, w := range targets {
		w.deliver(seq, cloneRecords(stored))
	}
	return nil
}

// Get returns the stored record for tests and tooling. The second return is
// false when no record exists.
func (s *Store) Get(identity domain.Identity, date domain.DateKey) ([]domain.ActivityRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.records[recordKey{identity: identity, date: date}]
	return cloneRecords(records), ok
}

// GetRecord implements channel.RecordStore so the HTTP facade can run against
// the in-memory store in local dev.
func (s *Store) GetRecord(_ context.Context, identity domain.Identity, date domain.DateKey) ([]domain.ActivityRecord, error) {
	if identity == "" {
		return nil, domain.ErrNoIdentity
	}
	records, _ := s.Get(identity, date)
	return records, nil
}

// PutRecord implements channel.RecordStore; overwrites notify subscribers
// just like Persist.
func (s *Store) PutRecord(ctx context.Context, identity domain.Identity, date domain.DateKey, schedule domain.DailySchedule) error {
	return s.Persist(ctx, identity, date, schedule)
}

func cloneRecords(records []domain.ActivityRecord) []domain.ActivityRecord {
	if records == nil {
		return nil
	}
	out := make([]domain.ActivityRecord, len(records))
	copy(out, records)
	return out
}
