// Package session holds the per-session schedule state and drives the sync
// lifecycle: identity resolution, one live subscription per date, optimistic
// mutation, and debounced persistence.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"example.com/routine/internal/channel"
	"example.com/routine/internal/domain"
	"example.com/routine/internal/observability"
)

// DefaultDebounceWindow is the quiet period after the last comment edit
// before the batched overwrite is emitted.
const DefaultDebounceWindow = 500 * time.Millisecond

// View is the immutable snapshot handed to observers after every state
// change. Schedule is a copy; observers may retain it.
type View struct {
	Date     domain.DateKey
	Schedule domain.DailySchedule
	// Live reports whether the first snapshot for Date has arrived. Until
	// then the schedule is a fresh template merge, not remote state.
	Live   bool
	Saving bool
	// SyncDisabled is set when identity resolution failed; the session keeps
	// working template-only and nothing persists.
	SyncDisabled bool
}

// Observer receives state change notifications.
type Observer func(View)

// ErrorObserver receives non-fatal sync failures (subscription errors,
// persist failures). Local state is never rolled back on these.
type ErrorObserver func(err error)

// Resolver yields the session identity. Implemented by identity.Gate.
type Resolver interface {
	Resolve(ctx context.Context) (domain.Identity, error)
}

// Option configures a Session.
type Option func(*Session)

// WithDebounceWindow overrides the comment-edit quiet window.
func WithDebounceWindow(window time.Duration) Option {
	return func(s *Session) {
		s.debounce = newDebouncer(window)
	}
}

// WithObserver registers the state change observer.
func WithObserver(fn Observer) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithErrorObserver registers the sync failure observer.
func WithErrorObserver(fn ErrorObserver) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithLogger overrides the session logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session is the sole mutator of the current schedule. The channel and the
// debounce timer never touch state directly; their callbacks re-enter through
// methods that hold the session lock, and a generation counter fences off
// anything that belongs to a previous date.
type Session struct {
	template []domain.ActivityTemplate
	channel  channel.Channel
	resolver Resolver
	debounce *debouncer
	observer Observer
	onError  ErrorObserver
	logger   *log.Logger

	mu           sync.Mutex
	baseCtx      context.Context
	identity     domain.Identity
	syncDisabled bool
	gen          uint64
	date         domain.DateKey
	schedule     domain.DailySchedule
	live         bool
	saving       bool
	unsubscribe  func()
}

// NewSession constructs a Session over the given template and channel.
func NewSession(template []domain.ActivityTemplate, ch channel.Channel, resolver Resolver, opts ...Option) *Session {
	s := &Session{
		template: template,
		channel:  ch,
		resolver: resolver,
		debounce: newDebouncer(DefaultDebounceWindow),
		logger:   log.New(log.Writer(), "[session] ", log.LstdFlags),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resolves the identity and selects the initial date. On resolution
// failure the session continues template-only; the error is returned once so
// the caller can surface it, and is not retried.
func (s *Session) Start(ctx context.Context, initial domain.DateKey) error {
	identity, err := s.resolver.Resolve(ctx)

	s.mu.Lock()
	s.baseCtx = ctx
	if err != nil {
		s.syncDisabled = true
	} else {
		s.identity = identity
	}
	s.mu.Unlock()

	if selErr := s.SelectDate(ctx, initial); selErr != nil {
		return selErr
	}
	if err != nil {
		s.logger.Printf("identity resolution failed, continuing template-only: %v", err)
		return fmt.Errorf("identity resolution: %w", err)
	}
	return nil
}

// SelectDate switches the active date: the old subscription and any pending
// debounced persist are cancelled before the new feed opens, so nothing from
// the previous date can land on the new one.
func (s *Session) SelectDate(ctx context.Context, date domain.DateKey) error {
	if _, err := domain.ParseDateKey(date.String()); err != nil {
		return err
	}

	s.debounce.Cancel()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.date = date
	s.schedule = domain.Merge(s.template, nil)
	s.live = false
	identity := s.identity
	disabled := s.syncDisabled
	s.mu.Unlock()

	// Cancel outside the lock: the old feed may be mid-delivery into
	// applySnapshot, which needs the lock to find out it is stale.
	if unsubscribe != nil {
		unsubscribe()
	}

	s.notify()

	if disabled {
		return nil
	}

	cancel, err := s.channel.Subscribe(ctx, identity, date,
		func(records []domain.ActivityRecord) { s.applySnapshot(gen, records) },
		func(err error) { s.reportError(fmt.Errorf("subscription: %w", err)) },
	)
	if err != nil {
		s.reportError(fmt.Errorf("subscribe %s: %w", date, err))
		return nil
	}

	s.mu.Lock()
	if s.gen == gen {
		s.unsubscribe = cancel
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	// The date changed while subscribing; this feed is already obsolete.
	cancel()
	return nil
}

// applySnapshot merges a remote snapshot into the current schedule. Snapshots
// from a superseded subscription are discarded.
func (s *Session) applySnapshot(gen uint64, records []domain.ActivityRecord) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		observability.RecordStaleSnapshot()
		return
	}
	s.schedule = domain.Merge(s.template, records)
	s.live = true
	s.mu.Unlock()

	observability.RecordSnapshotApplied()
	s.notify()
}

// ToggleActivity flips completion on the given slot and immediately persists
// the whole schedule. The flip stays applied even when the persist fails.
func (s *Session) ToggleActivity(ctx context.Context, index int) error {
	s.debounce.Cancel()

	s.mu.Lock()
	if index < 0 || index >= len(s.schedule) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
	}
	s.schedule[index].IsDone = !s.schedule[index].IsDone
	snapshot := s.schedule.Clone()
	identity := s.identity
	date := s.date
	disabled := s.syncDisabled
	s.mu.Unlock()

	s.notify()

	if disabled {
		return nil
	}
	return s.persist(ctx, identity, date, snapshot)
}

// UpdateComment replaces the reflection text on the given slot and schedules
// a debounced persist. Edits within the quiet window collapse into one write
// carrying the latest schedule.
func (s *Session) UpdateComment(ctx context.Context, index int, text string) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.schedule) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
	}
	s.schedule[index].Comment = text
	gen := s.gen
	disabled := s.syncDisabled
	s.mu.Unlock()

	s.notify()

	if disabled {
		return nil
	}

	if collapsed := s.debounce.Schedule(func() { s.flushDebounced(gen) }); collapsed {
		observability.RecordDebounceCollapse()
	}
	return nil
}

// flushDebounced emits the pending overwrite, unless the session has moved to
// another date since the edit was scheduled.
func (s *Session) flushDebounced(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	snapshot := s.schedule.Clone()
	identity := s.identity
	date := s.date
	ctx := s.baseCtx
	s.mu.Unlock()

	if err := s.persist(ctx, identity, date, snapshot); err != nil {
		s.logger.Printf("debounced persist for %s failed: %v", date, err)
	}
}

// persist emits a full-record overwrite and tracks the saving indicator.
// Failures are reported, never rolled back, and never retried here.
func (s *Session) persist(ctx context.Context, identity domain.Identity, date domain.DateKey, snapshot domain.DailySchedule) error {
	s.setSaving(true)
	err := s.channel.Persist(ctx, identity, date, snapshot)
	s.setSaving(false)

	if err != nil {
		observability.RecordPersistFailure()
		s.reportError(fmt.Errorf("persist %s: %w", date, err))
		return fmt.Errorf("persist %s: %w", date, err)
	}
	return nil
}

func (s *Session) setSaving(saving bool) {
	s.mu.Lock()
	s.saving = saving
	s.mu.Unlock()
	s.notify()
}

// Current returns the present view of the session.
func (s *Session) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Date:         s.date,
		Schedule:     s.schedule.Clone(),
		Live:         s.live,
		Saving:       s.saving,
		SyncDisabled: s.syncDisabled,
	}
}

// Close cancels the live subscription and any pending debounced persist.
func (s *Session) Close() {
	s.debounce.Cancel()

	s.mu.Lock()
	s.gen++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Session) notify() {
	if s.observer == nil {
		return
	}
	s.observer(s.Current())
}

func (s *Session) reportError(err error) {
	s.logger.Printf("%v", err)
	if s.onError != nil {
		s.onError(err)
	}
}
