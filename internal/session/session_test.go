package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/routine/internal/channel"
	"example.com/routine/internal/domain"
)

var sessionTemplate = []domain.ActivityTemplate{
	{TimeLabel: "6:00 AM", Description: "Wake"},
	{TimeLabel: "9:00 AM", Description: "Study"},
	{TimeLabel: "11:00 PM", Description: "Sleep"},
}

const (
	dateA = domain.DateKey("2024-03-01")
	dateB = domain.DateKey("2024-03-02")
)

type persistCall struct {
	identity domain.Identity
	date     domain.DateKey
	schedule domain.DailySchedule
}

type subscription struct {
	date       domain.DateKey
	onSnapshot channel.SnapshotFunc
	onError    channel.ErrorFunc
	cancelled  bool
}

// stubChannel records persists, captures subscription callbacks for manual
// snapshot injection, and delivers the configured initial record synchronously.
type stubChannel struct {
	mu            sync.Mutex
	initial       map[domain.DateKey][]domain.ActivityRecord
	persistErr    error
	subscriptions []*subscription
	persists      []persistCall
}

func newStubChannel() *stubChannel {
	return &stubChannel{initial: make(map[domain.DateKey][]domain.ActivityRecord)}
}

func (c *stubChannel) Subscribe(_ context.Context, _ domain.Identity, date domain.DateKey, onSnapshot channel.SnapshotFunc, onError channel.ErrorFunc) (func(), error) {
	c.mu.Lock()
	sub := &subscription{date: date, onSnapshot: onSnapshot, onError: onError}
	c.subscriptions = append(c.subscriptions, sub)
	records := c.initial[date]
	c.mu.Unlock()

	onSnapshot(records)
	return func() {
		c.mu.Lock()
		sub.cancelled = true
		c.mu.Unlock()
	}, nil
}

func (c *stubChannel) Persist(_ context.Context, identity domain.Identity, date domain.DateKey, schedule domain.DailySchedule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.persistErr != nil {
		return c.persistErr
	}
	c.persists = append(c.persists, persistCall{identity: identity, date: date, schedule: schedule.Clone()})
	return nil
}

func (c *stubChannel) persistCalls() []persistCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]persistCall, len(c.persists))
	copy(out, c.persists)
	return out
}

func (c *stubChannel) subscriptionFor(date domain.DateKey) *subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.subscriptions) - 1; i >= 0; i-- {
		if c.subscriptions[i].date == date {
			return c.subscriptions[i]
		}
	}
	return nil
}

type fixedResolver struct {
	identity domain.Identity
	err      error
}

func (r fixedResolver) Resolve(context.Context) (domain.Identity, error) {
	return r.identity, r.err
}

func newTestSession(t *testing.T, ch channel.Channel, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithDebounceWindow(30 * time.Millisecond)}, opts...)
	s := NewSession(sessionTemplate, ch, fixedResolver{identity: "user-1"}, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestStartMergesInitialSnapshot(t *testing.T) {
	ch := newStubChannel()
	ch.initial[dateA] = []domain.ActivityRecord{{Description: "Study", IsDone: true, Comment: "focused"}}

	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	view := s.Current()
	require.Equal(t, dateA, view.Date)
	require.True(t, view.Live)
	require.False(t, view.SyncDisabled)
	require.Len(t, view.Schedule, len(sessionTemplate))
	require.True(t, view.Schedule[1].IsDone)
	require.Equal(t, "focused", view.Schedule[1].Comment)
	require.False(t, view.Schedule[0].IsDone)
}

func TestStartWithoutRecordYieldsFreshSchedule(t *testing.T) {
	ch := newStubChannel()

	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	view := s.Current()
	require.True(t, view.Live)
	require.Len(t, view.Schedule, len(sessionTemplate))
	for _, record := range view.Schedule {
		require.False(t, record.IsDone)
		require.Empty(t, record.Comment)
	}
}

func TestToggleActivityPersistsWholeScheduleImmediately(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	require.NoError(t, s.ToggleActivity(context.Background(), 1))

	calls := ch.persistCalls()
	require.Len(t, calls, 1)
	require.Equal(t, domain.Identity("user-1"), calls[0].identity)
	require.Equal(t, dateA, calls[0].date)
	require.Len(t, calls[0].schedule, len(sessionTemplate))
	require.True(t, calls[0].schedule[1].IsDone)
	require.False(t, calls[0].schedule[0].IsDone)

	require.NoError(t, s.ToggleActivity(context.Background(), 1))
	calls = ch.persistCalls()
	require.Len(t, calls, 2)
	require.False(t, calls[1].schedule[1].IsDone)
}

func TestToggleActivityIndexOutOfRange(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	require.ErrorIs(t, s.ToggleActivity(context.Background(), len(sessionTemplate)), domain.ErrIndexOutOfRange)
	require.ErrorIs(t, s.ToggleActivity(context.Background(), -1), domain.ErrIndexOutOfRange)
	require.Empty(t, ch.persistCalls())
}

func TestUpdateCommentCollapsesBurstIntoOnePersist(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	require.NoError(t, s.UpdateComment(context.Background(), 0, "g"))
	require.NoError(t, s.UpdateComment(context.Background(), 0, "go"))
	require.NoError(t, s.UpdateComment(context.Background(), 0, "good"))

	require.Empty(t, ch.persistCalls(), "persist must wait for the quiet window")

	require.Eventually(t, func() bool {
		return len(ch.persistCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	calls := ch.persistCalls()
	require.Equal(t, "good", calls[0].schedule[0].Comment)
	require.Equal(t, dateA, calls[0].date)

	// Quiet afterwards: one burst, one write.
	time.Sleep(80 * time.Millisecond)
	require.Len(t, ch.persistCalls(), 1)
}

func TestSelectDateCancelsPendingCommentPersist(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	require.NoError(t, s.UpdateComment(context.Background(), 0, "never lands"))
	require.NoError(t, s.SelectDate(context.Background(), dateB))

	time.Sleep(100 * time.Millisecond)
	for _, call := range ch.persistCalls() {
		require.NotEqual(t, dateA, call.date, "pending edit for the old date must not persist")
	}
	require.Empty(t, ch.persistCalls())

	view := s.Current()
	require.Equal(t, dateB, view.Date)
	require.Empty(t, view.Schedule[0].Comment)
}

func TestToggleCancelsPendingCommentPersist(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	require.NoError(t, s.UpdateComment(context.Background(), 0, "kept in snapshot"))
	require.NoError(t, s.ToggleActivity(context.Background(), 2))

	// The toggle's immediate write already carries the comment; the debounced
	// write is cancelled rather than duplicated.
	time.Sleep(100 * time.Millisecond)
	calls := ch.persistCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "kept in snapshot", calls[0].schedule[0].Comment)
	require.True(t, calls[0].schedule[2].IsDone)
}

func TestSelectDateUnsubscribesOldFeed(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	subA := ch.subscriptionFor(dateA)
	require.NotNil(t, subA)
	require.False(t, subA.cancelled)

	require.NoError(t, s.SelectDate(context.Background(), dateB))

	require.True(t, subA.cancelled)
	subB := ch.subscriptionFor(dateB)
	require.NotNil(t, subB)
	require.False(t, subB.cancelled)
}

func TestStaleSnapshotFromSupersededDateIsDiscarded(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	subA := ch.subscriptionFor(dateA)
	require.NotNil(t, subA)

	require.NoError(t, s.SelectDate(context.Background(), dateB))

	// A late delivery from the old feed arrives after the switch.
	subA.onSnapshot([]domain.ActivityRecord{{Description: "Wake", IsDone: true}})

	view := s.Current()
	require.Equal(t, dateB, view.Date)
	require.False(t, view.Schedule[0].IsDone, "old-date snapshot must not leak into the new date")
}

func TestPersistFailureKeepsOptimisticState(t *testing.T) {
	ch := newStubChannel()
	ch.persistErr = errors.New("store unavailable")

	var reported []error
	var mu sync.Mutex
	s := newTestSession(t, ch, WithErrorObserver(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	require.NoError(t, s.Start(context.Background(), dateA))

	err := s.ToggleActivity(context.Background(), 0)
	require.Error(t, err)

	view := s.Current()
	require.True(t, view.Schedule[0].IsDone, "flip must survive the failed write")
	require.False(t, view.Saving)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
}

func TestIdentityFailureDisablesSyncButKeepsTemplate(t *testing.T) {
	ch := newStubChannel()
	s := NewSession(sessionTemplate, ch, fixedResolver{err: errors.New("exchange rejected")},
		WithDebounceWindow(10*time.Millisecond))
	t.Cleanup(s.Close)

	err := s.Start(context.Background(), dateA)
	require.Error(t, err)

	view := s.Current()
	require.True(t, view.SyncDisabled)
	require.False(t, view.Live)
	require.Len(t, view.Schedule, len(sessionTemplate))

	// Mutations keep working locally and never reach the channel.
	require.NoError(t, s.ToggleActivity(context.Background(), 0))
	require.NoError(t, s.UpdateComment(context.Background(), 1, "offline note"))
	time.Sleep(40 * time.Millisecond)

	require.Empty(t, ch.subscriptions)
	require.Empty(t, ch.persistCalls())

	view = s.Current()
	require.True(t, view.Schedule[0].IsDone)
	require.Equal(t, "offline note", view.Schedule[1].Comment)
}

func TestSelectDateRejectsMalformedDate(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	require.ErrorIs(t, s.SelectDate(context.Background(), "03/01/2024"), domain.ErrInvalidDate)
	require.Equal(t, dateA, s.Current().Date)
}

func TestRemoteSnapshotAfterLocalMutationOverwrites(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	require.NoError(t, s.ToggleActivity(context.Background(), 0))

	// Another device persisted a richer record; last write wins locally too.
	sub := ch.subscriptionFor(dateA)
	require.NotNil(t, sub)
	sub.onSnapshot([]domain.ActivityRecord{
		{Description: "Wake", IsDone: false},
		{Description: "Sleep", IsDone: true, Comment: "from the other device"},
	})

	view := s.Current()
	require.False(t, view.Schedule[0].IsDone)
	require.True(t, view.Schedule[2].IsDone)
	require.Equal(t, "from the other device", view.Schedule[2].Comment)
}

func TestObserverSeesSavingTransitions(t *testing.T) {
	ch := newStubChannel()

	var mu sync.Mutex
	var sawSaving bool
	s := newTestSession(t, ch, WithObserver(func(v View) {
		mu.Lock()
		if v.Saving {
			sawSaving = true
		}
		mu.Unlock()
	}))
	require.NoError(t, s.Start(context.Background(), dateA))
	require.NoError(t, s.ToggleActivity(context.Background(), 0))

	mu.Lock()
	defer mu.Unlock()
	require.True(t, sawSaving)
	require.False(t, s.Current().Saving)
}

func TestCloseCancelsSubscription(t *testing.T) {
	ch := newStubChannel()
	s := newTestSession(t, ch)
	require.NoError(t, s.Start(context.Background(), dateA))

	s.Close()

	sub := ch.subscriptionFor(dateA)
	require.NotNil(t, sub)
	require.True(t, sub.cancelled)
}
