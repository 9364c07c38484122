package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/routine/internal/domain"
)

const (
	testIdentity = domain.Identity("user-1")
	testDate     = domain.DateKey("2024-03-01")
)

type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots [][]domain.ActivityRecord
}

func (r *snapshotRecorder) record(records []domain.ActivityRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, records)
}

func (r *snapshotRecorder) all() [][]domain.ActivityRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]domain.ActivityRecord, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}

func TestSubscribeDeliversAbsenceImmediately(t *testing.T) {
	store := NewStore()
	rec := &snapshotRecorder{}

	cancel, err := store.Subscribe(context.Background(), testIdentity, testDate, rec.record, nil)
	require.NoError(t, err)
	defer cancel()

	snapshots := rec.all()
	require.Len(t, snapshots, 1)
	require.Nil(t, snapshots[0])
}

func TestSubscribeDeliversExistingRecordImmediately(t *testing.T) {
	store := NewStore()
	existing := domain.DailySchedule{{Description: "Wake", IsDone: true}}
	require.NoError(t, store.Persist(context.Background(), testIdentity, testDate, existing))

	rec := &snapshotRecorder{}
	cancel, err := store.Subscribe(context.Background(), testIdentity, testDate, rec.record, nil)
	require.NoError(t, err)
	defer cancel()

	snapshots := rec.all()
	require.Len(t, snapshots, 1)
	require.Equal(t, []domain.ActivityRecord(existing), snapshots[0])
}

func TestPersistNotifiesActiveSubscribers(t *testing.T) {
	store := NewStore()
	rec := &snapshotRecorder{}

	cancel, err := store.Subscribe(context.Background(), testIdentity, testDate, rec.record, nil)
	require.NoError(t, err)
	defer cancel()

	update := domain.DailySchedule{{Description: "Study", Comment: "done early"}}
	require.NoError(t, store.Persist(context.Background(), testIdentity, testDate, update))

	snapshots := rec.all()
	require.Len(t, snapshots, 2)
	require.Equal(t, []domain.ActivityRecord(update), snapshots[1])
}

func TestPersistDoesNotCrossIdentityOrDate(t *testing.T) {
	store := NewStore()
	rec := &snapshotRecorder{}

	cancel, err := store.Subscribe(context.Background(), testIdentity, testDate, rec.record, nil)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.Persist(context.Background(), "other-user", testDate, domain.DailySchedule{{Description: "A"}}))
	require.NoError(t, store.Persist(context.Background(), testIdentity, "2024-03-02", domain.DailySchedule{{Description: "B"}}))

	require.Len(t, rec.all(), 1, "only the initial delivery expected")
}

func TestCancelStopsDeliveries(t *testing.T) {
	store := NewStore()
	rec := &snapshotRecorder{}

	cancel, err := store.Subscribe(context.Background(), testIdentity, testDate, rec.record, nil)
	require.NoError(t, err)
	cancel()
	cancel() // idempotent

	require.NoError(t, store.Persist(context.Background(), testIdentity, testDate, domain.DailySchedule{{Description: "Wake"}}))
	require.Len(t, rec.all(), 1)
}

func TestPersistOverwritesWholeRecord(t *testing.T) {
	store := NewStore()

	first := domain.DailySchedule{
		{Description: "Wake", IsDone: true},
		{Description: "Sleep", Comment: "late"},
	}
	require.NoError(t, store.Persist(context.Background(), testIdentity, testDate, first))

	second := domain.DailySchedule{{Description: "Wake"}}
	require.NoError(t, store.Persist(context.Background(), testIdentity, testDate, second))

	got, ok := store.Get(testIdentity, testDate)
	require.True(t, ok)
	require.Equal(t, []domain.ActivityRecord(second), got)
}

func TestEmptyIdentityRejected(t *testing.T) {
	store := NewStore()

	_, err := store.Subscribe(context.Background(), "", testDate, func([]domain.ActivityRecord) {}, nil)
	require.ErrorIs(t, err, domain.ErrNoIdentity)

	err = store.Persist(context.Background(), "", testDate, nil)
	require.ErrorIs(t, err, domain.ErrNoIdentity)
}

func TestStoredRecordIsIsolatedFromCallerSlice(t *testing.T) {
	store := NewStore()

	schedule := domain.DailySchedule{{Description: "Wake"}}
	require.NoError(t, store.Persist(context.Background(), testIdentity, testDate, schedule))

	schedule[0].IsDone = true

	got, ok := store.Get(testIdentity, testDate)
	require.True(t, ok)
	require.False(t, got[0].IsDone)
}

func TestWatcherDropsDeliveriesOlderThanLast(t *testing.T) {
	var got []string
	w := &watcher{fn: func(records []domain.ActivityRecord) {
		got = append(got, records[0].Comment)
	}}

	w.deliver(2, []domain.ActivityRecord{{Description: "Wake", Comment: "newer"}})
	w.deliver(1, []domain.ActivityRecord{{Description: "Wake", Comment: "older"}})

	require.Equal(t, []string{"newer"}, got)
}

func TestConcurrentOverwritesConvergeOnStoredRecord(t *testing.T) {
	store := NewStore()
	rec := &snapshotRecorder{}

	cancel, err := store.Subscribe(context.Background(), testIdentity, testDate, rec.record, nil)
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				_ = store.Persist(context.Background(), testIdentity, testDate,
					domain.DailySchedule{{Description: "Wake", Comment: fmt.Sprintf("writer-%d", j)}})
			}(j)
		}
		wg.Wait()

		stored, ok := store.Get(testIdentity, testDate)
		require.True(t, ok)
		snapshots := rec.all()
		require.NotEmpty(t, snapshots)
		require.Equal(t, stored, snapshots[len(snapshots)-1],
			"the last delivered snapshot must match the stored record")
	}
}

func TestRecordStoreRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	records, err := store.GetRecord(ctx, testIdentity, testDate)
	require.NoError(t, err)
	require.Nil(t, records)

	schedule := domain.DailySchedule{{Description: "Study", IsDone: true}}
	require.NoError(t, store.PutRecord(ctx, testIdentity, testDate, schedule))

	records, err = store.GetRecord(ctx, testIdentity, testDate)
	require.NoError(t, err)
	require.Equal(t, []domain.ActivityRecord(schedule), records)
}
