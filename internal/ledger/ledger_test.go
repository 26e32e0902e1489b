package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/worklog/internal/audit"
	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/events"
	"github.com/fentz26/worklog/internal/models"
	"github.com/fentz26/worklog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ledger *Ledger
	store  *store.Store
	clock  *clock.Fake
	bus    *events.Bus
	seen   []events.Event
	dbPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{store: st, clock: clock.NewFake(t0), bus: events.NewBus(), dbPath: dbPath}
	f.bus.Subscribe(func(e events.Event) { f.seen = append(f.seen, e) })
	f.ledger = New(st, Options{Clock: f.clock, Events: f.bus})
	return f
}

func user(id string) models.Identity  { return models.Identity{UserID: id, Role: models.RoleUser} }
func admin(id string) models.Identity { return models.Identity{UserID: id, Role: models.RoleAdmin} }

func activeCount(t *testing.T, f *fixture, userID string) int {
	t.Helper()
	entries, err := f.ledger.List(context.Background(), userID, time.Time{}, time.Time{})
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.IsActive {
			n++
		}
	}
	return n
}

func TestStartTimer_OpensActiveEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "write report"})
	require.NoError(t, err)

	assert.True(t, entry.IsActive)
	assert.Nil(t, entry.EndTime)
	assert.Equal(t, t0, entry.StartTime)
	assert.Equal(t, models.ApprovalPending, entry.ApprovalStatus)

	active, err := f.ledger.ActiveTimer(ctx, "u")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, entry.ID, active.ID)
}

func TestStartTimer_AutoClosesPreviousTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "first"})
	require.NoError(t, err)

	f.clock.Advance(25*time.Minute + 900*time.Millisecond)
	second, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "second"})
	require.NoError(t, err)

	closed, err := f.ledger.Get(ctx, first.ID, user("u"))
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	require.NotNil(t, closed.EndTime)
	assert.Equal(t, second.StartTime, *closed.EndTime)
	assert.Equal(t, int64(25*60), closed.Duration)

	assert.Equal(t, 1, activeCount(t, f, "u"))

	var kinds []events.Kind
	for _, e := range f.seen {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []events.Kind{events.TimerStarted, events.TimerStopped, events.TimerStarted}, kinds)
	assert.Equal(t, "true", f.seen[1].Attrs["auto_stopped"])
}

func TestStartTimer_RejectsBlankDescription(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.StartTimer(context.Background(), StartParams{UserID: "u", Description: "   "})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, 0, activeCount(t, f, "u"))
}

func TestStartTimer_UnknownTask(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.StartTimer(context.Background(), StartParams{UserID: "u", TaskID: "nope", Description: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStartTimer_InheritsTaskProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := &models.Task{ID: "t1", Title: "t", Status: models.TaskStatusPending, Priority: models.PriorityLow,
		OwnerID: "u", ProjectID: "acme", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, f.store.InsertTask(ctx, task))

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", TaskID: "t1", Description: "x"})
	require.NoError(t, err)
	assert.Equal(t, "acme", entry.ProjectID)
}

func TestStartTimer_ConcurrentStartsKeepOneActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "race"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("StartTimer failed: %v", err)
	}

	assert.Equal(t, 1, activeCount(t, f, "u"))
	assert.Zero(t, f.ledger.userLocks.size())
}

func TestStartTimer_UsersAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.StartTimer(ctx, StartParams{UserID: "a", Description: "x"})
	require.NoError(t, err)
	_, err = f.ledger.StartTimer(ctx, StartParams{UserID: "b", Description: "y"})
	require.NoError(t, err)

	assert.Equal(t, 1, activeCount(t, f, "a"))
	assert.Equal(t, 1, activeCount(t, f, "b"))
}

func TestStopTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "x"})
	require.NoError(t, err)

	t.Run("not found", func(t *testing.T) {
		_, err := f.ledger.StopTimer(ctx, "missing", user("u"))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("other user forbidden", func(t *testing.T) {
		_, err := f.ledger.StopTimer(ctx, entry.ID, user("intruder"))
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("owner stops", func(t *testing.T) {
		f.clock.Advance(90*time.Second + 999*time.Millisecond)
		stopped, err := f.ledger.StopTimer(ctx, entry.ID, user("u"))
		require.NoError(t, err)
		assert.False(t, stopped.IsActive)
		require.NotNil(t, stopped.EndTime)
		assert.Equal(t, int64(90), stopped.Duration)
		assert.Equal(t, durationSeconds(stopped.StartTime, *stopped.EndTime), stopped.Duration)
	})

	t.Run("already stopped", func(t *testing.T) {
		_, err := f.ledger.StopTimer(ctx, entry.ID, user("u"))
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})
}

func TestStopTimer_AdminBypassesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "x"})
	require.NoError(t, err)

	_, err = f.ledger.StopTimer(ctx, entry.ID, admin("boss"))
	require.NoError(t, err)
}

func TestEditEntry_AppendsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "draft"})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	closed, err := f.ledger.StopTimer(ctx, entry.ID, user("u"))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	desc := "final"
	newStart := t0.Add(-30 * time.Minute)
	edited, err := f.ledger.EditEntry(ctx, entry.ID, user("u"), EntryChanges{Description: &desc, StartTime: &newStart})
	require.NoError(t, err)

	require.Len(t, edited.EditHistory, 1)
	rec := edited.EditHistory[0]
	assert.Equal(t, closed.StartTime, rec.StartTime)
	require.NotNil(t, rec.EndTime)
	assert.Equal(t, *closed.EndTime, *rec.EndTime)
	assert.Equal(t, closed.Duration, rec.Duration)
	assert.Equal(t, "draft", rec.Description)
	assert.Equal(t, "u", rec.EditorID)

	assert.Equal(t, "final", edited.Description)
	assert.Equal(t, int64(90*60), edited.Duration)
	assert.True(t, edited.IsManualEntry)

	// Each further edit grows the history by exactly one.
	for i := 0; i < 3; i++ {
		before, err := f.ledger.Get(ctx, entry.ID, user("u"))
		require.NoError(t, err)
		inv := i%2 == 0
		after, err := f.ledger.EditEntry(ctx, entry.ID, admin("boss"), EntryChanges{Invoiceable: &inv})
		require.NoError(t, err)
		require.Len(t, after.EditHistory, len(before.EditHistory)+1)
		last := after.EditHistory[len(after.EditHistory)-1]
		assert.Equal(t, before.Description, last.Description)
		assert.Equal(t, before.Duration, last.Duration)
		assert.Equal(t, "boss", last.EditorID)
		assert.Equal(t, before.EditHistory, after.EditHistory[:len(before.EditHistory)])
	}

	require.NoError(t, f.ledger.VerifyHistory(ctx, entry.ID))
}

func TestEditEntry_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "x"})
	require.NoError(t, err)

	_, err = f.ledger.EditEntry(ctx, "missing", user("u"), EntryChanges{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.ledger.EditEntry(ctx, entry.ID, user("other"), EntryChanges{})
	assert.ErrorIs(t, err, models.ErrForbidden)

	early := t0.Add(-time.Hour)
	_, err = f.ledger.EditEntry(ctx, entry.ID, user("u"), EntryChanges{EndTime: &early})
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err := f.ledger.Get(ctx, entry.ID, user("u"))
	require.NoError(t, err)
	assert.Empty(t, got.EditHistory)
	assert.True(t, got.IsActive)
}

func TestEditEntry_EndTimeClosesRunningEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "x"})
	require.NoError(t, err)

	end := t0.Add(45 * time.Minute)
	edited, err := f.ledger.EditEntry(ctx, entry.ID, user("u"), EntryChanges{EndTime: &end})
	require.NoError(t, err)
	assert.False(t, edited.IsActive)
	assert.Equal(t, int64(45*60), edited.Duration)
	assert.Nil(t, edited.EditHistory[0].EndTime)
	assert.Equal(t, 0, activeCount(t, f, "u"))
}

func TestVerifyHistory_DetectsTampering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.CreateManualEntry(ctx, ManualParams{
		UserID: "u", Description: "billable", StartTime: t0, EndTime: t0.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	for _, d := range []string{"one", "two"} {
		d := d
		_, err := f.ledger.EditEntry(ctx, entry.ID, user("u"), EntryChanges{Description: &d})
		require.NoError(t, err)
	}
	require.NoError(t, f.ledger.VerifyHistory(ctx, entry.ID))

	// Rewrite a snapshot out of band.
	raw, err := sql.Open("sqlite", f.dbPath)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`DROP TRIGGER time_log_edits_append_only`)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE time_log_edits SET duration = 1 WHERE time_log_id = ? AND seq = 1`, entry.ID)
	require.NoError(t, err)

	err = f.ledger.VerifyHistory(ctx, entry.ID)
	var chainErr *audit.ChainError
	require.True(t, errors.As(err, &chainErr))
	assert.Equal(t, 1, chainErr.Seq)
}

func TestDeleteEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "x"})
	require.NoError(t, err)

	_, err = f.ledger.DeleteEntry(ctx, entry.ID, user("other"))
	assert.ErrorIs(t, err, models.ErrForbidden)

	ok, err := f.ledger.DeleteEntry(ctx, entry.ID, user("u"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.ledger.DeleteEntry(ctx, entry.ID, user("u"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateManualEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.CreateManualEntry(ctx, ManualParams{
		UserID: "u", Description: "backfill", StartTime: t0, EndTime: t0.Add(10*time.Minute + 500*time.Millisecond),
	})
	require.NoError(t, err)
	assert.True(t, entry.IsManualEntry)
	assert.False(t, entry.IsActive)
	assert.Equal(t, int64(600), entry.Duration)

	_, err = f.ledger.CreateManualEntry(ctx, ManualParams{
		UserID: "u", Description: "backwards", StartTime: t0, EndTime: t0.Add(-time.Second),
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	running, err := f.ledger.StartTimer(ctx, StartParams{UserID: "u", Description: "x"})
	require.NoError(t, err)

	_, err = f.ledger.Approve(ctx, running.ID, user("u"))
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.ledger.Approve(ctx, running.ID, admin("boss"))
	assert.ErrorIs(t, err, models.ErrInvalidState)

	f.clock.Advance(time.Hour)
	_, err = f.ledger.StopTimer(ctx, running.ID, user("u"))
	require.NoError(t, err)

	approved, err := f.ledger.Approve(ctx, running.ID, admin("boss"))
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)

	desc := "corrected"
	edited, err := f.ledger.EditEntry(ctx, running.ID, user("u"), EntryChanges{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, edited.ApprovalStatus)
}

func TestDurationSeconds_Floors(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{999 * time.Millisecond, 0},
		{time.Second, 1},
		{61*time.Second + 1, 61},
		{-500 * time.Millisecond, -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, durationSeconds(t0, t0.Add(tc.d)), "d=%s", tc.d)
	}
}
