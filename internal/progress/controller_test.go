package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goaltracker/internal/goals"
)

// updateCall is one UpdateGoal request held until the test answers it.
type updateCall struct {
	id    int64
	patch goals.Patch
	key   string
	reply chan updateResult
}

type updateResult struct {
	goal goals.Goal
	err  error
}

type fakeService struct {
	calls chan *updateCall

	mu        sync.Mutex
	goal      goals.Goal
	getErr    error
	deleteErr error
	deletes   int
}

func newFakeService(goal goals.Goal) *fakeService {
	return &fakeService{calls: make(chan *updateCall, 64), goal: goal}
}

func (f *fakeService) GetGoal(ctx context.Context, id int64) (goals.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return goals.Goal{}, f.getErr
	}
	return f.goal, nil
}

func (f *fakeService) UpdateGoal(ctx context.Context, id int64, patch goals.Patch) (goals.Goal, error) {
	key, _ := goals.IdempotencyKey(ctx)
	call := &updateCall{id: id, patch: patch, key: key, reply: make(chan updateResult, 1)}
	select {
	case f.calls <- call:
	case <-ctx.Done():
		return goals.Goal{}, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.goal, r.err
	case <-ctx.Done():
		return goals.Goal{}, ctx.Err()
	}
}

func (f *fakeService) DeleteGoal(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return f.deleteErr
}

func (f *fakeService) next(t *testing.T) *updateCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no update request dispatched")
		return nil
	}
}

func (f *fakeService) noPendingCalls(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected update request %+v", c.patch)
	case <-time.After(20 * time.Millisecond):
	}
}

// succeed answers the way the server does: canonicalise the patch.
func (c *updateCall) succeed(t *testing.T, base goals.Goal) {
	t.Helper()
	pair, err := goals.ApplyPatch(base.Pair(), c.patch)
	require.NoError(t, err)
	c.reply <- updateResult{goal: base.WithPair(pair)}
}

func (c *updateCall) fail(err error) {
	c.reply <- updateResult{err: err}
}

func (c *updateCall) pair() goals.Pair {
	return goals.Pair{Status: *c.patch.Status, Progress: *c.patch.Progress}
}

func nextEvent(t *testing.T, c *Controller) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func noEvent(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if ok {
			t.Fatalf("unexpected event %s", ev.Kind)
		}
	case <-time.After(20 * time.Millisecond):
	}
}

func testGoal(status goals.Status, progress int) goals.Goal {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return goals.Goal{
		ID:        7,
		Title:     "Ship the release",
		Status:    status,
		Progress:  progress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestController_OptimisticConsistency(t *testing.T) {
	svc := newFakeService(testGoal(goals.StatusNotStarted, 0))
	c := New(svc, svc.goal)
	defer c.Unmount()

	for p := -5; p <= 105; p++ {
		c.SubmitProgress(p)
		got := c.CurrentValue()
		assert.True(t, got.Valid(), "after SubmitProgress(%d): %s", p, got)
		assert.Equal(t, goals.ClampProgress(p), got.Progress)
	}
	for _, s := range goals.Statuses {
		require.NoError(t, c.SubmitStatus(s))
		got := c.CurrentValue()
		assert.True(t, got.Valid(), "after SubmitStatus(%s): %s", s, got)
		assert.Equal(t, s, got.Status)
	}
	assert.Equal(t, Pending, c.State())
}

func TestController_StatusSnapsImmediately(t *testing.T) {
	svc := newFakeService(testGoal(goals.StatusInProgress, 65))
	c := New(svc, svc.goal)
	defer c.Unmount()

	require.NoError(t, c.SubmitStatus(goals.StatusNotStarted))
	assert.Equal(t, goals.Pair{Status: goals.StatusNotStarted, Progress: 0}, c.CurrentValue())

	call := svc.next(t)
	assert.Equal(t, goals.Pair{Status: goals.StatusNotStarted, Progress: 0}, call.pair())
	assert.Equal(t, int64(7), call.id)
}

func TestController_SupersedingIntent(t *testing.T) {
	want := goals.Pair{Status: goals.StatusCompleted, Progress: 100}

	for _, order := range []string{"older first", "newer first"} {
		t.Run(order, func(t *testing.T) {
			base := testGoal(goals.StatusNotStarted, 0)
			svc := newFakeService(base)
			c := New(svc, base)
			defer c.Unmount()

			c.SubmitProgress(30)
			first := svc.next(t)
			require.NoError(t, c.SubmitStatus(goals.StatusCompleted))
			second := svc.next(t)
			assert.Equal(t, want, c.CurrentValue())

			if order == "older first" {
				first.succeed(t, base)
				second.succeed(t, base)
			} else {
				second.succeed(t, base)
				ev := nextEvent(t, c)
				assert.Equal(t, EventConfirmed, ev.Kind)
				first.succeed(t, base)
			}
			c.Wait()

			assert.Equal(t, want, c.CurrentValue())
			assert.Equal(t, Idle, c.State())
		})
	}
}

func TestController_StaleResponseNeverOverwrites(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 10)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(30)
	older := svc.next(t)
	c.SubmitProgress(80)
	newer := svc.next(t)

	newer.succeed(t, base)
	assert.Equal(t, EventConfirmed, nextEvent(t, c).Kind)

	older.succeed(t, base)
	c.Wait()

	noEvent(t, c)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 80}, c.CurrentValue())
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 80}, c.Confirmed())
}

func TestController_StaleFailureDoesNotRevert(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 10)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(30)
	older := svc.next(t)
	c.SubmitProgress(90)
	newer := svc.next(t)

	older.fail(goals.ErrNetwork)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 90}, c.CurrentValue())

	newer.succeed(t, base)
	c.Wait()

	assert.Equal(t, EventConfirmed, nextEvent(t, c).Kind)
	noEvent(t, c)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 90}, c.CurrentValue())
	assert.Equal(t, Idle, c.State())
}

func TestController_FailureReverts(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 40)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(70)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 70}, c.CurrentValue())

	svc.next(t).fail(goals.ErrNetwork)

	ev := nextEvent(t, c)
	assert.Equal(t, EventUpdateFailed, ev.Kind)
	assert.ErrorIs(t, ev.Err, goals.ErrNetwork)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 40}, ev.Pair)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 40}, c.CurrentValue())
	assert.Equal(t, Idle, c.State())

	// no automatic retry
	svc.noPendingCalls(t)
	noEvent(t, c)
}

func TestController_RevertsToLatestConfirmed(t *testing.T) {
	base := testGoal(goals.StatusNotStarted, 0)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(25)
	svc.next(t).succeed(t, base)
	assert.Equal(t, EventConfirmed, nextEvent(t, c).Kind)

	require.NoError(t, c.SubmitStatus(goals.StatusCompleted))
	svc.next(t).fail(goals.ErrValidation)

	ev := nextEvent(t, c)
	assert.Equal(t, EventUpdateFailed, ev.Kind)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 25}, c.CurrentValue())
}

func TestController_ServerIsAuthoritative(t *testing.T) {
	base := testGoal(goals.StatusNotStarted, 0)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	require.NoError(t, c.SubmitStatus(goals.StatusInProgress))
	call := svc.next(t)
	updated := base.WithPair(goals.Pair{Status: goals.StatusInProgress, Progress: 55})
	updated.UpdatedAt = base.UpdatedAt.Add(time.Minute)
	call.reply <- updateResult{goal: updated}

	ev := nextEvent(t, c)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 55}, ev.Pair)
	assert.Equal(t, updated, c.Goal())
}

func TestController_InconsistentServerPairIsNormalised(t *testing.T) {
	base := testGoal(goals.StatusNotStarted, 0)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(100)
	svc.next(t).reply <- updateResult{goal: base.WithPair(goals.Pair{Status: goals.StatusInProgress, Progress: 100})}

	nextEvent(t, c)
	assert.Equal(t, goals.Pair{Status: goals.StatusCompleted, Progress: 100}, c.CurrentValue())
}

func TestController_RepeatedValueIsNotResent(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 40)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(40)
	require.NoError(t, c.SubmitStatus(goals.StatusInProgress), "snaps to 50")
	svc.next(t)
	c.SubmitProgress(50)
	svc.noPendingCalls(t)
}

func TestController_PreserveProgress(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 65)
	svc := newFakeService(base)
	c := New(svc, base, WithPreserveProgress(true))
	defer c.Unmount()

	require.NoError(t, c.SubmitStatus(goals.StatusInProgress))
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 65}, c.CurrentValue())
	svc.noPendingCalls(t)

	require.NoError(t, c.SubmitStatus(goals.StatusCompleted))
	assert.Equal(t, goals.Pair{Status: goals.StatusCompleted, Progress: 100}, c.CurrentValue())
}

func TestController_InvalidStatus(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 40)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	err := c.SubmitStatus("paused")
	assert.ErrorIs(t, err, goals.ErrValidation)
	assert.Equal(t, base.Pair(), c.CurrentValue())
	svc.noPendingCalls(t)
}

func TestController_Timeout(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 40)
	svc := newFakeService(base)
	c := New(svc, base, WithRequestTimeout(20*time.Millisecond))
	defer c.Unmount()

	c.SubmitProgress(70)
	svc.next(t) // never answered

	ev := nextEvent(t, c)
	assert.Equal(t, EventUpdateFailed, ev.Kind)
	assert.ErrorIs(t, ev.Err, context.DeadlineExceeded)
	assert.Equal(t, base.Pair(), c.CurrentValue())
}

func TestController_UnmountIgnoresInFlight(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 40)
	svc := newFakeService(base)
	c := New(svc, base)

	c.SubmitProgress(70)
	call := svc.next(t)
	c.Unmount()
	call.fail(goals.ErrNetwork)
	c.Wait()

	_, ok := <-c.Events()
	assert.False(t, ok, "events closed on unmount")

	c.SubmitProgress(10)
	svc.noPendingCalls(t)
	assert.ErrorIs(t, c.ConfirmDelete(context.Background()), ErrUnmounted)
}

func TestController_DeleteSuccess(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 40)
	svc := newFakeService(base)
	c := New(svc, base)

	require.NoError(t, c.ConfirmDelete(context.Background()))

	var navigations int
	for ev := range c.Events() {
		if ev.Kind == EventNavigateBack {
			navigations++
		}
	}
	assert.Equal(t, 1, navigations)
	assert.Equal(t, 1, svc.deletes)
	assert.ErrorIs(t, c.ConfirmDelete(context.Background()), ErrUnmounted)
}

func TestController_DeleteFailure(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 40)
	svc := newFakeService(base)
	svc.deleteErr = goals.ErrNetwork
	c := New(svc, base)
	defer c.Unmount()

	err := c.ConfirmDelete(context.Background())
	require.ErrorIs(t, err, goals.ErrNetwork)

	ev := nextEvent(t, c)
	assert.Equal(t, EventDeleteFailed, ev.Kind)
	noEvent(t, c)

	// screen stays usable
	c.SubmitProgress(60)
	assert.Equal(t, 60, svc.next(t).pair().Progress)
}

func TestLoad(t *testing.T) {
	base := testGoal(goals.StatusCompleted, 100)
	svc := newFakeService(base)

	c, err := Load(context.Background(), svc, base.ID)
	require.NoError(t, err)
	defer c.Unmount()
	assert.Equal(t, base, c.Goal())
	assert.Equal(t, Idle, c.State())

	svc.getErr = goals.ErrNotFound
	_, err = Load(context.Background(), svc, 99)
	assert.True(t, errors.Is(err, goals.ErrNotFound))
}

func TestNew_NormalisesInconsistentGoal(t *testing.T) {
	base := testGoal(goals.StatusCompleted, 40)
	c := New(newFakeService(base), base)
	defer c.Unmount()
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 40}, c.CurrentValue())
}

func TestController_LateSuccessAfterRevert(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 10)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(30)
	older := svc.next(t)
	c.SubmitProgress(60)
	newer := svc.next(t)

	newer.fail(goals.ErrNetwork)
	ev := nextEvent(t, c)
	assert.Equal(t, EventUpdateFailed, ev.Kind)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 10}, c.CurrentValue())

	// the server now holds 30, so the display follows it
	older.succeed(t, base)
	c.Wait()

	ev = nextEvent(t, c)
	assert.Equal(t, EventConfirmed, ev.Kind)
	held := goals.Pair{Status: goals.StatusInProgress, Progress: 30}
	assert.Equal(t, held, ev.Pair)
	assert.Equal(t, held, c.CurrentValue())
	assert.Equal(t, held, c.Confirmed())
	assert.Equal(t, Idle, c.State())

	// moving back to 10 is a real change and must reach the server
	c.SubmitProgress(10)
	call := svc.next(t)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 10}, call.pair())
	call.succeed(t, base)
	c.Wait()
	assert.Equal(t, EventConfirmed, nextEvent(t, c).Kind)
}

func TestController_LateSuccessWhileNewerPending(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 10)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(30)
	older := svc.next(t)
	c.SubmitProgress(60)
	newer := svc.next(t)

	older.succeed(t, base)
	require.Eventually(t, func() bool {
		return c.Confirmed() == goals.Pair{Status: goals.StatusInProgress, Progress: 30}
	}, 2*time.Second, time.Millisecond)
	noEvent(t, c)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 60}, c.CurrentValue())
	assert.Equal(t, Pending, c.State())

	newer.fail(goals.ErrNetwork)
	c.Wait()

	ev := nextEvent(t, c)
	assert.Equal(t, EventUpdateFailed, ev.Kind)
	assert.Equal(t, goals.Pair{Status: goals.StatusInProgress, Progress: 30}, c.CurrentValue())
}

func TestController_EventsAreNeverDropped(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 10)
	svc := newFakeService(base)
	c := New(svc, base, WithEventBuffer(1))

	// nobody reads while failures pile up
	const failures = 5
	for i := 0; i < failures; i++ {
		c.SubmitProgress(20 + i)
		svc.next(t).fail(goals.ErrNetwork)
		c.Wait()
	}
	require.NoError(t, c.ConfirmDelete(context.Background()))

	var kinds []EventKind
	for ev := range c.Events() {
		kinds = append(kinds, ev.Kind)
	}
	require.Len(t, kinds, failures+1)
	for _, k := range kinds[:failures] {
		assert.Equal(t, EventUpdateFailed, k)
	}
	assert.Equal(t, EventNavigateBack, kinds[failures])
}

func TestController_IdempotencyKeyPerIntent(t *testing.T) {
	base := testGoal(goals.StatusInProgress, 10)
	svc := newFakeService(base)
	c := New(svc, base)
	defer c.Unmount()

	c.SubmitProgress(30)
	first := svc.next(t)
	c.SubmitProgress(40)
	second := svc.next(t)

	assert.NotEmpty(t, first.key)
	assert.NotEmpty(t, second.key)
	assert.NotEqual(t, first.key, second.key)

	first.succeed(t, base)
	second.succeed(t, base)
	c.Wait()
}
