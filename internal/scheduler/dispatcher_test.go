package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/srt-reserver/internal/application/usecases"
	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/example/srt-reserver/internal/poller"
	"github.com/example/srt-reserver/internal/runs"
	"github.com/example/srt-reserver/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	created   []runs.Run
	refreshes map[string][]int
	finished  map[string]reservation.Outcome
	createErr error
}

func newMemStore() *memStore {
	return &memStore{refreshes: map[string][]int{}, finished: map[string]reservation.Outcome{}}
}

func (m *memStore) Create(_ context.Context, run runs.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, run)
	return nil
}

func (m *memStore) RecordRefresh(_ context.Context, id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes[id] = append(m.refreshes[id], n)
	return nil
}

func (m *memStore) Finish(_ context.Context, id string, o reservation.Outcome, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[id] = o
	return nil
}

type countingMetrics struct {
	mu       sync.Mutex
	started  int
	outcomes []reservation.OutcomeKind
}

func (c *countingMetrics) RunStarted() {
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
}

func (c *countingMetrics) RunFinished(o reservation.Outcome, _ time.Duration) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o.Kind)
	c.mu.Unlock()
}

var creds = reservation.Credentials{ID: "member", Password: "pw"}

func sampleTrip(t *testing.T) trip.Request {
	t.Helper()
	req, err := trip.New(trip.Params{Departure: "동탄", Arrival: "동대구", Date: "20250917", Hour: "08", WindowStart: 1, WindowEnd: 2})
	require.NoError(t, err)
	return req
}

// bookingSurfaces hands out a fresh surface per run that books train 1 after
// two sold-out rounds.
func bookingSurfaces() reservation.SurfaceOpener {
	return reservation.SurfaceOpenerFunc(func(context.Context) (reservation.BookingSurface, error) {
		open := testutil.SoldOut(2).With(1, reservation.SeatAvailableMarker, "")
		open.Book = map[int]bool{1: true}
		return &testutil.Surface{AuthOK: true, Rounds: []testutil.Round{testutil.SoldOut(2), testutil.SoldOut(2), open}}, nil
	})
}

// blockingSleep parks the poller until the run is canceled.
func blockingSleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func newDispatcher(sleep poller.SleepFunc) (*Dispatcher, chan Report) {
	reports := make(chan Report, 4)
	ids := 0
	var mu sync.Mutex
	return &Dispatcher{
		Session: usecases.ReservationSession{
			Surfaces: bookingSurfaces(),
			Policy:   poller.DefaultPolicy(),
			Sleep:    sleep,
		},
		OnDone: func(r Report) { reports <- r },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return []string{"", "run-a", "run-b", "run-c", "run-d"}[ids]
		},
	}, reports
}

func TestDispatcher_RunsToCompletion(t *testing.T) {
	d, reports := newDispatcher(testutil.NoSleep)
	store := newMemStore()
	m := &countingMetrics{}
	d.Store = store
	d.Metrics = m

	id, err := d.Submit(context.Background(), sampleTrip(t), creds, StartedBy("alice"))
	require.NoError(t, err)
	assert.Equal(t, RunID("run-a"), id)

	rep := <-reports
	d.Wait()

	require.NoError(t, rep.Err)
	assert.Equal(t, id, rep.ID)
	assert.Equal(t, "alice", rep.StartedBy)
	assert.Equal(t, reservation.Outcome{Kind: reservation.OutcomeBooked, Position: 1}, rep.Outcome())
	assert.Equal(t, 2, rep.Result.RefreshCount)

	require.Len(t, store.created, 1)
	assert.Equal(t, "alice", store.created[0].StartedBy)
	assert.Equal(t, []int{1, 2}, store.refreshes["run-a"])
	assert.Equal(t, reservation.OutcomeBooked, store.finished["run-a"].Kind)
	assert.Equal(t, 1, m.started)
	assert.Equal(t, []reservation.OutcomeKind{reservation.OutcomeBooked}, m.outcomes)
	assert.Empty(t, d.Active())
}

func TestDispatcher_DuplicateRunRejectedUntilCanceled(t *testing.T) {
	d, reports := newDispatcher(blockingSleep)
	d.Guard = &MemoryGuard{}
	ctx := context.Background()

	id, err := d.Submit(ctx, sampleTrip(t), creds)
	require.NoError(t, err)

	_, err = d.Submit(ctx, sampleTrip(t), creds)
	assert.ErrorIs(t, err, ErrDuplicateRun)

	other := creds
	other.ID = "someone-else"
	otherID, err := d.Submit(ctx, sampleTrip(t), other)
	require.NoError(t, err, "another account may chase the same train")

	active := d.Active()
	require.Len(t, active, 2)
	assert.Equal(t, id, active[0].ID)

	require.NoError(t, d.Cancel(id))
	rep := <-reports
	assert.Equal(t, id, rep.ID)
	assert.Equal(t, reservation.Outcome{Kind: reservation.OutcomeFailed, Reason: "canceled"}, rep.Outcome())

	_, err = d.Submit(ctx, sampleTrip(t), creds)
	require.NoError(t, err, "guard released once the run ended")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(shutdownCtx))
	assert.Empty(t, d.Active())
	assert.ErrorIs(t, d.Cancel(otherID), ErrUnknownRun)
}

func TestDispatcher_StoreFailureReleasesGuard(t *testing.T) {
	d, _ := newDispatcher(testutil.NoSleep)
	d.Guard = &MemoryGuard{}
	store := newMemStore()
	store.createErr = errors.New("db down")
	d.Store = store

	_, err := d.Submit(context.Background(), sampleTrip(t), creds)
	require.ErrorContains(t, err, "db down")

	store.createErr = nil
	_, err = d.Submit(context.Background(), sampleTrip(t), creds)
	require.NoError(t, err)
	d.Wait()
}

func TestDispatcher_AuthenticationFailureIsReported(t *testing.T) {
	d, reports := newDispatcher(testutil.NoSleep)
	d.Session.Surfaces = (&testutil.Surface{AuthOK: false}).Opener()
	store := newMemStore()
	d.Store = store

	id, err := d.Submit(context.Background(), sampleTrip(t), creds)
	require.NoError(t, err)

	rep := <-reports
	d.Wait()
	assert.ErrorIs(t, rep.Err, reservation.ErrAuthentication)
	assert.Equal(t, reservation.OutcomeFailed, rep.Outcome().Kind)
	assert.Equal(t, reservation.OutcomeFailed, store.finished[string(id)].Kind)
	assert.Contains(t, usecases.UserMessage(rep.Result, rep.Err), "an error occurred: ")
}

func TestDispatcher_RejectsMissingCredentials(t *testing.T) {
	d, _ := newDispatcher(testutil.NoSleep)
	_, err := d.Submit(context.Background(), sampleTrip(t), reservation.Credentials{})
	assert.ErrorIs(t, err, reservation.ErrAuthentication)
	assert.Empty(t, d.Active())
}

func TestMemoryGuard(t *testing.T) {
	g := &MemoryGuard{}
	ctx := context.Background()

	release, ok, err := g.TryAcquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = g.TryAcquire(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))
	_, ok, _ = g.TryAcquire(ctx, "k")
	assert.True(t, ok)
}
