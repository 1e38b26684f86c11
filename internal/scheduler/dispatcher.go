// Package scheduler runs reservation attempts in the background, one
// goroutine and one cancel func per attempt.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/srt-reserver/internal/application/usecases"
	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/example/srt-reserver/internal/logging"
	"github.com/example/srt-reserver/internal/poller"
	"github.com/example/srt-reserver/internal/runs"
	"github.com/google/uuid"
)

var (
	ErrDuplicateRun = errors.New("a run for this account and trip is already active")
	ErrUnknownRun   = errors.New("unknown run")
)

type RunID string

// Guard keeps one active run per key. ok is false when the key is taken.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error)
}

// RunStore persists run history. *runs.Repo implements it.
type RunStore interface {
	Create(ctx context.Context, run runs.Run) error
	RecordRefresh(ctx context.Context, id string, refreshCount int) error
	Finish(ctx context.Context, id string, o reservation.Outcome, refreshCount int) error
}

// RunMetrics is told when runs start and end. *metrics.Collector implements it.
type RunMetrics interface {
	RunStarted()
	RunFinished(o reservation.Outcome, elapsed time.Duration)
}

// Report is what a finished run hands back to whoever submitted it.
type Report struct {
	ID        RunID
	Trip      trip.Request
	StartedBy string
	Result    usecases.Result
	Err       error
}

// Outcome folds Err into the result's outcome.
func (r Report) Outcome() reservation.Outcome {
	if r.Err != nil {
		return reservation.Outcome{Kind: reservation.OutcomeFailed, Reason: r.Err.Error()}
	}
	return r.Result.Outcome
}

type RunInfo struct {
	ID           RunID
	Trip         trip.Request
	StartedBy    string
	StartedAt    time.Time
	RefreshCount int
}

type SubmitOption func(*submission)

type submission struct {
	startedBy string
}

// StartedBy records who asked for the run.
func StartedBy(name string) SubmitOption {
	return func(s *submission) { s.startedBy = name }
}

type Dispatcher struct {
	Session usecases.ReservationSession
	Guard   Guard
	Store   RunStore
	Metrics RunMetrics
	Logger  *slog.Logger
	// OnDone is called from the run's goroutine once it has finished and
	// released its guard.
	OnDone func(Report)
	NewID  func() string

	mu     sync.Mutex
	active map[RunID]*activeRun
	wg     sync.WaitGroup
}

type activeRun struct {
	info   RunInfo
	cancel context.CancelFunc
}

// Submit starts a run and returns as soon as it is registered. The run is
// detached from ctx's cancellation; stop it with Cancel or Shutdown.
func (d *Dispatcher) Submit(ctx context.Context, t trip.Request, creds reservation.Credentials, opts ...SubmitOption) (RunID, error) {
	sub := submission{startedBy: "cli"}
	for _, o := range opts {
		o(&sub)
	}
	if err := creds.Validate(); err != nil {
		return "", err
	}

	release := func(context.Context) error { return nil }
	if d.Guard != nil {
		rel, ok, err := d.Guard.TryAcquire(ctx, creds.ID+"|"+t.Fingerprint())
		if err != nil {
			return "", fmt.Errorf("acquire run guard: %w", err)
		}
		if !ok {
			return "", ErrDuplicateRun
		}
		release = rel
	}

	newID := d.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	id := RunID(newID())
	log := logging.OrNop(d.Logger).With("run", string(id))

	if d.Store != nil {
		if err := d.Store.Create(ctx, runs.New(string(id), t, sub.startedBy)); err != nil {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				log.Warn("release run guard", "error", rerr)
			}
			return "", fmt.Errorf("record run: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ar := &activeRun{
		info:   RunInfo{ID: id, Trip: t, StartedBy: sub.startedBy, StartedAt: time.Now()},
		cancel: cancel,
	}
	d.mu.Lock()
	if d.active == nil {
		d.active = make(map[RunID]*activeRun)
	}
	d.active[id] = ar
	d.wg.Add(1)
	d.mu.Unlock()

	if d.Metrics != nil {
		d.Metrics.RunStarted()
	}
	log.Info("run submitted", "trip", t.Summary(), "started_by", sub.startedBy)

	go func() {
		defer d.wg.Done()
		defer cancel()
		d.run(runCtx, log, ar, creds, release)
	}()
	return id, nil
}

func (d *Dispatcher) run(ctx context.Context, log *slog.Logger, ar *activeRun, creds reservation.Credentials, release func(context.Context) error) {
	id := ar.info.ID
	session := d.Session
	session.Logger = log
	session.Observer = poller.Observers{session.Observer, &progress{d: d, id: id, log: log}}

	res, err := session.Run(ctx, ar.info.Trip, creds)
	rep := Report{ID: id, Trip: ar.info.Trip, StartedBy: ar.info.StartedBy, Result: res, Err: err}
	outcome := rep.Outcome()

	bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if d.Store != nil {
		if err := d.Store.Finish(bg, string(id), outcome, res.RefreshCount); err != nil {
			log.Error("record run outcome", "error", err)
		}
	}
	if d.Metrics != nil {
		d.Metrics.RunFinished(outcome, time.Since(ar.info.StartedAt))
	}
	if err := release(bg); err != nil {
		log.Warn("release run guard", "error", err)
	}

	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()

	if err != nil {
		log.Error("run ended before polling", "error", err)
	} else {
		log.Info("run finished", "outcome", outcome, "refreshes", res.RefreshCount)
	}
	if d.OnDone != nil {
		d.OnDone(rep)
	}
}

// Cancel stops a running attempt. Its report still goes to OnDone.
func (d *Dispatcher) Cancel(id RunID) error {
	d.mu.Lock()
	ar, ok := d.active[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	ar.cancel()
	return nil
}

// Active lists running attempts, oldest first.
func (d *Dispatcher) Active() []RunInfo {
	d.mu.Lock()
	out := make([]RunInfo, 0, len(d.active))
	for _, ar := range d.active {
		out = append(out, ar.info)
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Wait blocks until every submitted run has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Shutdown cancels every run and waits for them, or for ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	for _, ar := range d.active {
		ar.cancel()
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// progress mirrors refreshes into the active table and the run store.
type progress struct {
	poller.NopObserver
	d   *Dispatcher
	id  RunID
	log *slog.Logger
}

func (p *progress) Refreshed(state reservation.PollingState) {
	p.d.mu.Lock()
	if ar, ok := p.d.active[p.id]; ok {
		ar.info.RefreshCount = state.RefreshCount
	}
	p.d.mu.Unlock()

	if p.d.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.d.Store.RecordRefresh(ctx, string(p.id), state.RefreshCount); err != nil {
		p.log.Warn("record refresh", "error", err)
	}
}
