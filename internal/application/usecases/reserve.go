package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/example/srt-reserver/internal/logging"
	"github.com/example/srt-reserver/internal/poller"
)

// ReservationSession signs in, submits the search and hands over to the
// poller. A value can be copied and reused; each Run opens its own surface.
type ReservationSession struct {
	Surfaces reservation.SurfaceOpener
	Notifier reservation.Notifier
	Policy   poller.Policy
	Observer poller.Observer
	Logger   *slog.Logger

	// NotifyFailures also broadcasts failed and exhausted outcomes.
	NotifyFailures bool

	// Sleep overrides the poller's backoff sleep, for tests.
	Sleep poller.SleepFunc
}

type Result struct {
	Outcome      reservation.Outcome
	RefreshCount int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Run blocks until the reservation reaches a terminal outcome. Only credential,
// authentication and initial search problems come back as errors; everything
// that happens while polling is reported through Result.Outcome.
func (s ReservationSession) Run(ctx context.Context, t trip.Request, creds reservation.Credentials) (Result, error) {
	log := logging.OrNop(s.Logger).With("trip", t.Fingerprint())
	res := Result{StartedAt: time.Now()}

	if s.Surfaces == nil {
		return res, fmt.Errorf("surface opener is nil")
	}
	if err := creds.Validate(); err != nil {
		return res, err
	}

	surface, err := s.Surfaces.Open(ctx)
	if err != nil {
		return res, fmt.Errorf("open booking surface: %w", err)
	}
	defer func() {
		if err := surface.Close(); err != nil {
			log.Warn("close booking surface", "error", err)
		}
	}()

	ok, err := surface.Authenticate(ctx, creds.ID, creds.Password)
	if err != nil {
		return res, fmt.Errorf("%w: %v", reservation.ErrAuthentication, err)
	}
	if !ok {
		return res, fmt.Errorf("%w: signed-in indicator not shown for %s", reservation.ErrAuthentication, creds.ID)
	}
	log.Info("signed in")

	if err := surface.SubmitSearch(ctx, t); err != nil {
		return res, fmt.Errorf("submit search: %w", err)
	}
	log.Info("searching", "summary", t.Summary())

	p := &poller.Poller{
		Surface:  surface,
		Policy:   s.Policy,
		Observer: s.Observer,
		Logger:   log,
		Sleep:    s.Sleep,
	}
	state := p.Run(ctx, reservation.Window{Start: t.WindowStart(), End: t.WindowEnd()}, t.AllowWaitlist())

	res.Outcome = state.Outcome
	res.RefreshCount = state.RefreshCount
	res.FinishedAt = time.Now()

	if s.Notifier != nil && (state.Outcome.Success() || s.NotifyFailures) {
		s.Notifier.Notify(context.WithoutCancel(ctx), OutcomeMessage(t, res))
	}
	return res, nil
}

// OutcomeMessage is the notification text for a finished run.
func OutcomeMessage(t trip.Request, res Result) string {
	switch res.Outcome.Kind {
	case reservation.OutcomeBooked:
		return fmt.Sprintf("Reservation booked: train %d, %s (after %d refreshes)", res.Outcome.Position, t.Summary(), res.RefreshCount)
	case reservation.OutcomeWaitlisted:
		return fmt.Sprintf("Waitlist request placed: train %d, %s (after %d refreshes)", res.Outcome.Position, t.Summary(), res.RefreshCount)
	default:
		return fmt.Sprintf("Reservation ended without a seat (%s): %s", res.Outcome, t.Summary())
	}
}

// UserMessage is what a front end tells the requester once Run returns.
func UserMessage(res Result, err error) string {
	switch {
	case err != nil:
		return "an error occurred: " + err.Error()
	case res.Outcome.Success():
		return fmt.Sprintf("Reservation attempt finished: %s", res.Outcome)
	case res.Outcome.Reason != "":
		return "an error occurred: " + res.Outcome.Reason
	default:
		return "an error occurred: " + string(res.Outcome.Kind)
	}
}

// IsFatal reports whether err stopped a run before polling began.
func IsFatal(err error) bool {
	return errors.Is(err, trip.ErrValidation) || errors.Is(err, reservation.ErrAuthentication)
}
