package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/logging"
)

// Policy bounds the polling loop. Zero MaxRounds and Timeout mean "poll until
// a seat is booked or the listing stays missing".
type Policy struct {
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
	MaxListingMisses int
	MaxRounds        int
	Timeout          time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MinBackoff:       2 * time.Second,
		MaxBackoff:       4 * time.Second,
		MaxListingMisses: 5,
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller drives one reservation's search/evaluate/act loop against a single
// surface session. It is not safe for concurrent use; run one per reservation.
type Poller struct {
	Surface  reservation.BookingSurface
	Policy   Policy
	Observer Observer
	Logger   *slog.Logger

	// Sleep and Jitter are replaceable for tests.
	Sleep  SleepFunc
	Jitter func(min, max time.Duration) time.Duration
	Now    func() time.Time
}

// Run polls until a terminal outcome. It expects the initial search to have
// been submitted already.
func (p *Poller) Run(ctx context.Context, w reservation.Window, allowWaitlist bool) reservation.PollingState {
	log := logging.OrNop(p.Logger)
	obs := p.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	policy := p.Policy
	if policy.MaxListingMisses < 1 {
		policy.MaxListingMisses = DefaultPolicy().MaxListingMisses
	}

	state := reservation.PollingState{Outcome: reservation.Outcome{Kind: reservation.OutcomePending}}
	var deadline time.Time
	if policy.Timeout > 0 {
		deadline = now().Add(policy.Timeout)
	}

	misses := 0
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return finish(log, state, canceled(err))
		}

		rows, err := p.Surface.FetchCandidateWindow(ctx, w.Start, w.End)
		switch {
		case err != nil && ctx.Err() != nil:
			return finish(log, state, canceled(ctx.Err()))
		case err != nil:
			misses++
			obs.ListingMissed(misses, err)
			log.Warn("search results not found", "round", round, "consecutive", misses, "error", err)
			if misses >= policy.MaxListingMisses {
				return finish(log, state, reservation.Outcome{
					Kind:   reservation.OutcomeFailed,
					Reason: fmt.Sprintf("search results missing %d times in a row: %v", misses, err),
				})
			}
		default:
			misses = 0
			action := reservation.Decide(rows, w, allowWaitlist)
			log.Debug("round evaluated", "round", round, "rows", len(rows), "action", action)
			if action.Kind != reservation.ActionNone {
				if outcome, ok := p.act(ctx, log, obs, action); ok {
					return finish(log, state, outcome)
				}
			}
		}

		if policy.MaxRounds > 0 && round >= policy.MaxRounds {
			return finish(log, state, reservation.Outcome{
				Kind:   reservation.OutcomeExhausted,
				Reason: fmt.Sprintf("no seat after %d rounds", round),
			})
		}
		if !deadline.IsZero() && !now().Before(deadline) {
			return finish(log, state, reservation.Outcome{
				Kind:   reservation.OutcomeExhausted,
				Reason: fmt.Sprintf("no seat within %s", policy.Timeout),
			})
		}

		if err := p.sleep(ctx, p.backoff(policy)); err != nil {
			return finish(log, state, canceled(err))
		}
		if err := p.Surface.ResubmitSearch(ctx); err != nil {
			if ctx.Err() != nil {
				return finish(log, state, canceled(ctx.Err()))
			}
			log.Warn("resubmit search failed", "error", err)
		}
		state.RefreshCount++
		obs.Refreshed(state)
		log.Info("refresh", "count", state.RefreshCount)
	}
}

// act executes a book or waitlist action. ok is true when the surface confirmed it.
func (p *Poller) act(ctx context.Context, log *slog.Logger, obs Observer, a reservation.Action) (reservation.Outcome, bool) {
	var (
		confirmed bool
		err       error
		kind      reservation.OutcomeKind
	)
	switch a.Kind {
	case reservation.ActionBook:
		confirmed, err = p.Surface.AttemptBook(ctx, a.Position)
		kind = reservation.OutcomeBooked
	case reservation.ActionWaitlist:
		confirmed, err = p.Surface.AttemptWaitlist(ctx, a.Position)
		kind = reservation.OutcomeWaitlisted
	default:
		return reservation.Outcome{}, false
	}
	obs.Attempted(a, confirmed && err == nil)

	if err != nil {
		log.Warn("attempt failed", "action", a, "error", err)
		return reservation.Outcome{}, false
	}
	if !confirmed {
		log.Info("attempt rejected, searching again", "action", a, "error", reservation.ErrActionRejected)
		return reservation.Outcome{}, false
	}
	return reservation.Outcome{Kind: kind, Position: a.Position}, true
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

func (p *Poller) backoff(policy Policy) time.Duration {
	if p.Jitter != nil {
		return p.Jitter(policy.MinBackoff, policy.MaxBackoff)
	}
	return Jitter(policy.MinBackoff, policy.MaxBackoff)
}

// Jitter returns a uniformly random duration in [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}

func canceled(err error) reservation.Outcome {
	reason := "canceled"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "deadline exceeded"
	}
	return reservation.Outcome{Kind: reservation.OutcomeFailed, Reason: reason}
}

func finish(log *slog.Logger, state reservation.PollingState, o reservation.Outcome) reservation.PollingState {
	state.Outcome = o
	log.Info("polling finished", "outcome", o.Kind, "position", o.Position, "reason", o.Reason, "refreshes", state.RefreshCount)
	return state
}
