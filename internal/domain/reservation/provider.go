package reservation

import (
	"context"
	"errors"

	"github.com/example/srt-reserver/internal/domain/trip"
)

var (
	ErrAuthentication       = errors.New("authentication failed")
	ErrListingNotFound      = errors.New("search result listing not found")
	ErrActionRejected       = errors.New("booking action rejected")
	ErrStaleCandidate       = errors.New("candidate is not part of the latest search results")
	ErrNotificationDelivery = errors.New("notification delivery failed")
)

// BookingSurface is the external system that is searched and commanded.
// A value represents one signed-in session and is used by a single goroutine.
type BookingSurface interface {
	Authenticate(ctx context.Context, id, password string) (bool, error)
	SubmitSearch(ctx context.Context, t trip.Request) error
	// FetchCandidateWindow returns one row per position in [start, end].
	// It fails with ErrListingNotFound when no result table can be located.
	FetchCandidateWindow(ctx context.Context, start, end int) ([]CandidateRow, error)
	// AttemptBook and AttemptWaitlist report false when the site turned the
	// attempt down, typically because another requester took the seat first.
	AttemptBook(ctx context.Context, position int) (bool, error)
	AttemptWaitlist(ctx context.Context, position int) (bool, error)
	ResubmitSearch(ctx context.Context) error
	Close() error
}

// SurfaceOpener starts a fresh, isolated surface session.
type SurfaceOpener interface {
	Open(ctx context.Context) (BookingSurface, error)
}

type SurfaceOpenerFunc func(ctx context.Context) (BookingSurface, error)

func (f SurfaceOpenerFunc) Open(ctx context.Context) (BookingSurface, error) { return f(ctx) }

// Notifier broadcasts outcomes. It is best-effort and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, message string)
}
