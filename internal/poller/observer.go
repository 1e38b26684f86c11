package poller

import "github.com/example/srt-reserver/internal/domain/reservation"

// Observer is told about progress of a polling run. Calls happen on the
// polling goroutine and should return quickly.
type Observer interface {
	Refreshed(state reservation.PollingState)
	ListingMissed(consecutive int, err error)
	Attempted(action reservation.Action, confirmed bool)
}

type NopObserver struct{}

func (NopObserver) Refreshed(reservation.PollingState) {}
func (NopObserver) ListingMissed(int, error)           {}
func (NopObserver) Attempted(reservation.Action, bool) {}

// Observers fans every call out to each non-nil member.
type Observers []Observer

func (obs Observers) Refreshed(state reservation.PollingState) {
	for _, o := range obs {
		if o != nil {
			o.Refreshed(state)
		}
	}
}

func (obs Observers) ListingMissed(consecutive int, err error) {
	for _, o := range obs {
		if o != nil {
			o.ListingMissed(consecutive, err)
		}
	}
}

func (obs Observers) Attempted(action reservation.Action, confirmed bool) {
	for _, o := range obs {
		if o != nil {
			o.Attempted(action, confirmed)
		}
	}
}
