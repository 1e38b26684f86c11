// Package testutil holds scripted fakes shared by package tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
)

// Round scripts what the fake surface shows between two searches.
type Round struct {
	Rows       []reservation.CandidateRow
	ListingErr error

	// Book and Waitlist map a position to whether the site confirms the
	// attempt. Missing positions are rejected.
	Book     map[int]bool
	Waitlist map[int]bool

	// AttemptErr fails every book or waitlist attempt made in this round.
	AttemptErr error
	// ResubmitErr is returned by the resubmit that leaves this round.
	ResubmitErr error
}

// Surface is a scripted reservation.BookingSurface. Each search or resubmit
// advances to the next round; the last round repeats forever.
type Surface struct {
	Rounds []Round

	AuthOK  bool
	AuthErr error
	// SearchErr fails SubmitSearch.
	SearchErr error

	mu            sync.Mutex
	round         int
	Authenticated int
	Searches      []trip.Request
	Resubmits     int
	Fetches       int
	BookCalls     []int
	WaitlistCalls []int
	Closed        bool
}

// SoldOut is a round where every position in [1, n] shows sold out.
func SoldOut(n int) Round {
	rows := make([]reservation.CandidateRow, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, reservation.CandidateRow{
			Position:     i,
			SeatText:     reservation.SoldOutMarker,
			WaitlistText: reservation.SoldOutMarker,
		})
	}
	return Round{Rows: rows}
}

// With returns a copy of r with the row at position replaced.
func (r Round) With(position int, seat, waitlist string) Round {
	rows := make([]reservation.CandidateRow, len(r.Rows))
	copy(rows, r.Rows)
	for i := range rows {
		if rows[i].Position == position {
			rows[i].SeatText = seat
			rows[i].WaitlistText = waitlist
		}
	}
	r.Rows = rows
	return r
}

func (s *Surface) current() Round {
	if len(s.Rounds) == 0 {
		return Round{}
	}
	if s.round >= len(s.Rounds) {
		return s.Rounds[len(s.Rounds)-1]
	}
	return s.Rounds[s.round]
}

// RoundIndex is the zero-based index of the round currently shown.
func (s *Surface) RoundIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

func (s *Surface) Authenticate(ctx context.Context, id, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Authenticated++
	return s.AuthOK, s.AuthErr
}

func (s *Surface) SubmitSearch(ctx context.Context, t trip.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Searches = append(s.Searches, t)
	return s.SearchErr
}

func (s *Surface) FetchCandidateWindow(ctx context.Context, start, end int) ([]reservation.CandidateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fetches++
	r := s.current()
	if r.ListingErr != nil {
		return nil, r.ListingErr
	}
	var out []reservation.CandidateRow
	for _, row := range r.Rows {
		if row.Position >= start && row.Position <= end {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Surface) AttemptBook(ctx context.Context, position int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BookCalls = append(s.BookCalls, position)
	r := s.current()
	if r.AttemptErr != nil {
		return false, r.AttemptErr
	}
	return r.Book[position], nil
}

func (s *Surface) AttemptWaitlist(ctx context.Context, position int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WaitlistCalls = append(s.WaitlistCalls, position)
	r := s.current()
	if r.AttemptErr != nil {
		return false, r.AttemptErr
	}
	return r.Waitlist[position], nil
}

func (s *Surface) ResubmitSearch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Resubmits++
	err := s.current().ResubmitErr
	s.round++
	return err
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Opener returns an opener that always hands out s.
func (s *Surface) Opener() reservation.SurfaceOpener {
	return reservation.SurfaceOpenerFunc(func(ctx context.Context) (reservation.BookingSurface, error) {
		return s, nil
	})
}

// NoSleep is a poller sleep func that returns immediately unless ctx is done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
