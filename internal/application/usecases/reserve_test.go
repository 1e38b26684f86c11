package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/example/srt-reserver/internal/poller"
	"github.com/example/srt-reserver/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, message string) {
	m.Called(ctx, message)
}

var creds = reservation.Credentials{ID: "010-1234-5678", Password: "secret"}

func newTrip(t *testing.T, allowWaitlist bool) trip.Request {
	t.Helper()
	req, err := trip.New(trip.Params{
		Departure:     "동탄",
		Arrival:       "동대구",
		Date:          "20250917",
		Hour:          "08",
		WindowStart:   1,
		WindowEnd:     2,
		AllowWaitlist: allowWaitlist,
	})
	require.NoError(t, err)
	return req
}

func newSession(s *testutil.Surface, n reservation.Notifier) ReservationSession {
	return ReservationSession{
		Surfaces: s.Opener(),
		Notifier: n,
		Policy:   poller.DefaultPolicy(),
		Sleep:    testutil.NoSleep,
	}
}

func TestReservationSession_BooksAfterThreeRefreshes(t *testing.T) {
	soldOut := testutil.SoldOut(2)
	open := soldOut.With(1, reservation.SeatAvailableMarker, reservation.SoldOutMarker)
	open.Book = map[int]bool{1: true}
	s := &testutil.Surface{AuthOK: true, Rounds: []testutil.Round{soldOut, soldOut, soldOut, open}}

	n := &mockNotifier{}
	n.On("Notify", mock.Anything,
		"Reservation booked: train 1, 동탄 -> 동대구 on 2025-09-17 after 08:00, 1 passenger(s), trains 1-2, waitlist no (after 3 refreshes)",
	).Return().Once()

	req := newTrip(t, false)
	res, err := newSession(s, n).Run(context.Background(), req, creds)

	require.NoError(t, err)
	assert.Equal(t, reservation.Outcome{Kind: reservation.OutcomeBooked, Position: 1}, res.Outcome)
	assert.Equal(t, 3, res.RefreshCount)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, []trip.Request{req}, s.Searches)
	assert.True(t, s.Closed)
	n.AssertExpectations(t)
	n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestReservationSession_WaitlistsAfterOneRefresh(t *testing.T) {
	soldOut := testutil.SoldOut(2)
	waitlist := soldOut.With(2, reservation.SoldOutMarker, reservation.WaitlistOpenMarker)
	waitlist.Waitlist = map[int]bool{2: true}
	s := &testutil.Surface{AuthOK: true, Rounds: []testutil.Round{soldOut, waitlist}}

	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.AnythingOfType("string")).Return().Once()

	res, err := newSession(s, n).Run(context.Background(), newTrip(t, true), creds)

	require.NoError(t, err)
	assert.Equal(t, reservation.Outcome{Kind: reservation.OutcomeWaitlisted, Position: 2}, res.Outcome)
	assert.Equal(t, 1, res.RefreshCount)
	assert.Contains(t, n.Calls[0].Arguments.String(1), "Waitlist request placed: train 2")
	n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestReservationSession_AuthenticationFailure(t *testing.T) {
	tests := []struct {
		name    string
		surface *testutil.Surface
	}{
		{name: "indicator missing", surface: &testutil.Surface{AuthOK: false}},
		{name: "transport error", surface: &testutil.Surface{AuthErr: errors.New("connection reset")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &mockNotifier{}
			res, err := newSession(tt.surface, n).Run(context.Background(), newTrip(t, false), creds)

			require.ErrorIs(t, err, reservation.ErrAuthentication)
			assert.True(t, IsFatal(err))
			assert.Empty(t, tt.surface.Searches)
			assert.Zero(t, tt.surface.Fetches)
			assert.True(t, tt.surface.Closed)
			assert.Equal(t, 0, res.RefreshCount)
			n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
		})
	}
}

func TestReservationSession_MissingCredentials(t *testing.T) {
	s := &testutil.Surface{AuthOK: true}
	_, err := newSession(s, nil).Run(context.Background(), newTrip(t, false), reservation.Credentials{})

	require.ErrorIs(t, err, reservation.ErrAuthentication)
	assert.Zero(t, s.Authenticated, "surface must not be opened without credentials")
}

func TestReservationSession_SearchError(t *testing.T) {
	s := &testutil.Surface{AuthOK: true, SearchErr: errors.New("form not found")}
	_, err := newSession(s, nil).Run(context.Background(), newTrip(t, false), creds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit search")
	assert.False(t, IsFatal(err))
}

func TestReservationSession_FailedRunIsNotNotified(t *testing.T) {
	s := &testutil.Surface{AuthOK: true, Rounds: []testutil.Round{{ListingErr: reservation.ErrListingNotFound}}}
	n := &mockNotifier{}

	res, err := newSession(s, n).Run(context.Background(), newTrip(t, false), creds)

	require.NoError(t, err)
	assert.Equal(t, reservation.OutcomeFailed, res.Outcome.Kind)
	assert.Equal(t, 4, res.RefreshCount)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	assert.Contains(t, UserMessage(res, nil), "an error occurred: search results missing 5 times")
}

func TestReservationSession_NotifyFailures(t *testing.T) {
	s := &testutil.Surface{AuthOK: true, Rounds: []testutil.Round{testutil.SoldOut(2)}}
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return()

	session := newSession(s, n)
	session.NotifyFailures = true
	session.Policy.MaxRounds = 2

	res, err := session.Run(context.Background(), newTrip(t, false), creds)

	require.NoError(t, err)
	assert.Equal(t, reservation.OutcomeExhausted, res.Outcome.Kind)
	n.AssertNumberOfCalls(t, "Notify", 1)
	assert.Contains(t, n.Calls[0].Arguments.String(1), "Reservation ended without a seat (exhausted: no seat after 2 rounds)")
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "an error occurred: boom", UserMessage(Result{}, errors.New("boom")))
	assert.Equal(t, "Reservation attempt finished: booked (train 2)",
		UserMessage(Result{Outcome: reservation.Outcome{Kind: reservation.OutcomeBooked, Position: 2}}, nil))
	assert.Equal(t, "an error occurred: canceled",
		UserMessage(Result{Outcome: reservation.Outcome{Kind: reservation.OutcomeFailed, Reason: "canceled"}}, nil))
}
