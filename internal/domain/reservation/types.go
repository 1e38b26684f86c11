package reservation

import (
	"fmt"
	"strings"
)

// Markers shown in the seat and waitlist columns of the search results.
const (
	SeatAvailableMarker = "예약하기"
	WaitlistOpenMarker  = "신청하기"
	SoldOutMarker       = "매진"
)

// CandidateRow is one ranked train in the current round's search results.
// Rows are produced fresh every round and must not be kept across rounds.
type CandidateRow struct {
	Position     int
	SeatText     string
	WaitlistText string

	// Err is set when the row could not be read this round.
	Err error
}

func (r CandidateRow) SeatAvailable() bool {
	return r.Err == nil && strings.Contains(r.SeatText, SeatAvailableMarker)
}

func (r CandidateRow) WaitlistOpen() bool {
	return r.Err == nil && strings.Contains(r.WaitlistText, WaitlistOpenMarker)
}

// Window is the inclusive, 1-based range of result positions to evaluate.
type Window struct {
	Start int
	End   int
}

func (w Window) Contains(position int) bool {
	return position >= w.Start && position <= w.End
}

type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionBook
	ActionWaitlist
)

func (k ActionKind) String() string {
	switch k {
	case ActionBook:
		return "book"
	case ActionWaitlist:
		return "waitlist"
	default:
		return "none"
	}
}

// Action is the decision for one round.
type Action struct {
	Kind     ActionKind
	Position int
}

func (a Action) String() string {
	if a.Kind == ActionNone {
		return "none"
	}
	return fmt.Sprintf("%s(%d)", a.Kind, a.Position)
}

type OutcomeKind string

const (
	OutcomePending    OutcomeKind = "pending"
	OutcomeBooked     OutcomeKind = "booked"
	OutcomeWaitlisted OutcomeKind = "waitlisted"
	OutcomeExhausted  OutcomeKind = "exhausted"
	OutcomeFailed     OutcomeKind = "failed"
)

// Outcome is where a polling run ended up. Position is set for booked and
// waitlisted outcomes, Reason for exhausted and failed ones.
type Outcome struct {
	Kind     OutcomeKind
	Position int
	Reason   string
}

func (o Outcome) Terminal() bool {
	return o.Kind != OutcomePending && o.Kind != ""
}

func (o Outcome) Success() bool {
	return o.Kind == OutcomeBooked || o.Kind == OutcomeWaitlisted
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeBooked, OutcomeWaitlisted:
		return fmt.Sprintf("%s (train %d)", o.Kind, o.Position)
	case OutcomeExhausted, OutcomeFailed:
		return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
	default:
		return string(o.Kind)
	}
}

// PollingState is owned and mutated only by the poller running a reservation.
type PollingState struct {
	RefreshCount int
	Outcome      Outcome
}

// Credentials for the booking site. They are only checked for presence.
type Credentials struct {
	ID       string
	Password string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ID) == "" || c.Password == "" {
		return fmt.Errorf("%w: booking site id and password are required", ErrAuthentication)
	}
	return nil
}
