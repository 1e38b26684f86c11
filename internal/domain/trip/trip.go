package trip

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "20060102"

	MaxPassengers = 9

	DefaultPassengers  = 1
	DefaultWindowStart = 1
	DefaultWindowEnd   = 2
)

// Params carries raw trip fields as a caller collected them. Zero values for
// Passengers, WindowStart and WindowEnd select the defaults.
type Params struct {
	Departure     string `yaml:"departure"`
	Arrival       string `yaml:"arrival"`
	Date          string `yaml:"date"`
	Hour          string `yaml:"hour"`
	Passengers    int    `yaml:"passengers"`
	WindowStart   int    `yaml:"window_start"`
	WindowEnd     int    `yaml:"window_end"`
	AllowWaitlist bool   `yaml:"allow_waitlist"`
}

// Request is a validated trip. The only way to obtain one is New.
type Request struct {
	departure     string
	arrival       string
	date          time.Time
	hour          int
	passengers    int
	windowStart   int
	windowEnd     int
	allowWaitlist bool
}

// New validates p and returns an immutable Request.
func New(p Params) (Request, error) {
	dpt, ok := CanonicalStation(strings.TrimSpace(p.Departure))
	if !ok {
		return Request{}, invalid("departure", p.Departure, ErrInvalidStationName)
	}
	arr, ok := CanonicalStation(strings.TrimSpace(p.Arrival))
	if !ok {
		return Request{}, invalid("arrival", p.Arrival, ErrInvalidStationName)
	}
	if dpt == arr {
		return Request{}, invalid("arrival", p.Arrival, ErrSameStation)
	}

	date, err := ParseDate(p.Date)
	if err != nil {
		return Request{}, err
	}
	hour, err := ParseHour(p.Hour)
	if err != nil {
		return Request{}, err
	}

	passengers := p.Passengers
	if passengers == 0 {
		passengers = DefaultPassengers
	}
	if passengers < 1 || passengers > MaxPassengers {
		return Request{}, invalid("passengers", strconv.Itoa(p.Passengers), ErrInvalidPassengerCount)
	}

	start, end := p.WindowStart, p.WindowEnd
	if start == 0 {
		start = DefaultWindowStart
	}
	if end == 0 {
		end = DefaultWindowEnd
		if start > end {
			end = start
		}
	}
	if start < 1 || end < start {
		return Request{}, invalid("window", fmt.Sprintf("%d-%d", start, end), ErrInvalidWindow)
	}

	return Request{
		departure:     dpt,
		arrival:       arr,
		date:          date,
		hour:          hour,
		passengers:    passengers,
		windowStart:   start,
		windowEnd:     end,
		allowWaitlist: p.AllowWaitlist,
	}, nil
}

// ParseDate accepts a strict YYYYMMDD string.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || !isDigits(s) {
		return time.Time{}, invalid("date", s, ErrInvalidDateFormat)
	}
	if len(s) != len(dateLayout) {
		return time.Time{}, invalid("date", s, ErrInvalidDateFormat)
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, invalid("date", s, ErrInvalidDate)
	}
	return d, nil
}

// ParseHour accepts "8" or "08"; the site only offers even hours.
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 2 || !isDigits(s) {
		return 0, invalid("hour", s, ErrInvalidHour)
	}
	h, _ := strconv.Atoi(s)
	if h < 0 || h > 22 || h%2 != 0 {
		return 0, invalid("hour", s, ErrInvalidHour)
	}
	return h, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (r Request) Departure() string   { return r.departure }
func (r Request) Arrival() string     { return r.arrival }
func (r Request) Date() time.Time     { return r.date }
func (r Request) Hour() int           { return r.hour }
func (r Request) Passengers() int     { return r.passengers }
func (r Request) WindowStart() int    { return r.windowStart }
func (r Request) WindowEnd() int      { return r.windowEnd }
func (r Request) AllowWaitlist() bool { return r.allowWaitlist }

// DateString formats the date the way the search form expects (YYYYMMDD).
func (r Request) DateString() string { return r.date.Format(dateLayout) }

// HourString formats the hour as two digits.
func (r Request) HourString() string { return fmt.Sprintf("%02d", r.hour) }

// Params returns the fields in their raw form, e.g. for persisting or re-editing.
func (r Request) Params() Params {
	return Params{
		Departure:     r.departure,
		Arrival:       r.arrival,
		Date:          r.DateString(),
		Hour:          r.HourString(),
		Passengers:    r.passengers,
		WindowStart:   r.windowStart,
		WindowEnd:     r.windowEnd,
		AllowWaitlist: r.allowWaitlist,
	}
}

// Fingerprint identifies the route and departure slot independent of the
// candidate window and waitlist preference.
func (r Request) Fingerprint() string {
	return fmt.Sprintf("%s>%s@%s%s/%d", r.departure, r.arrival, r.DateString(), r.HourString(), r.passengers)
}

// Summary is a one-line description for logs and notifications.
func (r Request) Summary() string {
	waitlist := "no"
	if r.allowWaitlist {
		waitlist = "yes"
	}
	return fmt.Sprintf("%s -> %s on %s after %s:00, %d passenger(s), trains %d-%d, waitlist %s",
		r.departure, r.arrival, r.date.Format("2006-01-02"), r.HourString(), r.passengers,
		r.windowStart, r.windowEnd, waitlist)
}
