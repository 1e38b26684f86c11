package trip

import (
	"fmt"
	"strconv"
	"strings"
)

// Field is one input collected by a Builder, in collection order.
type Field int

const (
	FieldDeparture Field = iota
	FieldArrival
	FieldDate
	FieldHour
	FieldPassengers
	FieldWindowEnd
	FieldWindowStart
	FieldWaitlist

	fieldCount
)

var fieldNames = [...]string{
	FieldDeparture:   "departure",
	FieldArrival:     "arrival",
	FieldDate:        "date",
	FieldHour:        "hour",
	FieldPassengers:  "passengers",
	FieldWindowEnd:   "window_end",
	FieldWindowStart: "window_start",
	FieldWaitlist:    "allow_waitlist",
}

var fieldPrompts = [...]string{
	FieldDeparture:   "Departure station:",
	FieldArrival:     "Arrival station:",
	FieldDate:        "Travel date (YYYYMMDD), e.g. 20240401:",
	FieldHour:        "Earliest departure hour (HH, even), e.g. 06, 08, 14:",
	FieldPassengers:  "Number of passengers, e.g. 1:",
	FieldWindowEnd:   "Number of trains to check, e.g. 2:",
	FieldWindowStart: "Position of the first train to check, e.g. 1:",
	FieldWaitlist:    "Join the waitlist when sold out? (yes/no):",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Prompt is the question shown to a user when this field is next.
func (f Field) Prompt() string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return fieldPrompts[f]
}

// Fields lists every field in collection order.
func Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := FieldDeparture; f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

// Builder accumulates trip fields one answer at a time. Each answer is checked
// as it arrives, including against fields already set, so a conversation can
// re-ask the same question.
type Builder struct {
	params Params
	set    [fieldCount]bool
	next   Field
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Next returns the field awaiting an answer. ok is false once every field is set.
func (b *Builder) Next() (Field, bool) {
	for b.next < fieldCount && b.set[b.next] {
		b.next++
	}
	if b.next >= fieldCount {
		return fieldCount, false
	}
	return b.next, true
}

// Answer sets the field returned by Next.
func (b *Builder) Answer(value string) error {
	f, ok := b.Next()
	if !ok {
		return fmt.Errorf("all trip fields already collected")
	}
	return b.Set(f, value)
}

// Set assigns one field directly, in any order.
func (b *Builder) Set(f Field, value string) error {
	value = strings.TrimSpace(value)
	switch f {
	case FieldDeparture, FieldArrival:
		name, ok := CanonicalStation(value)
		if !ok {
			return invalid(f.String(), value, ErrInvalidStationName)
		}
		other := FieldArrival
		if f == FieldArrival {
			other = FieldDeparture
		}
		if b.set[other] && b.station(other) == name {
			return invalid(f.String(), value, ErrSameStation)
		}
		if f == FieldDeparture {
			b.params.Departure = name
		} else {
			b.params.Arrival = name
		}
	case FieldDate:
		if _, err := ParseDate(value); err != nil {
			return err
		}
		b.params.Date = value
	case FieldHour:
		if _, err := ParseHour(value); err != nil {
			return err
		}
		b.params.Hour = value
	case FieldPassengers:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > MaxPassengers {
			return invalid(f.String(), value, ErrInvalidPassengerCount)
		}
		b.params.Passengers = n
	case FieldWindowEnd, FieldWindowStart:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return invalid(f.String(), value, ErrInvalidWindow)
		}
		if f == FieldWindowEnd {
			if b.set[FieldWindowStart] && n < b.params.WindowStart {
				return invalid(f.String(), value, ErrInvalidWindow)
			}
			b.params.WindowEnd = n
		} else {
			if b.set[FieldWindowEnd] && n > b.params.WindowEnd {
				return invalid(f.String(), value, ErrInvalidWindow)
			}
			b.params.WindowStart = n
		}
	case FieldWaitlist:
		yes, err := ParseYesNo(value)
		if err != nil {
			return invalid(f.String(), value, err)
		}
		b.params.AllowWaitlist = yes
	default:
		return fmt.Errorf("unknown trip field %v", f)
	}
	b.set[f] = true
	return nil
}

func (b *Builder) station(f Field) string {
	if f == FieldDeparture {
		return b.params.Departure
	}
	return b.params.Arrival
}

// Collected reports how many fields have been answered.
func (b *Builder) Collected() int {
	n := 0
	for _, ok := range b.set {
		if ok {
			n++
		}
	}
	return n
}

// Params returns the answers gathered so far.
func (b *Builder) Params() Params {
	return b.params
}

// Build validates the complete set of answers.
func (b *Builder) Build() (Request, error) {
	if f, ok := b.Next(); ok {
		return Request{}, fmt.Errorf("trip field %s not collected yet", f)
	}
	return New(b.params)
}

// ParseYesNo accepts the usual spellings of a yes/no answer, Korean included.
func ParseYesNo(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "on", "예", "네":
		return true, nil
	case "n", "no", "false", "0", "off", "", "아니오", "아니요":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected yes or no", ErrValidation)
}
