package trip

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("invalid trip request")

	ErrInvalidStationName    = fmt.Errorf("%w: unknown station name", ErrValidation)
	ErrSameStation           = fmt.Errorf("%w: departure and arrival are the same station", ErrValidation)
	ErrInvalidDateFormat     = fmt.Errorf("%w: date must be digits only (YYYYMMDD)", ErrValidation)
	ErrInvalidDate           = fmt.Errorf("%w: date is not a real calendar date", ErrValidation)
	ErrInvalidHour           = fmt.Errorf("%w: hour must be an even hour between 00 and 22", ErrValidation)
	ErrInvalidPassengerCount = fmt.Errorf("%w: passenger count must be between 1 and %d", ErrValidation, MaxPassengers)
	ErrInvalidWindow         = fmt.Errorf("%w: candidate window must satisfy 1 <= start <= end", ErrValidation)
)

// ValidationError names the offending field and the value that was rejected.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}
