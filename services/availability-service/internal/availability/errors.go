package availability

import (
	"errors"
	"fmt"
	"time"
)

// Caller errors. Every validation failure returned by this package wraps exactly one of these.
var (
	ErrInvalidRange    = errors.New("'end' must not be before 'start'")
	ErrInvalidDuration = errors.New("event duration must be positive")
	ErrEmptyRuleSet    = errors.New("availability rules must not be empty")
	ErrInvalidRule     = errors.New("invalid availability rule")
)

// IsValidation reports whether err is a caller error that should surface as a bad request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrEmptyRuleSet) ||
		errors.Is(err, ErrInvalidRule)
}

func validateRange(start, end time.Time) error {
	if start.IsZero() {
		return fmt.Errorf("%w: 'start' must be set", ErrInvalidRange)
	}
	if end.IsZero() {
		return fmt.Errorf("%w: 'end' must be set", ErrInvalidRange)
	}
	if end.Before(start) {
		return fmt.Errorf("%w (start=%s end=%s)", ErrInvalidRange, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	}
	return nil
}
