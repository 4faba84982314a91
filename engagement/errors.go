package engagement

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no engagement exists for the given id.
	ErrNotFound = errors.New("engagement: not found")
	// ErrIllegalTransition signals the event is not in the transition table
	// for the current status. Not retryable without a different event.
	ErrIllegalTransition = errors.New("engagement: illegal transition")
	// ErrUnauthorizedActor signals the actor role cannot fire this event.
	ErrUnauthorizedActor = errors.New("engagement: actor not permitted")
	// ErrVersionConflict signals a stale expected version. Retryable after
	// refetching the engagement.
	ErrVersionConflict = errors.New("engagement: version conflict")
	// ErrGuardViolation signals a legal event whose precondition fails, e.g.
	// instant book requested on a tier_2 engagement.
	ErrGuardViolation = errors.New("engagement: guard violation")
	// ErrDeadlineExpired signals the sweeper already expired the engagement.
	// Errors carrying it also match ErrIllegalTransition.
	ErrDeadlineExpired = errors.New("engagement: deadline expired")
	// ErrValidation signals malformed input rejected before any state change.
	ErrValidation = errors.New("engagement: invalid input")
)

func illegalTransition(ev Event, st Status) error {
	if st == StatusExpired || st == StatusDealPingExpired {
		// Too late: the sweeper won. Callers can match either sentinel.
		return fmt.Errorf("%w: %w: event %q from status %q", ErrIllegalTransition, ErrDeadlineExpired, ev, st)
	}
	return fmt.Errorf("%w: event %q from status %q", ErrIllegalTransition, ev, st)
}

func unauthorizedActor(role ActorRole, ev Event) error {
	return fmt.Errorf("%w: role %q cannot fire %q", ErrUnauthorizedActor, role, ev)
}

func guardViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGuardViolation, fmt.Sprintf(format, args...))
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
