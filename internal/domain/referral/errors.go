package referral

import "errors"

var (
	// ErrNotFound is returned when the referenced referral does not exist.
	ErrNotFound = errors.New("referral not found")

	// ErrInvalidTransition is returned when a lifecycle operation is called
	// from a status it is not legal from. The referral is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoDestinationAvailable is returned by the auto-referral trigger
	// when no hospital facility is registered. Callers treat it as
	// recoverable: the patient write still succeeds.
	ErrNoDestinationAvailable = errors.New("no destination hospital available")
)
