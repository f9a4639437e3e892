package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by the scheduling service.
var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrAvailabilityNotFound = errors.New("availability not found")
	ErrDoctorNotApproved    = errors.New("doctor is not approved for bookings")
	ErrAccessDenied         = errors.New("not a participant in this appointment")
	ErrAlreadyCancelled     = errors.New("appointment is already cancelled")
	ErrAlreadyTerminal      = errors.New("appointment is in a terminal status")
)

// ValidationError marks malformed input. The caller fixes the input;
// nothing retries automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SlotConflictError reports that a candidate booking overlaps an
// existing appointment, with the conflicting window so the UI can
// explain why the slot is unavailable.
type SlotConflictError struct {
	ConflictStart time.Time
	ConflictEnd   time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("time slot unavailable: conflicts with an existing booking from %s to %s",
		e.ConflictStart.Format(time.RFC3339), e.ConflictEnd.Format(time.RFC3339))
}

// IllegalTransitionError reports a status change the state machine
// does not allow.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// CancellationWindowClosedError reports a cancellation attempted at or
// after the cutoff, carrying the cutoff instant for the UI.
type CancellationWindowClosedError struct {
	Cutoff time.Time
}

func (e *CancellationWindowClosedError) Error() string {
	return fmt.Sprintf("cancellation window closed at %s", e.Cutoff.Format(time.RFC3339))
}
