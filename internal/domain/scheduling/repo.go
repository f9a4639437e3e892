package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentRepository is the transactional store for appointments.
// Implementations must honor the connection placed in the context by
// the db package so service-level transactions span multiple calls.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)

	// ListForDoctorBetween returns every appointment for the doctor
	// whose span intersects [from, to), regardless of status.
	ListForDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)

	// LockDoctor serializes booking for one doctor within the calling
	// transaction. No-op outside a transaction.
	LockDoctor(ctx context.Context, doctorID uuid.UUID) error

	// FindBookingConflict returns the first appointment for the doctor
	// in a booking-blocking status whose span overlaps [start, end),
	// or nil when the range is free.
	FindBookingConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Appointment, error)

	// CountInProgressForDoctor counts the doctor's IN_PROGRESS
	// appointments other than exclude.
	CountInProgressForDoctor(ctx context.Context, doctorID, exclude uuid.UUID) (int, error)

	// Reconciler scans. Each filters on a single status, so the three
	// result sets are disjoint.
	DueForStart(ctx context.Context, now time.Time) ([]*Appointment, error)
	DueForCompletion(ctx context.Context, now time.Time) ([]*Appointment, error)
	ExpiredPaymentHolds(ctx context.Context, createdBefore time.Time) ([]*Appointment, error)

	// UpdateStatusIf applies a compare-and-set status transition:
	// the row moves to `to` only if it is still in `from`. A non-nil
	// note replaces the appointment notes. Returns false without
	// error when the precondition no longer holds.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to Status, note *string) (bool, error)

	// SetPaymentStatus updates the payment axis only.
	SetPaymentStatus(ctx context.Context, id uuid.UUID, ps PaymentStatus) error
}

// AvailabilityRepository stores doctors' declared bookable windows.
type AvailabilityRepository interface {
	// Upsert saves the window, replacing any existing record for the
	// same (doctor, date).
	Upsert(ctx context.Context, av *DoctorAvailability) error
	GetByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) (*DoctorAvailability, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorAvailability, int, error)

	// Delete removes the window only when it belongs to doctorID.
	// Returns false when no row matches both.
	Delete(ctx context.Context, doctorID, id uuid.UUID) (bool, error)
}

// DoctorDirectory resolves the booking-time view of a doctor:
// approval status and current fee.
type DoctorDirectory interface {
	Profile(ctx context.Context, id uuid.UUID) (DoctorProfile, error)
}

// TxRunner runs fn inside a storage transaction; repository calls made
// with the ctx it passes join that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
