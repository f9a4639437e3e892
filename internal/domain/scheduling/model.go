package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of an appointment. The set is closed;
// every transition goes through CanTransition.
type Status string

const (
	StatusPaymentPending Status = "PAYMENT_PENDING"
	StatusScheduled      Status = "SCHEDULED"
	StatusConfirmed      Status = "CONFIRMED"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// ParseStatus validates a status string against the closed set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPaymentPending, StatusScheduled, StatusConfirmed,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid appointment status: %q", s)
}

// Terminal reports whether no further transitions leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition is the single dispatch point for the status state
// machine. Guards that depend on the actor or on wall-clock time are
// enforced by the service; this table only encodes which edges exist.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPaymentPending:
		return to == StatusScheduled || to == StatusCancelled
	case StatusScheduled:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusInProgress || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// PaymentStatus tracks the payment axis, independent of Status.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// ParsePaymentStatus validates a payment status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("invalid payment status: %q", s)
}

// Role identifies what an actor is in relation to an appointment.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Timing policy for the join window and automatic transitions.
const (
	// JoinBuffer is the grace period before the scheduled start and
	// after the nominal end during which joining is still permitted.
	JoinBuffer = 5 * time.Minute

	// CancellationCutoff is how long before the scheduled start a
	// cancellation request must arrive.
	CancellationCutoff = 2 * time.Hour

	// PaymentHoldTimeout is how long a PAYMENT_PENDING appointment may
	// sit unpaid before the reconciler cancels it.
	PaymentHoldTimeout = 2 * time.Hour
)

// Appointment maps to the appointment table. Participants, scheduled
// time, and duration are immutable after creation; rows are never
// deleted, cancellation is a terminal status.
type Appointment struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	PatientID       uuid.UUID     `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID     `db:"doctor_id" json:"doctor_id"`
	ScheduledAt     time.Time     `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Status          Status        `db:"status" json:"status"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	// Amount is the consultation fee in minor currency units,
	// snapshotted from the doctor's profile at booking time.
	Amount    int64     `db:"amount" json:"amount"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EndTime returns scheduledAt + duration.
func (a *Appointment) EndTime() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// WindowStart returns the instant the join window opens.
func (a *Appointment) WindowStart() time.Time {
	return a.ScheduledAt.Add(-JoinBuffer)
}

// WindowEnd returns the instant the join window closes.
func (a *Appointment) WindowEnd() time.Time {
	return a.EndTime().Add(JoinBuffer)
}

// IsParticipant reports whether userID is the patient or the doctor.
func (a *Appointment) IsParticipant(userID uuid.UUID) bool {
	return userID == a.PatientID || userID == a.DoctorID
}

// RoleOf returns the role userID plays on this appointment, or "" when
// they are not a participant.
func (a *Appointment) RoleOf(userID uuid.UUID) Role {
	switch userID {
	case a.DoctorID:
		return RoleDoctor
	case a.PatientID:
		return RolePatient
	}
	return ""
}

// DoctorAvailability maps to the doctor_availability table: one
// declared bookable window per (doctor, date). Date is a calendar day
// in the display timezone; StartTime/EndTime are local HH:MM clock
// times; re-saving upserts.
type DoctorAvailability struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DoctorID     uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date         string    `db:"date" json:"date"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	SlotDuration int       `db:"slot_duration" json:"slot_duration"`
	IsAvailable  bool      `db:"is_available" json:"is_available"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// JoinDecision is the result of evaluating join eligibility for one
// (appointment, participant, instant). Derived value, never persisted.
type JoinDecision struct {
	CanJoin bool   `json:"can_join"`
	Reason  string `json:"reason,omitempty"`
	// TimeUntilStart counts whole minutes until joining becomes
	// possible (before the window opens) or until the nominal start
	// (inside the window); 0 once the appointment has started.
	TimeUntilStart int `json:"time_until_start"`
	// TimeUntilEnd counts whole minutes until the join window closes.
	TimeUntilEnd int `json:"time_until_end"`
}

// SlotView is one candidate slot in an availability listing.
type SlotView struct {
	Time        string `json:"time"`
	DisplayTime string `json:"display_time"`
	Available   bool   `json:"available"`
}

// DoctorProfile is the subset of a doctor's directory record the
// booking path needs: the approval gate and the fee to snapshot.
type DoctorProfile struct {
	ID       uuid.UUID
	Approved bool
	Fee      int64
}
