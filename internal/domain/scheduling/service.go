package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telecare/telecare/internal/platform/clock"
)

// Service implements the appointment lifecycle: booking, status
// transitions, payment capture, cancellation, join evaluation, and
// slot listings.
type Service struct {
	appointments AppointmentRepository
	availability AvailabilityRepository
	directory    DoctorDirectory
	tx           TxRunner
	clock        clock.Clock
	displayLoc   *time.Location
}

func NewService(appts AppointmentRepository, avail AvailabilityRepository, dir DoctorDirectory, tx TxRunner, clk clock.Clock, displayLoc *time.Location) *Service {
	if displayLoc == nil {
		displayLoc = time.UTC
	}
	return &Service{
		appointments: appts,
		availability: avail,
		directory:    dir,
		tx:           tx,
		clock:        clk,
		displayLoc:   displayLoc,
	}
}

// -- Booking --

type BookAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           *string   `json:"notes,omitempty"`
}

const defaultDurationMinutes = 30

// BookAppointment creates an appointment after validating the request
// and checking the doctor's calendar. The conflict check and the insert
// run in one transaction, serialized per doctor, so two bookings for
// the same doctor cannot both pass the check. The initial status
// depends on the doctor's fee: a paid consultation starts as a payment
// hold, a free one is scheduled immediately.
func (s *Service) BookAppointment(ctx context.Context, req BookAppointmentRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if req.DoctorID == uuid.Nil {
		return nil, &ValidationError{Field: "doctor_id", Reason: "is required"}
	}
	now := s.clock.Now()
	if req.ScheduledAt.IsZero() {
		return nil, &ValidationError{Field: "scheduled_at", Reason: "is required"}
	}
	if !req.ScheduledAt.After(now) {
		return nil, &ValidationError{Field: "scheduled_at", Reason: "must be in the future"}
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = defaultDurationMinutes
	}
	if req.DurationMinutes < 0 {
		return nil, &ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	}

	profile, err := s.directory.Profile(ctx, req.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	if !profile.Approved {
		return nil, ErrDoctorNotApproved
	}

	status := StatusScheduled
	if profile.Fee > 0 {
		status = StatusPaymentPending
	}

	apt := &Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          status,
		PaymentStatus:   PaymentPending,
		Amount:          profile.Fee,
		Notes:           req.Notes,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.LockDoctor(ctx, req.DoctorID); err != nil {
			return fmt.Errorf("lock doctor calendar: %w", err)
		}
		conflict, err := s.appointments.FindBookingConflict(ctx, req.DoctorID, apt.ScheduledAt, apt.EndTime())
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if conflict != nil {
			return &SlotConflictError{ConflictStart: conflict.ScheduledAt, ConflictEnd: conflict.EndTime()}
		}
		return s.appointments.Create(ctx, apt)
	})
	if err != nil {
		return nil, err
	}
	return s.appointments.GetByID(ctx, apt.ID)
}

// -- Reads --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) SearchAppointments(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	if st, ok := params["status"]; ok {
		if _, err := ParseStatus(st); err != nil {
			return nil, 0, &ValidationError{Field: "status", Reason: err.Error()}
		}
	}
	return s.appointments.Search(ctx, params, limit, offset)
}

// -- Status transitions --

// transition applies a compare-and-set status change. A request for a
// transition that already happened returns the current record without
// error, so retried requests and races with the reconciler are no-ops.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, note *string) (*Appointment, error) {
	for {
		apt, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if apt.Status == to {
			return apt, nil
		}
		if !apt.Status.CanTransition(to) {
			return nil, &IllegalTransitionError{From: apt.Status, To: to}
		}
		ok, err := s.appointments.UpdateStatusIf(ctx, id, apt.Status, to, note)
		if err != nil {
			return nil, err
		}
		if ok {
			apt.Status = to
			if note != nil {
				apt.Notes = note
			}
			return apt, nil
		}
		// Lost a race; re-read and re-evaluate against the new status.
	}
}

// ConfirmAppointment moves SCHEDULED to CONFIRMED. Doctors confirm
// their own appointments; admins may confirm any.
func (s *Service) ConfirmAppointment(ctx context.Context, id, actorID uuid.UUID, role Role) (*Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && actorID != apt.DoctorID {
		return nil, ErrAccessDenied
	}
	return s.transition(ctx, id, StatusConfirmed, nil)
}

// StartAppointment moves CONFIRMED to IN_PROGRESS when the doctor
// begins the consultation ahead of the automatic start.
func (s *Service) StartAppointment(ctx context.Context, id, actorID uuid.UUID, role Role) (*Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && actorID != apt.DoctorID {
		return nil, ErrAccessDenied
	}
	return s.transition(ctx, id, StatusInProgress, nil)
}

// CompleteAppointment moves IN_PROGRESS to COMPLETED when the doctor
// ends the consultation before the reconciler would.
func (s *Service) CompleteAppointment(ctx context.Context, id, actorID uuid.UUID, role Role) (*Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && actorID != apt.DoctorID {
		return nil, ErrAccessDenied
	}
	return s.transition(ctx, id, StatusCompleted, nil)
}

// -- Payment --

// CapturePayment records the outcome of the patient's payment. Success
// releases the hold (PAYMENT_PENDING to SCHEDULED); failure keeps the
// hold open so the patient can retry until the reconciler expires it.
func (s *Service) CapturePayment(ctx context.Context, id, actorID uuid.UUID, role Role, success bool) (*Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && actorID != apt.PatientID {
		return nil, ErrAccessDenied
	}
	if !success {
		if err := s.appointments.SetPaymentStatus(ctx, id, PaymentFailed); err != nil {
			return nil, err
		}
		return s.appointments.GetByID(ctx, id)
	}
	apt, err = s.transition(ctx, id, StatusScheduled, nil)
	if err != nil {
		return nil, err
	}
	if err := s.appointments.SetPaymentStatus(ctx, id, PaymentCompleted); err != nil {
		return nil, err
	}
	apt.PaymentStatus = PaymentCompleted
	return apt, nil
}

// -- Cancellation --

// CancelAppointment cancels from any pre-consultation status. The
// cutoff applies to patients and doctors; admins may cancel at any
// time before the consultation starts. A paid appointment is marked
// for refund.
func (s *Service) CancelAppointment(ctx context.Context, id, actorID uuid.UUID, role Role, reason *string) (*Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && !apt.IsParticipant(actorID) {
		return nil, ErrAccessDenied
	}
	if apt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if apt.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if apt.Status == StatusInProgress {
		return nil, &IllegalTransitionError{From: apt.Status, To: StatusCancelled}
	}
	if role != RoleAdmin {
		cutoff := apt.ScheduledAt.Add(-CancellationCutoff)
		if !s.clock.Now().Before(cutoff) {
			return nil, &CancellationWindowClosedError{Cutoff: cutoff}
		}
	}

	apt, err = s.transition(ctx, id, StatusCancelled, reason)
	if err != nil {
		return nil, err
	}
	if apt.PaymentStatus == PaymentCompleted {
		if err := s.appointments.SetPaymentStatus(ctx, id, PaymentRefunded); err != nil {
			return nil, err
		}
		apt.PaymentStatus = PaymentRefunded
	}
	return apt, nil
}

// -- Join window --

// EvaluateJoin decides whether userID may enter the consultation right
// now. On top of the pure window evaluation it applies the doctor
// exclusivity check: a doctor already in another consultation is told
// so instead of being admitted to a second room.
func (s *Service) EvaluateJoin(ctx context.Context, id, userID uuid.UUID) (JoinDecision, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return JoinDecision{}, err
	}

	decision := evaluateJoinWindow(apt, userID, s.clock.Now())
	if decision.CanJoin && apt.RoleOf(userID) == RoleDoctor {
		busy, err := s.appointments.CountInProgressForDoctor(ctx, apt.DoctorID, apt.ID)
		if err != nil {
			return JoinDecision{}, fmt.Errorf("check doctor exclusivity: %w", err)
		}
		if busy > 0 {
			return JoinDecision{CanJoin: false, Reason: "doctor is in another consultation"}, nil
		}
	}
	return decision, nil
}

// -- Availability and slots --

// SetAvailability validates and saves a doctor's bookable window for
// one date, replacing any previous window for that date.
func (s *Service) SetAvailability(ctx context.Context, av *DoctorAvailability) (*DoctorAvailability, error) {
	if av.DoctorID == uuid.Nil {
		return nil, &ValidationError{Field: "doctor_id", Reason: "is required"}
	}
	if _, err := time.Parse("2006-01-02", av.Date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "want YYYY-MM-DD"}
	}
	if av.SlotDuration == 0 {
		av.SlotDuration = defaultDurationMinutes
	}
	// Parses both clock times and checks ordering.
	if _, err := GenerateSlots(av.StartTime, av.EndTime, av.SlotDuration); err != nil {
		return nil, err
	}
	if err := s.availability.Upsert(ctx, av); err != nil {
		return nil, err
	}
	return s.availability.GetByDoctorDate(ctx, av.DoctorID, av.Date)
}

func (s *Service) ListAvailability(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorAvailability, int, error) {
	return s.availability.ListByDoctor(ctx, doctorID, limit, offset)
}

// DeleteAvailability removes one of doctorID's windows. The id is
// matched together with its owner, so another doctor's window reads
// as not found.
func (s *Service) DeleteAvailability(ctx context.Context, doctorID, id uuid.UUID) error {
	ok, err := s.availability.Delete(ctx, doctorID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAvailabilityNotFound
	}
	return nil
}

// ListAvailableSlots expands the doctor's declared window for a date
// into concrete slots and marks each one bookable or not against the
// doctor's existing appointments. Slot times are interpreted in the
// display timezone and returned in UTC alongside a localized label.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]SlotView, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.displayLoc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "want YYYY-MM-DD"}
	}

	av, err := s.availability.GetByDoctorDate(ctx, doctorID, date)
	if errors.Is(err, ErrAvailabilityNotFound) {
		return []SlotView{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !av.IsAvailable {
		return []SlotView{}, nil
	}

	starts, err := GenerateSlots(av.StartTime, av.EndTime, av.SlotDuration)
	if err != nil {
		return nil, err
	}

	existing, err := s.appointments.ListForDoctorBetween(ctx, doctorID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slots := make([]SlotView, 0, len(starts))
	for _, hhmm := range starts {
		minutes, err := parseClock(hhmm)
		if err != nil {
			return nil, err
		}
		start := day.Add(time.Duration(minutes) * time.Minute)
		slots = append(slots, SlotView{
			Time:        hhmm,
			DisplayTime: start.In(s.displayLoc).Format("3:04 PM"),
			Available:   slotAvailable(start.UTC(), av.SlotDuration, now, existing),
		})
	}
	return slots, nil
}
