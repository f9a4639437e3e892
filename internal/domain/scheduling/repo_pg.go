package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telecare/telecare/internal/platform/db"
)

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

// NewAppointmentRepoPG creates the Postgres appointment repository.
func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.FromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, patient_id, doctor_id, scheduled_at, duration_minutes,
	status, payment_status, amount, notes, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.DurationMinutes,
		&a.Status, &a.PaymentStatus, &a.Amount, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, scheduled_at, duration_minutes,
			status, payment_status, amount, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.DurationMinutes,
		a.Status, a.PaymentStatus, a.Amount, a.Notes)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

func (r *appointmentRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["doctor"]; ok {
		query += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["date"]; ok {
		query += fmt.Sprintf(` AND scheduled_at::date = $%d`, idx)
		countQuery += fmt.Sprintf(` AND scheduled_at::date = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) ListForDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $2
		ORDER BY scheduled_at ASC`,
		doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	// Advisory lock keyed on the doctor id, released when the enclosing
	// transaction ends.
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, doctorID)
	return err
}

func (r *appointmentRepoPG) FindBookingConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1
		  AND status IN ($2, $3)
		  AND scheduled_at < $5
		  AND scheduled_at + make_interval(mins => duration_minutes) > $4
		ORDER BY scheduled_at ASC
		LIMIT 1`,
		doctorID, StatusScheduled, StatusConfirmed, start, end))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *appointmentRepoPG) CountInProgressForDoctor(ctx context.Context, doctorID, exclude uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointment
		WHERE doctor_id = $1 AND status = $2 AND id <> $3`,
		doctorID, StatusInProgress, exclude).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) listByStatus(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) DueForStart(ctx context.Context, now time.Time) ([]*Appointment, error) {
	return r.listByStatus(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC`,
		StatusConfirmed, now)
}

func (r *appointmentRepoPG) DueForCompletion(ctx context.Context, now time.Time) ([]*Appointment, error) {
	// now > scheduledAt + duration + buffer, rearranged so the buffer
	// is applied to the parameter.
	return r.listByStatus(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE status = $1
		  AND scheduled_at + make_interval(mins => duration_minutes) < $2
		ORDER BY scheduled_at ASC`,
		StatusInProgress, now.Add(-JoinBuffer))
}

func (r *appointmentRepoPG) ExpiredPaymentHolds(ctx context.Context, createdBefore time.Time) ([]*Appointment, error) {
	return r.listByStatus(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE status = $1 AND created_at <= $2
		ORDER BY created_at ASC`,
		StatusPaymentPending, createdBefore)
}

func (r *appointmentRepoPG) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to Status, note *string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET status = $3, notes = COALESCE($4, notes), updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to, note)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *appointmentRepoPG) SetPaymentStatus(ctx context.Context, id uuid.UUID, ps PaymentStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET payment_status = $2, updated_at = NOW() WHERE id = $1`,
		id, ps)
	return err
}

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

// NewAvailabilityRepoPG creates the Postgres availability repository.
func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

func (r *availabilityRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.FromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const availCols = `id, doctor_id, to_char(date, 'YYYY-MM-DD'), start_time, end_time,
	slot_duration, is_available, created_at, updated_at`

func (r *availabilityRepoPG) scanAvail(row pgx.Row) (*DoctorAvailability, error) {
	var av DoctorAvailability
	err := row.Scan(&av.ID, &av.DoctorID, &av.Date, &av.StartTime, &av.EndTime,
		&av.SlotDuration, &av.IsAvailable, &av.CreatedAt, &av.UpdatedAt)
	return &av, err
}

func (r *availabilityRepoPG) Upsert(ctx context.Context, av *DoctorAvailability) error {
	if av.ID == uuid.Nil {
		av.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_availability (id, doctor_id, date, start_time, end_time, slot_duration, is_available)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
		ON CONFLICT (doctor_id, date) DO UPDATE
		SET start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    slot_duration = EXCLUDED.slot_duration,
		    is_available = EXCLUDED.is_available,
		    updated_at = NOW()`,
		av.ID, av.DoctorID, av.Date, av.StartTime, av.EndTime, av.SlotDuration, av.IsAvailable)
	return err
}

func (r *availabilityRepoPG) GetByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) (*DoctorAvailability, error) {
	av, err := r.scanAvail(r.conn(ctx).QueryRow(ctx, `
		SELECT `+availCols+` FROM doctor_availability
		WHERE doctor_id = $1 AND date = $2::date`,
		doctorID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAvailabilityNotFound
	}
	return av, err
}

func (r *availabilityRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorAvailability, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_availability WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+availCols+` FROM doctor_availability
		WHERE doctor_id = $1 ORDER BY date ASC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DoctorAvailability
	for rows.Next() {
		av, err := r.scanAvail(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, av)
	}
	return items, total, rows.Err()
}

func (r *availabilityRepoPG) Delete(ctx context.Context, doctorID, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM doctor_availability WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
