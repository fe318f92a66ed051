package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Constraint names from the schema. Unique violations are mapped back to
// domain errors by name so the storage layer stays the final race arbiter.
const (
	constraintSlotBinding      = "appointments_doctor_date_slot_live"
	constraintPatientDoctorDay = "appointments_patient_doctor_date_live"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.TimeSlot,
		&s.IsBooked,
		&s.AppointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const appointmentColumns = `
	id, patient_id, doctor_id, date, time_slot, status, priority,
	payment_status, source, notes, symptoms, cancelled_by,
	cancellation_reason, rescheduled_from, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.TimeSlot,
		&a.Status,
		&a.Priority,
		&a.PaymentStatus,
		&a.Source,
		&a.Notes,
		&a.Symptoms,
		&a.CancelledBy,
		&a.CancellationReason,
		&a.RescheduledFrom,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case constraintSlotBinding:
			return ErrBookingConflict
		case constraintPatientDoctorDay:
			return ErrDuplicateBooking
		}
	}
	return err
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	d, err := scanDoctor(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, start_time, end_time, is_working
		FROM working_hours
		WHERE doctor_id = $1
		ORDER BY day_of_week
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var h WorkingHours
		var day int
		if err := rows.Scan(&day, &h.StartTime, &h.EndTime, &h.IsWorking); err != nil {
			return nil, err
		}
		h.DayOfWeek = time.Weekday(day)
		d.Hours = append(d.Hours, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return d, nil
}

func (r *PgRepository) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]Doctor, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM doctors
		WHERE active AND ($1 = '' OR specialization = $1)
	`, specialization).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialization, active, created_at, updated_at
		FROM doctors
		WHERE active AND ($1 = '' OR specialization = $1)
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, specialization, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, active
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, date, time_slot, is_booked, appointment_id, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1 AND date = $2 AND is_booked = FALSE
		ORDER BY time_slot
	`, doctorID, NormalizeDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// InsertSlots appends newly generated slots. Pairs already present are
// skipped at the storage layer, which makes generation idempotent and
// safe to run concurrently: a booked slot is never reset.
func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	created := 0
	for _, s := range slots {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO slots (id, doctor_id, date, time_slot, is_booked, created_at, updated_at)
			VALUES ($1, $2, $3, $4, FALSE, now(), now())
			ON CONFLICT (doctor_id, date, time_slot) DO NOTHING
		`, s.ID, s.DoctorID, NormalizeDate(s.Date), s.TimeSlot)
		if err != nil {
			return created, fmt.Errorf("insert slot: %w", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func (r *PgRepository) ClaimSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, timeSlot string, appointmentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = TRUE,
		    appointment_id = $4,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND date = $2
		  AND time_slot = $3
		  AND is_booked = FALSE
	`, doctorID, NormalizeDate(date), timeSlot, appointmentID)
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, doctorID, appointmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = FALSE,
		    appointment_id = NULL,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND appointment_id = $2
	`, doctorID, appointmentID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, date, time_slot, status, priority,
			payment_status, source, notes, symptoms, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, NormalizeDate(a.Date), a.TimeSlot,
		a.Status, a.Priority, a.PaymentStatus, a.Source, a.Notes, a.Symptoms)

	created, err := scanAppointment(row)
	if err != nil {
		return mapUniqueViolation(err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET date = $2,
		    time_slot = $3,
		    status = $4,
		    priority = $5,
		    notes = $6,
		    symptoms = $7,
		    rescheduled_from = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, a.ID, NormalizeDate(a.Date), a.TimeSlot, a.Status, a.Priority,
		a.Notes, a.Symptoms, a.RescheduledFrom)

	updated, err := scanAppointment(row)
	if err != nil {
		return mapUniqueViolation(err)
	}
	*a = *updated
	return nil
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id, cancelledBy uuid.UUID, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_by = $2,
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed', 'rescheduled')
		RETURNING `+appointmentColumns+`
	`, id, cancelledBy, reason)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]Appointment, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM appointments
		WHERE patient_id = $1 AND ($2 = '' OR status = $2)
	`, patientID, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY date DESC, time_slot DESC
		LIMIT $3 OFFSET $4
	`, patientID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *PgRepository) HasActiveBooking(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			  AND doctor_id = $2
			  AND date = $3
			  AND status IN ('pending', 'confirmed', 'rescheduled')
		)
	`, patientID, doctorID, NormalizeDate(date)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListOverdueAppointments returns live appointments whose instant has
// passed, candidates for the completion worker.
func (r *PgRepository) ListOverdueAppointments(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed', 'rescheduled')
		  AND date + (split_part(time_slot, ':', 1)::int * interval '1 hour')
		       + (split_part(time_slot, ':', 2)::int * interval '1 minute') < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev BookingEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
