package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable means the requested slot is not free or does
	// not exist.
	ErrSlotUnavailable = errors.New("slot is already booked, choose another")

	// ErrBookingConflict means two requests raced for the same slot
	// and this one lost, either at the claim or at the storage
	// uniqueness backstop.
	ErrBookingConflict = errors.New("slot was just booked by another request, choose another")

	// ErrDuplicateBooking means the patient already holds a live
	// appointment with this doctor on this date.
	ErrDuplicateBooking = errors.New("patient already has an appointment with this doctor on this date")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]Doctor, int, error)

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Slot collection
	ListFreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error)
	InsertSlots(ctx context.Context, slots []Slot) (int, error)

	// Claim atomically flips one free slot to booked and binds it to
	// the appointment. Returns ErrSlotUnavailable when no matching
	// free slot exists.
	ClaimSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, timeSlot string, appointmentID uuid.UUID) error

	// ReleaseSlot clears the binding for the appointment. Releasing a
	// binding that does not exist is a no-op, not an error.
	ReleaseSlot(ctx context.Context, doctorID, appointmentID uuid.UUID) error

	// Appointments
	CreateAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a *Appointment) error
	CancelAppointment(ctx context.Context, id, cancelledBy uuid.UUID, reason string) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]Appointment, int, error)
	HasActiveBooking(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time) (bool, error)

	// Completion worker
	ListOverdueAppointments(ctx context.Context, before time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev BookingEvent) error
}
