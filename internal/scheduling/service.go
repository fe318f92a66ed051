package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingCancelled   = "BOOKING_CANCELLED"
	EventBookingRescheduled = "BOOKING_RESCHEDULED"
	EventBookingCompleted   = "BOOKING_COMPLETED"
	EventBookingConfirmed   = "BOOKING_CONFIRMED"
	EventCompensationFailed = "COMPENSATION_FAILED"
)

var (
	ErrDoctorInactive          = errors.New("doctor is not active")
	ErrPatientInactive         = errors.New("patient account is not active")
	ErrPastDate                = errors.New("date is in the past")
	ErrInvalidTimeSlot         = errors.New("invalid time slot")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrCancelWindowClosed      = errors.New("too close to the appointment time to cancel")
	ErrRescheduleWindowClosed  = errors.New("too close to the appointment time to reschedule")
	ErrNotOwner                = errors.New("appointment belongs to another patient")
	ErrInvalidStatusTransition = errors.New("appointment is no longer active")
)

const (
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

// Caller is the identity the transport layer extracted for the request.
// The scheduling core trusts it.
type Caller struct {
	ID   uuid.UUID
	Role string
}

func (c Caller) mayAccess(a *Appointment) bool {
	return c.Role == RoleAdmin || a.PatientID == c.ID
}

// Policy holds the time-window rules the lifecycle enforces. Both
// windows are strict: a request exactly on the boundary is too late.
type Policy struct {
	SlotDuration     time.Duration
	CancelWindow     time.Duration
	RescheduleWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		SlotDuration:     DefaultSlotDuration,
		CancelWindow:     24 * time.Hour,
		RescheduleWindow: 12 * time.Hour,
	}
}

// AvailabilityCache is a read-through cache for per-day free-slot
// listings. A miss is never an error; the repository is authoritative.
type AvailabilityCache interface {
	GetFreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, bool)
	SetFreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, slots []Slot)
	Invalidate(ctx context.Context, doctorID uuid.UUID, date time.Time)
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) GetFreeSlots(context.Context, uuid.UUID, time.Time) ([]Slot, bool) { return nil, false }
func (NopCache) SetFreeSlots(context.Context, uuid.UUID, time.Time, []Slot)        {}
func (NopCache) Invalidate(context.Context, uuid.UUID, time.Time)                  {}

type Service struct {
	repo     Repository
	cache    AvailabilityCache
	notifier Notifier
	log      zerolog.Logger
	policy   Policy
	now      func() time.Time
}

func NewService(repo Repository, cache AvailabilityCache, notifier Notifier, log zerolog.Logger, policy Policy) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		log:      log,
		policy:   policy,
		now:      time.Now,
	}
}

// -- Doctors --

func (s *Service) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]Doctor, int, error) {
	limit, offset = clampPage(limit, offset)
	doctors, total, err := s.repo.ListDoctors(ctx, specialization, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, total, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

// -- Availability --

// AvailableSlots returns the free slots of a doctor for one calendar
// day, generating them from the recurring calendar on the first request
// for a day that has no slots yet. An empty result after generation
// means the day is fully booked or outside working hours.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	date = NormalizeDate(date)
	if date.Before(NormalizeDate(s.now())) {
		return nil, ErrPastDate
	}

	if slots, ok := s.cache.GetFreeSlots(ctx, doctorID, date); ok {
		return slots, nil
	}

	slots, err := s.repo.ListFreeSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}

	if len(slots) == 0 {
		// Distinguish "not yet generated" from "fully booked".
		created, err := s.generateForRange(ctx, doctor, date, date)
		if err != nil {
			return nil, err
		}
		if created > 0 {
			slots, err = s.repo.ListFreeSlots(ctx, doctorID, date)
			if err != nil {
				return nil, fmt.Errorf("list free slots: %w", err)
			}
		}
	}

	s.cache.SetFreeSlots(ctx, doctorID, date, slots)
	return slots, nil
}

// GenerateSlots is the administrative bulk seeding operation over an
// inclusive date range. Re-running over an overlapping range never
// duplicates or alters existing slots.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	created, err := s.generateForRange(ctx, doctor, from, to)
	if err != nil {
		return 0, err
	}
	for day := NormalizeDate(from); !day.After(NormalizeDate(to)); day = day.AddDate(0, 0, 1) {
		s.cache.Invalidate(ctx, doctorID, day)
	}
	if created > 0 {
		s.log.Info().
			Str("doctor_id", doctorID.String()).
			Int("created", created).
			Msg("slots generated")
	}
	return created, nil
}

func (s *Service) generateForRange(ctx context.Context, doctor *Doctor, from, to time.Time) (int, error) {
	cal, err := doctor.Calendar()
	if err != nil {
		return 0, fmt.Errorf("doctor calendar: %w", err)
	}
	candidates, err := ExpandCalendar(cal, doctor.ID, from, to, s.policy.SlotDuration)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	created, err := s.repo.InsertSlots(ctx, candidates)
	if err != nil {
		return created, fmt.Errorf("insert slots: %w", err)
	}
	return created, nil
}

// -- Booking --

type BookingRequest struct {
	DoctorID uuid.UUID
	Date     time.Time
	TimeSlot string
	Notes    *string
	Symptoms *string
	Priority Priority
	Source   string
}

// Book reserves a slot for a patient. Slot claim and appointment
// creation live in separate tables, so this is a two-step commit:
// create the pending appointment first, then claim the slot with one
// conditional update. Losing the claim race triggers a compensating
// delete of the just-created appointment.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req BookingRequest) (*Appointment, error) {
	if _, err := ParseClock(req.TimeSlot); err != nil {
		return nil, ErrInvalidTimeSlot
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidStatus, req.Priority)
	}

	date := NormalizeDate(req.Date)
	if date.Before(NormalizeDate(s.now())) {
		return nil, ErrPastDate
	}

	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.Active {
		return nil, ErrPatientInactive
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	taken, err := s.repo.HasActiveBooking(ctx, patientID, req.DoctorID, date)
	if err != nil {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}
	if taken {
		return nil, ErrDuplicateBooking
	}

	// Advisory check only; the claim below is the real arbiter.
	free, err := s.AvailableSlots(ctx, req.DoctorID, date)
	if err != nil {
		return nil, err
	}
	if !containsSlot(free, req.TimeSlot) {
		return nil, ErrSlotUnavailable
	}

	appt := &Appointment{
		ID:            uuid.New(),
		PatientID:     patientID,
		DoctorID:      req.DoctorID,
		Date:          date,
		TimeSlot:      req.TimeSlot,
		Status:        StatusPending,
		Priority:      req.Priority,
		PaymentStatus: PaymentPending,
		Source:        req.Source,
		Notes:         req.Notes,
		Symptoms:      req.Symptoms,
	}
	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}

	if err := s.repo.ClaimSlot(ctx, req.DoctorID, date, req.TimeSlot, appt.ID); err != nil {
		s.compensateOrphan(ctx, appt)
		if errors.Is(err, ErrSlotUnavailable) {
			// Passed the advisory check but lost the claim race.
			return nil, ErrBookingConflict
		}
		return nil, fmt.Errorf("claim slot: %w", err)
	}

	s.cache.Invalidate(ctx, req.DoctorID, date)
	s.logEvent(ctx, appt.ID, EventBookingCreated, map[string]any{
		"doctor_id":  req.DoctorID.String(),
		"patient_id": patientID.String(),
		"date":       date.Format("2006-01-02"),
		"time_slot":  req.TimeSlot,
	})
	s.notifier.AppointmentBooked(ctx, appt)

	return appt, nil
}

// compensateOrphan deletes an appointment whose slot claim failed. If
// the delete itself fails, the orphan must surface as an operational
// alert rather than failing the caller twice.
func (s *Service) compensateOrphan(ctx context.Context, appt *Appointment) {
	if err := s.repo.DeleteAppointment(ctx, appt.ID); err != nil {
		s.log.Error().
			Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("alert", "orphaned_pending_appointment").
			Msg("compensation failed: pending appointment left without a bound slot")
		s.logEvent(ctx, appt.ID, EventCompensationFailed, map[string]any{
			"error": err.Error(),
		})
	}
}

// -- Lifecycle --

func (s *Service) GetAppointment(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.mayAccess(appt) {
		return nil, ErrNotOwner
	}
	return appt, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]Appointment, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	limit, offset = clampPage(limit, offset)
	appts, total, err := s.repo.ListAppointmentsByPatient(ctx, patientID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return appts, total, nil
}

// Cancel moves a live appointment to cancelled and frees its slot.
// Allowed strictly more than the cancel window before the appointment
// instant.
func (s *Service) Cancel(ctx context.Context, caller Caller, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.mayAccess(appt) {
		return nil, ErrNotOwner
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidStatusTransition
	}
	if !s.now().Before(appt.StartsAt().Add(-s.policy.CancelWindow)) {
		return nil, ErrCancelWindowClosed
	}

	cancelled, err := s.repo.CancelAppointment(ctx, id, caller.ID, reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race to another transition.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.releaseBinding(ctx, cancelled)
	s.cache.Invalidate(ctx, cancelled.DoctorID, cancelled.Date)
	s.logEvent(ctx, cancelled.ID, EventBookingCancelled, map[string]any{
		"cancelled_by": caller.ID.String(),
		"reason":       reason,
	})
	s.notifier.AppointmentCancelled(ctx, cancelled)

	return cancelled, nil
}

type UpdateRequest struct {
	Date     *time.Time
	TimeSlot *string
	Notes    *string
	Symptoms *string
	Priority *Priority
}

// Update mutates an appointment's fields. If the date or time slot
// changes, the old slot binding is released and the new slot claimed;
// a failed claim restores the original binding so the appointment is
// never left unbound. Allowed strictly more than the reschedule window
// before the current appointment instant.
func (s *Service) Update(ctx context.Context, caller Caller, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.mayAccess(appt) {
		return nil, ErrNotOwner
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidStatusTransition
	}
	if !s.now().Before(appt.StartsAt().Add(-s.policy.RescheduleWindow)) {
		return nil, ErrRescheduleWindowClosed
	}

	oldDate, oldSlot := appt.Date, appt.TimeSlot

	newDate := oldDate
	if req.Date != nil {
		newDate = NormalizeDate(*req.Date)
	}
	newSlot := oldSlot
	if req.TimeSlot != nil {
		newSlot = *req.TimeSlot
	}
	moving := !newDate.Equal(oldDate) || newSlot != oldSlot

	if moving {
		if _, err := ParseClock(newSlot); err != nil {
			return nil, ErrInvalidTimeSlot
		}
		if newDate.Before(NormalizeDate(s.now())) {
			return nil, ErrPastDate
		}
		if !newDate.Equal(oldDate) {
			taken, err := s.repo.HasActiveBooking(ctx, appt.PatientID, appt.DoctorID, newDate)
			if err != nil {
				return nil, fmt.Errorf("check existing booking: %w", err)
			}
			if taken {
				return nil, ErrDuplicateBooking
			}
		}

		if err := s.repo.ReleaseSlot(ctx, appt.DoctorID, appt.ID); err != nil {
			return nil, fmt.Errorf("release current slot: %w", err)
		}
		if err := s.repo.ClaimSlot(ctx, appt.DoctorID, newDate, newSlot, appt.ID); err != nil {
			s.restoreBinding(ctx, appt, oldDate, oldSlot)
			if errors.Is(err, ErrSlotUnavailable) {
				return nil, ErrSlotUnavailable
			}
			return nil, fmt.Errorf("claim new slot: %w", err)
		}

		appt.Date = newDate
		appt.TimeSlot = newSlot
		appt.Status = StatusRescheduled
	}

	if req.Notes != nil {
		appt.Notes = req.Notes
	}
	if req.Symptoms != nil {
		appt.Symptoms = req.Symptoms
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidStatus, *req.Priority)
		}
		appt.Priority = *req.Priority
	}

	if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
		if moving {
			// Undo the move before reporting the failure.
			if relErr := s.repo.ReleaseSlot(ctx, appt.DoctorID, appt.ID); relErr == nil {
				s.restoreBinding(ctx, appt, oldDate, oldSlot)
			}
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, appt.DoctorID, oldDate)
	if moving {
		s.cache.Invalidate(ctx, appt.DoctorID, appt.Date)
		s.logEvent(ctx, appt.ID, EventBookingRescheduled, map[string]any{
			"from_date": oldDate.Format("2006-01-02"),
			"from_slot": oldSlot,
			"to_date":   appt.Date.Format("2006-01-02"),
			"to_slot":   appt.TimeSlot,
		})
		s.notifier.AppointmentRescheduled(ctx, appt)
	}

	return appt, nil
}

// restoreBinding re-claims the slot an appointment held before a failed
// move. Failure here means the appointment is live but unbound, which
// must surface as an operational alert.
func (s *Service) restoreBinding(ctx context.Context, appt *Appointment, date time.Time, timeSlot string) {
	if err := s.repo.ClaimSlot(ctx, appt.DoctorID, date, timeSlot, appt.ID); err != nil {
		s.log.Error().
			Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("alert", "unbound_appointment").
			Str("date", date.Format("2006-01-02")).
			Str("time_slot", timeSlot).
			Msg("failed to restore original slot binding after aborted reschedule")
		s.logEvent(ctx, appt.ID, EventCompensationFailed, map[string]any{
			"stage": "restore_binding",
			"date":  date.Format("2006-01-02"),
			"slot":  timeSlot,
		})
	}
}

// Confirm is an administrative transition from pending to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	s.logEvent(ctx, appt.ID, EventBookingConfirmed, map[string]any{})
	return appt, nil
}

// CompleteOverdue marks live appointments whose instant has passed as
// completed and releases their slots. Intended for the periodic worker.
func (s *Service) CompleteOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.ListOverdueAppointments(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list overdue appointments: %w", err)
	}

	completed := 0
	for _, appt := range overdue {
		done, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCompleted)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // raced with another transition
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to complete appointment")
			continue
		}
		s.releaseBinding(ctx, done)
		s.cache.Invalidate(ctx, done.DoctorID, done.Date)
		s.logEvent(ctx, done.ID, EventBookingCompleted, map[string]any{})
		completed++
	}

	return completed, nil
}

// releaseBinding frees the slot of an appointment that just entered a
// terminal state. The transition has already committed, so a failure is
// logged as an alert instead of failing the original request.
func (s *Service) releaseBinding(ctx context.Context, appt *Appointment) {
	if err := s.repo.ReleaseSlot(ctx, appt.DoctorID, appt.ID); err != nil {
		s.log.Error().
			Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("alert", "stale_slot_binding").
			Msg("failed to release slot for terminal appointment")
		s.logEvent(ctx, appt.ID, EventCompensationFailed, map[string]any{
			"stage": "release_binding",
		})
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := BookingEvent{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().
			Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert booking event")
	}
}

func containsSlot(slots []Slot, timeSlot string) bool {
	for _, s := range slots {
		if s.TimeSlot == timeSlot {
			return true
		}
	}
	return false
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
