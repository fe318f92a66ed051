package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

const dateLayout = "2006-01-02"

type RegisterRequest struct {
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	GuardianID  *string `json:"guardian_id,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

type AccountResponse struct {
	ID    uuid.UUID `json:"id"`
	Kind  string    `json:"kind"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type BookAppointmentRequest struct {
	DoctorID string  `json:"doctor_id"`
	Date     string  `json:"date"`
	TimeSlot string  `json:"time_slot"`
	Notes    *string `json:"notes,omitempty"`
	Symptoms *string `json:"symptoms,omitempty"`
	Priority string  `json:"priority,omitempty"`
}

type UpdateAppointmentRequest struct {
	Date     *string `json:"date,omitempty"`
	TimeSlot *string `json:"time_slot,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	Symptoms *string `json:"symptoms,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

type CancelAppointmentRequest struct {
	CancellationReason string `json:"cancellation_reason"`
}

type GenerateSlotsRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
}

type SlotResponse struct {
	TimeSlot string `json:"time_slot"`
	IsBooked bool   `json:"is_booked"`
}

type AvailabilityResponse struct {
	Doctor         DoctorResponse `json:"doctor"`
	Date           string         `json:"date"`
	AvailableSlots []SlotResponse `json:"available_slots"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patient_id"`
	DoctorID           uuid.UUID `json:"doctor_id"`
	Date               string    `json:"date"`
	TimeSlot           string    `json:"time_slot"`
	Status             string    `json:"status"`
	Priority           string    `json:"priority"`
	PaymentStatus      string    `json:"payment_status"`
	Notes              *string   `json:"notes,omitempty"`
	Symptoms           *string   `json:"symptoms,omitempty"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type PageResponse struct {
	Items any `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func toDoctorResponse(d scheduling.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
	}
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		DoctorID:           a.DoctorID,
		Date:               a.Date.Format(dateLayout),
		TimeSlot:           a.TimeSlot,
		Status:             string(a.Status),
		Priority:           string(a.Priority),
		PaymentStatus:      string(a.PaymentStatus),
		Notes:              a.Notes,
		Symptoms:           a.Symptoms,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
