package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

type Handler struct {
	svc *scheduling.Service
	log zerolog.Logger
}

func NewHandler(svc *scheduling.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// handleError maps domain errors onto the HTTP taxonomy. Unexpected
// faults are logged with context and surfaced as a generic 500.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound),
		errors.Is(err, scheduling.ErrPatientNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, scheduling.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, scheduling.ErrBookingConflict):
		writeError(w, http.StatusConflict, "slot already booked, choose another", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable),
		errors.Is(err, scheduling.ErrDuplicateBooking),
		errors.Is(err, scheduling.ErrPastDate),
		errors.Is(err, scheduling.ErrInvalidTimeSlot),
		errors.Is(err, scheduling.ErrInvalidStatus),
		errors.Is(err, scheduling.ErrCancelWindowClosed),
		errors.Is(err, scheduling.ErrRescheduleWindowClosed),
		errors.Is(err, scheduling.ErrDoctorInactive),
		errors.Is(err, scheduling.ErrPatientInactive),
		errors.Is(err, scheduling.ErrInvalidStatusTransition):
		writeError(w, http.StatusBadRequest, "request rejected", err.Error())
	default:
		h.log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", GetRequestID(r.Context())).
			Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

func callerFrom(r *http.Request) (scheduling.Caller, bool) {
	claims, ok := GetCaller(r.Context())
	if !ok {
		return scheduling.Caller{}, false
	}
	return scheduling.Caller{ID: claims.SubjectID, Role: claims.Role}, true
}

func parsePage(r *http.Request) (limit, offset, page int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit, (page - 1) * limit, page
}

// GET /doctors
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	limit, offset, page := parsePage(r)
	specialization := r.URL.Query().Get("specialization")

	doctors, total, err := h.svc.ListDoctors(r.Context(), specialization, limit, offset)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	items := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		items = append(items, toDoctorResponse(d))
	}

	writeJSON(w, http.StatusOK, "doctors retrieved", PageResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// GET /doctors/{id}/slots?date=YYYY-MM-DD
func (h *Handler) DoctorSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor id", "id must be a valid UUID")
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", "date must be YYYY-MM-DD")
		return
	}

	doctor, err := h.svc.GetDoctor(r.Context(), doctorID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	available := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		available = append(available, SlotResponse{TimeSlot: s.TimeSlot, IsBooked: s.IsBooked})
	}

	writeJSON(w, http.StatusOK, "availability retrieved", AvailabilityResponse{
		Doctor:         toDoctorResponse(*doctor),
		Date:           date.Format(dateLayout),
		AvailableSlots: available,
	})
}
