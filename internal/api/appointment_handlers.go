package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

// POST /appointments
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor id", "doctor_id must be a valid UUID")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", "date must be YYYY-MM-DD")
		return
	}

	appt, err := h.svc.Book(r.Context(), caller.ID, scheduling.BookingRequest{
		DoctorID: doctorID,
		Date:     date,
		TimeSlot: req.TimeSlot,
		Notes:    req.Notes,
		Symptoms: req.Symptoms,
		Priority: scheduling.Priority(req.Priority),
		Source:   "web",
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, "appointment booked", toAppointmentResponse(appt))
}

// GET /appointments/me
func (h *Handler) MyAppointments(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	limit, offset, page := parsePage(r)
	status := scheduling.AppointmentStatus(r.URL.Query().Get("status"))

	appts, total, err := h.svc.ListPatientAppointments(r.Context(), caller.ID, status, limit, offset)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	items := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, toAppointmentResponse(&appts[i]))
	}

	writeJSON(w, http.StatusOK, "appointments retrieved", PageResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// GET /appointments/{id}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), caller, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "appointment retrieved", toAppointmentResponse(appt))
}

// PUT /appointments/{id}
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
		return
	}

	update := scheduling.UpdateRequest{
		Notes:    req.Notes,
		Symptoms: req.Symptoms,
	}
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", "date must be YYYY-MM-DD")
			return
		}
		update.Date = &date
	}
	if req.TimeSlot != nil {
		update.TimeSlot = req.TimeSlot
	}
	if req.Priority != nil {
		p := scheduling.Priority(*req.Priority)
		update.Priority = &p
	}

	appt, err := h.svc.Update(r.Context(), caller, id, update)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "appointment updated", toAppointmentResponse(appt))
}

// PATCH /appointments/{id}/cancel
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
		return
	}

	var req CancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
		return
	}
	if req.CancellationReason == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "cancellation_reason is required")
		return
	}

	appt, err := h.svc.Cancel(r.Context(), caller, id, req.CancellationReason)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "appointment cancelled", toAppointmentResponse(appt))
}

// POST /admin/appointments/{id}/confirm
func (h *Handler) ConfirmAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "appointment confirmed", toAppointmentResponse(appt))
}

// POST /admin/doctors/{id}/slots/generate
func (h *Handler) GenerateSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor id", "id must be a valid UUID")
		return
	}

	var req GenerateSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "could not parse JSON")
		return
	}

	from, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date", "start_date must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date", "end_date must be YYYY-MM-DD")
		return
	}

	created, err := h.svc.GenerateSlots(r.Context(), doctorID, from, to)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, "slots generated", map[string]int{"created": created})
}
