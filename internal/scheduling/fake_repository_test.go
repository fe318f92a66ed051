package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepository is an in-memory Repository with the same atomicity
// guarantees as the Postgres implementation: every method takes the
// mutex, so ClaimSlot is a real compare-and-set under concurrency.
type fakeRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	slots        map[slotKey]*Slot
	appointments map[uuid.UUID]*Appointment
	events       []BookingEvent

	claimErr  error
	deleteErr error
	updateErr error
}

type slotKey struct {
	doctorID uuid.UUID
	date     string
	timeSlot string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		slots:        make(map[slotKey]*Slot),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func keyFor(doctorID uuid.UUID, date time.Time, timeSlot string) slotKey {
	return slotKey{doctorID: doctorID, date: date.Format("2006-01-02"), timeSlot: timeSlot}
}

func (f *fakeRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (f *fakeRepository) ListDoctors(_ context.Context, specialization string, limit, offset int) ([]Doctor, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Doctor
	for _, d := range f.doctors {
		if specialization != "" && d.Specialization != specialization {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (f *fakeRepository) ListFreeSlots(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := date.Format("2006-01-02")
	var out []Slot
	for k, s := range f.slots {
		if k.doctorID == doctorID && k.date == day && !s.IsBooked {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot < out[j].TimeSlot })
	return out, nil
}

func (f *fakeRepository) InsertSlots(_ context.Context, slots []Slot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := 0
	for _, s := range slots {
		k := keyFor(s.DoctorID, s.Date, s.TimeSlot)
		if _, exists := f.slots[k]; exists {
			continue
		}
		cp := s
		f.slots[k] = &cp
		created++
	}
	return created, nil
}

func (f *fakeRepository) ClaimSlot(_ context.Context, doctorID uuid.UUID, date time.Time, timeSlot string, appointmentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	s, ok := f.slots[keyFor(doctorID, date, timeSlot)]
	if !ok || s.IsBooked {
		return ErrSlotUnavailable
	}
	s.IsBooked = true
	id := appointmentID
	s.AppointmentID = &id
	return nil
}

func (f *fakeRepository) ReleaseSlot(_ context.Context, doctorID, appointmentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, s := range f.slots {
		if k.doctorID == doctorID && s.AppointmentID != nil && *s.AppointmentID == appointmentID {
			s.IsBooked = false
			s.AppointmentID = nil
		}
	}
	return nil
}

func (f *fakeRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.appointments[a.ID] = &cp
	return nil
}

func (f *fakeRepository) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.appointments, id)
	return nil
}

func (f *fakeRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepository) UpdateAppointment(_ context.Context, a *Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.appointments[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	cp := *a
	f.appointments[a.ID] = &cp
	return nil
}

func (f *fakeRepository) CancelAppointment(_ context.Context, id, cancelledBy uuid.UUID, reason string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Status.Terminal() {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCancelled
	by := cancelledBy
	a.CancelledBy = &by
	r := reason
	a.CancellationReason = &r
	cp := *a
	return &cp, nil
}

func (f *fakeRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (f *fakeRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]Appointment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appointments {
		if a.PatientID != patientID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TimeSlot < out[j].TimeSlot
	})
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeRepository) HasActiveBooking(_ context.Context, patientID, doctorID uuid.UUID, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := date.Format("2006-01-02")
	for _, a := range f.appointments {
		if a.PatientID == patientID && a.DoctorID == doctorID &&
			a.Date.Format("2006-01-02") == day && !a.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) ListOverdueAppointments(_ context.Context, before time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appointments {
		if !a.Status.Terminal() && a.StartsAt().Before(before) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepository) InsertEvent(_ context.Context, ev BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRepository) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.EventType
	}
	return out
}

func (f *fakeRepository) slotAt(doctorID uuid.UUID, date time.Time, timeSlot string) (Slot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[keyFor(doctorID, date, timeSlot)]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

// recordingNotifier counts delivered notifications per kind.
type recordingNotifier struct {
	mu          sync.Mutex
	booked      int
	cancelled   int
	rescheduled int
}

func (n *recordingNotifier) AppointmentBooked(context.Context, *Appointment) {
	n.mu.Lock()
	n.booked++
	n.mu.Unlock()
}

func (n *recordingNotifier) AppointmentCancelled(context.Context, *Appointment) {
	n.mu.Lock()
	n.cancelled++
	n.mu.Unlock()
}

func (n *recordingNotifier) AppointmentRescheduled(context.Context, *Appointment) {
	n.mu.Lock()
	n.rescheduled++
	n.mu.Unlock()
}
