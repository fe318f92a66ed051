package scheduling

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier is the outbound surface towards the notification
// collaborator. The scheduling core only decides outcomes; delivery is
// someone else's problem, so failures here are never propagated.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a *Appointment)
	AppointmentCancelled(ctx context.Context, a *Appointment)
	AppointmentRescheduled(ctx context.Context, a *Appointment)
}

// LogNotifier writes booking outcomes to the log. It stands in for a
// real delivery channel in development and in tests.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AppointmentBooked(ctx context.Context, a *Appointment) {
	n.event(a).Msg("appointment booked")
}

func (n *LogNotifier) AppointmentCancelled(ctx context.Context, a *Appointment) {
	n.event(a).Msg("appointment cancelled")
}

func (n *LogNotifier) AppointmentRescheduled(ctx context.Context, a *Appointment) {
	n.event(a).Msg("appointment rescheduled")
}

func (n *LogNotifier) event(a *Appointment) *zerolog.Event {
	return n.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("date", a.Date.Format("2006-01-02")).
		Str("time_slot", a.TimeSlot)
}
