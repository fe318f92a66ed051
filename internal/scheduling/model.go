package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusRescheduled AppointmentStatus = "rescheduled"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
)

// Terminal reports whether the status releases the slot for good.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// NonTerminalStatuses are the statuses under which an appointment still
// occupies its slot. The partial unique indexes in the schema are scoped
// to exactly this set.
var NonTerminalStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusRescheduled}

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityEmergency:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// WorkingHours is one weekday entry of a doctor's recurring calendar.
// Times are HH:MM 24-hour clock strings.
type WorkingHours struct {
	DayOfWeek time.Weekday
	StartTime string
	EndTime   string
	IsWorking bool
}

func (w WorkingHours) Validate() error {
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return fmt.Errorf("day_of_week %d out of range", w.DayOfWeek)
	}
	if !w.IsWorking {
		return nil
	}
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := ParseClock(w.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	if start >= end {
		return fmt.Errorf("start_time %s must be before end_time %s", w.StartTime, w.EndTime)
	}
	return nil
}

// WeeklyCalendar indexes a doctor's working hours by weekday.
// At most one entry per weekday.
type WeeklyCalendar struct {
	byDay map[time.Weekday]WorkingHours
}

func NewWeeklyCalendar(hours []WorkingHours) (*WeeklyCalendar, error) {
	byDay := make(map[time.Weekday]WorkingHours, len(hours))
	for _, h := range hours {
		if err := h.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byDay[h.DayOfWeek]; dup {
			return nil, fmt.Errorf("duplicate working hours for %s", h.DayOfWeek)
		}
		byDay[h.DayOfWeek] = h
	}
	return &WeeklyCalendar{byDay: byDay}, nil
}

// HoursFor returns the entry for the weekday, if one exists.
func (c *WeeklyCalendar) HoursFor(day time.Weekday) (WorkingHours, bool) {
	h, ok := c.byDay[day]
	return h, ok
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	Active         bool
	Hours          []WorkingHours
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (d *Doctor) Calendar() (*WeeklyCalendar, error) {
	return NewWeeklyCalendar(d.Hours)
}

// Patient is the read-only view the scheduling core needs. Account
// management lives in the identity package.
type Patient struct {
	ID     uuid.UUID
	Name   string
	Active bool
}

// Slot is a fixed-duration reservable unit owned by one doctor.
// Date carries no time-of-day component.
type Slot struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	Date          time.Time
	TimeSlot      string
	IsBooked      bool
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DoctorID           uuid.UUID
	Date               time.Time
	TimeSlot           string
	Status             AppointmentStatus
	Priority           Priority
	PaymentStatus      PaymentStatus
	Source             string
	Notes              *string
	Symptoms           *string
	CancelledBy        *uuid.UUID
	CancellationReason *string
	RescheduledFrom    *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartsAt combines the appointment's date and time slot into the
// instant the policy windows are measured against.
func (a *Appointment) StartsAt() time.Time {
	mins, err := ParseClock(a.TimeSlot)
	if err != nil {
		return a.Date
	}
	return a.Date.Add(time.Duration(mins) * time.Minute)
}

// BookingEvent is one row of the append-only operational event log.
type BookingEvent struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// NormalizeDate strips the time-of-day component, keeping the location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseClock parses an HH:MM 24-hour string into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
