package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultSlotDuration is used when a caller does not ask for a
// specific slot width.
const DefaultSlotDuration = 30 * time.Minute

// ExpandCalendar walks every calendar day in [from, to] inclusive and
// partitions the doctor's working window for that weekday into
// consecutive slotDuration-wide slots labeled by start time. A trailing
// interval that would run past the end of the working window is
// dropped. Days without working hours, or with is_working unset,
// produce nothing.
//
// The result is the candidate set only; de-duplication against slots
// already persisted happens at insert time.
func ExpandCalendar(cal *WeeklyCalendar, doctorID uuid.UUID, from, to time.Time, slotDuration time.Duration) ([]Slot, error) {
	if slotDuration <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %s", slotDuration)
	}
	step := int(slotDuration / time.Minute)
	if step == 0 {
		return nil, fmt.Errorf("slot duration %s is under a minute", slotDuration)
	}

	from = NormalizeDate(from)
	to = NormalizeDate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s before start date %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	var slots []Slot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		hours, ok := cal.HoursFor(day.Weekday())
		if !ok || !hours.IsWorking {
			continue
		}

		start, err := ParseClock(hours.StartTime)
		if err != nil {
			return nil, fmt.Errorf("working hours for %s: %w", day.Weekday(), err)
		}
		end, err := ParseClock(hours.EndTime)
		if err != nil {
			return nil, fmt.Errorf("working hours for %s: %w", day.Weekday(), err)
		}

		for at := start; at+step <= end; at += step {
			slots = append(slots, Slot{
				ID:       uuid.New(),
				DoctorID: doctorID,
				Date:     day,
				TimeSlot: FormatClock(at),
			})
		}
	}

	return slots, nil
}
