package scheduling

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:30", 0, true},
		{"09-30", 0, true},
		{"", 0, true},
		{"morning", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, mins := range []int{0, 570, 1439} {
		s := FormatClock(mins)
		got, err := ParseClock(s)
		if err != nil {
			t.Fatalf("ParseClock(FormatClock(%d)): %v", mins, err)
		}
		if got != mins {
			t.Errorf("round trip %d -> %s -> %d", mins, s, got)
		}
	}
}

func TestWorkingHoursValidate(t *testing.T) {
	cases := []struct {
		name    string
		hours   WorkingHours
		wantErr bool
	}{
		{"valid", WorkingHours{DayOfWeek: time.Monday, StartTime: "09:00", EndTime: "17:00", IsWorking: true}, false},
		{"day off skips time checks", WorkingHours{DayOfWeek: time.Sunday, IsWorking: false}, false},
		{"start equals end", WorkingHours{DayOfWeek: time.Monday, StartTime: "09:00", EndTime: "09:00", IsWorking: true}, true},
		{"start after end", WorkingHours{DayOfWeek: time.Monday, StartTime: "17:00", EndTime: "09:00", IsWorking: true}, true},
		{"bad start", WorkingHours{DayOfWeek: time.Monday, StartTime: "9am", EndTime: "17:00", IsWorking: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.hours.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewWeeklyCalendarRejectsDuplicateDay(t *testing.T) {
	_, err := NewWeeklyCalendar([]WorkingHours{
		{DayOfWeek: time.Monday, StartTime: "09:00", EndTime: "12:00", IsWorking: true},
		{DayOfWeek: time.Monday, StartTime: "13:00", EndTime: "17:00", IsWorking: true},
	})
	if err == nil {
		t.Fatal("duplicate weekday accepted")
	}
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	in := time.Date(2026, 9, 7, 18, 45, 12, 999, loc)
	got := NormalizeDate(in)

	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("time-of-day not stripped: %s", got)
	}
	if got.Location() != loc {
		t.Errorf("location changed: %s", got.Location())
	}
	if got.Day() != 7 {
		t.Errorf("day changed: %d", got.Day())
	}
}

func TestAppointmentStartsAt(t *testing.T) {
	appt := Appointment{
		Date:     time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		TimeSlot: "14:30",
	}
	want := time.Date(2026, 9, 7, 14, 30, 0, 0, time.UTC)
	if got := appt.StartsAt(); !got.Equal(want) {
		t.Errorf("StartsAt = %s, want %s", got, want)
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range NonTerminalStatuses {
		if s.Terminal() {
			t.Errorf("%s reported terminal", s)
		}
	}
	for _, s := range []AppointmentStatus{StatusCancelled, StatusCompleted} {
		if !s.Terminal() {
			t.Errorf("%s not reported terminal", s)
		}
	}
	if AppointmentStatus("no-show").Valid() {
		t.Error("unknown status reported valid")
	}
}
