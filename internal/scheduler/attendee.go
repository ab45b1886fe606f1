package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day without a date or zone.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" in 24-hour form. "24:00" is accepted as the
// end of the day.
func ParseClock(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// WorkingHours is a daily wall-clock window interpreted in the owner's zone.
type WorkingHours struct {
	Start ClockTime
	End   ClockTime
}

// NewWorkingHours validates that the window does not end before it starts.
func NewWorkingHours(start, end ClockTime) (WorkingHours, error) {
	if end.minutes() < start.minutes() {
		return WorkingHours{}, fmt.Errorf("%w: working hours %s-%s", ErrInvalidInterval, start, end)
	}
	return WorkingHours{Start: start, End: end}, nil
}

// ParseWorkingHours parses a "09:00-17:00" style window.
func ParseWorkingHours(s string) (WorkingHours, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return WorkingHours{}, fmt.Errorf("invalid working hours %q: expected HH:MM-HH:MM", s)
	}
	start, err := ParseClock(from)
	if err != nil {
		return WorkingHours{}, err
	}
	end, err := ParseClock(to)
	if err != nil {
		return WorkingHours{}, err
	}
	return NewWorkingHours(start, end)
}

// On anchors the window to a civil date in loc. The conversion is redone
// for every date so daylight-saving transitions are honoured.
func (w WorkingHours) On(year int, month time.Month, day int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, day, w.Start.Hour, w.Start.Minute, 0, 0, loc)
	end := time.Date(year, month, day, w.End.Hour, w.End.Minute, 0, 0, loc)
	return start, end
}

func (w WorkingHours) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Appointment is a booked span of time. It remembers the zone it was
// authored in, but Start and End are absolute UTC instants.
type Appointment struct {
	Start time.Time
	End   time.Time
	Zone  *time.Location
}

// NewAppointment creates an Appointment from zoned wall-clock values.
func NewAppointment(start, end time.Time) (Appointment, error) {
	if end.Before(start) {
		return Appointment{}, fmt.Errorf("%w: appointment %s - %s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Appointment{Start: start.UTC(), End: end.UTC(), Zone: start.Location()}, nil
}

// Attendee is one participant of a scheduling request. ID is the identity
// used in every set or map the scheduler builds.
type Attendee struct {
	ID       string
	Name     string
	Location *time.Location
	Hours    WorkingHours

	appointments []Appointment
}

// NewAttendee creates an attendee with no appointments.
func NewAttendee(id, name string, loc *time.Location, hours WorkingHours) (*Attendee, error) {
	if id == "" {
		return nil, errors.New("attendee id is empty")
	}
	if loc == nil {
		return nil, fmt.Errorf("attendee %s has no time zone", id)
	}
	if name == "" {
		name = id
	}
	return &Attendee{ID: id, Name: name, Location: loc, Hours: hours}, nil
}

// AddAppointment books an appointment. Existing appointments are never changed.
func (a *Attendee) AddAppointment(appt Appointment) {
	a.appointments = append(a.appointments, appt)
}

// Appointments returns a copy of the attendee's appointments.
func (a *Attendee) Appointments() []Appointment {
	out := make([]Appointment, len(a.appointments))
	copy(out, a.appointments)
	return out
}
