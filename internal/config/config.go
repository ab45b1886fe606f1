package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meetslot/internal/scheduler"
)

const (
	defaultTimezone     = "UTC"
	defaultWorkingHours = "09:00-17:00"
)

// Roster is the top-level roster file: who is invited and where their
// busy time comes from.
type Roster struct {
	// Timezone is the IANA zone used to print results (e.g. "Europe/Warsaw").
	Timezone string `yaml:"timezone"`

	// Granularity is the step between proposal starts (e.g. "15m").
	Granularity time.Duration `yaml:"granularity"`

	// WorkingHours is applied to attendees that do not set their own.
	WorkingHours string `yaml:"working_hours"`

	// Organizer is written into booked meetings.
	Organizer string `yaml:"organizer"`

	Attendees []Attendee `yaml:"attendees"`
}

// Attendee describes one participant and their calendar sources.
type Attendee struct {
	// ID identifies the attendee; an email address works well.
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Timezone     string `yaml:"timezone"`
	WorkingHours string `yaml:"working_hours"`

	// Google reads busy blocks from a Google calendar through the account's token file.
	Google *GoogleSource `yaml:"google,omitempty"`

	// CalDAVCalendar is the display name of a calendar on the CalDAV server.
	CalDAVCalendar string `yaml:"caldav_calendar,omitempty"`

	// ICSFile is a local iCalendar export.
	ICSFile string `yaml:"ics_file,omitempty"`

	Appointments []Appointment `yaml:"appointments,omitempty"`
}

// GoogleSource points at a calendar of an authenticated Google account.
type GoogleSource struct {
	Account  string `yaml:"account"`
	Calendar string `yaml:"calendar"`
}

// Appointment is an inline busy block. Times without an offset are read
// in the attendee's zone unless Timezone says otherwise.
type Appointment struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone,omitempty"`
}

// Load reads and validates a roster file.
func Load(path string) (*Roster, error) {
	if path == "" {
		return nil, errors.New("roster path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read roster: %w", err)
	}
	return Parse(data)
}

// Parse decodes, normalizes and validates roster YAML.
func Parse(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unable to parse roster: %w", err)
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Normalize fills in defaults for unset fields.
func (r *Roster) Normalize() {
	if r.Timezone == "" {
		r.Timezone = defaultTimezone
	}
	if r.Granularity == 0 {
		r.Granularity = scheduler.DefaultGranularity
	}
	if r.WorkingHours == "" {
		r.WorkingHours = defaultWorkingHours
	}
	for i := range r.Attendees {
		a := &r.Attendees[i]
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			a.ID = a.Email
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		if a.Timezone == "" {
			a.Timezone = r.Timezone
		}
		if a.WorkingHours == "" {
			a.WorkingHours = r.WorkingHours
		}
	}
}

// Validate checks everything that can be checked without network access.
func (r *Roster) Validate() error {
	if _, err := LoadLocation(r.Timezone); err != nil {
		return err
	}
	if r.Granularity <= 0 {
		return fmt.Errorf("%w: %s", scheduler.ErrInvalidGranularity, r.Granularity)
	}
	if len(r.Attendees) == 0 {
		return errors.New("roster has no attendees")
	}

	seen := make(map[string]bool, len(r.Attendees))
	for i, a := range r.Attendees {
		if a.ID == "" {
			return fmt.Errorf("attendee #%d has neither id nor email", i+1)
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: %s", scheduler.ErrDuplicateAttendee, a.ID)
		}
		seen[a.ID] = true

		if _, err := a.Profile(); err != nil {
			return err
		}
		if a.Google != nil && (a.Google.Account == "" || a.Google.Calendar == "") {
			return fmt.Errorf("attendee %s: google source needs both account and calendar", a.ID)
		}
	}
	return nil
}

// Profile builds the scheduler attendee with the inline appointments
// already booked.
func (a Attendee) Profile() (*scheduler.Attendee, error) {
	loc, err := LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("attendee %s: %w", a.ID, err)
	}
	hours, err := scheduler.ParseWorkingHours(a.WorkingHours)
	if err != nil {
		return nil, fmt.Errorf("attendee %s: %w", a.ID, err)
	}
	profile, err := scheduler.NewAttendee(a.ID, a.Name, loc, hours)
	if err != nil {
		return nil, err
	}
	for _, inline := range a.Appointments {
		appt, err := inline.resolve(loc)
		if err != nil {
			return nil, fmt.Errorf("attendee %s: %w", a.ID, err)
		}
		profile.AddAppointment(appt)
	}
	return profile, nil
}

func (ap Appointment) resolve(loc *time.Location) (scheduler.Appointment, error) {
	if ap.Timezone != "" {
		override, err := LoadLocation(ap.Timezone)
		if err != nil {
			return scheduler.Appointment{}, err
		}
		loc = override
	}
	start, err := ParseTime(ap.Start, loc)
	if err != nil {
		return scheduler.Appointment{}, fmt.Errorf("appointment start: %w", err)
	}
	end, err := ParseTime(ap.End, loc)
	if err != nil {
		return scheduler.Appointment{}, fmt.Errorf("appointment end: %w", err)
	}
	return scheduler.NewAppointment(start, end)
}

// LoadLocation resolves an IANA zone name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime accepts RFC 3339 or a local "2006-01-02 15:04" form read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: expected RFC 3339 or YYYY-MM-DD HH:MM", s)
}
