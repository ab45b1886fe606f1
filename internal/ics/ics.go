// Package ics converts between iCalendar data and the internal event model.
package ics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"meetslot/internal/models"
)

const (
	productID  = "-//meetslot//EN"
	propTransp = "TRANSP"
)

// Decoded is the outcome of reading VEVENTs from one or more calendars.
type Decoded struct {
	Events  []*models.Event
	Skipped int // components that could not be read
}

// EventsFromCalendar extracts every VEVENT of cal. Floating times (no
// TZID, no Z suffix) and all-day dates are read in loc; nil means UTC.
// Components with unreadable dates are counted in Skipped instead of
// failing the whole calendar. Recurrence rules are not expanded: only the
// first occurrence of a recurring event is returned.
func EventsFromCalendar(cal *ical.Calendar, source string, loc *time.Location) Decoded {
	if loc == nil {
		loc = time.UTC
	}
	var out Decoded
	for _, ev := range cal.Events() {
		event, err := fromVEvent(ev, source, loc)
		if err != nil {
			out.Skipped++
			continue
		}
		out.Events = append(out.Events, event)
	}
	return out
}

func fromVEvent(ev ical.Event, source string, loc *time.Location) (*models.Event, error) {
	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return nil, fmt.Errorf("invalid DTSTART: %w", err)
	}
	if start.IsZero() {
		return nil, errors.New("missing DTSTART")
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil {
		return nil, fmt.Errorf("invalid DTEND: %w", err)
	}
	if end.IsZero() {
		end = start
	}

	event := &models.Event{
		UID:       text(ev.Component, ical.PropUID),
		Title:     text(ev.Component, ical.PropSummary),
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Location:  text(ev.Component, ical.PropLocation),
		Source:    source,
	}
	event.ID = event.UID
	event.Description = text(ev.Component, ical.PropDescription)

	if prop := ev.Props.Get(ical.PropDateTimeStart); prop != nil {
		event.AllDay = prop.ValueType() == ical.ValueDate
		event.Zone = prop.Params.Get(ical.ParamTimezoneID)
	}
	event.Transparent = strings.EqualFold(text(ev.Component, propTransp), "TRANSPARENT")
	event.Cancelled = strings.EqualFold(text(ev.Component, ical.PropStatus), "CANCELLED")
	return event, nil
}

func text(comp *ical.Component, name string) string {
	if prop := comp.Props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}

// Decode reads every calendar in r, reading floating times in loc.
func Decode(r io.Reader, source string, loc *time.Location) (Decoded, error) {
	var out Decoded
	dec := ical.NewDecoder(r)
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to decode iCalendar data: %w", err)
		}
		part := EventsFromCalendar(cal, source, loc)
		out.Events = append(out.Events, part.Events...)
		out.Skipped += part.Skipped
	}
	return out, nil
}

// ReadFile decodes a local .ics file.
func ReadFile(path, source string, loc *time.Location) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, fmt.Errorf("unable to open calendar file: %w", err)
	}
	defer f.Close()
	return Decode(f, source, loc)
}

// MeetingCalendar wraps event into a VCALENDAR ready to be uploaded or saved.
func MeetingCalendar(event *models.Event) *ical.Calendar {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.UID)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime)

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.Organizer != "" {
		ve.Props.Add(calAddress(ical.PropOrganizer, event.Organizer))
	}
	for _, attendee := range event.Attendees {
		ve.Props.Add(calAddress(ical.PropAttendee, attendee))
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, ve)
	return cal
}

// calAddress builds a CAL-ADDRESS property such as ATTENDEE:mailto:bob@example.com.
func calAddress(name, email string) *ical.Prop {
	p := ical.NewProp(name)
	p.SetValueType(ical.ValueCalendarAddress)
	p.Value = "mailto:" + email
	return p
}

// Encode writes cal in iCalendar format.
func Encode(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	return nil
}

// WriteFile saves cal to path.
func WriteFile(path string, cal *ical.Calendar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create calendar file: %w", err)
	}
	if err := Encode(f, cal); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
