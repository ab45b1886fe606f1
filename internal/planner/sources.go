package planner

import (
	"context"
	"fmt"
	"time"

	"meetslot/internal/config"
	"meetslot/internal/ics"
	"meetslot/internal/models"
)

// Source supplies busy events for an attendee. A source that is not
// configured for the attendee returns no events and no error.
type Source interface {
	Name() string
	BusyEvents(ctx context.Context, attendee config.Attendee, from, to time.Time) ([]*models.Event, error)
}

// CalendarReader reads the busy blocks of one calendar. The Google client
// implements it; free/busy answers are always in UTC.
type CalendarReader interface {
	BusyEvents(ctx context.Context, calendar string, from, to time.Time) ([]*models.Event, error)
}

// ZonedCalendarReader reads a calendar whose floating times belong to the
// owner's zone. The CalDAV client implements it.
type ZonedCalendarReader interface {
	BusyEvents(ctx context.Context, calendar string, from, to time.Time, loc *time.Location) ([]*models.Event, error)
}

// GoogleSource reads attendees' Google calendars, one client per account.
type GoogleSource struct {
	accounts map[string]CalendarReader
}

// NewGoogleSource creates a GoogleSource from account name to client.
func NewGoogleSource(accounts map[string]CalendarReader) *GoogleSource {
	return &GoogleSource{accounts: accounts}
}

func (s *GoogleSource) Name() string { return "google" }

func (s *GoogleSource) BusyEvents(ctx context.Context, a config.Attendee, from, to time.Time) ([]*models.Event, error) {
	if a.Google == nil {
		return nil, nil
	}
	client, ok := s.accounts[a.Google.Account]
	if !ok {
		return nil, fmt.Errorf("no google token for account %s, did you run the auth command?", a.Google.Account)
	}
	return client.BusyEvents(ctx, a.Google.Calendar, from, to)
}

// CalDAVSource reads attendees' calendars from a CalDAV server.
type CalDAVSource struct {
	reader ZonedCalendarReader
}

// NewCalDAVSource creates a CalDAVSource.
func NewCalDAVSource(reader ZonedCalendarReader) *CalDAVSource {
	return &CalDAVSource{reader: reader}
}

func (s *CalDAVSource) Name() string { return "caldav" }

func (s *CalDAVSource) BusyEvents(ctx context.Context, a config.Attendee, from, to time.Time) ([]*models.Event, error) {
	if a.CalDAVCalendar == "" {
		return nil, nil
	}
	loc, err := config.LoadLocation(a.Timezone)
	if err != nil {
		return nil, err
	}
	return s.reader.BusyEvents(ctx, a.CalDAVCalendar, from, to, loc)
}

// FileSource reads local .ics exports. Floating times are read in the
// attendee's zone.
type FileSource struct{}

func (FileSource) Name() string { return "file" }

func (FileSource) BusyEvents(_ context.Context, a config.Attendee, from, to time.Time) ([]*models.Event, error) {
	if a.ICSFile == "" {
		return nil, nil
	}
	loc, err := config.LoadLocation(a.Timezone)
	if err != nil {
		return nil, err
	}
	decoded, err := ics.ReadFile(a.ICSFile, "file-"+a.ID, loc)
	if err != nil {
		return nil, err
	}
	var events []*models.Event
	for _, ev := range decoded.Events {
		if ev.EndTime.After(from) && ev.StartTime.Before(to) {
			events = append(events, ev)
		}
	}
	return events, nil
}
