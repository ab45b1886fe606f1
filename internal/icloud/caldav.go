package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"meetslot/internal/ics"
	"meetslot/internal/models"
)

const (
	// DefaultEndpoint is the iCloud CalDAV server. Any CalDAV server works.
	DefaultEndpoint = "https://caldav.icloud.com/"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "meetslot/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient reads busy time from and books meetings into CalDAV calendars.
type CalDAVClient struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger

	mu        sync.Mutex
	calendars map[string]string // display name -> collection path
}

// NewClient creates a CalDAVClient for the account. An empty endpoint means iCloud.
func NewClient(logger *slog.Logger, endpoint, username, password string) (*CalDAVClient, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	return &CalDAVClient{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		calendars:    make(map[string]string),
	}, nil
}

// BusyEvents returns the events of the named calendar that overlap [from, to).
// Floating times are read in loc, the calendar owner's zone.
func (c *CalDAVClient) BusyEvents(ctx context.Context, calendarName string, from, to time.Time, loc *time.Location) ([]*models.Event, error) {
	calendarPath, err := c.calendarPath(ctx, calendarName)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name: ical.CompEvent,
				Props: []string{
					ical.PropUID, ical.PropSummary, ical.PropDateTimeStart, ical.PropDateTimeEnd,
					ical.PropDuration, ical.PropStatus, "TRANSP",
				},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar '%s': %w", calendarName, err)
	}

	events, skipped := eventsFromObjects(objects, "caldav-"+calendarName, loc)
	if skipped > 0 {
		c.logger.Warn("Skipped unreadable calendar objects", "calendarName", calendarName, "count", skipped)
	}
	c.logger.Info("Fetched events from CalDAV calendar", "count", len(events), "calendarName", calendarName)
	return events, nil
}

func eventsFromObjects(objects []caldav.CalendarObject, source string, loc *time.Location) ([]*models.Event, int) {
	var events []*models.Event
	skipped := 0
	for _, obj := range objects {
		if obj.Data == nil {
			skipped++
			continue
		}
		decoded := ics.EventsFromCalendar(obj.Data, source, loc)
		events = append(events, decoded.Events...)
		skipped += decoded.Skipped
	}
	return events, skipped
}

// PublishMeeting uploads event to the named calendar as <UID>.ics.
func (c *CalDAVClient) PublishMeeting(ctx context.Context, calendarName string, event *models.Event) error {
	c.logger.Debug("Publishing meeting to CalDAV", "eventTitle", event.Title, "uid", event.UID)

	calendarPath, err := c.calendarPath(ctx, calendarName)
	if err != nil {
		return err
	}
	eventPath := path.Join(calendarPath, fmt.Sprintf("%s.ics", event.UID))

	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ics.Encode(writer, ics.MeetingCalendar(event)); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}

	c.logger.Info("Successfully published meeting", "eventTitle", event.Title, "calendarName", calendarName)
	return nil
}

// calendarPath resolves a calendar display name once per client.
func (c *CalDAVClient) calendarPath(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.calendars[name]; ok {
		return p, nil
	}

	c.logger.Info("Finding CalDAV calendar", "calendarName", name)
	p, err := c.findCalendar(ctx, name)
	if err != nil {
		return "", fmt.Errorf("could not find calendar '%s': %w", name, err)
	}
	c.calendars[name] = p
	return p, nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
