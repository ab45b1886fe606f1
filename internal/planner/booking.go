package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"meetslot/internal/ics"
	"meetslot/internal/icloud"
	"meetslot/internal/models"
)

const defaultStateFile = "booking-state.json"

// ErrNothingToBook is returned when a plan has no slot at all.
var ErrNothingToBook = errors.New("plan has no slot to book")

// BookingState keeps track of which searches have been booked.
// The key identifies the search, and the value is the UID of the meeting.
type BookingState map[string]string

// Publisher books a meeting into a named calendar.
type Publisher interface {
	PublishMeeting(ctx context.Context, calendarName string, event *models.Event) error
}

// BookingRequest says where the chosen slot should go.
type BookingRequest struct {
	Title       string
	Description string
	// Calendar is the calendar the Publisher writes to.
	Calendar string
	// ICSPath, if set, also saves the meeting as an .ics file.
	ICSPath string
}

// Book turns the plan's best slot into a meeting. A search that was booked
// before is not booked again; created is false in that case and on dry runs.
func (p *Planner) Book(ctx context.Context, plan *Plan, req BookingRequest) (event *models.Event, created bool, err error) {
	slot, attendees, ok := plan.Best()
	if !ok {
		return nil, false, ErrNothingToBook
	}

	key := stateKey(plan.Request)
	if uid, exists := p.state[key]; exists {
		p.logger.Info("Meeting already booked for this search, skipping.", "uid", uid)
		return &models.Event{UID: uid, StartTime: slot.Start, EndTime: slot.End}, false, nil
	}

	title := req.Title
	if title == "" {
		title = "Meeting"
	}
	event = &models.Event{
		UID:         icloud.GenerateUID(),
		Title:       title,
		Description: req.Description,
		StartTime:   slot.Start,
		EndTime:     slot.End,
		Source:      "meetslot",
	}
	if plan.Request.Roster != nil {
		event.Organizer = plan.Request.Roster.Organizer
		emails := make(map[string]string, len(plan.Request.Roster.Attendees))
		for _, a := range plan.Request.Roster.Attendees {
			emails[a.ID] = a.Email
		}
		for _, a := range attendees {
			if email := emails[a.ID]; email != "" {
				event.Attendees = append(event.Attendees, email)
			} else if strings.Contains(a.ID, "@") {
				event.Attendees = append(event.Attendees, a.ID)
			}
		}
	}

	if p.dryRun {
		p.logger.Info("[DRY RUN] Would book meeting", "title", event.Title, "startTime", event.StartTime, "attendees", len(attendees))
		return event, false, nil
	}

	if req.Calendar != "" && p.publisher == nil {
		return nil, false, errors.New("no calendar server configured for booking")
	}
	// Publish last: a meeting on the server is always recorded in the ledger.
	if req.ICSPath != "" {
		if err := ics.WriteFile(req.ICSPath, ics.MeetingCalendar(event)); err != nil {
			return nil, false, err
		}
		p.logger.Info("Wrote meeting to file.", "file", req.ICSPath)
	}
	if req.Calendar != "" {
		if err := p.publisher.PublishMeeting(ctx, req.Calendar, event); err != nil {
			return nil, false, fmt.Errorf("failed to book meeting: %w", err)
		}
	}

	p.state[key] = event.UID
	if err := p.saveState(); err != nil {
		p.logger.Error("Failed to save booking state", "error", err)
	}
	return event, true, nil
}

// stateKey identifies a search by its attendees, timeframe and duration.
func stateKey(req Request) string {
	var ids []string
	if req.Roster != nil {
		for _, a := range req.Roster.Attendees {
			ids = append(ids, a.ID)
		}
	}
	slices.Sort(ids)
	return fmt.Sprintf("%s|%s|%s|%s",
		strings.Join(ids, ","),
		req.From.UTC().Format(time.RFC3339),
		req.To.UTC().Format(time.RFC3339),
		req.Duration,
	)
}

// loadState loads the booking state from the JSON file. A missing file is an empty state.
func loadState(path string) (BookingState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(BookingState), nil
		}
		return nil, err
	}
	var state BookingState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(BookingState)
	}
	return state, nil
}

// saveState saves the current booking state to the JSON file.
func (p *Planner) saveState() error {
	data, err := json.MarshalIndent(p.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal booking state: %w", err)
	}
	return os.WriteFile(p.statePath, data, 0o644)
}
