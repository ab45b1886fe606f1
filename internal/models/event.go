package models

import "time"

// Event is a calendar entry as seen by meetslot: either a busy block
// pulled from an attendee's calendar or a meeting about to be booked.
// It is independent of any specific calendar provider.
type Event struct {
	ID          string    // Provider identifier, empty for free/busy blocks
	UID         string    // The iCalendar UID
	Title       string    // Summary or title of the event
	Description string    // Detailed description of the event
	StartTime   time.Time // Start time of the event
	EndTime     time.Time // End time of the event
	Zone        string    // TZID the event was authored in, if known
	Location    string    // Location of the event
	Organizer   string    // Organizer's email
	Attendees   []string  // List of attendee emails
	Source      string    // Where the event came from (e.g., "google-primary")
	Transparent bool      // TRANSP:TRANSPARENT, shown as free time
	Cancelled   bool      // STATUS:CANCELLED
	AllDay      bool      // Date-only event without a time of day
}

// Blocks reports whether the event occupies the attendee's time.
// All-day entries are treated as markers (holidays, birthdays) and do not block.
func (e *Event) Blocks() bool {
	return !e.Transparent && !e.Cancelled && !e.AllDay && e.EndTime.After(e.StartTime)
}
