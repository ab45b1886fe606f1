package ics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetslot/internal/models"
)

const sampleCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:standup@example.com
DTSTAMP:20250301T000000Z
DTSTART;TZID=America/New_York:20250325T100000
DTEND;TZID=America/New_York:20250325T113000
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:focus@example.com
DTSTAMP:20250301T000000Z
DTSTART:20250325T150000Z
DTEND:20250325T160000Z
SUMMARY:Focus time
TRANSP:TRANSPARENT
END:VEVENT
BEGIN:VEVENT
UID:cancelled@example.com
DTSTAMP:20250301T000000Z
DTSTART:20250325T170000Z
DTEND:20250325T180000Z
STATUS:CANCELLED
END:VEVENT
BEGIN:VEVENT
UID:holiday@example.com
DTSTAMP:20250301T000000Z
DTSTART;VALUE=DATE:20250326
DTEND;VALUE=DATE:20250327
SUMMARY:Holiday
END:VEVENT
BEGIN:VEVENT
UID:broken@example.com
DTSTAMP:20250301T000000Z
DTSTART:not-a-date
END:VEVENT
END:VCALENDAR
`

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestDecode(t *testing.T) {
	decoded, err := Decode(strings.NewReader(crlf(sampleCalendar)), "file-bob", nil)
	require.NoError(t, err)
	require.Len(t, decoded.Events, 4)
	assert.Equal(t, 1, decoded.Skipped)

	standup := decoded.Events[0]
	assert.Equal(t, "standup@example.com", standup.UID)
	assert.Equal(t, "Standup", standup.Title)
	assert.Equal(t, "America/New_York", standup.Zone)
	assert.Equal(t, "file-bob", standup.Source)
	assert.True(t, standup.StartTime.Equal(time.Date(2025, 3, 25, 14, 0, 0, 0, time.UTC)))
	assert.True(t, standup.EndTime.Equal(time.Date(2025, 3, 25, 15, 30, 0, 0, time.UTC)))
	assert.True(t, standup.Blocks())

	assert.True(t, decoded.Events[1].Transparent)
	assert.False(t, decoded.Events[1].Blocks())
	assert.True(t, decoded.Events[2].Cancelled)
	assert.True(t, decoded.Events[3].AllDay)
	assert.False(t, decoded.Events[3].Blocks())
}

const floatingCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:lunch@example.com
DTSTAMP:20250301T000000Z
DTSTART:20250324T120000
DTEND:20250324T130000
SUMMARY:Lunch
END:VEVENT
BEGIN:VEVENT
UID:call@example.com
DTSTAMP:20250301T000000Z
DTSTART:20250324T150000Z
DTEND:20250324T160000Z
SUMMARY:Call
END:VEVENT
END:VCALENDAR
`

func TestDecode_FloatingTimes(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	tests := []struct {
		name      string
		loc       *time.Location
		wantStart time.Time
	}{
		{"owner zone", warsaw, time.Date(2025, 3, 24, 11, 0, 0, 0, time.UTC)},
		{"nil means UTC", nil, time.Date(2025, 3, 24, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(strings.NewReader(crlf(floatingCalendar)), "file-alice", tt.loc)
			require.NoError(t, err)
			require.Len(t, decoded.Events, 2)

			lunch := decoded.Events[0]
			assert.True(t, lunch.StartTime.Equal(tt.wantStart), "got %s", lunch.StartTime)
			assert.Equal(t, time.Hour, lunch.EndTime.Sub(lunch.StartTime))
			assert.Equal(t, time.UTC, lunch.StartTime.Location())

			// UTC times are unaffected by the owner's zone.
			assert.True(t, decoded.Events[1].StartTime.Equal(time.Date(2025, 3, 24, 15, 0, 0, 0, time.UTC)))
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader("this is not iCalendar data\r\n"), "broken", nil)
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bob.ics")
	require.NoError(t, os.WriteFile(path, []byte(crlf(sampleCalendar)), 0o600))

	decoded, err := ReadFile(path, "file-bob", time.UTC)
	require.NoError(t, err)
	assert.Len(t, decoded.Events, 4)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.ics"), "x", nil)
	assert.Error(t, err)
}

func TestMeetingCalendar_RoundTrip(t *testing.T) {
	meeting := &models.Event{
		UID:         "0b6d3a4e-meeting",
		Title:       "Planning",
		Description: "Quarterly planning",
		StartTime:   time.Date(2025, 3, 24, 12, 30, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 3, 24, 13, 30, 0, 0, time.UTC),
		Organizer:   "alice@example.com",
		Attendees:   []string{"alice@example.com", "bob@example.com"},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, MeetingCalendar(meeting)))
	assert.Contains(t, buf.String(), "ATTENDEE:mailto:bob@example.com")
	assert.Contains(t, buf.String(), "ORGANIZER:mailto:alice@example.com")
	assert.NotContains(t, buf.String(), "VALUE=TEXT")

	decoded, err := Decode(&buf, "roundtrip", nil)
	require.NoError(t, err)
	require.Len(t, decoded.Events, 1)
	got := decoded.Events[0]
	assert.Equal(t, meeting.UID, got.UID)
	assert.Equal(t, meeting.Title, got.Title)
	assert.Equal(t, meeting.Description, got.Description)
	assert.True(t, got.StartTime.Equal(meeting.StartTime))
	assert.True(t, got.EndTime.Equal(meeting.EndTime))

	path := filepath.Join(t.TempDir(), "meeting.ics")
	require.NoError(t, WriteFile(path, MeetingCalendar(meeting)))
	fromDisk, err := ReadFile(path, "disk", nil)
	require.NoError(t, err)
	assert.Len(t, fromDisk.Events, 1)
}
