package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors. Callers should match them with errors.Is.
var (
	ErrInvalidInterval      = errors.New("end time is before start time")
	ErrInvalidGranularity   = errors.New("granularity must be positive")
	ErrInvalidDuration      = errors.New("meeting duration must be positive")
	ErrInvalidTimeframe     = errors.New("timeframe end must be after its start")
	ErrInvalidProposalCount = errors.New("invalid number of proposals")
	ErrNilAttendee          = errors.New("attendee is nil")
	ErrDuplicateAttendee    = errors.New("duplicate attendee id")
)

// Interval is a half-open span [Start, End) on the absolute time axis.
// Both ends are kept in UTC so that comparisons never depend on a zone.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval creates an Interval, rejecting an end before the start.
func NewInterval(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, fmt.Errorf("%w: %s < %s", ErrInvalidInterval, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// span builds an interval from instants the caller already knows are ordered.
func span(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsEmpty reports whether the interval has zero length.
func (i Interval) IsEmpty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps reports whether both intervals share at least one instant.
// Adjacent intervals (i.End == o.Start) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
