package scheduler

import (
	"cmp"
	"slices"
	"time"
)

// FreeIntervals returns the attendee's free time inside timeframe: working
// hours of every local date the timeframe touches, clipped to the
// timeframe, minus the attendee's appointments. The result is sorted,
// non-overlapping and never contains zero-length intervals.
func FreeIntervals(a *Attendee, timeframe Interval) []Interval {
	loc := a.Location
	localStart := timeframe.Start.In(loc)
	localEnd := timeframe.End.In(loc)

	// Civil dates are walked in UTC so the step is always exactly one day.
	first := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(localEnd.Year(), localEnd.Month(), localEnd.Day(), 0, 0, 0, 0, time.UTC)

	var free []Interval
	for date := first; !date.After(last); date = date.AddDate(0, 0, 1) {
		workStart, workEnd := a.Hours.On(date.Year(), date.Month(), date.Day(), loc)
		working := span(laterOf(workStart, timeframe.Start), earlierOf(workEnd, timeframe.End))
		if working.IsEmpty() {
			continue
		}
		free = append(free, subtract(working, overlapping(a.appointments, working))...)
	}
	return free
}

// overlapping selects the appointments that cut into working, ordered by
// start and then end.
func overlapping(appts []Appointment, working Interval) []Appointment {
	var selected []Appointment
	for _, appt := range appts {
		busy := span(appt.Start, appt.End)
		// A zero-length appointment blocks nothing.
		if busy.IsEmpty() {
			continue
		}
		if busy.Overlaps(working) {
			selected = append(selected, appt)
		}
	}
	slices.SortFunc(selected, func(x, y Appointment) int {
		return cmp.Or(x.Start.Compare(y.Start), x.End.Compare(y.End))
	})
	return selected
}

// subtract removes sorted appointments from working. Overlapping and
// nested appointments are handled by never moving the cursor backwards.
func subtract(working Interval, appts []Appointment) []Interval {
	var free []Interval
	cursor := working.Start
	for _, appt := range appts {
		if appt.Start.After(cursor) {
			free = append(free, span(cursor, appt.Start))
		}
		cursor = laterOf(cursor, appt.End)
		if !cursor.Before(working.End) {
			break
		}
	}
	if cursor.Before(working.End) {
		free = append(free, span(cursor, working.End))
	}
	return free
}
