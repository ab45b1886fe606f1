package scheduler

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// MaxAttendanceResult is the best-effort slot found when no common slot
// exists, with the attendees free for all of it ordered by ID.
type MaxAttendanceResult struct {
	Slot      Interval
	Attendees []*Attendee
}

// IDs returns the IDs of the available attendees.
func (r *MaxAttendanceResult) IDs() []string {
	ids := make([]string, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		ids = append(ids, a.ID)
	}
	return ids
}

func (r *MaxAttendanceResult) String() string {
	names := make([]string, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		names = append(names, a.Name)
	}
	return r.Slot.String() + " " + strings.Join(names, ", ")
}

type sweepEvent struct {
	at       time.Time
	start    bool
	until    time.Time // end of the interval a start event opens
	attendee *Attendee
}

// compareEvents orders events by instant, start events before end events
// at the same instant, then by attendee ID.
func compareEvents(x, y sweepEvent) int {
	if c := x.at.Compare(y.at); c != 0 {
		return c
	}
	if x.start != y.start {
		if x.start {
			return -1
		}
		return 1
	}
	return cmp.Compare(x.attendee.ID, y.attendee.ID)
}

// MaxAttendance finds the earliest window of exactly duration that the
// largest number of attendees are free for. free[i] holds the sorted free
// intervals of attendees[i]. It returns nil when nobody has a free interval
// of at least duration.
//
// The sweep keeps, for every attendee currently free, the end of their
// current free interval. Windows are evaluated at each instant where some
// attendee becomes free, after all events of that instant are applied, and
// count everyone who stays free for the whole window. Any optimal window
// can be shifted left onto such an instant, so the earliest one is found.
func MaxAttendance(attendees []*Attendee, free [][]Interval, duration time.Duration) *MaxAttendanceResult {
	var events []sweepEvent
	for i, a := range attendees {
		for _, iv := range coalesce(free[i]) {
			events = append(events,
				sweepEvent{at: iv.Start, start: true, until: iv.End, attendee: a},
				sweepEvent{at: iv.End, attendee: a},
			)
		}
	}
	slices.SortFunc(events, compareEvents)

	active := make(map[string]time.Time)
	byID := make(map[string]*Attendee)
	var best *MaxAttendanceResult
	bestCount := 0

	for i := 0; i < len(events); {
		at := events[i].at
		opened := false
		for ; i < len(events) && events[i].at.Equal(at); i++ {
			ev := events[i]
			if ev.start {
				active[ev.attendee.ID] = ev.until
				byID[ev.attendee.ID] = ev.attendee
				opened = true
			} else {
				delete(active, ev.attendee.ID)
			}
		}
		if !opened {
			continue
		}

		windowEnd := at.Add(duration)
		var present []*Attendee
		for id, until := range active {
			if !until.Before(windowEnd) {
				present = append(present, byID[id])
			}
		}
		if len(present) > bestCount {
			slices.SortFunc(present, func(x, y *Attendee) int { return cmp.Compare(x.ID, y.ID) })
			best = &MaxAttendanceResult{Slot: span(at, windowEnd), Attendees: present}
			bestCount = len(present)
		}
	}
	return best
}

// coalesce joins touching intervals of one attendee so that a free span is
// never split by its own boundaries.
func coalesce(ivs []Interval) []Interval {
	if len(ivs) < 2 {
		return ivs
	}
	out := make([]Interval, 0, len(ivs))
	cur := ivs[0]
	for _, iv := range ivs[1:] {
		if !iv.Start.After(cur.End) {
			cur.End = laterOf(cur.End, iv.End)
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	return append(out, cur)
}
