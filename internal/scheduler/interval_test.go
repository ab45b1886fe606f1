package scheduler

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iv(startHour, endHour int) Interval {
	return Interval{utc(24, startHour, 0), utc(24, endHour, 0)}
}

func TestNewInterval(t *testing.T) {
	got, err := NewInterval(time.Date(2025, 3, 24, 9, 0, 0, 0, warsaw), time.Date(2025, 3, 24, 10, 0, 0, 0, warsaw))
	require.NoError(t, err)
	assert.Equal(t, iv(8, 9), got)
	assert.Equal(t, time.Hour, got.Duration())

	empty, err := NewInterval(utc(24, 9, 0), utc(24, 9, 0))
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = NewInterval(utc(24, 10, 0), utc(24, 9, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestInterval_Overlaps(t *testing.T) {
	assert.True(t, iv(9, 11).Overlaps(iv(10, 12)))
	assert.True(t, iv(9, 12).Overlaps(iv(10, 11)))
	assert.False(t, iv(9, 10).Overlaps(iv(10, 11)), "adjacent intervals do not overlap")
	assert.True(t, iv(9, 12).Contains(iv(9, 12)))
	assert.False(t, iv(9, 12).Contains(iv(11, 13)))
}

func TestValueObjects_RejectReversedRanges(t *testing.T) {
	_, err := NewAppointment(utc(24, 10, 0), utc(24, 9, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = ParseWorkingHours("17:00-09:00")
	assert.ErrorIs(t, err, ErrInvalidInterval)

	for _, bad := range []string{"", "9-17", "09:00", "25:00-26:00", "09:60-10:00", "ab:cd-10:00", "09:00-24:30"} {
		_, err := ParseWorkingHours(bad)
		assert.Error(t, err, bad)
	}

	wh, err := ParseWorkingHours(" 08:30 - 16:30 ")
	require.NoError(t, err)
	assert.Equal(t, "08:30-16:30", wh.String())
}

func TestWorkingHours_UntilMidnight(t *testing.T) {
	wh, err := ParseWorkingHours("00:00-24:00")
	require.NoError(t, err)
	assert.Equal(t, "00:00-24:00", wh.String())

	start, end := wh.On(2025, time.March, 24, warsaw)
	assert.True(t, start.Equal(time.Date(2025, 3, 23, 23, 0, 0, 0, time.UTC)))
	assert.True(t, end.Equal(time.Date(2025, 3, 24, 23, 0, 0, 0, time.UTC)))

	// The short day of the switch to summer time has 23 hours.
	start, end = wh.On(2025, time.March, 30, warsaw)
	assert.Equal(t, 23*time.Hour, end.Sub(start))

	alice := newAttendee(t, "alice", time.UTC, "18:00-24:00")
	free := FreeIntervals(alice, Interval{utc(24, 0, 0), utc(25, 0, 0)})
	assert.Equal(t, []Interval{{utc(24, 18, 0), utc(25, 0, 0)}}, free)
}

func TestAppointment_KeepsAuthoringZone(t *testing.T) {
	appt, err := NewAppointment(time.Date(2025, 3, 25, 10, 0, 0, 0, newYork), time.Date(2025, 3, 25, 11, 30, 0, 0, newYork))
	require.NoError(t, err)
	assert.Equal(t, newYork, appt.Zone)
	assert.Equal(t, utc(25, 14, 0), appt.Start)
	assert.Equal(t, utc(25, 15, 30), appt.End)
}

func TestAttendee_AppointmentsAreCopied(t *testing.T) {
	a := newAttendee(t, "a", time.UTC, "09:00-17:00")
	book(t, a, utc(24, 10, 0), utc(24, 11, 0))

	appts := a.Appointments()
	appts[0].Start = utc(24, 9, 0)
	assert.Equal(t, utc(24, 10, 0), a.Appointments()[0].Start)

	_, err := NewAttendee("", "x", time.UTC, WorkingHours{})
	assert.Error(t, err)
	_, err = NewAttendee("x", "x", nil, WorkingHours{})
	assert.Error(t, err)
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b []Interval
		want []Interval
	}{
		{name: "empty side", a: []Interval{iv(9, 17)}, b: nil, want: nil},
		{name: "identical", a: []Interval{iv(9, 17)}, b: []Interval{iv(9, 17)}, want: []Interval{iv(9, 17)}},
		{name: "partial", a: []Interval{iv(9, 12)}, b: []Interval{iv(11, 15)}, want: []Interval{iv(11, 12)}},
		{name: "adjacent only", a: []Interval{iv(9, 11)}, b: []Interval{iv(11, 13)}, want: nil},
		{
			name: "many against one",
			a:    []Interval{iv(8, 9), iv(10, 11), iv(12, 14), iv(15, 16)},
			b:    []Interval{iv(8, 15)},
			want: []Interval{iv(8, 9), iv(10, 11), iv(12, 14)},
		},
		{
			name: "interleaved",
			a:    []Interval{iv(8, 10), iv(11, 13), iv(14, 18)},
			b:    []Interval{iv(9, 12), iv(12, 15), iv(16, 17)},
			want: []Interval{iv(9, 10), iv(11, 12), iv(12, 13), iv(14, 15), iv(16, 17)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersect(tt.a, tt.b))
			assert.Equal(t, tt.want, Intersect(tt.b, tt.a))
		})
	}
}

func TestIntersectAll_OrderIndependent(t *testing.T) {
	a := []Interval{iv(8, 12), iv(13, 18)}
	b := []Interval{iv(9, 11), iv(14, 20)}
	c := []Interval{iv(7, 10), iv(10, 15), iv(16, 17)}

	want := IntersectAll([][]Interval{a, b, c})
	assert.Equal(t, []Interval{iv(9, 10), iv(10, 11), iv(14, 15), iv(16, 17)}, want)

	lists := [][]Interval{a, b, c}
	orders := [][]int{{0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		permuted := make([][]Interval, 0, len(order))
		for _, i := range order {
			permuted = append(permuted, lists[i])
		}
		assert.Equal(t, want, IntersectAll(permuted), "order %v", order)
	}
}

func TestIntersectAll_Edges(t *testing.T) {
	assert.Empty(t, IntersectAll(nil))

	single := []Interval{iv(9, 10), iv(11, 12)}
	got := IntersectAll([][]Interval{single})
	assert.Equal(t, single, got)
	got[0] = iv(1, 2)
	assert.Equal(t, iv(9, 10), single[0], "the caller's list must not be aliased")

	assert.Empty(t, IntersectAll([][]Interval{single, nil, {iv(9, 12)}}))
}

func TestSlots(t *testing.T) {
	got := slices.Collect(Slots(iv(9, 11), time.Hour, 30*time.Minute))
	want := []Interval{
		{utc(24, 9, 0), utc(24, 10, 0)},
		{utc(24, 9, 30), utc(24, 10, 30)},
		{utc(24, 10, 0), utc(24, 11, 0)},
	}
	assert.Equal(t, want, got)

	assert.Empty(t, slices.Collect(Slots(iv(9, 10), 2*time.Hour, time.Minute)))
	assert.Equal(t, []Interval{iv(9, 10)}, slices.Collect(Slots(iv(9, 10), time.Hour, 15*time.Minute)))

	// The sequence can be consumed more than once.
	seq := Slots(iv(9, 11), time.Hour, time.Hour)
	assert.Equal(t, slices.Collect(seq), slices.Collect(seq))
}

func TestProposals_PrefixCap(t *testing.T) {
	common := []Interval{iv(9, 11), iv(13, 14), iv(15, 17)}

	all := Proposals(common, time.Hour, time.Hour, 100)
	assert.Equal(t, []Interval{iv(9, 10), iv(10, 11), iv(13, 14), iv(15, 16), iv(16, 17)}, all)

	assert.Equal(t, all[:3], Proposals(common, time.Hour, time.Hour, 3))
	assert.Empty(t, Proposals(common, time.Hour, time.Hour, 0))
	for _, p := range Proposals(common, 45*time.Minute, 10*time.Minute, 100) {
		assert.Equal(t, 45*time.Minute, p.Duration())
		assert.True(t, slices.ContainsFunc(common, func(c Interval) bool { return c.Contains(p) }))
	}
}

func TestMaxAttendance(t *testing.T) {
	alice := newAttendee(t, "alice", time.UTC, "00:00-23:59")
	bob := newAttendee(t, "bob", time.UTC, "00:00-23:59")
	carol := newAttendee(t, "carol", time.UTC, "00:00-23:59")

	t.Run("window spanning other attendees' boundaries", func(t *testing.T) {
		best := MaxAttendance(
			[]*Attendee{alice, bob},
			[][]Interval{{iv(9, 12)}, {iv(10, 11)}},
			2*time.Hour,
		)
		require.NotNil(t, best)
		assert.Equal(t, iv(9, 11), best.Slot)
		assert.Equal(t, []string{"alice"}, best.IDs())
	})

	t.Run("window starts where an attendee becomes free", func(t *testing.T) {
		// Only Alice fits three hours. Her window opens at 9, not at 10
		// where Bob's interval ends.
		best := MaxAttendance(
			[]*Attendee{alice, bob},
			[][]Interval{{iv(9, 17)}, {iv(8, 10)}},
			3*time.Hour,
		)
		require.NotNil(t, best)
		assert.Equal(t, iv(9, 12), best.Slot)
		assert.Equal(t, []string{"alice"}, best.IDs())
	})

	t.Run("earliest window wins ties", func(t *testing.T) {
		best := MaxAttendance(
			[]*Attendee{alice, bob},
			[][]Interval{{iv(14, 16)}, {iv(9, 11)}},
			time.Hour,
		)
		require.NotNil(t, best)
		assert.Equal(t, iv(9, 10), best.Slot)
		assert.Equal(t, []string{"bob"}, best.IDs())
	})

	t.Run("handover at the same instant", func(t *testing.T) {
		// Alice leaves at 11 exactly when Bob and Carol arrive.
		best := MaxAttendance(
			[]*Attendee{alice, bob, carol},
			[][]Interval{{iv(9, 11)}, {iv(11, 13)}, {iv(11, 12)}},
			time.Hour,
		)
		require.NotNil(t, best)
		assert.Equal(t, iv(11, 12), best.Slot)
		assert.Equal(t, []string{"bob", "carol"}, best.IDs())
	})

	t.Run("touching intervals of one attendee", func(t *testing.T) {
		best := MaxAttendance(
			[]*Attendee{alice, bob},
			[][]Interval{{iv(9, 10), iv(10, 12)}, {iv(9, 12)}},
			3*time.Hour,
		)
		require.NotNil(t, best)
		assert.Equal(t, []string{"alice", "bob"}, best.IDs())
	})

	t.Run("nothing long enough", func(t *testing.T) {
		assert.Nil(t, MaxAttendance(
			[]*Attendee{alice, bob},
			[][]Interval{{iv(9, 10)}, {iv(11, 12)}},
			2*time.Hour,
		))
		assert.Nil(t, MaxAttendance(nil, nil, time.Hour))
	})
}

func TestMaxAttendance_BoundedByAttendees(t *testing.T) {
	var attendees []*Attendee
	var free [][]Interval
	for i, hours := range [][2]int{{8, 12}, {9, 17}, {10, 11}, {13, 18}, {9, 10}} {
		a := newAttendee(t, string(rune('a'+i)), time.UTC, "00:00-23:59")
		attendees = append(attendees, a)
		free = append(free, []Interval{iv(hours[0], hours[1])})
	}

	best := MaxAttendance(attendees, free, time.Hour)
	require.NotNil(t, best)
	assert.Equal(t, iv(9, 10), best.Slot)
	assert.Equal(t, []string{"a", "b", "e"}, best.IDs())
	assert.LessOrEqual(t, len(best.Attendees), len(attendees))
	for i, a := range attendees {
		if slices.Contains(best.IDs(), a.ID) {
			assert.True(t, free[i][0].Contains(best.Slot), "%s is not free for the whole slot", a.ID)
		}
	}
}
