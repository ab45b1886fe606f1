package scheduler

import (
	"iter"
	"time"
)

// Slots yields every window of length duration inside free, starting at
// free.Start and moving by step. The last window never ends after free.End.
// Nothing is yielded when duration is longer than free.
func Slots(free Interval, duration, step time.Duration) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if duration <= 0 || step <= 0 || duration > free.Duration() {
			return
		}
		for start := free.Start; ; start = start.Add(step) {
			slot := span(start, start.Add(duration))
			if !free.Contains(slot) || !yield(slot) {
				return
			}
		}
	}
}

// Proposals concatenates the windows of every common interval, in order,
// and keeps only the first limit of them.
func Proposals(common []Interval, duration, step time.Duration, limit int) []Interval {
	if limit <= 0 {
		return []Interval{}
	}
	out := make([]Interval, 0, min(limit, 16))
	for _, free := range common {
		for slot := range Slots(free, duration, step) {
			out = append(out, slot)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
