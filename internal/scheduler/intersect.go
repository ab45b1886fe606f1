package scheduler

// Intersect returns the common part of two sorted, non-overlapping interval
// lists using a two-pointer merge. The result is sorted and non-overlapping.
func Intersect(a, b []Interval) []Interval {
	var out []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := laterOf(a[i].Start, b[j].Start)
		end := earlierOf(a[i].End, b[j].End)
		if start.Before(end) {
			out = append(out, span(start, end))
		}

		// The side that ends first cannot overlap anything further on.
		switch a[i].End.Compare(b[j].End) {
		case -1:
			i++
		case 1:
			j++
		default:
			i++
			j++
		}
	}
	return out
}

// IntersectAll folds Intersect over lists from left to right. A single list
// is returned as is, and the fold stops as soon as nothing is left in common.
func IntersectAll(lists [][]Interval) []Interval {
	if len(lists) == 0 {
		return nil
	}
	common := append([]Interval(nil), lists[0]...)
	for _, next := range lists[1:] {
		if len(common) == 0 {
			return nil
		}
		common = Intersect(common, next)
	}
	return common
}
