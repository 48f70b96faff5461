package availability

import (
	"slices"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) (Interval, error) {
	if err := validateRange(start, end); err != nil {
		return Interval{}, err
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// IsEmpty reports whether the interval covers no instant (End <= Start).
func (i Interval) IsEmpty() bool {
	return !i.End.After(i.Start)
}

func (i Interval) Duration() time.Duration {
	if i.IsEmpty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Overlaps uses half-open semantics: intervals that merely touch do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Intersect returns the overlap of i and o. ok is false when the overlap is empty.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	if !i.Overlaps(o) {
		return Interval{}, false
	}
	out := i
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	if out.IsEmpty() {
		return Interval{}, false
	}
	return out, true
}

func (i Interval) utc() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}

// IntervalSet is a canonical union of intervals: sorted by start, no overlaps, no touching
// neighbours. The zero value is the empty set. All operations return a new set.
type IntervalSet struct {
	intervals []Interval
}

// NewIntervalSet returns the union of the given intervals. Empty intervals are ignored.
func NewIntervalSet(intervals ...Interval) IntervalSet {
	return IntervalSet{}.Union(intervals...)
}

// Intervals returns a copy of the canonical intervals in ascending order.
func (s IntervalSet) Intervals() []Interval {
	return slices.Clone(s.intervals)
}

func (s IntervalSet) Len() int {
	return len(s.intervals)
}

func (s IntervalSet) IsEmpty() bool {
	return len(s.intervals) == 0
}

// Union merges intervals into the set. Overlapping or touching intervals collapse into one span.
func (s IntervalSet) Union(intervals ...Interval) IntervalSet {
	all := make([]Interval, 0, len(s.intervals)+len(intervals))
	all = append(all, s.intervals...)
	for _, in := range intervals {
		if in.IsEmpty() {
			continue
		}
		all = append(all, in.utc())
	}
	if len(all) == 0 {
		return IntervalSet{}
	}

	slices.SortFunc(all, func(a, b Interval) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})

	merged := make([]Interval, 0, len(all))
	for _, cur := range all {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return IntervalSet{intervals: merged}
}

// UnionSet returns the union of both sets.
func (s IntervalSet) UnionSet(o IntervalSet) IntervalSet {
	return s.Union(o.intervals...)
}

// Clip intersects every interval with window. Intervals outside the window are dropped.
func (s IntervalSet) Clip(window Interval) IntervalSet {
	if window.IsEmpty() || len(s.intervals) == 0 {
		return IntervalSet{}
	}
	out := make([]Interval, 0, len(s.intervals))
	for _, in := range s.intervals {
		if clipped, ok := in.Intersect(window); ok {
			out = append(out, clipped.utc())
		}
	}
	return IntervalSet{intervals: out}
}

// Subtract removes every portion of s covered by o. An interval may split into
// zero, one or two pieces per overlapping interval of o.
func (s IntervalSet) Subtract(o IntervalSet) IntervalSet {
	if len(s.intervals) == 0 {
		return IntervalSet{}
	}
	if len(o.intervals) == 0 {
		return IntervalSet{intervals: slices.Clone(s.intervals)}
	}

	out := make([]Interval, 0, len(s.intervals))
	j := 0
	for _, cur := range s.intervals {
		// Both sets are sorted, so anything ending at or before cur.Start is irrelevant from now on.
		for j < len(o.intervals) && !o.intervals[j].End.After(cur.Start) {
			j++
		}
		cursor := cur.Start
		for k := j; k < len(o.intervals) && o.intervals[k].Start.Before(cur.End); k++ {
			hole := o.intervals[k]
			if hole.Start.After(cursor) {
				out = append(out, Interval{Start: cursor, End: hole.Start})
			}
			if hole.End.After(cursor) {
				cursor = hole.End
			}
			if !cursor.Before(cur.End) {
				break
			}
		}
		if cursor.Before(cur.End) {
			out = append(out, Interval{Start: cursor, End: cur.End})
		}
	}
	return IntervalSet{intervals: out}
}
