package availability

import "slices"

// UnavailableRanges is the busy time of a resource. It may be empty.
type UnavailableRanges struct {
	ranges []Interval
}

func NewUnavailableRanges(ranges ...Interval) (UnavailableRanges, error) {
	for _, r := range ranges {
		if err := validateRange(r.Start, r.End); err != nil {
			return UnavailableRanges{}, err
		}
	}
	return UnavailableRanges{ranges: slices.Clone(ranges)}, nil
}

func (u UnavailableRanges) Ranges() []Interval {
	return slices.Clone(u.ranges)
}

// IntervalSet unions the busy ranges. No clipping is applied.
func (u UnavailableRanges) IntervalSet() IntervalSet {
	return NewIntervalSet(u.ranges...)
}
