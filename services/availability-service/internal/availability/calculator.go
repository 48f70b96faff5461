package availability

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Slot is a bookable [Start, Start+Duration) range.
type Slot struct {
	Start    time.Time
	Duration time.Duration
}

func (s Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

// ComputeSlotsRequest is the input of ComputeSlots. Build it with NewComputeSlotsRequest, or
// fill it directly and let ComputeSlots validate it.
type ComputeSlotsRequest struct {
	EventDuration time.Duration
	Start         time.Time
	End           time.Time
	Rules         RuleSet
	Unavailable   UnavailableRanges
}

func NewComputeSlotsRequest(eventDuration time.Duration, start, end time.Time, rules RuleSet, unavailable UnavailableRanges) (ComputeSlotsRequest, error) {
	req := ComputeSlotsRequest{
		EventDuration: eventDuration,
		Start:         start,
		End:           end,
		Rules:         rules,
		Unavailable:   unavailable,
	}
	if err := req.Validate(); err != nil {
		return ComputeSlotsRequest{}, err
	}
	return req, nil
}

func (r ComputeSlotsRequest) Validate() error {
	if r.EventDuration <= 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidDuration, r.EventDuration)
	}
	if err := validateRange(r.Start, r.End); err != nil {
		return err
	}
	if r.Rules.Len() == 0 {
		return ErrEmptyRuleSet
	}
	return nil
}

// Calculator computes bookable slots. Implementations must be safe for concurrent use.
type Calculator interface {
	ComputeSlots(req ComputeSlotsRequest) ([]Slot, error)
}

// DefaultCalculator is the stateless Calculator backed by ComputeSlots.
type DefaultCalculator struct{}

func (DefaultCalculator) ComputeSlots(req ComputeSlotsRequest) ([]Slot, error) {
	return ComputeSlots(req)
}

// ComputeSlots returns the slots of length req.EventDuration that fit inside the rules'
// availability within [req.Start, req.End) minus the unavailable ranges.
//
// Each free interval is tiled independently: the first slot starts at the interval start rounded
// up to a whole minute, later slots follow back to back, and a slot may end exactly at the
// interval end. The result is sorted by start and contains no duplicates. An empty result is not
// an error.
func ComputeSlots(req ComputeSlotsRequest) ([]Slot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	avail, err := req.Rules.IntervalSet(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if avail.IsEmpty() {
		return []Slot{}, nil
	}

	free := avail.Subtract(req.Unavailable.IntervalSet())
	slots := []Slot{}
	for _, in := range free.Intervals() {
		slots = append(slots, tile(in, req.EventDuration)...)
	}

	slices.SortFunc(slots, func(a, b Slot) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Duration, b.Duration)
	})
	return slices.CompactFunc(slots, func(a, b Slot) bool {
		return a.Start.Equal(b.Start) && a.Duration == b.Duration
	}), nil
}

func tile(in Interval, d time.Duration) []Slot {
	var out []Slot
	for start := roundUpToMinute(in.Start); !start.Add(d).After(in.End); start = start.Add(d) {
		out = append(out, Slot{Start: start, Duration: d})
	}
	return out
}

func roundUpToMinute(t time.Time) time.Time {
	floor := t.Truncate(time.Minute)
	if floor.Before(t) {
		return floor.Add(time.Minute)
	}
	return floor
}
