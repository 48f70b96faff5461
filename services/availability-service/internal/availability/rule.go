package availability

import (
	"fmt"
	"strings"
	"time"
)

type RuleKind string

const (
	RuleKindFixed  RuleKind = "fixed"
	RuleKindWeekly RuleKind = "weekly"
)

// Rule contributes availability intervals for a query window. The set of implementations is
// closed: FixedRule and WeeklyRule.
type Rule interface {
	Kind() RuleKind
	// AvailabilityRanges returns the intervals the rule contributes for [windowStart, windowEnd),
	// in ascending order. Results are not necessarily clipped to the window.
	AvailabilityRanges(windowStart, windowEnd time.Time) ([]Interval, error)

	sealed()
}

// FixedRule is a single absolute availability interval.
type FixedRule struct {
	start time.Time
	end   time.Time
}

func NewFixedRule(start, end time.Time) (FixedRule, error) {
	if start.IsZero() || end.IsZero() {
		return FixedRule{}, fmt.Errorf("%w: fixed rule requires 'start' and 'end'", ErrInvalidRule)
	}
	if !start.Before(end) {
		return FixedRule{}, fmt.Errorf("%w: fixed rule 'start' must be before 'end'", ErrInvalidRule)
	}
	return FixedRule{start: start, end: end}, nil
}

func (r FixedRule) Kind() RuleKind   { return RuleKindFixed }
func (r FixedRule) Start() time.Time { return r.start }
func (r FixedRule) End() time.Time   { return r.end }
func (FixedRule) sealed()            {}

// AvailabilityRanges returns the intersection of the rule with the window, or nothing when they
// are disjoint. A rule ending exactly at windowStart is disjoint.
func (r FixedRule) AvailabilityRanges(windowStart, windowEnd time.Time) ([]Interval, error) {
	if err := validateRange(windowStart, windowEnd); err != nil {
		return nil, err
	}
	rule := Interval{Start: r.start, End: r.end}
	window := Interval{Start: windowStart, End: windowEnd}
	in, ok := rule.Intersect(window)
	if !ok {
		return nil, nil
	}
	return []Interval{in.utc()}, nil
}

// WeeklyRule is available every Day from Start to End local time in Location.
// A nil location means UTC.
type WeeklyRule struct {
	day   time.Weekday
	start LocalTime
	end   LocalTime
	loc   *time.Location
}

func NewWeeklyRule(day time.Weekday, start, end LocalTime, loc *time.Location) (WeeklyRule, error) {
	if day < time.Sunday || day > time.Saturday {
		return WeeklyRule{}, fmt.Errorf("%w: unknown day of week %d", ErrInvalidRule, int(day))
	}
	if !start.Before(end) {
		return WeeklyRule{}, fmt.Errorf("%w: weekly rule 'start' must be before 'end'", ErrInvalidRule)
	}
	return WeeklyRule{day: day, start: start, end: end, loc: loc}, nil
}

func (r WeeklyRule) Kind() RuleKind           { return RuleKindWeekly }
func (r WeeklyRule) Day() time.Weekday        { return r.day }
func (r WeeklyRule) Start() LocalTime         { return r.start }
func (r WeeklyRule) End() LocalTime           { return r.end }
func (r WeeklyRule) Location() *time.Location { return r.loc }
func (WeeklyRule) sealed()                    {}

func (r WeeklyRule) zone() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// AvailabilityRanges emits one interval per matching calendar date between the civil dates of
// windowStart and windowEnd, both inclusive. Edge days may fall partly outside the window;
// RuleSet clips them.
func (r WeeklyRule) AvailabilityRanges(windowStart, windowEnd time.Time) ([]Interval, error) {
	if err := validateRange(windowStart, windowEnd); err != nil {
		return nil, err
	}
	loc := r.zone()
	first := civilDate(windowStart, loc)
	last := civilDate(windowEnd, loc)

	var out []Interval
	skip := (int(r.day) - int(first.Weekday()) + 7) % 7
	for d := first.AddDate(0, 0, skip); !d.After(last); d = d.AddDate(0, 0, 7) {
		in := Interval{
			Start: resolveLocal(d, r.start, loc),
			End:   resolveLocal(d, r.end, loc),
		}
		if in.IsEmpty() {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// ParseWeekday accepts English day names ("MONDAY", "monday", "Mon").
func ParseWeekday(s string) (time.Weekday, error) {
	switch normalizeDay(s) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("%w: unknown day of week %q", ErrInvalidRule, s)
}

func normalizeDay(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
