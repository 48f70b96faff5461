package availability

import (
	"fmt"
	"slices"
	"time"
)

// RuleSet is a non-empty ordered list of rules.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) (RuleSet, error) {
	if len(rules) == 0 {
		return RuleSet{}, ErrEmptyRuleSet
	}
	for i, r := range rules {
		if r == nil {
			return RuleSet{}, fmt.Errorf("%w: rule %d is nil", ErrInvalidRule, i)
		}
	}
	return RuleSet{rules: slices.Clone(rules)}, nil
}

func (s RuleSet) Rules() []Rule {
	return slices.Clone(s.rules)
}

func (s RuleSet) Len() int {
	return len(s.rules)
}

// IntervalSet expands every rule over [windowStart, windowEnd), unions the contributions and
// clips the result to the window.
func (s RuleSet) IntervalSet(windowStart, windowEnd time.Time) (IntervalSet, error) {
	if err := validateRange(windowStart, windowEnd); err != nil {
		return IntervalSet{}, err
	}
	if len(s.rules) == 0 {
		return IntervalSet{}, ErrEmptyRuleSet
	}

	var contributions []Interval
	for _, r := range s.rules {
		ranges, err := r.AvailabilityRanges(windowStart, windowEnd)
		if err != nil {
			return IntervalSet{}, err
		}
		contributions = append(contributions, ranges...)
	}
	return NewIntervalSet(contributions...).Clip(Interval{Start: windowStart, End: windowEnd}), nil
}
