package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
)

// RuleSpec is the JSON form of an availability rule.
//
//	{"type":"fixed","start":"2026-03-02T09:00:00Z","end":"2026-03-02T12:00:00Z"}
//	{"type":"weekly","day_of_week":"MONDAY","start":"09:00","end":"17:30","timezone":"Europe/Paris"}
type RuleSpec struct {
	Type      string `json:"type"`
	DayOfWeek string `json:"day_of_week,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Timezone  string `json:"timezone,omitempty"`
}

// ToRule builds the engine rule. Any failure wraps availability.ErrInvalidRule.
func (s RuleSpec) ToRule() (availability.Rule, error) {
	switch availability.RuleKind(strings.ToLower(strings.TrimSpace(s.Type))) {
	case availability.RuleKindFixed:
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(s.Start))
		if err != nil {
			return nil, fmt.Errorf("%w: fixed rule 'start': %v", availability.ErrInvalidRule, err)
		}
		end, err := time.Parse(time.RFC3339, strings.TrimSpace(s.End))
		if err != nil {
			return nil, fmt.Errorf("%w: fixed rule 'end': %v", availability.ErrInvalidRule, err)
		}
		return availability.NewFixedRule(start, end)

	case availability.RuleKindWeekly:
		day, err := availability.ParseWeekday(s.DayOfWeek)
		if err != nil {
			return nil, err
		}
		start, err := availability.ParseLocalTime(s.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: weekly rule 'start': %v", availability.ErrInvalidRule, err)
		}
		end, err := availability.ParseLocalTime(s.End)
		if err != nil {
			return nil, fmt.Errorf("%w: weekly rule 'end': %v", availability.ErrInvalidRule, err)
		}
		var loc *time.Location
		if tz := strings.TrimSpace(s.Timezone); tz != "" {
			loc, err = time.LoadLocation(tz)
			if err != nil {
				return nil, fmt.Errorf("%w: unknown timezone %q", availability.ErrInvalidRule, tz)
			}
		}
		return availability.NewWeeklyRule(day, start, end, loc)
	}
	return nil, fmt.Errorf("%w: unknown rule type %q", availability.ErrInvalidRule, s.Type)
}

func RuleSpecFromRule(r availability.Rule) RuleSpec {
	switch rule := r.(type) {
	case availability.FixedRule:
		return RuleSpec{
			Type:  string(availability.RuleKindFixed),
			Start: rule.Start().UTC().Format(time.RFC3339),
			End:   rule.End().UTC().Format(time.RFC3339),
		}
	case availability.WeeklyRule:
		spec := RuleSpec{
			Type:      string(availability.RuleKindWeekly),
			DayOfWeek: strings.ToUpper(rule.Day().String()),
			Start:     rule.Start().String(),
			End:       rule.End().String(),
		}
		if loc := rule.Location(); loc != nil {
			spec.Timezone = loc.String()
		}
		return spec
	}
	return RuleSpec{}
}

// ToRuleSet converts specs, reporting the index of the first invalid one.
func ToRuleSet(specs []RuleSpec) (availability.RuleSet, error) {
	rules := make([]availability.Rule, 0, len(specs))
	for i, spec := range specs {
		rule, err := spec.ToRule()
		if err != nil {
			return availability.RuleSet{}, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return availability.NewRuleSet(rules...)
}
