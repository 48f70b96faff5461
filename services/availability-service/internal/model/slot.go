package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
)

type BusyRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// UnavailableFrom parses busy ranges. Malformed timestamps wrap availability.ErrInvalidRange.
func UnavailableFrom(ranges []BusyRange) (availability.UnavailableRanges, error) {
	intervals := make([]availability.Interval, 0, len(ranges))
	for i, r := range ranges {
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(r.Start))
		if err != nil {
			return availability.UnavailableRanges{}, fmt.Errorf("unavailable[%d]: %w: 'start': %v", i, availability.ErrInvalidRange, err)
		}
		end, err := time.Parse(time.RFC3339, strings.TrimSpace(r.End))
		if err != nil {
			return availability.UnavailableRanges{}, fmt.Errorf("unavailable[%d]: %w: 'end': %v", i, availability.ErrInvalidRange, err)
		}
		intervals = append(intervals, availability.Interval{Start: start, End: end})
	}
	return availability.NewUnavailableRanges(intervals...)
}

type SlotView struct {
	Start           string `json:"start"`
	DurationSeconds int64  `json:"durationSeconds"`
}

func SlotViews(slots []availability.Slot) []SlotView {
	out := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotView{
			Start:           s.Start.UTC().Format(time.RFC3339),
			DurationSeconds: int64(s.Duration / time.Second),
		})
	}
	return out
}

// ComputeRequest is the body of the stateless compute endpoint.
type ComputeRequest struct {
	DurationMinutes int         `json:"duration_minutes"`
	Start           string      `json:"start"`
	End             string      `json:"end"`
	Rules           []RuleSpec  `json:"rules"`
	Unavailable     []BusyRange `json:"unavailable"`
}

func (r ComputeRequest) ToEngine() (availability.ComputeSlotsRequest, error) {
	start, end, err := ParseWindow(r.Start, r.End)
	if err != nil {
		return availability.ComputeSlotsRequest{}, err
	}
	rules, err := ToRuleSet(r.Rules)
	if err != nil {
		return availability.ComputeSlotsRequest{}, err
	}
	unavailable, err := UnavailableFrom(r.Unavailable)
	if err != nil {
		return availability.ComputeSlotsRequest{}, err
	}
	d, err := MinutesDuration(r.DurationMinutes)
	if err != nil {
		return availability.ComputeSlotsRequest{}, err
	}
	return availability.NewComputeSlotsRequest(d, start, end, rules, unavailable)
}

// maxDurationMinutes is the largest minute count a time.Duration can hold.
const maxDurationMinutes = math.MaxInt64 / int64(time.Minute)

// MinutesDuration converts a minute count from a request into an event duration.
// Non-positive and overflowing counts wrap availability.ErrInvalidDuration.
func MinutesDuration(minutes int) (time.Duration, error) {
	if minutes <= 0 || int64(minutes) > maxDurationMinutes {
		return 0, fmt.Errorf("%w (got %d minutes)", availability.ErrInvalidDuration, minutes)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// ParseWindow parses an RFC3339 start/end pair. Ordering is checked by the engine.
func ParseWindow(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(startRaw))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid 'start'", availability.ErrInvalidRange)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(endRaw))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid 'end'", availability.ErrInvalidRange)
	}
	return start, end, nil
}
