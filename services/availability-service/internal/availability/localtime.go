package availability

import (
	"fmt"
	"strings"
	"time"
)

// LocalTime is a wall-clock time of day with no date and no zone, in [00:00, 24:00).
type LocalTime struct {
	sinceMidnight time.Duration
}

func NewLocalTime(hour, minute, second int) (LocalTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return LocalTime{}, fmt.Errorf("%w: local time %02d:%02d:%02d out of range", ErrInvalidRule, hour, minute, second)
	}
	d := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second
	return LocalTime{sinceMidnight: d}, nil
}

// ParseLocalTime accepts "15:04" or "15:04:05".
func ParseLocalTime(s string) (LocalTime, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return LocalTime{}, fmt.Errorf("%w: invalid local time %q", ErrInvalidRule, s)
	}
	return NewLocalTime(t.Hour(), t.Minute(), t.Second())
}

func (t LocalTime) Hour() int   { return int(t.sinceMidnight / time.Hour) }
func (t LocalTime) Minute() int { return int(t.sinceMidnight % time.Hour / time.Minute) }
func (t LocalTime) Second() int { return int(t.sinceMidnight % time.Minute / time.Second) }

func (t LocalTime) Before(o LocalTime) bool {
	return t.sinceMidnight < o.sinceMidnight
}

func (t LocalTime) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// civilDate truncates t to its calendar date as seen in loc. The result is midnight UTC of that
// date, which keeps day arithmetic free of DST effects.
func civilDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// resolveLocal converts a civil date (as returned by civilDate) plus a wall-clock time in loc to
// an absolute instant.
//
// A wall-clock time skipped by a forward transition is shifted forward by the length of the gap.
// A wall-clock time repeated by a backward transition resolves to its earlier occurrence.
func resolveLocal(date time.Time, clock LocalTime, loc *time.Location) time.Time {
	wall := date.Add(clock.sinceMidnight)
	before := offsetAt(wall.Add(-36*time.Hour), loc)
	after := offsetAt(wall.Add(36*time.Hour), loc)

	var resolved time.Time
	for _, off := range [2]int{before, after} {
		candidate := wall.Add(-time.Duration(off) * time.Second)
		if offsetAt(candidate, loc) != off {
			continue
		}
		if resolved.IsZero() || candidate.Before(resolved) {
			resolved = candidate
		}
	}
	if resolved.IsZero() {
		// Gap: read the wall clock with the offset in force before the transition.
		resolved = wall.Add(-time.Duration(before) * time.Second)
	}
	return resolved.UTC()
}

func offsetAt(t time.Time, loc *time.Location) int {
	_, off := t.In(loc).Zone()
	return off
}
