package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lt(t *testing.T, s string) LocalTime {
	t.Helper()
	v, err := ParseLocalTime(s)
	require.NoError(t, err)
	return v
}

func loadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNewFixedRule_RequiresPositiveDuration(t *testing.T) {
	_, err := NewFixedRule(ts(t, "2026-02-24T09:00:00Z"), ts(t, "2026-02-24T09:00:00Z"))
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = NewFixedRule(ts(t, "2026-02-24T10:00:00Z"), ts(t, "2026-02-24T09:00:00Z"))
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestFixedRule_AvailabilityRanges(t *testing.T) {
	rule, err := NewFixedRule(ts(t, "2026-02-24T09:00:00Z"), ts(t, "2026-02-24T17:00:00Z"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end string
		want       []Interval
	}{
		{"window contains rule", "2026-02-24T00:00:00Z", "2026-02-25T00:00:00Z", []Interval{iv(t, "2026-02-24T09:00:00Z", "2026-02-24T17:00:00Z")}},
		{"window cuts rule", "2026-02-24T12:00:00Z", "2026-02-24T20:00:00Z", []Interval{iv(t, "2026-02-24T12:00:00Z", "2026-02-24T17:00:00Z")}},
		{"rule ends at window start", "2026-02-24T17:00:00Z", "2026-02-24T20:00:00Z", nil},
		{"rule starts at window end", "2026-02-24T06:00:00Z", "2026-02-24T09:00:00Z", nil},
		{"disjoint", "2026-02-25T09:00:00Z", "2026-02-25T17:00:00Z", nil},
		{"empty window inside rule", "2026-02-24T10:00:00Z", "2026-02-24T10:00:00Z", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := rule.AvailabilityRanges(ts(t, tc.start), ts(t, tc.end))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFixedRule_KeepsZoneAwareBounds(t *testing.T) {
	paris := loadLocation(t, "Europe/Paris")
	rule, err := NewFixedRule(
		time.Date(2026, 2, 24, 10, 0, 0, 0, paris),
		time.Date(2026, 2, 24, 12, 0, 0, 0, paris),
	)
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-02-24T00:00:00Z"), ts(t, "2026-02-25T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{iv(t, "2026-02-24T09:00:00Z", "2026-02-24T11:00:00Z")}, got)
}

func TestRules_RejectInvertedWindow(t *testing.T) {
	fixed, err := NewFixedRule(ts(t, "2026-02-24T09:00:00Z"), ts(t, "2026-02-24T17:00:00Z"))
	require.NoError(t, err)
	weekly, err := NewWeeklyRule(time.Monday, lt(t, "09:00"), lt(t, "10:00"), nil)
	require.NoError(t, err)

	for _, r := range []Rule{fixed, weekly} {
		_, err := r.AvailabilityRanges(ts(t, "2026-02-24T00:00:00Z"), ts(t, "2026-02-23T00:00:00Z"))
		require.ErrorIs(t, err, ErrInvalidRange)
		assert.True(t, IsValidation(err))
	}
}

func TestNewWeeklyRule_RequiresStartBeforeEnd(t *testing.T) {
	_, err := NewWeeklyRule(time.Monday, lt(t, "10:00"), lt(t, "10:00"), nil)
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = NewWeeklyRule(time.Monday, lt(t, "11:00"), lt(t, "10:00"), nil)
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = NewWeeklyRule(time.Weekday(9), lt(t, "09:00"), lt(t, "10:00"), nil)
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestWeeklyRule_OnlyMatchingDays(t *testing.T) {
	rule, err := NewWeeklyRule(time.Monday, lt(t, "09:00"), lt(t, "11:00"), time.UTC)
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-02-23T00:00:00Z"), ts(t, "2026-02-26T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{iv(t, "2026-02-23T09:00:00Z", "2026-02-23T11:00:00Z")}, got)
}

func TestWeeklyRule_NoMatchingDay(t *testing.T) {
	rule, err := NewWeeklyRule(time.Sunday, lt(t, "09:00"), lt(t, "11:00"), nil)
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-02-23T00:00:00Z"), ts(t, "2026-02-24T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWeeklyRule_SpansManyWeeks(t *testing.T) {
	rule, err := NewWeeklyRule(time.Monday, lt(t, "09:00"), lt(t, "10:00"), time.UTC)
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-02-23T00:00:00Z"), ts(t, "2026-03-10T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{
		iv(t, "2026-02-23T09:00:00Z", "2026-02-23T10:00:00Z"),
		iv(t, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"),
		iv(t, "2026-03-09T09:00:00Z", "2026-03-09T10:00:00Z"),
	}, got)
}

func TestWeeklyRule_IncludesCivilDateOfWindowEnd(t *testing.T) {
	rule, err := NewWeeklyRule(time.Monday, lt(t, "09:00"), lt(t, "10:00"), nil)
	require.NoError(t, err)

	// The window ends at midnight on the second Monday; that day is still expanded and left
	// for the rule set to clip.
	got, err := rule.AvailabilityRanges(ts(t, "2026-02-23T00:00:00Z"), ts(t, "2026-03-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{
		iv(t, "2026-02-23T09:00:00Z", "2026-02-23T10:00:00Z"),
		iv(t, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"),
	}, got)
}

func TestWeeklyRule_ConvertsTimezone(t *testing.T) {
	rule, err := NewWeeklyRule(time.Monday, lt(t, "09:00"), lt(t, "11:00"), loadLocation(t, "Europe/Paris"))
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-02-23T00:00:00Z"), ts(t, "2026-02-24T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{iv(t, "2026-02-23T08:00:00Z", "2026-02-23T10:00:00Z")}, got)
}

func TestWeeklyRule_CivilDatesFollowRuleZone(t *testing.T) {
	// 2026-02-23T23:30Z is already Tuesday in Tokyo.
	rule, err := NewWeeklyRule(time.Tuesday, lt(t, "09:00"), lt(t, "10:00"), loadLocation(t, "Asia/Tokyo"))
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-02-23T23:30:00Z"), ts(t, "2026-02-24T02:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{iv(t, "2026-02-24T00:00:00Z", "2026-02-24T01:00:00Z")}, got)
}

func TestWeeklyRule_DSTGapShiftsForward(t *testing.T) {
	// Europe/Paris jumps from 02:00 to 03:00 on 2026-03-29.
	rule, err := NewWeeklyRule(time.Sunday, lt(t, "02:30"), lt(t, "04:00"), loadLocation(t, "Europe/Paris"))
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-03-29T00:00:00Z"), ts(t, "2026-03-29T12:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{iv(t, "2026-03-29T01:30:00Z", "2026-03-29T02:00:00Z")}, got)
}

func TestWeeklyRule_DSTOverlapUsesEarlierOccurrence(t *testing.T) {
	// Europe/Paris repeats 02:00-03:00 on 2026-10-25.
	rule, err := NewWeeklyRule(time.Sunday, lt(t, "02:30"), lt(t, "03:30"), loadLocation(t, "Europe/Paris"))
	require.NoError(t, err)

	got, err := rule.AvailabilityRanges(ts(t, "2026-10-25T00:00:00Z"), ts(t, "2026-10-25T12:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Interval{iv(t, "2026-10-25T00:30:00Z", "2026-10-25T02:30:00Z")}, got)
}

func TestParseLocalTime(t *testing.T) {
	v, err := ParseLocalTime("09:05")
	require.NoError(t, err)
	assert.Equal(t, 9, v.Hour())
	assert.Equal(t, 5, v.Minute())
	assert.Equal(t, "09:05", v.String())

	v, err = ParseLocalTime("23:59:30")
	require.NoError(t, err)
	assert.Equal(t, "23:59:30", v.String())

	for _, bad := range []string{"", "24:00", "9h", "12:60"} {
		_, err := ParseLocalTime(bad)
		assert.ErrorIs(t, err, ErrInvalidRule, bad)
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"MONDAY": time.Monday, "sunday": time.Sunday, " Sat ": time.Saturday, "thu": time.Thursday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseWeekday("funday")
	require.ErrorIs(t, err, ErrInvalidRule)
}
