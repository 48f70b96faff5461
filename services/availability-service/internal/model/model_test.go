package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSpecFixed(t *testing.T) {
	spec := RuleSpec{Type: "fixed", Start: "2026-03-02T09:00:00+01:00", End: "2026-03-02T12:00:00+01:00"}
	rule, err := spec.ToRule()
	require.NoError(t, err)

	fixed, ok := rule.(availability.FixedRule)
	require.True(t, ok)
	assert.True(t, fixed.Start().Equal(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)))

	assert.Equal(t, RuleSpec{Type: "fixed", Start: "2026-03-02T08:00:00Z", End: "2026-03-02T11:00:00Z"}, RuleSpecFromRule(rule))
}

func TestRuleSpecWeekly(t *testing.T) {
	spec := RuleSpec{Type: "Weekly", DayOfWeek: "monday", Start: "09:00", End: "17:30:15", Timezone: "Europe/Paris"}
	rule, err := spec.ToRule()
	require.NoError(t, err)

	weekly, ok := rule.(availability.WeeklyRule)
	require.True(t, ok)
	assert.Equal(t, time.Monday, weekly.Day())
	assert.Equal(t, "Europe/Paris", weekly.Location().String())

	assert.Equal(t, RuleSpec{Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "17:30:15", Timezone: "Europe/Paris"}, RuleSpecFromRule(rule))
}

func TestRuleSpecWeeklyDefaultsToUTC(t *testing.T) {
	rule, err := RuleSpec{Type: "weekly", DayOfWeek: "FRIDAY", Start: "08:00", End: "10:00"}.ToRule()
	require.NoError(t, err)
	assert.Nil(t, rule.(availability.WeeklyRule).Location())
	assert.Empty(t, RuleSpecFromRule(rule).Timezone)
}

func TestRuleSpecInvalid(t *testing.T) {
	cases := map[string]RuleSpec{
		"unknown type":   {Type: "monthly"},
		"bad fixed time": {Type: "fixed", Start: "yesterday", End: "2026-03-02T12:00:00Z"},
		"fixed reversed": {Type: "fixed", Start: "2026-03-02T12:00:00Z", End: "2026-03-02T09:00:00Z"},
		"bad day":        {Type: "weekly", DayOfWeek: "someday", Start: "09:00", End: "10:00"},
		"bad clock":      {Type: "weekly", DayOfWeek: "MONDAY", Start: "9am", End: "10:00"},
		"bad zone":       {Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "10:00", Timezone: "Mars/Olympus"},
		"weekly equal":   {Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "09:00"},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := spec.ToRule()
			assert.ErrorIs(t, err, availability.ErrInvalidRule)
		})
	}
}

func TestToRuleSet(t *testing.T) {
	_, err := ToRuleSet(nil)
	assert.ErrorIs(t, err, availability.ErrEmptyRuleSet)

	_, err = ToRuleSet([]RuleSpec{
		{Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "10:00"},
		{Type: "nope"},
	})
	require.ErrorIs(t, err, availability.ErrInvalidRule)
	assert.Contains(t, err.Error(), "rules[1]")
}

func TestComputeRequestToEngine(t *testing.T) {
	body := `{
		"duration_minutes": 30,
		"start": "2026-03-02T00:00:00Z",
		"end": "2026-03-03T00:00:00Z",
		"rules": [{"type":"weekly","day_of_week":"MONDAY","start":"09:00","end":"11:00"}],
		"unavailable": [{"start":"2026-03-02T09:30:00Z","end":"2026-03-02T10:00:00Z"}]
	}`
	var req ComputeRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	engineReq, err := req.ToEngine()
	require.NoError(t, err)
	slots, err := availability.ComputeSlots(engineReq)
	require.NoError(t, err)

	views := SlotViews(slots)
	assert.Equal(t, []SlotView{
		{Start: "2026-03-02T09:00:00Z", DurationSeconds: 1800},
		{Start: "2026-03-02T10:00:00Z", DurationSeconds: 1800},
		{Start: "2026-03-02T10:30:00Z", DurationSeconds: 1800},
	}, views)
}

func TestComputeRequestValidation(t *testing.T) {
	base := ComputeRequest{
		DurationMinutes: 30,
		Start:           "2026-03-02T00:00:00Z",
		End:             "2026-03-03T00:00:00Z",
		Rules:           []RuleSpec{{Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "11:00"}},
	}

	req := base
	req.DurationMinutes = 0
	_, err := req.ToEngine()
	assert.ErrorIs(t, err, availability.ErrInvalidDuration)

	req = base
	req.DurationMinutes = math.MaxInt
	_, err = req.ToEngine()
	assert.ErrorIs(t, err, availability.ErrInvalidDuration)

	req = base
	req.End = "2026-03-01T00:00:00Z"
	_, err = req.ToEngine()
	assert.ErrorIs(t, err, availability.ErrInvalidRange)

	req = base
	req.Start = "not-a-time"
	_, err = req.ToEngine()
	assert.ErrorIs(t, err, availability.ErrInvalidRange)

	req = base
	req.Unavailable = []BusyRange{{Start: "2026-03-02T10:00:00Z", End: "2026-03-02T09:00:00Z"}}
	_, err = req.ToEngine()
	assert.ErrorIs(t, err, availability.ErrInvalidRange)

	req = base
	req.Rules = nil
	_, err = req.ToEngine()
	assert.ErrorIs(t, err, availability.ErrEmptyRuleSet)
}

func TestSlotViewsEmptyIsNotNil(t *testing.T) {
	b, err := json.Marshal(SlotViews(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestMinutesDuration(t *testing.T) {
	d, err := MinutesDuration(90)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = MinutesDuration(int(maxDurationMinutes))
	require.NoError(t, err)
	assert.Positive(t, d)

	// One past the limit would wrap around to a small positive duration.
	for _, n := range []int{0, -5, int(maxDurationMinutes) + 1, math.MaxInt} {
		_, err := MinutesDuration(n)
		assert.ErrorIs(t, err, availability.ErrInvalidDuration, n)
	}
}
