package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotengine/libs/httpx"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/slotcache"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/slots"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore backs both the slot service and the time-off endpoints.
type memStore struct {
	rules   map[string][]model.RuleSpec
	timeOff map[string]model.TimeOff
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{rules: map[string][]model.RuleSpec{}, timeOff: map[string]model.TimeOff{}}
}

func (m *memStore) GetRules(_ context.Context, id string) ([]model.RuleSpec, error) {
	specs, ok := m.rules[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return specs, nil
}

func (m *memStore) ReplaceRules(_ context.Context, id string, specs []model.RuleSpec) error {
	m.rules[id] = specs
	return nil
}

func (m *memStore) ListBusyIntervals(ctx context.Context, id string, from, to time.Time) ([]availability.Interval, error) {
	items, _ := m.ListTimeOff(ctx, id, from, to)
	out := make([]availability.Interval, 0, len(items))
	for _, t := range items {
		out = append(out, availability.Interval{Start: t.StartTime, End: t.EndTime})
	}
	return out, nil
}

func (m *memStore) CreateTimeOff(_ context.Context, t model.TimeOff) (model.TimeOff, error) {
	m.nextID++
	t.ID = "to-" + string(rune('0'+m.nextID))
	t.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.timeOff[t.ID] = t
	return t, nil
}

func (m *memStore) ListTimeOff(_ context.Context, id string, from, to time.Time) ([]model.TimeOff, error) {
	var out []model.TimeOff
	for _, t := range m.timeOff {
		if t.ResourceID == id && t.StartTime.Before(to) && t.EndTime.After(from) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTimeOff(_ context.Context, resourceID, id string) error {
	t, ok := m.timeOff[id]
	if !ok || t.ResourceID != resourceID {
		return storage.ErrNotFound
	}
	delete(m.timeOff, id)
	return nil
}

func newServer(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	svc := slots.NewService(store, slotcache.NewLRU(64, time.Minute), logger, slots.Config{MaxWindow: 62 * 24 * time.Hour})
	mux := http.NewServeMux()
	NewAvailabilityHandler(svc, store, logger).Register(mux)
	return httpx.Chain(mux, httpx.WithRequestID), store
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Far-future window so ExcludePast never hides anything.
const (
	futureMonday  = "2036-03-03T00:00:00Z"
	futureTuesday = "2036-03-04T00:00:00Z"
)

func TestPublicSlots(t *testing.T) {
	h, store := newServer(t)
	store.rules["r1"] = []model.RuleSpec{{Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "10:00"}}

	rec := do(h, http.MethodGet, "/api/v1/public/slots?resource_id=r1&start="+futureMonday+"&end="+futureTuesday+"&duration_minutes=20", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[
		{"start":"2036-03-03T09:00:00Z","durationSeconds":1200},
		{"start":"2036-03-03T09:20:00Z","durationSeconds":1200},
		{"start":"2036-03-03T09:40:00Z","durationSeconds":1200}
	]`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestPublicSlotsDefaultsDurationAndReturnsEmptyArray(t *testing.T) {
	h, store := newServer(t)
	store.rules["r1"] = []model.RuleSpec{{Type: "weekly", DayOfWeek: "SUNDAY", Start: "09:00", End: "10:00"}}

	rec := do(h, http.MethodGet, "/api/v1/public/slots?resource_id=r1&start="+futureMonday+"&end="+futureTuesday, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestPublicSlotsErrors(t *testing.T) {
	h, store := newServer(t)
	store.rules["r1"] = []model.RuleSpec{{Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "10:00"}}

	cases := []struct {
		name   string
		query  string
		status int
	}{
		{"missing params", "resource_id=r1", http.StatusBadRequest},
		{"bad start", "resource_id=r1&start=yesterday&end=" + futureTuesday, http.StatusBadRequest},
		{"reversed", "resource_id=r1&start=" + futureTuesday + "&end=" + futureMonday, http.StatusBadRequest},
		{"bad duration", "resource_id=r1&start=" + futureMonday + "&end=" + futureTuesday + "&duration_minutes=x", http.StatusBadRequest},
		{"zero duration", "resource_id=r1&start=" + futureMonday + "&end=" + futureTuesday + "&duration_minutes=0", http.StatusBadRequest},
		{"overflowing duration", "resource_id=r1&start=" + futureMonday + "&end=" + futureTuesday + "&duration_minutes=153722867280913", http.StatusBadRequest},
		{"duration beyond max window", "resource_id=r1&start=" + futureMonday + "&end=" + futureTuesday + "&duration_minutes=100000", http.StatusBadRequest},
		{"window too large", "resource_id=r1&start=2036-01-01T00:00:00Z&end=2036-06-01T00:00:00Z", http.StatusBadRequest},
		{"unknown resource", "resource_id=r2&start=" + futureMonday + "&end=" + futureTuesday, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, "/api/v1/public/slots?"+tc.query, "")
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPost, "/api/v1/public/slots", "").Code)
}

func TestCompute(t *testing.T) {
	h, _ := newServer(t)
	body := `{
		"duration_minutes": 60,
		"start": "2026-03-02T00:00:00Z",
		"end": "2026-03-03T00:00:00Z",
		"rules": [
			{"type":"fixed","start":"2026-03-02T08:00:00Z","end":"2026-03-02T10:00:00Z"},
			{"type":"weekly","day_of_week":"MONDAY","start":"09:30","end":"11:00"}
		],
		"unavailable": [{"start":"2026-03-02T10:00:00Z","end":"2026-03-02T10:15:00Z"}]
	}`
	rec := do(h, http.MethodPost, "/api/v1/slots/compute", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[
		{"start":"2026-03-02T08:00:00Z","durationSeconds":3600},
		{"start":"2026-03-02T09:00:00Z","durationSeconds":3600}
	]`, rec.Body.String())
}

func TestComputeErrors(t *testing.T) {
	h, _ := newServer(t)

	rec := do(h, http.MethodPost, "/api/v1/slots/compute", `{"duration_minutes":30,"start":"2026-03-02T00:00:00Z","end":"2026-03-03T00:00:00Z","rules":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must not be empty")

	rec = do(h, http.MethodPost, "/api/v1/slots/compute", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid json body"}`, rec.Body.String())

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/api/v1/slots/compute", "").Code)
}

func TestRulesRoundTrip(t *testing.T) {
	h, store := newServer(t)

	rec := do(h, http.MethodGet, "/api/v1/resources/rules?resource_id=r1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPut, "/api/v1/resources/rules?resource_id=r1",
		`{"rules":[{"type":"weekly","day_of_week":"tue","start":"08:00:00","end":"12:00","timezone":"America/New_York"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	want := `{"resource_id":"r1","rules":[{"type":"weekly","day_of_week":"TUESDAY","start":"08:00","end":"12:00","timezone":"America/New_York"}]}`
	assert.JSONEq(t, want, rec.Body.String())
	assert.Len(t, store.rules["r1"], 1)

	rec = do(h, http.MethodGet, "/api/v1/resources/rules?resource_id=r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, want, rec.Body.String())

	rec = do(h, http.MethodPut, "/api/v1/resources/rules", `{"resource_id":"r2","rules":[{"type":"weekly","day_of_week":"tue","start":"12:00","end":"08:00"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, store.rules, "r2")

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodDelete, "/api/v1/resources/rules?resource_id=r1", "").Code)
}

func TestTimeOffBlocksSlots(t *testing.T) {
	h, store := newServer(t)
	store.rules["r1"] = []model.RuleSpec{{Type: "weekly", DayOfWeek: "MONDAY", Start: "09:00", End: "11:00"}}
	slotsURL := "/api/v1/public/slots?resource_id=r1&start=" + futureMonday + "&end=" + futureTuesday + "&duration_minutes=60"

	rec := do(h, http.MethodGet, slotsURL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2036-03-03T09:00:00Z")

	rec = do(h, http.MethodPost, "/api/v1/resources/time-off",
		`{"resource_id":"r1","start_time":"2036-03-03T09:00:00Z","end_time":"2036-03-03T10:00:00Z","reason":"dentist"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.TimeOff
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "dentist", created.Reason)

	// The cache was invalidated, so the time off is visible immediately.
	rec = do(h, http.MethodGet, slotsURL, "")
	assert.JSONEq(t, `[{"start":"2036-03-03T10:00:00Z","durationSeconds":3600}]`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/v1/resources/time-off?resource_id=r1&start="+futureMonday+"&end="+futureTuesday, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = do(h, http.MethodDelete, "/api/v1/resources/time-off?resource_id=r1&id="+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodDelete, "/api/v1/resources/time-off?resource_id=r1&id="+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodGet, slotsURL, "")
	assert.Contains(t, rec.Body.String(), "2036-03-03T09:00:00Z")
}

func TestTimeOffValidation(t *testing.T) {
	h, _ := newServer(t)

	rec := do(h, http.MethodPost, "/api/v1/resources/time-off", `{"resource_id":"r1","start_time":"2036-03-03T10:00:00Z","end_time":"2036-03-03T09:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/resources/time-off", `{"start_time":"2036-03-03T09:00:00Z","end_time":"2036-03-03T10:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/resources/time-off?resource_id=r1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/resources/time-off?resource_id=r1&start="+futureMonday+"&end="+futureTuesday, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())

	rec = do(h, http.MethodDelete, "/api/v1/resources/time-off?resource_id=r1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPatch, "/api/v1/resources/time-off", "").Code)
}
