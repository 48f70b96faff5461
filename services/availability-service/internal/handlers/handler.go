package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotengine/libs/httpx"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/slots"
)

const defaultDurationMinutes = 30

type SlotService interface {
	Query(ctx context.Context, q slots.Query) ([]availability.Slot, error)
	Compute(ctx context.Context, req availability.ComputeSlotsRequest) ([]availability.Slot, error)
	Rules(ctx context.Context, resourceID string) ([]model.RuleSpec, error)
	ReplaceRules(ctx context.Context, resourceID string, specs []model.RuleSpec) ([]model.RuleSpec, error)
	Invalidate(ctx context.Context, resourceID string)
}

type TimeOffStore interface {
	CreateTimeOff(ctx context.Context, t model.TimeOff) (model.TimeOff, error)
	ListTimeOff(ctx context.Context, resourceID string, from, to time.Time) ([]model.TimeOff, error)
	DeleteTimeOff(ctx context.Context, resourceID, id string) error
}

type AvailabilityHandler struct {
	svc     SlotService
	timeOff TimeOffStore
	logger  *slog.Logger
}

func NewAvailabilityHandler(svc SlotService, timeOff TimeOffStore, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, timeOff: timeOff, logger: logger}
}

func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.PublicSlots)
	mux.HandleFunc("/api/v1/slots/compute", h.Compute)
	mux.HandleFunc("/api/v1/resources/rules", h.Rules)
	mux.HandleFunc("/api/v1/resources/time-off", h.TimeOff)
}

// PublicSlots serves GET ?resource_id=&start=&end=&duration_minutes=. Slots in the past are hidden.
func (h *AvailabilityHandler) PublicSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	resourceID := strings.TrimSpace(q.Get("resource_id"))
	if resourceID == "" || q.Get("start") == "" || q.Get("end") == "" {
		httpx.WriteError(w, http.StatusBadRequest, "resource_id, start, and end are required")
		return
	}
	start, end, err := model.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	durationMins := defaultDurationMinutes
	if v := strings.TrimSpace(q.Get("duration_minutes")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid duration_minutes")
			return
		}
		durationMins = n
	}
	duration, err := model.MinutesDuration(durationMins)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	result, err := h.svc.Query(r.Context(), slots.Query{
		ResourceID:  resourceID,
		Start:       start,
		End:         end,
		Duration:    duration,
		ExcludePast: true,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, model.SlotViews(result))
}

// Compute serves POST with a model.ComputeRequest body. Nothing is read from storage.
func (h *AvailabilityHandler) Compute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body model.ComputeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := body.ToEngine()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	result, err := h.svc.Compute(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, model.SlotViews(result))
}

type rulesBody struct {
	ResourceID string           `json:"resource_id"`
	Rules      []model.RuleSpec `json:"rules"`
}

func (h *AvailabilityHandler) Rules(w http.ResponseWriter, r *http.Request) {
	resourceID := strings.TrimSpace(r.URL.Query().Get("resource_id"))
	switch r.Method {
	case http.MethodGet:
		specs, err := h.svc.Rules(r.Context(), resourceID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rulesBody{ResourceID: resourceID, Rules: specs})

	case http.MethodPut:
		var body rulesBody
		if !decodeJSON(w, r, &body) {
			return
		}
		if resourceID == "" {
			resourceID = strings.TrimSpace(body.ResourceID)
		}
		stored, err := h.svc.ReplaceRules(r.Context(), resourceID, body.Rules)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rulesBody{ResourceID: resourceID, Rules: stored})

	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createTimeOffRequest struct {
	ResourceID string `json:"resource_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason"`
}

func (h *AvailabilityHandler) TimeOff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTimeOff(w, r)
	case http.MethodPost:
		h.createTimeOff(w, r)
	case http.MethodDelete:
		h.deleteTimeOff(w, r)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *AvailabilityHandler) listTimeOff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resourceID := strings.TrimSpace(q.Get("resource_id"))
	if resourceID == "" || q.Get("start") == "" || q.Get("end") == "" {
		httpx.WriteError(w, http.StatusBadRequest, "resource_id, start, and end are required")
		return
	}
	start, end, err := model.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if _, err := availability.NewInterval(start, end); err != nil {
		h.writeServiceError(w, err)
		return
	}

	items, err := h.timeOff.ListTimeOff(r.Context(), resourceID, start, end)
	if err != nil {
		h.logger.Error("list time off failed", "err", err, "resource_id", resourceID)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load time off")
		return
	}
	if items == nil {
		items = []model.TimeOff{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *AvailabilityHandler) createTimeOff(w http.ResponseWriter, r *http.Request) {
	var req createTimeOffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.ResourceID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "resource_id is required")
		return
	}
	start, end, err := model.ParseWindow(req.StartTime, req.EndTime)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !end.After(start) {
		httpx.WriteError(w, http.StatusBadRequest, "end_time must be after start_time")
		return
	}

	created, err := h.timeOff.CreateTimeOff(r.Context(), model.TimeOff{
		ResourceID: req.ResourceID,
		StartTime:  start.UTC(),
		EndTime:    end.UTC(),
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		h.logger.Error("create time off failed", "err", err, "resource_id", req.ResourceID)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create time off")
		return
	}
	h.svc.Invalidate(r.Context(), req.ResourceID)
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *AvailabilityHandler) deleteTimeOff(w http.ResponseWriter, r *http.Request) {
	resourceID := strings.TrimSpace(r.URL.Query().Get("resource_id"))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if resourceID == "" || id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "resource_id and id are required")
		return
	}
	if err := h.timeOff.DeleteTimeOff(r.Context(), resourceID, id); err != nil {
		if errors.Is(err, slots.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "time off not found")
			return
		}
		h.logger.Error("delete time off failed", "err", err, "resource_id", resourceID)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to delete time off")
		return
	}
	h.svc.Invalidate(r.Context(), resourceID)
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (h *AvailabilityHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case availability.IsValidation(err),
		errors.Is(err, slots.ErrWindowTooLarge),
		errors.Is(err, slots.ErrMissingResource):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, slots.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "resource has no availability rules")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		httpx.WriteError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error("slot request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
