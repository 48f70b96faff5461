package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	TopicBooked    = "booking.appointment.booked.v1"
	TopicCancelled = "booking.appointment.cancelled.v1"
)

// BookingPayload is the body of booked and cancelled events. Cancelled events only need
// appointment_id; staff_id and the times are used when present.
type BookingPayload struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type Store interface {
	UpsertBooking(ctx context.Context, b model.BusyBooking) error
	CancelBooking(ctx context.Context, b model.BusyBooking) (string, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, resourceID string)
}

type Handler struct {
	store  Store
	cache  Invalidator
	logger *slog.Logger
}

func NewHandler(store Store, cache Invalidator, logger *slog.Logger) *Handler {
	return &Handler{store: store, cache: cache, logger: logger}
}

// Handle routes by topic. Malformed payloads are logged and dropped; only store failures are
// returned so the delivery can be retried.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var payload BookingPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("invalid booking event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	payload.AppointmentID = strings.TrimSpace(payload.AppointmentID)
	payload.StaffID = strings.TrimSpace(payload.StaffID)
	if payload.AppointmentID == "" {
		h.logger.Error("booking event missing appointment_id", "topic", msg.Topic)
		return nil
	}

	switch msg.Topic {
	case TopicBooked:
		return h.booked(ctx, payload)
	case TopicCancelled:
		return h.cancelled(ctx, payload)
	default:
		h.logger.Warn("unexpected topic", "topic", msg.Topic)
		return nil
	}
}

func (h *Handler) booked(ctx context.Context, p BookingPayload) error {
	if p.StaffID == "" || p.StartTime == "" || p.EndTime == "" {
		h.logger.Error("missing booked event fields", "appointment_id", p.AppointmentID)
		return nil
	}
	start, end, err := parseRange(p)
	if err != nil {
		h.logger.Error("invalid booked event times", "err", err, "appointment_id", p.AppointmentID)
		return nil
	}

	if err := h.store.UpsertBooking(ctx, model.BusyBooking{
		BookingID:  p.AppointmentID,
		ResourceID: p.StaffID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.BookingStatusBooked,
	}); err != nil {
		return err
	}
	h.cache.Invalidate(ctx, p.StaffID)
	h.logger.Info("busy interval recorded", "appointment_id", p.AppointmentID, "resource_id", p.StaffID)
	return nil
}

// cancelled also covers a cancellation that overtakes its booking (topics are consumed
// independently): the store keeps it so the booking is never treated as busy.
func (h *Handler) cancelled(ctx context.Context, p BookingPayload) error {
	b := model.BusyBooking{BookingID: p.AppointmentID, ResourceID: p.StaffID, Status: model.BookingStatusCancelled}
	if p.StartTime != "" || p.EndTime != "" {
		start, end, err := parseRange(p)
		if err != nil {
			h.logger.Warn("ignoring cancelled event times", "err", err, "appointment_id", p.AppointmentID)
		} else {
			b.StartTime, b.EndTime = start, end
		}
	}

	resourceID, err := h.store.CancelBooking(ctx, b)
	if err != nil {
		return err
	}
	if resourceID != "" {
		h.cache.Invalidate(ctx, resourceID)
	}
	if p.StaffID != "" && p.StaffID != resourceID {
		h.cache.Invalidate(ctx, p.StaffID)
	}
	h.logger.Info("busy interval released", "appointment_id", p.AppointmentID, "resource_id", resourceID)
	return nil
}

func parseRange(p BookingPayload) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, p.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, p.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_time: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end_time must be after start_time")
	}
	return start.UTC(), end.UTC(), nil
}
