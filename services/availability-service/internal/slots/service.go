package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/slotengine/libs/otel"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/slotcache"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrWindowTooLarge  = errors.New("query window too large")
	ErrMissingResource = errors.New("resource_id is required")
	ErrNotFound        = storage.ErrNotFound
)

// Store is the persistence the service needs; *storage.Repository satisfies it.
type Store interface {
	GetRules(ctx context.Context, resourceID string) ([]model.RuleSpec, error)
	ReplaceRules(ctx context.Context, resourceID string, specs []model.RuleSpec) error
	ListBusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error)
}

type Config struct {
	MaxWindow time.Duration
}

type Service struct {
	store     Store
	cache     slotcache.Cache
	calc      availability.Calculator
	logger    *slog.Logger
	tracer    trace.Tracer
	maxWindow time.Duration
	now       func() time.Time
}

func NewService(store Store, cache slotcache.Cache, logger *slog.Logger, cfg Config) *Service {
	if cache == nil {
		cache = slotcache.Tiered{}
	}
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = 62 * 24 * time.Hour
	}
	return &Service{
		store:     store,
		cache:     cache,
		calc:      availability.DefaultCalculator{},
		logger:    logger,
		tracer:    otel.Tracer("slots"),
		maxWindow: cfg.MaxWindow,
		now:       time.Now,
	}
}

// Query describes a slot lookup for one stored resource.
type Query struct {
	ResourceID string
	Start      time.Time
	End        time.Time
	Duration   time.Duration
	// ExcludePast drops slots that start before the current time.
	ExcludePast bool
}

// Query returns the resource's bookable slots in ascending order.
func (s *Service) Query(ctx context.Context, q Query) (slots []availability.Slot, err error) {
	q.ResourceID = strings.TrimSpace(q.ResourceID)
	ctx, span := s.tracer.Start(ctx, "slots.compute", trace.WithAttributes(
		attribute.String("resource.id", q.ResourceID),
		attribute.String("window.start", q.Start.UTC().Format(time.RFC3339)),
		attribute.String("window.end", q.End.UTC().Format(time.RFC3339)),
		attribute.Int64("event.duration_seconds", int64(q.Duration/time.Second)),
	))
	defer func() {
		span.SetAttributes(attribute.Int("slots.count", len(slots)))
		otelx.EndSpan(span, err)
	}()

	if q.ResourceID == "" {
		return nil, ErrMissingResource
	}
	window, err := availability.NewInterval(q.Start, q.End)
	if err != nil {
		return nil, err
	}
	if err := s.checkDuration(q.Duration); err != nil {
		return nil, err
	}
	if window.Duration() > s.maxWindow {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrWindowTooLarge, window.Duration(), s.maxWindow)
	}

	// The generation is read before anything is loaded: an invalidation racing with the load
	// moves readers to a newer generation than the one this result is stored under.
	gen, cacheable := s.cache.Generation(ctx, q.ResourceID)
	key := slotcache.Key{ResourceID: q.ResourceID, Generation: gen, Start: window.Start, End: window.End, Duration: q.Duration}
	if cacheable {
		if cached, ok := s.cache.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return s.filterPast(cached, q.ExcludePast), nil
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	specs, err := s.store.GetRules(ctx, q.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	rules, err := model.ToRuleSet(specs)
	if err != nil {
		return nil, err
	}
	busy, err := s.store.ListBusyIntervals(ctx, q.ResourceID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}
	unavailable, err := availability.NewUnavailableRanges(busy...)
	if err != nil {
		return nil, fmt.Errorf("stored busy interval: %w", err)
	}

	computed, err := s.calc.ComputeSlots(availability.ComputeSlotsRequest{
		EventDuration: q.Duration,
		Start:         window.Start,
		End:           window.End,
		Rules:         rules,
		Unavailable:   unavailable,
	})
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Set(ctx, key, computed)
	}
	s.logger.Debug("slots computed", "resource_id", q.ResourceID, "count", len(computed), "busy", len(busy))
	return s.filterPast(computed, q.ExcludePast), nil
}

// Compute runs the engine on a caller-supplied request; nothing is loaded or cached.
func (s *Service) Compute(ctx context.Context, req availability.ComputeSlotsRequest) (slots []availability.Slot, err error) {
	_, span := s.tracer.Start(ctx, "slots.compute", trace.WithAttributes(
		attribute.Int("rules.count", req.Rules.Len()),
		attribute.Int("unavailable.count", len(req.Unavailable.Ranges())),
	))
	defer func() {
		span.SetAttributes(attribute.Int("slots.count", len(slots)))
		otelx.EndSpan(span, err)
	}()

	if window := req.End.Sub(req.Start); window > s.maxWindow {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrWindowTooLarge, window, s.maxWindow)
	}
	if err := s.checkDuration(req.EventDuration); err != nil {
		return nil, err
	}
	return s.calc.ComputeSlots(req)
}

// checkDuration rejects durations that no admissible window could hold.
func (s *Service) checkDuration(d time.Duration) error {
	if d <= 0 || d > s.maxWindow {
		return fmt.Errorf("%w (got %s, maximum %s)", availability.ErrInvalidDuration, d, s.maxWindow)
	}
	return nil
}

func (s *Service) Rules(ctx context.Context, resourceID string) ([]model.RuleSpec, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil, ErrMissingResource
	}
	return s.store.GetRules(ctx, resourceID)
}

// ReplaceRules validates specs through the engine before persisting them. The stored form is
// the normalized one, so equivalent inputs are stored identically.
func (s *Service) ReplaceRules(ctx context.Context, resourceID string, specs []model.RuleSpec) ([]model.RuleSpec, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil, ErrMissingResource
	}
	set, err := model.ToRuleSet(specs)
	if err != nil {
		return nil, err
	}
	normalized := make([]model.RuleSpec, 0, set.Len())
	for _, r := range set.Rules() {
		normalized = append(normalized, model.RuleSpecFromRule(r))
	}
	if err := s.store.ReplaceRules(ctx, resourceID, normalized); err != nil {
		return nil, fmt.Errorf("store rules: %w", err)
	}
	s.cache.Invalidate(ctx, resourceID)
	s.logger.Info("availability rules replaced", "resource_id", resourceID, "rules", len(normalized))
	return normalized, nil
}

// Invalidate drops cached slots for a resource whose busy time changed.
func (s *Service) Invalidate(ctx context.Context, resourceID string) {
	s.cache.Invalidate(ctx, resourceID)
}

func (s *Service) filterPast(slots []availability.Slot, exclude bool) []availability.Slot {
	if !exclude {
		return slots
	}
	now := s.now()
	out := slots[:0:0]
	for _, sl := range slots {
		if !sl.Start.Before(now) {
			out = append(out, sl)
		}
	}
	return out
}
