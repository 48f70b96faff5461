package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotengine/libs/db"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/slotengine/services/availability-service/internal/model"
)

// ErrNotFound is returned when a resource has no stored rules or a time-off entry does not exist.
var ErrNotFound = errors.New("not found")

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetRules(ctx context.Context, resourceID string) ([]model.RuleSpec, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT rules
		FROM resource_availability_rules
		WHERE resource_id = $1
	`, resourceID).Scan(&raw)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var specs []model.RuleSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("decode rules for %s: %w", resourceID, err)
	}
	return specs, nil
}

func (r *Repository) ReplaceRules(ctx context.Context, resourceID string, specs []model.RuleSpec) error {
	raw, err := json.Marshal(specs)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO resource_availability_rules (resource_id, rules, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (resource_id) DO UPDATE
		SET rules = EXCLUDED.rules,
			updated_at = now()
	`, resourceID, raw)
	return err
}

// ListBusyIntervals returns active bookings and time off overlapping [from, to).
func (r *Repository) ListBusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM resource_busy_intervals
		WHERE resource_id = $1
			AND status = $4
			AND start_time < $3
			AND end_time > $2
		UNION ALL
		SELECT start_time, end_time
		FROM resource_time_off
		WHERE resource_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY 1
	`, resourceID, from, to, model.BookingStatusBooked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var in availability.Interval
		if err := rows.Scan(&in.Start, &in.End); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// UpsertBooking records a booking as busy time. Replays of the same booking overwrite the row,
// but a cancelled booking stays cancelled: its booked event may arrive after the cancellation.
func (r *Repository) UpsertBooking(ctx context.Context, b model.BusyBooking) error {
	status := b.Status
	if status == "" {
		status = model.BookingStatusBooked
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO resource_busy_intervals (booking_id, resource_id, start_time, end_time, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (booking_id) DO UPDATE
		SET resource_id = EXCLUDED.resource_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			updated_at = now()
		WHERE resource_busy_intervals.status <> $6
	`, b.BookingID, b.ResourceID, b.StartTime, b.EndTime, status, model.BookingStatusCancelled)
	return err
}

// CancelBooking frees the booking's time and returns its resource id ("" when neither the
// stored row nor b names one). A cancellation for a booking not seen yet is stored as a
// cancelled row, filled from b where it carries data, so the late booked event cannot block time.
func (r *Repository) CancelBooking(ctx context.Context, b model.BusyBooking) (string, error) {
	var resourceID *string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO resource_busy_intervals (booking_id, resource_id, start_time, end_time, status, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, now())
		ON CONFLICT (booking_id) DO UPDATE
		SET status = EXCLUDED.status,
			updated_at = now()
		RETURNING resource_id
	`, b.BookingID, b.ResourceID, nullTime(b.StartTime), nullTime(b.EndTime), model.BookingStatusCancelled).Scan(&resourceID)
	if err != nil {
		return "", err
	}
	if resourceID == nil {
		return "", nil
	}
	return *resourceID, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *Repository) CreateTimeOff(ctx context.Context, t model.TimeOff) (model.TimeOff, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO resource_time_off (id, resource_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING created_at
	`, t.ID, t.ResourceID, t.StartTime, t.EndTime, t.Reason).Scan(&t.CreatedAt)
	if err != nil {
		return model.TimeOff{}, err
	}
	return t, nil
}

func (r *Repository) ListTimeOff(ctx context.Context, resourceID string, from, to time.Time) ([]model.TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, resource_id, start_time, end_time, COALESCE(reason, ''), created_at
		FROM resource_time_off
		WHERE resource_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, resourceID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TimeOff, error) {
		var t model.TimeOff
		err := row.Scan(&t.ID, &t.ResourceID, &t.StartTime, &t.EndTime, &t.Reason, &t.CreatedAt)
		return t, err
	})
}

func (r *Repository) DeleteTimeOff(ctx context.Context, resourceID, id string) error {
	// Ids are UUIDs; anything else cannot exist and would fail the cast in Postgres.
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM resource_time_off
		WHERE resource_id = $1 AND id = $2
	`, resourceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
