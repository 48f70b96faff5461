package model

import "time"

const (
	BookingStatusBooked    = "booked"
	BookingStatusCancelled = "cancelled"
)

// BusyBooking is a booking that blocks a resource while its status is booked.
type BusyBooking struct {
	BookingID  string
	ResourceID string
	StartTime  time.Time
	EndTime    time.Time
	Status     string
}

type TimeOff struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
