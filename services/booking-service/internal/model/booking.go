package model

import (
	"time"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
)

// Booking reserves one space for one user over [Start, End). A booking that
// exists is active; cancellation deletes it.
type Booking struct {
	ID        string
	SpaceID   string
	UserID    string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
}

func (b Booking) Interval() interval.Interval {
	return interval.Interval{Start: b.Start, End: b.End}
}

// Completed is display-only; completed bookings are still rows.
func (b Booking) Completed(now time.Time) bool { return !now.Before(b.End) }

func (b Booking) InProgress(now time.Time) bool { return b.Interval().Contains(now) }

// BookingDetails is a booking joined with the space it reserves.
type BookingDetails struct {
	Booking
	SpaceName string
	SpaceType string
	FloorID   string
}

// Space is owned by the floor/space subsystem and read-only here.
type Space struct {
	ID      string
	FloorID string
	Name    string
	Type    string
	Active  bool
}
