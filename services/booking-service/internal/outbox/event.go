package outbox

import (
	"encoding/json"
	"time"

	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

// Event types double as Kafka topic names.
const (
	EventBookingCreated   = "booking.booking.created.v1"
	EventBookingCancelled = "booking.booking.cancelled.v1"

	aggregateBooking = "booking"
)

// Event is the envelope written to outbox_events in the caller's transaction.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type bookingPayload struct {
	BookingID string `json:"booking_id"`
	SpaceID   string `json:"space_id"`
	UserID    string `json:"user_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at,omitempty"`
}

func NewBookingEvent(eventType string, b model.Booking) (Event, error) {
	p := bookingPayload{
		BookingID: b.ID,
		SpaceID:   b.SpaceID,
		UserID:    b.UserID,
		StartTime: b.Start.UTC().Format(time.RFC3339Nano),
		EndTime:   b.End.UTC().Format(time.RFC3339Nano),
	}
	if !b.CreatedAt.IsZero() {
		p.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateBooking,
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
