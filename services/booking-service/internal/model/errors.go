package model

import (
	"errors"
	"fmt"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
)

var (
	ErrConflict         = errors.New("booking conflict")
	ErrInactiveSpace    = errors.New("space is inactive")
	ErrNotFound         = errors.New("booking not found")
	ErrSpaceNotFound    = errors.New("space not found")
	ErrStoreUnavailable = errors.New("booking store unavailable")
	ErrInvalidInterval  = interval.ErrInvalidInterval
)

// ConflictError names the booking that blocked a create.
type ConflictError struct {
	SpaceID    string
	Requested  interval.Interval
	ExistingID string
}

func (e *ConflictError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("space %s already booked during %s", e.SpaceID, e.Requested)
	}
	return fmt.Sprintf("space %s already booked during %s by booking %s", e.SpaceID, e.Requested, e.ExistingID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
