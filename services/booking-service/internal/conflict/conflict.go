// Package conflict decides whether a requested interval collides with
// existing bookings on a space.
package conflict

import (
	"context"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

// Source narrows candidates for a space. It may return rows that do not
// actually overlap; callers re-filter.
type Source interface {
	ListOverlapping(ctx context.Context, spaceID string, iv interval.Interval) ([]model.Booking, error)
}

func HasConflict(ctx context.Context, src Source, spaceID string, iv interval.Interval) (bool, error) {
	_, found, err := Find(ctx, src, spaceID, iv)
	return found, err
}

// Find returns the first booking on spaceID overlapping iv. Source errors
// are returned unchanged.
func Find(ctx context.Context, src Source, spaceID string, iv interval.Interval) (model.Booking, bool, error) {
	candidates, err := src.ListOverlapping(ctx, spaceID, iv)
	if err != nil {
		return model.Booking{}, false, err
	}
	b, found := FirstConflict(candidates, spaceID, iv)
	return b, found, nil
}

// FirstConflict scans bookings in order and returns the first one on spaceID
// that overlaps iv.
func FirstConflict(bookings []model.Booking, spaceID string, iv interval.Interval) (model.Booking, bool) {
	for _, b := range bookings {
		if b.SpaceID == spaceID && b.Interval().Overlaps(iv) {
			return b, true
		}
	}
	return model.Booking{}, false
}
