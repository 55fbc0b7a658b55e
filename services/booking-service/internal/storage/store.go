// Package storage persists bookings and is the only place the
// no-double-booking invariant is enforced.
package storage

import (
	"context"
	"embed"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"

// Store is implemented by PostgresStore and MemoryStore.
//
// Create is atomic per space: of any set of concurrent creates whose
// intervals overlap on one space, at most one succeeds and the rest get a
// *model.ConflictError. Creates on different spaces do not contend.
type Store interface {
	Create(ctx context.Context, spaceID, userID string, iv interval.Interval) (model.Booking, error)
	// Cancel deletes the booking. A second cancel of the same id returns
	// model.ErrNotFound.
	Cancel(ctx context.Context, bookingID string) (model.Booking, error)
	Get(ctx context.Context, bookingID string) (model.Booking, error)

	ListBySpace(ctx context.Context, spaceID string) ([]model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListAll(ctx context.Context) ([]model.Booking, error)

	ListOverlapping(ctx context.Context, spaceID string, iv interval.Interval) ([]model.Booking, error)
	// ListActiveIn returns bookings on any space overlapping iv.
	ListActiveIn(ctx context.Context, iv interval.Interval) ([]model.Booking, error)
}
