package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

const (
	exclusionViolation   = "23P01"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	tooManyConnections   = "53300"
)

// IsConflict reports whether err is the bookings exclusion constraint firing.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

// IsUnavailable reports whether err means the database could not be reached
// or gave up in time. Such failures are worth retrying.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, model.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "57P"), // admin shutdown, crash shutdown, cannot connect now
			pgErr.Code == serializationFailure,
			pgErr.Code == deadlockDetected,
			pgErr.Code == tooManyConnections:
			return true
		}
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify maps driver errors onto the model sentinels. Errors that already
// carry a sentinel pass through.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrInactiveSpace),
		errors.Is(err, model.ErrSpaceNotFound),
		errors.Is(err, model.ErrInvalidInterval),
		errors.Is(err, model.ErrStoreUnavailable):
		return err
	case IsUnavailable(err):
		return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
