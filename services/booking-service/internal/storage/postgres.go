package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cajuhub/roombook/libs/db"
	"github.com/cajuhub/roombook/services/booking-service/internal/conflict"
	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
	"github.com/cajuhub/roombook/services/booking-service/internal/outbox"
	"github.com/cajuhub/roombook/services/booking-service/internal/spaces"
)

// PostgresStore serializes creates per space with a transaction-scoped
// advisory lock and re-checks for conflicts inside the transaction. The
// bookings exclusion constraint backs this up.
type PostgresStore struct {
	pool   *db.Pool
	dir    spaces.Directory
	outbox *outbox.Repository
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *db.Pool, dir spaces.Directory, outboxRepo *outbox.Repository) *PostgresStore {
	return &PostgresStore{pool: pool, dir: dir, outbox: outboxRepo}
}

const bookingColumns = `id::text, space_id, user_id, start_time, end_time, created_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) Create(ctx context.Context, spaceID, userID string, iv interval.Interval) (model.Booking, error) {
	iv, err := storePrecision(iv)
	if err != nil {
		return model.Booking{}, err
	}
	if err := checkSpace(ctx, s.dir, spaceID); err != nil {
		return model.Booking{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, classify("begin create", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, spaceID); err != nil {
		return model.Booking{}, classify("lock space", err)
	}

	existing, err := listOverlapping(ctx, tx, spaceID, iv)
	if err != nil {
		return model.Booking{}, classify("check conflicts", err)
	}
	if b, found := conflict.FirstConflict(existing, spaceID, iv); found {
		return model.Booking{}, &model.ConflictError{SpaceID: spaceID, Requested: iv, ExistingID: b.ID}
	}

	b := model.Booking{ID: uuid.NewString(), SpaceID: spaceID, UserID: userID, Start: iv.Start, End: iv.End}
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (id, space_id, user_id, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, b.ID, b.SpaceID, b.UserID, b.Start, b.End).Scan(&b.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.Booking{}, &model.ConflictError{SpaceID: spaceID, Requested: iv}
		}
		return model.Booking{}, classify("insert booking", err)
	}

	if err := s.writeEvent(ctx, tx, outbox.EventBookingCreated, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		if IsConflict(err) {
			return model.Booking{}, &model.ConflictError{SpaceID: spaceID, Requested: iv}
		}
		return model.Booking{}, classify("commit create", err)
	}
	return b, nil
}

// storePrecision rounds iv down to the microsecond resolution of timestamptz,
// so the conflict check sees the same bounds the row will hold.
func storePrecision(iv interval.Interval) (interval.Interval, error) {
	iv = interval.Interval{Start: iv.Start.UTC().Truncate(time.Microsecond), End: iv.End.UTC().Truncate(time.Microsecond)}
	if !iv.Valid() {
		return interval.Interval{}, fmt.Errorf("%w: %s", model.ErrInvalidInterval, iv)
	}
	return iv, nil
}

func (s *PostgresStore) Cancel(ctx context.Context, bookingID string) (model.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrNotFound, bookingID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, classify("begin cancel", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `
		DELETE FROM bookings WHERE id = $1
		RETURNING `+bookingColumns, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrNotFound, bookingID)
	}
	if err != nil {
		return model.Booking{}, classify("delete booking", err)
	}

	if err := s.writeEvent(ctx, tx, outbox.EventBookingCancelled, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, classify("commit cancel", err)
	}
	return b, nil
}

func (s *PostgresStore) writeEvent(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking) error {
	if s.outbox == nil {
		return nil
	}
	evt, err := outbox.NewBookingEvent(eventType, b)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	return classify("write outbox", s.outbox.Insert(ctx, tx, evt))
}

func (s *PostgresStore) Get(ctx context.Context, bookingID string) (model.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrNotFound, bookingID)
	}
	b, err := scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrNotFound, bookingID)
	}
	return b, classify("get booking", err)
}

func (s *PostgresStore) ListBySpace(ctx context.Context, spaceID string) ([]model.Booking, error) {
	return s.list(ctx, "list space bookings", `WHERE space_id = $1`, spaceID)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.list(ctx, "list user bookings", `WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]model.Booking, error) {
	return s.list(ctx, "list bookings", ``)
}

func (s *PostgresStore) ListOverlapping(ctx context.Context, spaceID string, iv interval.Interval) ([]model.Booking, error) {
	out, err := listOverlapping(ctx, s.pool, spaceID, iv)
	return out, classify("list overlapping", err)
}

func (s *PostgresStore) ListActiveIn(ctx context.Context, iv interval.Interval) ([]model.Booking, error) {
	// Bounds mirror interval.Overlaps: start < iv.End AND iv.Start < end.
	return s.list(ctx, "list active bookings", `WHERE start_time < $2 AND end_time > $1`, iv.Start, iv.End)
}

func (s *PostgresStore) list(ctx context.Context, op, where string, args ...any) ([]model.Booking, error) {
	out, err := queryBookings(ctx, s.pool, `SELECT `+bookingColumns+` FROM bookings `+where+` ORDER BY start_time, id`, args...)
	return out, classify(op, err)
}

func listOverlapping(ctx context.Context, q querier, spaceID string, iv interval.Interval) ([]model.Booking, error) {
	return queryBookings(ctx, q, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE space_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time, id
	`, spaceID, iv.Start, iv.End)
}

func queryBookings(ctx context.Context, q querier, sql string, args ...any) ([]model.Booking, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Booking, error) {
		return scanBooking(row)
	})
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.SpaceID, &b.UserID, &b.Start, &b.End, &b.CreatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Start, b.End, b.CreatedAt = b.Start.UTC(), b.End.UTC(), b.CreatedAt.UTC()
	return b, nil
}
