// Package booking is the entry point for every booking operation. Callers
// pass their identity explicitly on each call.
package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
	"github.com/cajuhub/roombook/services/booking-service/internal/occupancy"
	"github.com/cajuhub/roombook/services/booking-service/internal/spaces"
	"github.com/cajuhub/roombook/services/booking-service/internal/storage"
)

// Caller is the authenticated identity behind one request.
type Caller struct {
	UserID  string
	IsAdmin bool
}

type Config struct {
	StoreTimeout  time.Duration
	CalendarStep  time.Duration
	SlotStep      time.Duration
	AgendaLimit   int
	AgendaHorizon time.Duration
	Location      *time.Location
}

func (c Config) withDefaults() Config {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.CalendarStep <= 0 {
		c.CalendarStep = time.Hour
	}
	if c.SlotStep <= 0 {
		c.SlotStep = 15 * time.Minute
	}
	if c.AgendaLimit <= 0 {
		c.AgendaLimit = 5
	}
	if c.AgendaHorizon <= 0 {
		c.AgendaHorizon = 90 * 24 * time.Hour
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

type Service struct {
	store     storage.Store
	dir       spaces.Directory
	occupancy *occupancy.Service
	logger    *slog.Logger
	tracer    trace.Tracer
	cfg       Config
	now       func() time.Time
}

func NewService(store storage.Store, dir spaces.Directory, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		store:     store,
		dir:       dir,
		occupancy: occupancy.New(store),
		logger:    logger,
		tracer:    otel.Tracer("booking-service/booking"),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// begin bounds ctx by the store timeout and opens a span for op.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	ctx, span := s.tracer.Start(ctx, "booking."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if err := *errp; err != nil {
			kind := KindOf(err)
			span.SetAttributes(attribute.String("booking.error_kind", kind.String()))
			if kind == KindInternal || kind == KindUnavailable {
				span.RecordError(err)
				span.SetStatus(codes.Error, kind.String())
				s.logger.ErrorContext(ctx, "booking operation failed", "op", op, "kind", kind.String(), "err", err)
			}
		}
		span.End()
		cancel()
	}
}

func requireCaller(op string, c Caller) error {
	if strings.TrimSpace(c.UserID) == "" {
		return &Error{Kind: KindUnauthenticated, Op: op, Err: errNoCaller}
	}
	return nil
}

func requireAdmin(op string, c Caller) error {
	if err := requireCaller(op, c); err != nil {
		return err
	}
	if !c.IsAdmin {
		return &Error{Kind: KindForbidden, Op: op, Err: errAdminOnly}
	}
	return nil
}

// CreateBooking reserves spaceID for the caller over [start, end).
func (s *Service) CreateBooking(ctx context.Context, c Caller, spaceID string, start, end time.Time) (b model.Booking, err error) {
	const op = "create"
	spaceID = strings.TrimSpace(spaceID)
	ctx, done := s.begin(ctx, op, attribute.String("space.id", spaceID), attribute.String("user.id", c.UserID))
	defer done(&err)

	if err := requireCaller(op, c); err != nil {
		return model.Booking{}, err
	}
	if spaceID == "" {
		return model.Booking{}, invalid(op, "space_id is required")
	}
	iv, err := interval.New(start, end)
	if err != nil {
		return model.Booking{}, wrap(op, err)
	}

	b, err = s.store.Create(ctx, spaceID, c.UserID, iv)
	if err != nil {
		if KindOf(err) == KindConflict {
			s.logger.InfoContext(ctx, "booking rejected", "space_id", spaceID, "user_id", c.UserID, "interval", iv.String(), "err", err)
		}
		return model.Booking{}, wrap(op, err)
	}
	s.logger.InfoContext(ctx, "booking created",
		"booking_id", b.ID, "space_id", b.SpaceID, "user_id", b.UserID, "interval", b.Interval().String())
	return b, nil
}

// GetOccupied lists spaces booked at any point in [start, end).
func (s *Service) GetOccupied(ctx context.Context, c Caller, start, end time.Time) (ids []string, err error) {
	const op = "occupied"
	ctx, done := s.begin(ctx, op)
	defer done(&err)

	if err := requireCaller(op, c); err != nil {
		return nil, err
	}
	ids, err = s.occupancy.OccupiedSpaceIDs(ctx, start, end)
	return ids, wrap(op, err)
}

// ListForUser returns userID's bookings joined with their spaces. Members may
// only list their own.
func (s *Service) ListForUser(ctx context.Context, c Caller, userID string) (out []model.BookingDetails, err error) {
	const op = "list_user"
	ctx, done := s.begin(ctx, op, attribute.String("user.id", userID))
	defer done(&err)

	if err := requireCaller(op, c); err != nil {
		return nil, err
	}
	if userID == "" {
		userID = c.UserID
	}
	if userID != c.UserID && !c.IsAdmin {
		return nil, &Error{Kind: KindForbidden, Op: op, Err: errNotYours}
	}
	bookings, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrap(op, err)
	}
	out, err = s.withSpaces(ctx, bookings)
	return out, wrap(op, err)
}

func (s *Service) ListForSpace(ctx context.Context, c Caller, spaceID string) (out []model.Booking, err error) {
	const op = "list_space"
	spaceID = strings.TrimSpace(spaceID)
	ctx, done := s.begin(ctx, op, attribute.String("space.id", spaceID))
	defer done(&err)

	if err := requireCaller(op, c); err != nil {
		return nil, err
	}
	if spaceID == "" {
		return nil, invalid(op, "space_id is required")
	}
	out, err = s.store.ListBySpace(ctx, spaceID)
	return out, wrap(op, err)
}

// ListAll is the admin view of every booking.
func (s *Service) ListAll(ctx context.Context, c Caller) (out []model.BookingDetails, err error) {
	const op = "list_all"
	ctx, done := s.begin(ctx, op)
	defer done(&err)

	if err := requireAdmin(op, c); err != nil {
		return nil, err
	}
	bookings, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, wrap(op, err)
	}
	out, err = s.withSpaces(ctx, bookings)
	return out, wrap(op, err)
}

// CancelBooking deletes the booking and frees its interval.
func (s *Service) CancelBooking(ctx context.Context, c Caller, bookingID string) (b model.Booking, err error) {
	const op = "cancel"
	bookingID = strings.TrimSpace(bookingID)
	ctx, done := s.begin(ctx, op, attribute.String("booking.id", bookingID))
	defer done(&err)

	if err := requireCaller(op, c); err != nil {
		return model.Booking{}, err
	}
	if bookingID == "" {
		return model.Booking{}, invalid(op, "booking id is required")
	}
	b, err = s.store.Cancel(ctx, bookingID)
	if err != nil {
		return model.Booking{}, wrap(op, err)
	}
	s.logger.InfoContext(ctx, "booking cancelled",
		"booking_id", b.ID, "space_id", b.SpaceID, "owner_id", b.UserID, "cancelled_by", c.UserID)
	return b, nil
}

func (s *Service) withSpaces(ctx context.Context, bookings []model.Booking) ([]model.BookingDetails, error) {
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.SpaceID)
	}
	known, err := s.dir.Names(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.BookingDetails, 0, len(bookings))
	for _, b := range bookings {
		d := model.BookingDetails{Booking: b}
		if sp, ok := known[b.SpaceID]; ok {
			d.SpaceName, d.SpaceType, d.FloorID = sp.Name, sp.Type, sp.FloorID
		}
		out = append(out, d)
	}
	return out, nil
}
