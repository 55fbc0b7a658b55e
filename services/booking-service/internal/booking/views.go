package booking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cajuhub/roombook/services/booking-service/internal/availability"
	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
	"github.com/cajuhub/roombook/services/booking-service/internal/occupancy"
)

// Calendar is one space's week split into fixed cells.
type Calendar struct {
	Space model.Space
	Week  interval.Interval
	Slots []availability.Slot
}

// SpaceCalendar returns the week starting on weekStart's day, or the current
// week when weekStart is zero.
func (s *Service) SpaceCalendar(ctx context.Context, c Caller, spaceID string, weekStart time.Time) (cal Calendar, err error) {
	const op = "calendar"
	ctx, done := s.begin(ctx, op, attribute.String("space.id", spaceID))
	defer done(&err)

	if err := requireCaller(op, c); err != nil {
		return Calendar{}, err
	}
	space, err := s.dir.Lookup(ctx, spaceID)
	if errors.Is(err, model.ErrSpaceNotFound) {
		return Calendar{}, &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	if err != nil {
		return Calendar{}, wrap(op, err)
	}

	if weekStart.IsZero() {
		weekStart = s.now()
	}
	week := availability.Week(weekStart, s.cfg.Location)
	bookings, err := s.store.ListOverlapping(ctx, spaceID, week)
	if err != nil {
		return Calendar{}, wrap(op, err)
	}
	busy := make([]interval.Interval, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, b.Interval())
	}
	return Calendar{
		Space: space,
		Week:  week,
		Slots: availability.Slots(week, s.cfg.CalendarStep, busy),
	}, nil
}

// Stats summarises bookings for the admin dashboard.
type Stats struct {
	Total        int
	HappeningNow int
	UniqueUsers  int
}

func (s *Service) Stats(ctx context.Context, c Caller) (st Stats, err error) {
	const op = "stats"
	ctx, done := s.begin(ctx, op)
	defer done(&err)

	if err := requireAdmin(op, c); err != nil {
		return Stats{}, err
	}
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return Stats{}, wrap(op, err)
	}
	now := s.now()
	users := map[string]struct{}{}
	for _, b := range all {
		if b.InProgress(now) {
			st.HappeningNow++
		}
		users[b.UserID] = struct{}{}
	}
	st.Total = len(all)
	st.UniqueUsers = len(users)
	return st, nil
}

// Agenda lists every space with its occupied-now flag and next bookings.
func (s *Service) Agenda(ctx context.Context, c Caller) (rows []occupancy.SpaceAgenda, err error) {
	const op = "agenda"
	ctx, done := s.begin(ctx, op)
	defer done(&err)

	if err := requireAdmin(op, c); err != nil {
		return nil, err
	}
	spaces, err := s.dir.List(ctx)
	if err != nil {
		return nil, wrap(op, err)
	}
	now := s.now()
	bookings, err := s.store.ListActiveIn(ctx, interval.Interval{Start: now, End: now.Add(s.cfg.AgendaHorizon)})
	if err != nil {
		return nil, wrap(op, err)
	}
	return occupancy.Agenda(spaces, bookings, now, s.cfg.AgendaLimit), nil
}

// FreeSlots lists start times on day where spaceID could be booked for
// duration. Starts in the past are left out.
func (s *Service) FreeSlots(ctx context.Context, c Caller, spaceID string, day time.Time, duration time.Duration) (starts []time.Time, err error) {
	const op = "free_slots"
	ctx, done := s.begin(ctx, op, attribute.String("space.id", spaceID))
	defer done(&err)

	if err := requireCaller(op, c); err != nil {
		return nil, err
	}
	if duration < time.Minute || duration > 24*time.Hour {
		return nil, invalid(op, "duration must be between 1 minute and 24 hours")
	}
	space, err := s.dir.Lookup(ctx, spaceID)
	if errors.Is(err, model.ErrSpaceNotFound) {
		return nil, &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	if !space.Active {
		return []time.Time{}, nil
	}

	d := day.In(s.cfg.Location)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.cfg.Location)
	window := interval.Interval{Start: from, End: from.AddDate(0, 0, 1)}
	bookings, err := s.store.ListOverlapping(ctx, spaceID, window)
	if err != nil {
		return nil, wrap(op, err)
	}
	busy := make([]interval.Interval, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, b.Interval())
	}
	starts = availability.FreeSlots(window, duration, s.cfg.SlotStep, busy, s.now())
	if starts == nil {
		starts = []time.Time{}
	}
	return starts, nil
}
