// Package occupancy answers which spaces are in use over an interval.
package occupancy

import (
	"context"
	"sort"
	"time"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

// Source lists bookings on any space that overlap iv. It may over-return.
type Source interface {
	ListActiveIn(ctx context.Context, iv interval.Interval) ([]model.Booking, error)
}

type Service struct {
	src Source
}

func New(src Source) *Service {
	return &Service{src: src}
}

// OccupiedSpaceIDs returns the sorted distinct ids of spaces with at least one
// booking overlapping [start, end). An empty or inverted query yields an
// empty result rather than an error.
func (s *Service) OccupiedSpaceIDs(ctx context.Context, start, end time.Time) ([]string, error) {
	iv := interval.Interval{Start: start, End: end}
	if !iv.Valid() {
		return []string{}, nil
	}
	bookings, err := s.src.ListActiveIn(ctx, iv)
	if err != nil {
		return nil, err
	}
	return distinctSpaces(bookings, func(b model.Booking) bool { return b.Interval().Overlaps(iv) }), nil
}

// OccupiedAt returns the spaces in use at instant t.
func (s *Service) OccupiedAt(ctx context.Context, t time.Time) ([]string, error) {
	bookings, err := s.src.ListActiveIn(ctx, interval.Interval{Start: t, End: t.Add(time.Nanosecond)})
	if err != nil {
		return nil, err
	}
	return distinctSpaces(bookings, func(b model.Booking) bool { return b.Interval().Contains(t) }), nil
}

func distinctSpaces(bookings []model.Booking, keep func(model.Booking) bool) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, b := range bookings {
		if !keep(b) {
			continue
		}
		if _, dup := seen[b.SpaceID]; dup {
			continue
		}
		seen[b.SpaceID] = struct{}{}
		out = append(out, b.SpaceID)
	}
	sort.Strings(out)
	return out
}

// SpaceAgenda is one row of the admin room overview.
type SpaceAgenda struct {
	Space    model.Space
	Occupied bool
	Next     []model.Booking
}

// Agenda builds, for each space, whether it is in use at now and its next
// limit bookings that have not ended yet. bookings must be sorted by start.
func Agenda(spaces []model.Space, bookings []model.Booking, now time.Time, limit int) []SpaceAgenda {
	if limit <= 0 {
		limit = 5
	}
	bySpace := map[string][]model.Booking{}
	for _, b := range bookings {
		if b.Completed(now) {
			continue
		}
		bySpace[b.SpaceID] = append(bySpace[b.SpaceID], b)
	}

	out := make([]SpaceAgenda, 0, len(spaces))
	for _, sp := range spaces {
		upcoming := bySpace[sp.ID]
		row := SpaceAgenda{Space: sp, Next: []model.Booking{}}
		for _, b := range upcoming {
			if b.InProgress(now) {
				row.Occupied = true
			}
		}
		if len(upcoming) > limit {
			upcoming = upcoming[:limit]
		}
		row.Next = append(row.Next, upcoming...)
		out = append(out, row)
	}
	return out
}
