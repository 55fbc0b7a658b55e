package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cajuhub/roombook/services/booking-service/internal/conflict"
	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
	"github.com/cajuhub/roombook/services/booking-service/internal/spaces"
)

// MemoryStore keeps bookings in process. Writers to one space serialize on
// that space's lock; the data maps have their own lock that is never held
// while waiting for a space lock.
type MemoryStore struct {
	dir spaces.Directory
	now func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu      sync.RWMutex
	byID    map[string]model.Booking
	bySpace map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(dir spaces.Directory) *MemoryStore {
	return &MemoryStore{
		dir:     dir,
		now:     time.Now,
		locks:   map[string]*sync.Mutex{},
		byID:    map[string]model.Booking{},
		bySpace: map[string]map[string]struct{}{},
	}
}

func (s *MemoryStore) spaceLock(spaceID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[spaceID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[spaceID] = l
	}
	return l
}

func (s *MemoryStore) Create(ctx context.Context, spaceID, userID string, iv interval.Interval) (model.Booking, error) {
	if !iv.Valid() {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrInvalidInterval, iv)
	}
	if err := checkSpace(ctx, s.dir, spaceID); err != nil {
		return model.Booking{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Booking{}, classify("create booking", err)
	}

	l := s.spaceLock(spaceID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	existing, found := conflict.FirstConflict(s.spaceBookingsLocked(spaceID), spaceID, iv)
	s.mu.RUnlock()
	if found {
		return model.Booking{}, &model.ConflictError{SpaceID: spaceID, Requested: iv, ExistingID: existing.ID}
	}

	b := model.Booking{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		UserID:    userID,
		Start:     iv.Start.UTC(),
		End:       iv.End.UTC(),
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.byID[b.ID] = b
	ids, ok := s.bySpace[spaceID]
	if !ok {
		ids = map[string]struct{}{}
		s.bySpace[spaceID] = ids
	}
	ids[b.ID] = struct{}{}
	s.mu.Unlock()
	return b, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, bookingID string) (model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return model.Booking{}, classify("cancel booking", err)
	}
	s.mu.RLock()
	b, ok := s.byID[bookingID]
	s.mu.RUnlock()
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrNotFound, bookingID)
	}

	l := s.spaceLock(b.SpaceID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent cancel may have won while we waited.
	if _, ok := s.byID[bookingID]; !ok {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrNotFound, bookingID)
	}
	delete(s.byID, bookingID)
	delete(s.bySpace[b.SpaceID], bookingID)
	return b, nil
}

func (s *MemoryStore) Get(_ context.Context, bookingID string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[bookingID]
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrNotFound, bookingID)
	}
	return b, nil
}

func (s *MemoryStore) ListBySpace(_ context.Context, spaceID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortByStart(s.spaceBookingsLocked(spaceID)), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]model.Booking, error) {
	return s.filter(func(b model.Booking) bool { return b.UserID == userID }), nil
}

func (s *MemoryStore) ListAll(context.Context) ([]model.Booking, error) {
	return s.filter(func(model.Booking) bool { return true }), nil
}

func (s *MemoryStore) ListOverlapping(_ context.Context, spaceID string, iv interval.Interval) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.spaceBookingsLocked(spaceID) {
		if b.Interval().Overlaps(iv) {
			out = append(out, b)
		}
	}
	return sortByStart(out), nil
}

func (s *MemoryStore) ListActiveIn(_ context.Context, iv interval.Interval) ([]model.Booking, error) {
	return s.filter(func(b model.Booking) bool { return b.Interval().Overlaps(iv) }), nil
}

func (s *MemoryStore) filter(keep func(model.Booking) bool) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.byID {
		if keep(b) {
			out = append(out, b)
		}
	}
	return sortByStart(out)
}

// spaceBookingsLocked requires s.mu held.
func (s *MemoryStore) spaceBookingsLocked(spaceID string) []model.Booking {
	ids := s.bySpace[spaceID]
	out := make([]model.Booking, 0, len(ids))
	for id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

func sortByStart(bs []model.Booking) []model.Booking {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].Start.Equal(bs[j].Start) {
			return bs[i].Start.Before(bs[j].Start)
		}
		return bs[i].ID < bs[j].ID
	})
	return bs
}

// checkSpace rejects unknown and inactive spaces before any write.
func checkSpace(ctx context.Context, dir spaces.Directory, spaceID string) error {
	space, err := dir.Lookup(ctx, spaceID)
	if err != nil {
		return classify("lookup space", err)
	}
	if !space.Active {
		return fmt.Errorf("%w: %s", model.ErrInactiveSpace, spaceID)
	}
	return nil
}
