package storage

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cajuhub/roombook/services/booking-service/internal/interval"
	"github.com/cajuhub/roombook/services/booking-service/internal/model"
	"github.com/cajuhub/roombook/services/booking-service/internal/spaces"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func span(fromMin, toMin int) interval.Interval {
	return interval.Interval{
		Start: day.Add(time.Duration(fromMin) * time.Minute),
		End:   day.Add(time.Duration(toMin) * time.Minute),
	}
}

func hours(from, to float64) interval.Interval {
	return span(int(from*60), int(to*60))
}

type storeFactory func(t *testing.T, dir spaces.Directory) Store

func testDirectory() *spaces.StaticDirectory {
	return spaces.NewStaticDirectory(
		model.Space{ID: "R1", Name: "Aurora", Type: "meeting", Active: true},
		model.Space{ID: "R2", Name: "Borealis", Type: "meeting", Active: true},
		model.Space{ID: "R3", Name: "Closet", Type: "phone", Active: false},
	)
}

// runStoreContract exercises behaviour both Store implementations share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Run("scenario", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, testDirectory())

		first, err := s.Create(ctx, "R1", "U1", hours(9, 10))
		require.NoError(t, err)
		assert.Equal(t, "R1", first.SpaceID)
		assert.Equal(t, "U1", first.UserID)
		assert.True(t, first.Start.Equal(hours(9, 10).Start))
		assert.True(t, first.End.Equal(hours(9, 10).End))
		assert.NotEmpty(t, first.ID)
		assert.False(t, first.CreatedAt.IsZero())

		_, err = s.Create(ctx, "R1", "U2", hours(9.5, 10.5))
		var ce *model.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, first.ID, ce.ExistingID)
		assert.ErrorIs(t, err, model.ErrConflict)

		active, err := s.ListActiveIn(ctx, span(9*60+15, 9*60+45))
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "R1", active[0].SpaceID)

		_, err = s.Cancel(ctx, first.ID)
		require.NoError(t, err)

		_, err = s.Create(ctx, "R1", "U2", hours(9.5, 10.5))
		require.NoError(t, err)
	})

	t.Run("touching intervals do not conflict", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, testDirectory())
		_, err := s.Create(ctx, "R1", "U1", hours(9, 10))
		require.NoError(t, err)
		_, err = s.Create(ctx, "R1", "U2", hours(10, 11))
		require.NoError(t, err)
		_, err = s.Create(ctx, "R1", "U3", hours(8, 9))
		require.NoError(t, err)

		after, err := s.ListActiveIn(ctx, hours(11, 12))
		require.NoError(t, err)
		assert.Empty(t, after)
	})

	t.Run("different spaces are independent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, testDirectory())
		_, err := s.Create(ctx, "R1", "U1", hours(9, 10))
		require.NoError(t, err)
		_, err = s.Create(ctx, "R2", "U1", hours(9, 10))
		require.NoError(t, err)
	})

	t.Run("inactive and unknown spaces", func(t *testing.T) {
		ctx := context.Background()
		dir := testDirectory()
		s := newStore(t, dir)

		for _, iv := range []interval.Interval{hours(9, 10), hours(0, 23), span(1, 2)} {
			_, err := s.Create(ctx, "R3", "U1", iv)
			assert.ErrorIs(t, err, model.ErrInactiveSpace)
		}
		_, err := s.Create(ctx, "R404", "U1", hours(9, 10))
		assert.ErrorIs(t, err, model.ErrSpaceNotFound)

		dir.SetActive("R1", false)
		_, err = s.Create(ctx, "R1", "U1", hours(9, 10))
		assert.ErrorIs(t, err, model.ErrInactiveSpace)
	})

	t.Run("invalid interval", func(t *testing.T) {
		s := newStore(t, testDirectory())
		_, err := s.Create(context.Background(), "R1", "U1", hours(10, 9))
		assert.ErrorIs(t, err, model.ErrInvalidInterval)
		_, err = s.Create(context.Background(), "R1", "U1", hours(9, 9))
		assert.ErrorIs(t, err, model.ErrInvalidInterval)
	})

	t.Run("second cancel is not found", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, testDirectory())
		b, err := s.Create(ctx, "R1", "U1", hours(9, 10))
		require.NoError(t, err)

		cancelled, err := s.Cancel(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, cancelled.ID)

		_, err = s.Cancel(ctx, b.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = s.Get(ctx, b.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = s.Cancel(ctx, "not-a-booking")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("listings are ordered by start", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, testDirectory())
		for _, c := range []struct {
			space, user string
			iv          interval.Interval
		}{
			{"R1", "U1", hours(14, 15)},
			{"R2", "U1", hours(9, 10)},
			{"R1", "U2", hours(11, 12)},
		} {
			_, err := s.Create(ctx, c.space, c.user, c.iv)
			require.NoError(t, err)
		}

		mine, err := s.ListByUser(ctx, "U1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "R2", mine[0].SpaceID)

		r1, err := s.ListBySpace(ctx, "R1")
		require.NoError(t, err)
		require.Len(t, r1, 2)
		assert.Equal(t, "U2", r1[0].UserID)

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("concurrent identical creates", func(t *testing.T) {
		s := newStore(t, testDirectory())
		const callers = 16
		var wins, conflicts atomic.Int32
		g, ctx := errgroup.WithContext(context.Background())
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			g.Go(func() error {
				<-start
				_, err := s.Create(ctx, "R1", "U", hours(9, 10))
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, model.ErrConflict):
					conflicts.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		close(start)
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 1, wins.Load())
		assert.EqualValues(t, callers-1, conflicts.Load())
	})

	t.Run("random concurrent creates never double book", func(t *testing.T) {
		s := newStore(t, testDirectory())
		r := rand.New(rand.NewSource(42))
		requests := make([]interval.Interval, 200)
		for i := range requests {
			from := r.Intn(20 * 60)
			requests[i] = span(from, from+15+r.Intn(180))
		}

		var wins atomic.Int32
		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(24)
		for _, iv := range requests {
			g.Go(func() error {
				_, err := s.Create(ctx, "R1", "U", iv)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, model.ErrConflict):
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		stored, err := s.ListBySpace(context.Background(), "R1")
		require.NoError(t, err)
		assert.Len(t, stored, int(wins.Load()))
		for i := range stored {
			for j := i + 1; j < len(stored); j++ {
				if stored[i].Interval().Overlaps(stored[j].Interval()) {
					t.Fatalf("double booking: %s and %s", stored[i].Interval(), stored[j].Interval())
				}
			}
		}
	})
}
