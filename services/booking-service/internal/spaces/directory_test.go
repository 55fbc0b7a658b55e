package spaces

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cajuhub/roombook/services/booking-service/internal/model"
)

func TestParseSeed(t *testing.T) {
	got, err := ParseSeed(" R1, R2:inactive ,,R3:active")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.Space{ID: "R1", Name: "R1", Type: "room", Active: true}, got[0])
	assert.False(t, got[1].Active)
	assert.True(t, got[2].Active)

	_, err = ParseSeed("R1:broken")
	assert.Error(t, err)
}

func TestStaticDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewStaticDirectory(model.Space{ID: "R1", Name: "Aurora", Active: true})

	_, err := d.Lookup(ctx, "nope")
	assert.True(t, errors.Is(err, model.ErrSpaceNotFound))

	d.SetActive("R1", false)
	s, err := d.Lookup(ctx, "R1")
	require.NoError(t, err)
	assert.False(t, s.Active)

	names, err := d.Names(ctx, []string{"R1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Space{"R1": s}, names)
}

func TestCachedDirectoryFallsThroughWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	backing := NewStaticDirectory(model.Space{ID: "R1", Name: "Aurora", Active: true})
	c := NewCachedDirectory(backing, rdb, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s, err := c.Lookup(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "Aurora", s.Name)

	_, err = c.Lookup(context.Background(), "R9")
	assert.ErrorIs(t, err, model.ErrSpaceNotFound)
}
