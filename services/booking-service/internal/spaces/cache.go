package spaces

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cajuhub/roombook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// CachedDirectory is a Redis read-through cache in front of another
// Directory. Only Lookup is cached; Redis failures fall through to next.
type CachedDirectory struct {
	next   Directory
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedDirectory(next Directory, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

type cachedSpace struct {
	ID      string `json:"id"`
	FloorID string `json:"floor_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Active  bool   `json:"active"`
}

func cacheKey(spaceID string) string { return "roombook:space:" + spaceID }

func (c *CachedDirectory) Lookup(ctx context.Context, spaceID string) (model.Space, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(spaceID)).Bytes()
	switch {
	case err == nil:
		var cs cachedSpace
		if err := json.Unmarshal(raw, &cs); err == nil {
			return model.Space(cs), nil
		}
		c.logger.Warn("discarding corrupt space cache entry", "space_id", spaceID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("space cache read failed", "space_id", spaceID, "err", err)
	}

	s, err := c.next.Lookup(ctx, spaceID)
	if err != nil {
		return model.Space{}, err
	}
	if raw, err := json.Marshal(cachedSpace(s)); err == nil {
		if err := c.rdb.Set(ctx, cacheKey(spaceID), raw, c.ttl).Err(); err != nil {
			c.logger.Warn("space cache write failed", "space_id", spaceID, "err", err)
		}
	}
	return s, nil
}

func (c *CachedDirectory) Names(ctx context.Context, spaceIDs []string) (map[string]model.Space, error) {
	return c.next.Names(ctx, spaceIDs)
}

func (c *CachedDirectory) List(ctx context.Context) ([]model.Space, error) {
	return c.next.List(ctx)
}

// Invalidate drops the cached entry so the next Lookup sees the source.
func (c *CachedDirectory) Invalidate(ctx context.Context, spaceID string) error {
	return c.rdb.Del(ctx, cacheKey(spaceID)).Err()
}
