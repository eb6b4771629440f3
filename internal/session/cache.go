package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"monobot/core/logger"
	"monobot/internal/models"
)

// Loader fetches a user record from the backing store. A (nil, nil) result
// means the user does not exist; it is not cached.
type Loader func(ctx context.Context, telegramID int64) (*models.User, error)

// Cache is an in-process cache of user records keyed by Telegram id.
//
// Entries live for the process lifetime; the backing store stays the source
// of truth and writers must call Put or Invalidate after a confirmed write.
// Concurrent misses for the same id are collapsed into a single store read.
type Cache struct {
	mu    sync.RWMutex
	users map[int64]*models.User

	load  Loader
	group singleflight.Group
}

func NewCache(load Loader) *Cache {
	return &Cache{
		users: make(map[int64]*models.User),
		load:  load,
	}
}

// Get returns the cached user, loading it on a miss. Misses for the same id
// that arrive while a load is in flight share that load's result.
func (c *Cache) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	c.mu.RLock()
	u, ok := c.users[telegramID]
	c.mu.RUnlock()
	if ok {
		return u, nil
	}

	start := time.Now()
	v, err, shared := c.group.Do(strconv.FormatInt(telegramID, 10), func() (interface{}, error) {
		loaded, err := c.load(ctx, telegramID)
		if err != nil {
			return nil, err
		}
		if loaded != nil {
			c.mu.Lock()
			c.users[telegramID] = loaded
			c.mu.Unlock()
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelDebug, "session.load",
		slog.Int64("user_id", telegramID),
		slog.String("cache", "miss"),
		slog.Bool("shared", shared),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)

	u, _ = v.(*models.User)
	return u, nil
}

// Put stores a fresh record. Callers use it right after a confirmed write so
// the next Get does not hit the store.
func (c *Cache) Put(u *models.User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	c.users[u.TelegramID] = u
	c.mu.Unlock()
}

// Invalidate drops a single entry.
func (c *Cache) Invalidate(telegramID int64) {
	c.mu.Lock()
	delete(c.users, telegramID)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.users = make(map[int64]*models.User)
	c.mu.Unlock()
}

// Len reports current occupancy.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// Snapshot returns a copy of the cached records for diagnostics.
func (c *Cache) Snapshot() []*models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	return out
}
