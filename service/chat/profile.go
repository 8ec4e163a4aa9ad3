package chat

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/HighK/chatrelay/logger"
)

// ProfileCache memoizes user profile references. Misses trigger an
// asynchronous lookup and return an empty placeholder, so callers never
// block on the user store. The whole cache is dropped wholesale on a
// recurring boundary rather than per-entry TTL.
type ProfileCache struct {
	entries *gocache.Cache
	rooms   RoomStore
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewProfileCache(rooms RoomStore, timeout time.Duration) *ProfileCache {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProfileCache{
		entries:  gocache.New(gocache.NoExpiration, 0),
		rooms:    rooms,
		timeout:  timeout,
		inflight: make(map[string]struct{}),
	}
}

// Get returns the cached profile reference, or "" while a background
// lookup fills the entry. The first call after a cold cache always
// returns "".
func (c *ProfileCache) Get(userID string) string {
	if userID == "" {
		return ""
	}
	if v, ok := c.entries.Get(userID); ok {
		return v.(string)
	}

	c.mu.Lock()
	if _, busy := c.inflight[userID]; busy {
		c.mu.Unlock()
		return ""
	}
	c.inflight[userID] = struct{}{}
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.inflight, userID)
			c.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		ref, err := c.rooms.LookupProfileRef(ctx, userID)
		if err != nil {
			logger.Warnf("[profile] lookup user=%s: %v", userID, err)
			return
		}
		// Unknown users cache "" so we do not look them up on every call.
		c.entries.SetDefault(userID, ref)
	}()
	return ""
}

// Put stores a self-reported profile reference.
func (c *ProfileCache) Put(userID, ref string) {
	if userID == "" {
		return
	}
	c.entries.SetDefault(userID, ref)
}

// Clear drops every entry regardless of recency.
func (c *ProfileCache) Clear() {
	c.entries.Flush()
}

// RunClearLoop clears the cache every `every`, aligned to the next local
// midnight, until ctx is done.
func (c *ProfileCache) RunClearLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 72 * time.Hour
	}
	now := time.Now()
	first := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	timer := time.NewTimer(time.Until(first))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		c.Clear()
		logger.Info("[profile] cache cleared")
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Clear()
			logger.Info("[profile] cache cleared")
		}
	}
}
