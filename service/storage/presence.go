package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HighK/chatrelay/logger"
)

const onlineKeyPrefix = "chat:online:"

// Presence records which connections are online in redis, keyed by
// connection id with a TTL so crashed nodes age out on their own. It is
// never on the delivery path; every call is fire-and-forget.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresence returns a recorder backed by rdb. A nil client yields a
// disabled recorder whose methods all no-op.
func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Presence{rdb: rdb, ttl: ttl}
}

func (p *Presence) enabled() bool { return p != nil && p.rdb != nil }

func (p *Presence) Online(ctx context.Context, connID, userID string) {
	if !p.enabled() {
		return
	}
	if err := p.rdb.Set(ctx, onlineKeyPrefix+connID, userID, p.ttl).Err(); err != nil {
		logger.Debug("presence online failed: " + err.Error())
	}
}

// Refresh extends the TTL; called from the read loop on client activity.
func (p *Presence) Refresh(ctx context.Context, connID string) {
	if !p.enabled() {
		return
	}
	if err := p.rdb.Expire(ctx, onlineKeyPrefix+connID, p.ttl).Err(); err != nil {
		logger.Debug("presence refresh failed: " + err.Error())
	}
}

func (p *Presence) Offline(ctx context.Context, connID string) {
	if !p.enabled() {
		return
	}
	if err := p.rdb.Del(ctx, onlineKeyPrefix+connID).Err(); err != nil {
		logger.Debug("presence offline failed: " + err.Error())
	}
}
