package dialer

import (
	"context"
	"time"

	"github.com/Hons90/CRM/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Limiter caps in-flight dials per agent.
// Acquire reports false when the agent is at the cap; release must be called after a true.
type Limiter interface {
	Acquire(ctx context.Context, userID int64) (release func(), ok bool, err error)
}

// slotTTL frees slots leaked by a crashed process. It exceeds any provider timeout.
const slotTTL = 2 * time.Minute

// RedisLimiter shares the cap across API instances with an atomic Lua counter.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
}

func NewRedisLimiter(rdb *redis.Client, limit int) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit}
}

func (l *RedisLimiter) Acquire(ctx context.Context, userID int64) (func(), bool, error) {
	key := utils.DialCapKey(userID)
	ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, key, l.limit, slotTTL)
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		// Detached: the request context may already be canceled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = utils.ReleaseConcurrencyCap(ctx, l.rdb, key)
	}
	return release, true, nil
}
