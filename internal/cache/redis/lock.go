package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/phindlabs/revloop/internal/domain"
)

// unlockLua deletes a lock key only when its value matches the holder's
// token, so one holder cannot release another's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager using SETNX with a TTL and a
// Lua conditional unlock. The control loop uses it as a leader lock so a
// shared ledger only ever has one writer.
type LockManager struct {
	rdb      *redis.Client
	ttl      time.Duration
	unlockSc *redis.Script
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager creates a LockManager whose locks expire after ttl.
func NewLockManager(c *Client, ttl time.Duration) *LockManager {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LockManager{
		rdb:      c.Underlying(),
		ttl:      ttl,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire obtains the lock or returns domain.ErrLockHeld when another
// party owns it. The returned release func is safe to call repeatedly.
func (lm *LockManager) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, lm.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	release := func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		if err := lm.unlockSc.Run(ctx, lm.rdb, []string{lk}, token).Err(); err != nil {
			return fmt.Errorf("redis: release lock %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}
