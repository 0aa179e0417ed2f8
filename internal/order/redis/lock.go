package redis

import (
	"context"
	"fmt"
	"time"

	"ms-watchmarket/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	lockPrefix     = "order_lock:"
	DefaultLockTTL = 10 * time.Second
)

// unlockScript deletes the key only while it still holds our token, so a
// request whose lock expired cannot release somebody else's.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis serialises writers of the same order across service instances.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
	TTL    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Redis{Client: client, Logger: log, TTL: ttl}
}

func lockKey(orderID string) string {
	return lockPrefix + orderID
}

// LockOrder tries once to take the order's lock. ok is false when another
// request holds it. The returned token must be passed to UnlockOrder.
func (r *Redis) LockOrder(ctx context.Context, orderID string) (token string, ok bool, err error) {
	token = uuid.New().String()
	ok, err = r.Client.SetNX(ctx, lockKey(orderID), token, r.ttl()).Result()
	if err != nil {
		return "", false, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	if !ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("order %s is locked by another request", orderID))
		return "", false, nil
	}
	return token, true, nil
}

// UnlockOrder releases the lock if token still owns it.
func (r *Redis) UnlockOrder(ctx context.Context, orderID, token string) error {
	released, err := unlockScript.Run(ctx, r.Client, []string{lockKey(orderID)}, token).Int()
	if err != nil {
		return fmt.Errorf("unlock order %s: %w", orderID, err)
	}
	if released == 0 {
		r.Logger.Warn("REDIS", fmt.Sprintf("lock for order %s was no longer ours on release", orderID))
	}
	return nil
}

// IsLocked reports whether any request currently holds the order's lock.
func (r *Redis) IsLocked(ctx context.Context, orderID string) (bool, error) {
	n, err := r.Client.Exists(ctx, lockKey(orderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) ttl() time.Duration {
	if r.TTL <= 0 {
		return DefaultLockTTL
	}
	return r.TTL
}
