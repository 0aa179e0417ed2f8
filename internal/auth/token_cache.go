package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// refreshMargin is taken off a partner token's lifetime so a cached token is
// never handed out in its last minute.
const refreshMargin = time.Minute

// PartnerTokenCache keeps the client-credentials token used for calls to the
// authentication partner, shared by every order-service replica. The Redis
// key expiry is the token's validity; there is no separate timestamp.
type PartnerTokenCache struct {
	rdb *redis.Client
	key string
}

func NewPartnerTokenCache(rdb *redis.Client, clientID string) *PartnerTokenCache {
	return &PartnerTokenCache{rdb: rdb, key: "watchmarket:partner-token:" + clientID}
}

// Get returns the cached token, or "" when none is usable.
func (c *PartnerTokenCache) Get(ctx context.Context) (string, error) {
	token, err := c.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read partner token: %w", err)
	}
	return token, nil
}

// Put stores token for its lifetime minus refreshMargin. Tokens too short
// lived to survive the margin are not cached at all.
func (c *PartnerTokenCache) Put(ctx context.Context, token string, lifetime time.Duration) error {
	ttl := lifetime - refreshMargin
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, c.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("store partner token: %w", err)
	}
	return nil
}

// Drop forgets the cached token, e.g. after the partner rejected it.
func (c *PartnerTokenCache) Drop(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
