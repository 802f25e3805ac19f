package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "auth:token:"

// Cached remembers successful resolutions in redis. Rejections are never cached
// and a redis outage falls through to the wrapped authenticator.
type Cached struct {
	next   Authenticator
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Authenticator, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl, logger: slog.Default()}
}

func (c *Cached) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

func (c *Cached) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	key := cacheKeyPrefix + tokenHashHex(token)

	userID, err := c.rdb.Get(ctx, key).Result()
	if err == nil && userID != "" {
		return userID, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "auth cache read failed", "err", err)
	}

	userID, err = c.next.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, key, userID, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "auth cache write failed", "err", err)
	}
	return userID, nil
}
