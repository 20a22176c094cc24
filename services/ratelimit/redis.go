package ratelimitsvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/learningcloud/backend/core"
)

// redisLimiter counts hits per key in a fixed window. The first INCR in a
// window sets the TTL; the key expires on its own when the window ends.
type redisLimiter struct {
	client *redis.Client
}

var _ core.RateLimiter = (*redisLimiter)(nil)

func NewRedisLimiter(conf *core.Config) core.RateLimiter {
	return &redisLimiter{
		client: redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}),
	}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "incrementing rate limit counter")
	}
	return incr.Val() <= int64(limit), nil
}
