package core

import (
	"context"
	"errors"
	"time"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter is an external keyed counter with atomic increment-and-check.
// Allow reports whether one more hit on `key` fits within `limit` per `window`.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
