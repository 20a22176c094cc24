package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core"
)

// rateLimitMiddleware rejects with 429 before any business logic runs.
// Hits are counted per client IP in fixed windows; a limiter failure fails
// open so a dead redis does not take the API down with it.
func rateLimitMiddleware(limiter core.RateLimiter, log core.Logger, scope string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil || limit <= 0 {
				return next(ctx)
			}
			key := "ratelimit:" + scope + ":" + ctx.RealIP()
			ok, err := limiter.Allow(ctx.Request().Context(), key, limit, window)
			if err != nil {
				log.Error("checking rate limit", err)
				return next(ctx)
			}
			if !ok {
				return core.ErrRateLimited
			}
			return next(ctx)
		}
	}
}

func (a *jwtAuth) studentMiddleware() echo.MiddlewareFunc {
	return a.roleMiddleware(func(claims Claims) bool { return claims.IsStudent })
}

func (a *jwtAuth) teacherMiddleware() echo.MiddlewareFunc {
	return a.roleMiddleware(func(claims Claims) bool { return claims.IsTeacher || claims.IsAdmin })
}

func (a *jwtAuth) roleMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := a.getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
