package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisStore "coin-tip-ledger/internal/adapter/storage/redis"
	"coin-tip-ledger/pkg/apperror"
	"coin-tip-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitChecker counts a request against key. Implemented by redis.RateLimitStore.
type RateLimitChecker interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the rate limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"reads":       {Limit: 300, Window: time.Minute},
		"tips":        {Limit: 120, Window: time.Minute},
		"withdrawals": {Limit: 10, Window: time.Minute},
		"addresses":   {Limit: 30, Window: time.Minute},
		"reconcile":   {Limit: 30, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Redis failures let the request through.
func RateLimiter(store RateLimitChecker, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Abort(c, apperror.ErrRateLimitExceeded())
			return
		}

		c.Next()
	}
}

// extractIdentifier keys the limit by authenticated client, falling back to IP.
func extractIdentifier(c *gin.Context) string {
	if id := c.GetString(CtxClientID); id != "" {
		return "client:" + id
	}
	return "ip:" + c.ClientIP()
}
