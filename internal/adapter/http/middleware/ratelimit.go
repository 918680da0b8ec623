package middleware

import (
	"strconv"
	"time"

	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-group request budgets.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"auth_register": {Limit: 5, Window: time.Hour},
		"auth_login":    {Limit: 10, Window: time.Minute},
		"transfers":     {Limit: 30, Window: time.Minute},
		"schedules":     {Limit: 20, Window: time.Minute},
		"read":          {Limit: 120, Window: time.Minute},
	}
}

// RateLimiter throttles an endpoint group per caller. Limiter failures let
// the request through.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := extractIdentifier(c) + ":" + group

		d, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retry := int64(time.Until(d.ResetAt).Seconds())
			c.Header("Retry-After", strconv.FormatInt(max(retry, 1), 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractIdentifier keys authenticated traffic by account, the rest by IP.
func extractIdentifier(c *gin.Context) string {
	if id, ok := AccountID(c); ok {
		return "acct:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
